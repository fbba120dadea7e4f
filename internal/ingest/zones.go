package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/zone-density/internal/models"
)

var (
	ErrMissingID      = errors.New("feature has no zone id")
	ErrDuplicateID    = errors.New("duplicate zone id")
	ErrMissingAnchor  = errors.New("zone has no anchor point")
	ErrOrphanAnchor   = errors.New("anchor point has no zone boundary")
	ErrWrongGeometry  = errors.New("unexpected geometry type")
	ErrMissingColumn  = errors.New("required column missing from header")
	ErrEmptyCSVHeader = errors.New("csv input has no header row")
)

// ZoneSources are the two GeoJSON feature collections that make up a zone set
type ZoneSources struct {
	Boundaries io.Reader
	Anchors    io.Reader
	// IDProperty names the property that joins boundaries to anchors;
	// features without it fall back to their GeoJSON id
	IDProperty string
}

// LoadZones joins boundary polygons to anchor points by id. Zones come back in
// boundary file order. Every boundary needs exactly one anchor and every
// anchor exactly one boundary.
func LoadZones(src ZoneSources) ([]models.Zone, error) {
	boundaries, err := readFeatures(src.Boundaries, "boundaries")
	if err != nil {
		return nil, err
	}
	anchors, err := readFeatures(src.Anchors, "anchors")
	if err != nil {
		return nil, err
	}

	anchorByID := make(map[string]orb.Point, len(anchors.Features))
	for i, f := range anchors.Features {
		id, ok := featureID(f, src.IDProperty)
		if !ok {
			return nil, fmt.Errorf("anchors feature %d: %w", i, ErrMissingID)
		}
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("anchor %q: %w: %s, want Point", id, ErrWrongGeometry, geometryType(f.Geometry))
		}
		if _, dup := anchorByID[id]; dup {
			return nil, fmt.Errorf("anchors: %w: %q", ErrDuplicateID, id)
		}
		anchorByID[id] = p
	}

	zones := make([]models.Zone, 0, len(boundaries.Features))
	seen := make(map[string]struct{}, len(boundaries.Features))
	for i, f := range boundaries.Features {
		id, ok := featureID(f, src.IDProperty)
		if !ok {
			return nil, fmt.Errorf("boundaries feature %d: %w", i, ErrMissingID)
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("zone %q: %w: %s, want Polygon or MultiPolygon", id, ErrWrongGeometry, geometryType(f.Geometry))
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("boundaries: %w: %q", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}

		anchor, ok := anchorByID[id]
		if !ok {
			return nil, fmt.Errorf("zone %q: %w", id, ErrMissingAnchor)
		}
		zones = append(zones, models.Zone{ID: id, Anchor: anchor, Boundary: f.Geometry})
	}

	if len(anchorByID) != len(zones) {
		for id := range anchorByID {
			if _, ok := seen[id]; !ok {
				return nil, fmt.Errorf("anchor %q: %w", id, ErrOrphanAnchor)
			}
		}
	}

	return zones, nil
}

func readFeatures(r io.Reader, name string) (*geojson.FeatureCollection, error) {
	if r == nil {
		return nil, fmt.Errorf("%s: no input", name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return fc, nil
}

func featureID(f *geojson.Feature, property string) (string, bool) {
	if property != "" {
		if v, ok := f.Properties[property]; ok {
			if id := idString(v); id != "" {
				return id, true
			}
		}
	}
	id := idString(f.ID)
	return id, id != ""
}

func idString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
