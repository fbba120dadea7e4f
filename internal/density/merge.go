package density

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/zone-density/internal/models"
)

// Merge attaches counts to zone polygons. Every zone appears exactly once, in
// zone order; a zone without a count gets 0. Counts for unknown zones,
// repeated zones or negative counts are rejected.
func Merge(zones *ZoneSet, counts []models.ZoneCount) ([]models.ZoneResult, error) {
	byPos := make([]int, zones.Len())
	have := make([]bool, zones.Len())

	for _, c := range counts {
		pos, ok := zones.Lookup(c.ZoneID)
		if !ok {
			return nil, fmt.Errorf("%w: count for %q", ErrUnknownZone, c.ZoneID)
		}
		if have[pos] {
			return nil, fmt.Errorf("%w: %q counted twice", ErrDuplicateZone, c.ZoneID)
		}
		if c.Count < 0 {
			return nil, fmt.Errorf("%w: %q has count %d", ErrInvalidCount, c.ZoneID, c.Count)
		}
		byPos[pos] = c.Count
		have[pos] = true
	}

	results := make([]models.ZoneResult, zones.Len())
	for i := range results {
		z := zones.Zone(i)
		results[i] = models.ZoneResult{
			ZoneID:   z.ID,
			Anchor:   z.Anchor,
			Boundary: z.Boundary,
			Count:    byPos[i],
		}
	}
	return results, nil
}

// FeatureCollection renders merged results as GeoJSON for choropleth mapping.
// Zones without a boundary fall back to their anchor point.
func FeatureCollection(results []models.ZoneResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		var g orb.Geometry = r.Anchor
		if r.Boundary != nil {
			g = r.Boundary
		}
		f := geojson.NewFeature(g)
		f.ID = r.ZoneID
		f.Properties["zone_id"] = r.ZoneID
		f.Properties["count"] = r.Count
		fc.Append(f)
	}
	return fc
}
