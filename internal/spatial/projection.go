package spatial

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// epsg holds the datum and projection definitions behind every registered CRS,
// including the OSGB36 Helmert shift used by EPSG:27700.
var epsg = wgs84.EPSG()

// Transform maps a coordinate from one CRS into another
type Transform func(p orb.Point) (orb.Point, error)

// NewTransform builds the transform from one CRS to another. Only identity and
// geographic-to-projected transforms exist; the engine never converts between
// two different planar grids.
func NewTransform(from, to CRS) (Transform, error) {
	if from.Code == to.Code {
		if from.Kind == Geographic {
			return validateLonLat, nil
		}
		return identity, nil
	}
	if from.Kind != Geographic || to.Kind != Projected || to.epsg == 0 {
		return nil, fmt.Errorf("%w: %s (%s) to %s (%s)",
			ErrUnsupportedTransform, from.Code, from.Kind, to.Code, to.Kind)
	}

	project := wgs84.Transform(epsg.Code(from.epsg), epsg.Code(to.epsg))
	return func(p orb.Point) (orb.Point, error) {
		ll, err := lonLat(p)
		if err != nil {
			return orb.Point{}, err
		}
		e, n, _ := project(ll.Lng.Degrees(), ll.Lat.Degrees(), 0)
		out := orb.Point{e, n}
		if !finite(out) {
			return orb.Point{}, fmt.Errorf("%w: %v does not project onto %s", ErrInvalidCoordinate, p, to.Code)
		}
		return out, nil
	}, nil
}

func identity(p orb.Point) (orb.Point, error) {
	if !finite(p) {
		return orb.Point{}, fmt.Errorf("%w: %v", ErrInvalidCoordinate, p)
	}
	return p, nil
}

func validateLonLat(p orb.Point) (orb.Point, error) {
	if _, err := lonLat(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}

// lonLat reads an orb point as (lon, lat) degrees
func lonLat(p orb.Point) (s2.LatLng, error) {
	ll := s2.LatLngFromDegrees(p.Lat(), p.Lon())
	if !ll.IsValid() {
		return s2.LatLng{}, fmt.Errorf("%w: lon=%v lat=%v out of range", ErrInvalidCoordinate, p.Lon(), p.Lat())
	}
	return ll, nil
}

func finite(p orb.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
