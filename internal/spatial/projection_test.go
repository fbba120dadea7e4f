package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dms(d, m, s float64) float64 {
	return d + m/60 + s/3600
}

func project(t *testing.T, from, to string, p orb.Point) orb.Point {
	t.Helper()
	src, err := LookupCRS(from)
	require.NoError(t, err)
	dst, err := LookupCRS(to)
	require.NoError(t, err)
	tr, err := NewTransform(src, dst)
	require.NoError(t, err)
	out, err := tr(p)
	require.NoError(t, err)
	return out
}

func TestTransformUTM(t *testing.T) {
	// on the central meridian of zone 32
	got := project(t, "EPSG:4326", "EPSG:32632", orb.Point{9, 52})
	assert.InDelta(t, 500000, got[0], 0.01)
	assert.InDelta(t, 5760468.18, got[1], 0.5)

	got = project(t, "EPSG:4326", "EPSG:32631", orb.Point{3, 0})
	assert.InDelta(t, 500000, got[0], 1e-3)
	assert.InDelta(t, 0, got[1], 1e-3)

	// symmetric about the central meridian
	west := project(t, "EPSG:4326", "EPSG:32631", orb.Point{1, 45})
	east := project(t, "EPSG:4326", "EPSG:32631", orb.Point{5, 45})
	assert.InDelta(t, 500000-west[0], east[0]-500000, 1e-3)
	assert.InDelta(t, west[1], east[1], 1e-3)

	south := project(t, "EPSG:4326", "EPSG:32756", orb.Point{153, -27})
	assert.InDelta(t, 500000, south[0], 0.01)
	assert.Less(t, south[1], 10000000.0)
}

func TestTransformIrishGridOrigin(t *testing.T) {
	got := project(t, "EPSG:4326", "EPSG:2157", orb.Point{-8, 53.5})
	assert.InDelta(t, 600000, got[0], 1)
	assert.InDelta(t, 750000, got[1], 1)
}

func TestNewTransformGeographicToNationalGrid(t *testing.T) {
	geo, _ := LookupCRS("EPSG:4326")
	bng, _ := LookupCRS("EPSG:27700")

	tr, err := NewTransform(geo, bng)
	require.NoError(t, err)

	lon, lat := dms(1, 43, 4.5177), dms(52, 39, 27.2531)
	got, err := tr(orb.Point{lon, lat})
	require.NoError(t, err)

	// Ordnance Survey worked example: these angles on OSGB36 give
	// E 651409.903 N 313177.270. Read as WGS84 they land away from it by the
	// datum shift, tens of metres to roughly a hundred metres across Britain.
	shift := planar.Distance(got, orb.Point{651409.903, 313177.270})
	assert.Greater(t, shift, 20.0)
	assert.Less(t, shift, 200.0)
}

func TestNewTransformMetresAreMetres(t *testing.T) {
	geo, _ := LookupCRS("EPSG:4326")
	utm, _ := LookupCRS("EPSG:32630")

	tr, err := NewTransform(geo, utm)
	require.NoError(t, err)

	// one arc minute of latitude is close to one nautical mile
	a, err := tr(orb.Point{-3, 54})
	require.NoError(t, err)
	b, err := tr(orb.Point{-3, 54 + 1.0/60})
	require.NoError(t, err)
	assert.InDelta(t, 1855, planar.Distance(a, b), 5)
}

func TestNewTransformIdentity(t *testing.T) {
	bng, _ := LookupCRS("EPSG:27700")
	tr, err := NewTransform(bng, bng)
	require.NoError(t, err)

	p, err := tr(orb.Point{530000, 180000})
	require.NoError(t, err)
	assert.Equal(t, orb.Point{530000, 180000}, p)

	_, err = tr(orb.Point{math.NaN(), 1})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestNewTransformRejectsMixedGrids(t *testing.T) {
	geo, _ := LookupCRS("EPSG:4326")
	bng, _ := LookupCRS("EPSG:27700")
	itm, _ := LookupCRS("EPSG:2157")

	_, err := NewTransform(bng, itm)
	assert.ErrorIs(t, err, ErrUnsupportedTransform)

	_, err = NewTransform(bng, geo)
	assert.ErrorIs(t, err, ErrUnsupportedTransform)
}

func TestNewTransformInvalidGeographic(t *testing.T) {
	geo, _ := LookupCRS("EPSG:4326")
	bng, _ := LookupCRS("EPSG:27700")
	tr, err := NewTransform(geo, bng)
	require.NoError(t, err)

	for _, p := range []orb.Point{{0, 91}, {181, 0}, {math.NaN(), 51}} {
		_, err := tr(p)
		assert.ErrorIs(t, err, ErrInvalidCoordinate, "point %v", p)
	}

	same, err := NewTransform(geo, geo)
	require.NoError(t, err)
	_, err = same(orb.Point{0, -95})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

// a buffer radius in projected metres should agree with ground distance
func TestProjectedDistanceMatchesGreatCircle(t *testing.T) {
	geo, _ := LookupCRS("EPSG:4326")
	utm, _ := LookupCRS("EPSG:32630")
	tr, err := NewTransform(geo, utm)
	require.NoError(t, err)

	a, b := orb.Point{-3.01, 54.00}, orb.Point{-2.995, 54.004}
	pa, err := tr(a)
	require.NoError(t, err)
	pb, err := tr(b)
	require.NoError(t, err)

	ground := greatCircleDistance(a, b)
	assert.InDelta(t, 1, planar.Distance(pa, pb)/ground, 0.005)
}

const earthRadiusMeters = 6371000.0

func greatCircleDistance(a, b orb.Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat(), a.Lon())
	p2 := s2.LatLngFromDegrees(b.Lat(), b.Lon())
	return p1.Distance(p2).Radians() * earthRadiusMeters
}
