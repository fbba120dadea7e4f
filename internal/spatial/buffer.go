package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidRadius is returned for a non-positive or non-finite buffer radius
var ErrInvalidRadius = errors.New("invalid buffer radius")

// DefaultSegments is the vertex count used when a disk is rendered as a polygon
const DefaultSegments = 64

// Disk is the closed region within Radius of Center, in planar units
type Disk struct {
	Center orb.Point
	Radius float64
}

// NewDisk builds the buffer of radius r around center
func NewDisk(center orb.Point, r float64) (Disk, error) {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return Disk{}, fmt.Errorf("%w: %v", ErrInvalidRadius, r)
	}
	if !finite(center) {
		return Disk{}, fmt.Errorf("%w: centre %v", ErrInvalidCoordinate, center)
	}
	return Disk{Center: center, Radius: r}, nil
}

// Contains reports whether p lies inside or on the boundary of the disk
func (d Disk) Contains(p orb.Point) bool {
	return planar.DistanceSquared(d.Center, p) <= d.Radius*d.Radius
}

// Bound returns the axis-aligned bounding box of the disk
func (d Disk) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{d.Center[0] - d.Radius, d.Center[1] - d.Radius},
		Max: orb.Point{d.Center[0] + d.Radius, d.Center[1] + d.Radius},
	}
}

// Area returns the exact disk area
func (d Disk) Area() float64 {
	return math.Pi * d.Radius * d.Radius
}

// Polygon approximates the disk boundary with a closed ring of n vertices
func (d Disk) Polygon(n int) orb.Polygon {
	if n < 3 {
		n = DefaultSegments
	}
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		sin, cos := math.Sincos(theta)
		ring = append(ring, orb.Point{d.Center[0] + d.Radius*cos, d.Center[1] + d.Radius*sin})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
