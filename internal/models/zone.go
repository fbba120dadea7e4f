package models

import "github.com/paulmach/orb"

// Zone is a small-area geography with one anchor point and one boundary
type Zone struct {
	ID string `json:"zone_id"`

	// Anchor is the buffer centre, in the zone set's planar CRS
	Anchor orb.Point `json:"anchor"`

	// Boundary is only used for presentation, never for matching
	Boundary orb.Geometry `json:"-"`
}

// ZoneResult is a zone polygon with its density count attached
type ZoneResult struct {
	ZoneID   string       `json:"zone_id"`
	Anchor   orb.Point    `json:"anchor"`
	Boundary orb.Geometry `json:"-"`
	Count    int          `json:"count"`
}
