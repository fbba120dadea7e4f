package models

import (
	"time"

	"github.com/paulmach/orb"
)

// RawRecord is one timestamped observation of a property.
// The same EntityID may appear many times.
type RawRecord struct {
	EntityID string `json:"entity_id"`

	// Location is nil when the source coordinate was missing or unparseable
	Location *orb.Point `json:"location,omitempty"`

	// CRS declares the coordinate reference system of Location.
	// Empty means the configured default.
	CRS string `json:"crs,omitempty"`

	// RecordedAt is zero when the source timestamp was missing or unparseable
	RecordedAt time.Time `json:"recorded_at"`
}

// CanonicalRecord is the most recent RawRecord of an entity
type CanonicalRecord struct {
	EntityID   string    `json:"entity_id"`
	Location   orb.Point `json:"location"`
	RecordedAt time.Time `json:"recorded_at"`

	// SourceRecords is how many valid raw records collapsed into this one
	SourceRecords int `json:"source_records"`
}

// MatchPair records that an entity lies inside a zone's buffer
type MatchPair struct {
	ZoneID   string `json:"zone_id"`
	EntityID string `json:"entity_id"`
}

// ZoneCount is the number of distinct entities matched to a zone
type ZoneCount struct {
	ZoneID string `json:"zone_id" db:"zone_id"`
	Count  int    `json:"count" db:"count"`
}
