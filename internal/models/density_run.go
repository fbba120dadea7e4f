package models

import "time"

// DensityRun represents one execution of the density pipeline
type DensityRun struct {
	ID string `json:"id" db:"id"`

	// Status
	Status string `json:"status" db:"status"` // pending, running, completed, failed

	// Input parameters
	Radius  float64 `json:"radius" db:"radius"`
	ZoneCRS string  `json:"zone_crs,omitempty" db:"zone_crs"`
	Workers int     `json:"workers" db:"workers"`

	// Input sizes
	ZoneCount   int `json:"zone_count" db:"zone_count"`
	RecordCount int `json:"record_count" db:"record_count"`

	// Results
	CanonicalRecords  int     `json:"canonical_records" db:"canonical_records"`
	MalformedRecords  int     `json:"malformed_records" db:"malformed_records"`
	MatchPairs        int     `json:"match_pairs" db:"match_pairs"`
	MatchedEntities   int     `json:"matched_entities" db:"matched_entities"`
	UnmatchedEntities int     `json:"unmatched_entities" db:"unmatched_entities"`
	Amplification     float64 `json:"amplification" db:"amplification"`
	ResultSummary     string  `json:"result_summary,omitempty" db:"result_summary"` // JSON object with diagnostics
	ErrorMessage      string  `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	CreatedBy   string     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RunStatus constants
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Finished reports whether the run reached a terminal status
func (r *DensityRun) Finished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
