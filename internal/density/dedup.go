package density

import (
	"math"
	"strings"

	"github.com/jengzang/zone-density/internal/models"
)

// DataQuality counts raw records excluded before grouping, by reason.
// Each excluded record is counted under its first failing check only.
type DataQuality struct {
	Total            int `json:"total"`
	MissingEntityID  int `json:"missing_entity_id"`
	InvalidLocation  int `json:"invalid_location"`
	InvalidTimestamp int `json:"invalid_timestamp"`

	// Unprojectable is the share of InvalidLocation caused by reprojection
	Unprojectable int `json:"unprojectable"`

	Accepted            int `json:"accepted"`
	DuplicatesCollapsed int `json:"duplicates_collapsed"`
}

// Malformed returns the number of excluded records
func (q DataQuality) Malformed() int {
	return q.MissingEntityID + q.InvalidLocation + q.InvalidTimestamp
}

// Deduplicate keeps the most recent valid record of every entity.
//
// Records with an empty entity id, a missing or non-finite location, or a zero
// timestamp are excluded first and counted. When several records of an entity
// share the latest timestamp the first one in input order wins. Output is in
// order of each entity's first valid appearance, so the result is reproducible
// for a given input order, and deduplicating the output returns it unchanged.
func Deduplicate(records []models.RawRecord) ([]models.CanonicalRecord, DataQuality) {
	q := DataQuality{Total: len(records)}
	out := make([]models.CanonicalRecord, 0, len(records))
	seen := make(map[string]int, len(records))

	for _, rec := range records {
		switch {
		case strings.TrimSpace(rec.EntityID) == "":
			q.MissingEntityID++
			continue
		case rec.Location == nil || !finitePoint(rec.Location[0], rec.Location[1]):
			q.InvalidLocation++
			continue
		case rec.RecordedAt.IsZero():
			q.InvalidTimestamp++
			continue
		}
		q.Accepted++

		pos, ok := seen[rec.EntityID]
		if !ok {
			seen[rec.EntityID] = len(out)
			out = append(out, models.CanonicalRecord{
				EntityID:      rec.EntityID,
				Location:      *rec.Location,
				RecordedAt:    rec.RecordedAt,
				SourceRecords: 1,
			})
			continue
		}

		q.DuplicatesCollapsed++
		cur := &out[pos]
		cur.SourceRecords++
		if rec.RecordedAt.After(cur.RecordedAt) {
			cur.Location = *rec.Location
			cur.RecordedAt = rec.RecordedAt
		}
	}

	return out, q
}

func finitePoint(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}
