package density

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jengzang/zone-density/internal/models"
)

const testCRS = "EPSG:27700"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return t0.AddDate(0, 0, n)
}

func zone(id string, x, y float64) models.Zone {
	return models.Zone{
		ID:     id,
		Anchor: orb.Point{x, y},
		Boundary: orb.Polygon{{
			{x - 50, y - 50}, {x + 50, y - 50}, {x + 50, y + 50}, {x - 50, y + 50}, {x - 50, y - 50},
		}},
	}
}

func raw(id string, x, y float64, at time.Time) models.RawRecord {
	p := orb.Point{x, y}
	return models.RawRecord{EntityID: id, Location: &p, CRS: testCRS, RecordedAt: at}
}

func canonical(id string, x, y float64) models.CanonicalRecord {
	return models.CanonicalRecord{EntityID: id, Location: orb.Point{x, y}, RecordedAt: t0, SourceRecords: 1}
}

func mustZoneSet(t *testing.T, zones ...models.Zone) *ZoneSet {
	t.Helper()
	set, err := NewZoneSet(testCRS, zones)
	require.NoError(t, err)
	return set
}

func toRaw(recs []models.CanonicalRecord) []models.RawRecord {
	out := make([]models.RawRecord, len(recs))
	for i, c := range recs {
		p := c.Location
		out[i] = models.RawRecord{EntityID: c.EntityID, Location: &p, CRS: testCRS, RecordedAt: c.RecordedAt}
	}
	return out
}

func distinctIDs(recs []models.RawRecord) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, r := range recs {
		ids[r.EntityID] = struct{}{}
	}
	return ids
}
