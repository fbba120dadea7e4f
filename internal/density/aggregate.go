package density

import (
	"fmt"

	"github.com/jengzang/zone-density/internal/models"
)

// Counter accumulates distinct entities per zone from batches of match pairs.
// It is not safe for concurrent use; Joiner.Stream serialises its sink.
type Counter struct {
	zones   *ZoneSet
	seen    []map[string]struct{}
	matched map[string]struct{}
	pairs   int
}

// NewCounter creates a counter covering every zone of the set
func NewCounter(zones *ZoneSet) *Counter {
	return &Counter{
		zones:   zones,
		seen:    make([]map[string]struct{}, zones.Len()),
		matched: make(map[string]struct{}),
	}
}

// Add folds a batch of pairs in. A pair naming a zone outside the set is fatal.
func (c *Counter) Add(pairs []models.MatchPair) error {
	for _, p := range pairs {
		pos, ok := c.zones.Lookup(p.ZoneID)
		if !ok {
			return fmt.Errorf("%w: match pair names %q", ErrUnknownZone, p.ZoneID)
		}
		set := c.seen[pos]
		if set == nil {
			set = make(map[string]struct{})
			c.seen[pos] = set
		}
		set[p.EntityID] = struct{}{}
		c.matched[p.EntityID] = struct{}{}
		c.pairs++
	}
	return nil
}

// Counts returns one count per zone, in zone order, zero for unmatched zones
func (c *Counter) Counts() []models.ZoneCount {
	counts := make([]models.ZoneCount, c.zones.Len())
	for i := range counts {
		counts[i] = models.ZoneCount{
			ZoneID: c.zones.Zone(i).ID,
			Count:  len(c.seen[i]),
		}
	}
	return counts
}

// Pairs returns how many pairs were added, duplicates included
func (c *Counter) Pairs() int {
	return c.pairs
}

// MatchedEntities returns the number of distinct entities matched to any zone
func (c *Counter) MatchedEntities() int {
	return len(c.matched)
}

// Aggregate counts distinct entities per zone over a complete pair set
func Aggregate(zones *ZoneSet, pairs []models.MatchPair) ([]models.ZoneCount, error) {
	c := NewCounter(zones)
	if err := c.Add(pairs); err != nil {
		return nil, err
	}
	return c.Counts(), nil
}
