package density

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/spatial"
)

// ZoneSet is an immutable, identifier-keyed zone collection in one planar CRS
type ZoneSet struct {
	crs   spatial.CRS
	zones []models.Zone
	index map[string]int
}

// NewZoneSet validates zones and their CRS. Identifiers must be non-empty and
// unique, anchors finite, and the CRS projected.
func NewZoneSet(crsCode string, zones []models.Zone) (*ZoneSet, error) {
	crs, err := spatial.LookupCRS(crsCode)
	if err != nil {
		return nil, fmt.Errorf("%w: zones: %w", ErrCRSMismatch, err)
	}
	if !crs.IsProjected() {
		return nil, fmt.Errorf("%w: zones must use a projected CRS, got %s (%s)", ErrCRSMismatch, crs.Code, crs.Kind)
	}

	set := &ZoneSet{
		crs:   crs,
		zones: slices.Clone(zones),
		index: make(map[string]int, len(zones)),
	}
	for i, z := range set.zones {
		if strings.TrimSpace(z.ID) == "" {
			return nil, fmt.Errorf("%w: zone at position %d", ErrMissingZoneID, i)
		}
		if prev, dup := set.index[z.ID]; dup {
			return nil, fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateZone, z.ID, prev, i)
		}
		if math.IsNaN(z.Anchor[0]) || math.IsNaN(z.Anchor[1]) ||
			math.IsInf(z.Anchor[0], 0) || math.IsInf(z.Anchor[1], 0) {
			return nil, fmt.Errorf("%w: zone %q has anchor %v", ErrMissingAnchor, z.ID, z.Anchor)
		}
		set.index[z.ID] = i
	}

	return set, nil
}

// CRS returns the shared planar CRS
func (s *ZoneSet) CRS() spatial.CRS {
	return s.crs
}

// Len returns the number of zones
func (s *ZoneSet) Len() int {
	return len(s.zones)
}

// Zone returns the zone at position i
func (s *ZoneSet) Zone(i int) models.Zone {
	return s.zones[i]
}

// Lookup returns the position of a zone identifier
func (s *ZoneSet) Lookup(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}
