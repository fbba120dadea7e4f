package density

import (
	"errors"
	"fmt"

	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/spatial"
)

// Reprojector moves raw record coordinates into the zones' planar CRS.
// A CRS it cannot resolve or transform from is fatal.
type Reprojector struct {
	target     spatial.CRS
	defaultCRS string
	transforms map[string]spatial.Transform
}

// NewReprojector creates a reprojector onto target. Records with an empty CRS
// are read in defaultCRS; an empty default makes such records fatal.
func NewReprojector(target spatial.CRS, defaultCRS string) (*Reprojector, error) {
	if !target.IsProjected() {
		return nil, fmt.Errorf("%w: target %s is not projected", ErrCRSMismatch, target.Code)
	}
	return &Reprojector{
		target:     target,
		defaultCRS: spatial.NormalizeCode(defaultCRS),
		transforms: make(map[string]spatial.Transform),
	}, nil
}

// Reproject returns a copy of records with every location in the target CRS.
// Locations that cannot be placed (out of range, non-finite) become nil and are
// counted; the deduplicator later reports them as invalid locations.
func (r *Reprojector) Reproject(records []models.RawRecord) ([]models.RawRecord, int, error) {
	out := make([]models.RawRecord, len(records))
	unprojectable := 0

	for i, rec := range records {
		tr, err := r.transform(rec.CRS)
		if err != nil {
			return nil, 0, fmt.Errorf("record %d (%q): %w", i, rec.EntityID, err)
		}

		rec.CRS = r.target.Code
		if rec.Location != nil {
			p, err := tr(*rec.Location)
			switch {
			case errors.Is(err, spatial.ErrInvalidCoordinate):
				rec.Location = nil
				unprojectable++
			case err != nil:
				return nil, 0, fmt.Errorf("record %d (%q): %w", i, rec.EntityID, err)
			default:
				rec.Location = &p
			}
		}
		out[i] = rec
	}

	return out, unprojectable, nil
}

func (r *Reprojector) transform(code string) (spatial.Transform, error) {
	code = spatial.NormalizeCode(code)
	if code == "" {
		code = r.defaultCRS
	}
	if tr, ok := r.transforms[code]; ok {
		return tr, nil
	}

	if code == "" {
		return nil, fmt.Errorf("%w: record has no CRS and no default is configured", ErrCRSMismatch)
	}
	from, err := spatial.LookupCRS(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCRSMismatch, err)
	}
	tr, err := spatial.NewTransform(from, r.target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCRSMismatch, err)
	}

	r.transforms[code] = tr
	return tr, nil
}
