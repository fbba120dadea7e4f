package density

import (
	"errors"

	"github.com/jengzang/zone-density/internal/spatial"
)

// Structural failures. Any of these aborts a run; data-quality problems are
// reported through DataQuality instead.
var (
	ErrCRSMismatch   = errors.New("crs mismatch")
	ErrDuplicateZone = errors.New("duplicate zone identifier")
	ErrMissingZoneID = errors.New("missing zone identifier")
	ErrMissingAnchor = errors.New("missing zone anchor")
	ErrUnknownZone   = errors.New("unknown zone identifier")
	ErrInvalidRadius = spatial.ErrInvalidRadius
	ErrInvalidCount  = errors.New("invalid zone count")
)
