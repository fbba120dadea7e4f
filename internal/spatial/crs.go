package spatial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes angular reference systems from planar ones
type Kind int

const (
	Geographic Kind = iota + 1
	Projected
)

func (k Kind) String() string {
	switch k {
	case Geographic:
		return "geographic"
	case Projected:
		return "projected"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownCRS           = errors.New("unknown coordinate reference system")
	ErrUnsupportedTransform = errors.New("unsupported coordinate transform")
	ErrInvalidCoordinate    = errors.New("invalid coordinate")
)

// CRS describes a coordinate reference system the engine can work in.
// Projected systems are transverse Mercator grids measured in metres.
type CRS struct {
	Code string
	Name string
	Kind Kind

	epsg int
}

// IsProjected reports whether distances in this CRS are planar metres
func (c CRS) IsProjected() bool {
	return c.Kind == Projected
}

func (c CRS) String() string {
	return c.Code
}

// EPSG returns the numeric EPSG code
func (c CRS) EPSG() int {
	return c.epsg
}

var registry = map[string]CRS{
	"EPSG:4326":  {Code: "EPSG:4326", Name: "WGS 84", Kind: Geographic, epsg: 4326},
	"EPSG:27700": {Code: "EPSG:27700", Name: "OSGB36 / British National Grid", Kind: Projected, epsg: 27700},
	"EPSG:2157":  {Code: "EPSG:2157", Name: "IRENET95 / Irish Transverse Mercator", Kind: Projected, epsg: 2157},
}

// NormalizeCode turns "27700", "epsg:27700" and " EPSG:27700 " into "EPSG:27700"
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if _, err := strconv.Atoi(code); err == nil {
		return "EPSG:" + code
	}
	return code
}

// LookupCRS resolves a CRS code
func LookupCRS(code string) (CRS, error) {
	norm := NormalizeCode(code)
	if norm == "" {
		return CRS{}, fmt.Errorf("%w: empty code", ErrUnknownCRS)
	}
	if crs, ok := registry[norm]; ok {
		return crs, nil
	}
	if crs, ok := utmCRS(norm); ok {
		return crs, nil
	}
	return CRS{}, fmt.Errorf("%w: %q", ErrUnknownCRS, code)
}

// utmCRS builds WGS84 / UTM zone CRSs: EPSG:326zz (north) and EPSG:327zz (south)
func utmCRS(code string) (CRS, bool) {
	num, ok := strings.CutPrefix(code, "EPSG:")
	if !ok || len(num) != 5 {
		return CRS{}, false
	}
	epsg, err := strconv.Atoi(num)
	if err != nil {
		return CRS{}, false
	}

	var south bool
	var zone int
	switch {
	case epsg >= 32601 && epsg <= 32660:
		zone = epsg - 32600
	case epsg >= 32701 && epsg <= 32760:
		zone = epsg - 32700
		south = true
	default:
		return CRS{}, false
	}

	hemisphere := "N"
	if south {
		hemisphere = "S"
	}

	return CRS{
		Code: code,
		Name: fmt.Sprintf("WGS 84 / UTM zone %d%s", zone, hemisphere),
		Kind: Projected,
		epsg: epsg,
	}, true
}
