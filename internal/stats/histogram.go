package stats

import (
	"errors"
	"math"
)

// ErrInvalidBins is returned when a histogram is requested with fewer than one bin
var ErrInvalidBins = errors.New("histogram needs at least one bin")

// Bin is one histogram bucket covering [Lower, Upper); the last bin is closed
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets values into n equal-width bins spanning [min, max].
// When every value is equal a single bin of width one is returned.
func Histogram(values []float64, n int) ([]Bin, error) {
	if n < 1 {
		return nil, ErrInvalidBins
	}
	if len(values) == 0 {
		return []Bin{}, nil
	}

	lo, hi := Min(values), Max(values)
	if lo == hi {
		return []Bin{{Lower: lo, Upper: lo + 1, Count: len(values)}}, nil
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lower = lo + float64(i)*width
		bins[i].Upper = lo + float64(i+1)*width
	}
	bins[n-1].Upper = hi

	for _, v := range values {
		i := int(math.Floor((v - lo) / width))
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins, nil
}
