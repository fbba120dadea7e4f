package stats

import "slices"

// Percentile calculates the p-th percentile (0-100)
func Percentile(values []float64, p float64) float64 {
	return Quantile(values, p/100.0)
}

// Percentiles calculates multiple percentiles with a single sort
func Percentiles(values []float64, ps []float64) []float64 {
	results := make([]float64, len(ps))
	if len(values) == 0 {
		return results
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	for i, p := range ps {
		results[i] = quantileSorted(sorted, p/100.0)
	}
	return results
}

// Summary describes the distribution of zone counts
type Summary struct {
	N      int     `json:"n"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
	Zeros  int     `json:"zeros"`
}

// Summarize computes the run summary of a count distribution
func Summarize(values []float64) Summary {
	s := Summary{N: len(values)}
	if len(values) == 0 {
		return s
	}

	ps := Percentiles(values, []float64{25, 50, 75, 90})
	s.Sum = Sum(values)
	s.Mean = Mean(values)
	s.StdDev = StdDev(values)
	s.Min = Min(values)
	s.Max = Max(values)
	s.P25, s.Median, s.P75, s.P90 = ps[0], ps[1], ps[2], ps[3]
	for _, v := range values {
		if v == 0 {
			s.Zeros++
		}
	}
	return s
}
