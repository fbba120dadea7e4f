package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicAggregates(t *testing.T) {
	values := FromInts([]int{4, 1, 3, 2})

	assert.Equal(t, 10.0, Sum(values))
	assert.Equal(t, 2.5, Mean(values))
	assert.Equal(t, 1.0, Min(values))
	assert.Equal(t, 4.0, Max(values))
	assert.Equal(t, 2.5, Median(values))
	assert.InDelta(t, 1.6667, Variance(values), 1e-4)
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "input not reordered")

	assert.Zero(t, Mean(nil))
	assert.Zero(t, Median(nil))
	assert.Zero(t, StdDev([]float64{7}))
}

func TestPercentiles(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}

	assert.Equal(t, 10.0, Percentile(values, 0))
	assert.Equal(t, 30.0, Percentile(values, 50))
	assert.Equal(t, 50.0, Percentile(values, 100))
	assert.Equal(t, 50.0, Percentile(values, 250))
	assert.Equal(t, 15.0, Percentile(values, 12.5))
	assert.Equal(t, []float64{20, 30, 40}, Percentiles(values, []float64{25, 50, 75}))
	assert.Equal(t, []float64{0, 0}, Percentiles(nil, []float64{25, 50}))
}

func TestSummarize(t *testing.T) {
	s := Summarize(FromInts([]int{0, 0, 3, 5, 12}))
	assert.Equal(t, 5, s.N)
	assert.Equal(t, 20.0, s.Sum)
	assert.Equal(t, 4.0, s.Mean)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 12.0, s.Max)
	assert.Equal(t, 2, s.Zeros)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestHistogram(t *testing.T) {
	bins, err := Histogram([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}, 5)
	require.NoError(t, err)
	require.Len(t, bins, 5)

	counts := make([]int, len(bins))
	for i, b := range bins {
		counts[i] = b.Count
	}
	assert.Equal(t, []int{2, 2, 2, 2, 2}, counts)
	assert.Equal(t, 0.0, bins[0].Lower)
	assert.Equal(t, 10.0, bins[4].Upper)

	bins, err = Histogram([]float64{3, 3, 3}, 4)
	require.NoError(t, err)
	assert.Equal(t, []Bin{{Lower: 3, Upper: 4, Count: 3}}, bins)

	bins, err = Histogram(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, bins)

	_, err = Histogram([]float64{1}, 0)
	assert.ErrorIs(t, err, ErrInvalidBins)
}
