package density

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/zone-density/internal/models"
)

func mustJoiner(t *testing.T, set *ZoneSet, radius float64, opts JoinOptions) *Joiner {
	t.Helper()
	buffers, err := GenerateBuffers(set, radius)
	require.NoError(t, err)
	j, err := NewJoiner(buffers, opts)
	require.NoError(t, err)
	return j
}

func TestJoinOverlappingBuffersDoubleCount(t *testing.T) {
	set := mustZoneSet(t, zone("Z1", 0, 0), zone("Z2", 1000, 0))
	j := mustJoiner(t, set, 800, JoinOptions{})

	pairs, err := j.Join(context.Background(), []models.CanonicalRecord{canonical("E1", 500, 0)})
	require.NoError(t, err)
	assert.Equal(t, []models.MatchPair{
		{ZoneID: "Z1", EntityID: "E1"},
		{ZoneID: "Z2", EntityID: "E1"},
	}, pairs)
}

func TestJoinBoundaryAndAnchor(t *testing.T) {
	set := mustZoneSet(t, zone("Z1", 1000, 1000))
	j := mustJoiner(t, set, 800, JoinOptions{})

	pairs, err := j.Join(context.Background(), []models.CanonicalRecord{
		canonical("anchor", 1000, 1000),
		canonical("edge", 1800, 1000),
		canonical("far", 5000, 5000),
		canonical("just-out", 1000, 1800.0001),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.MatchPair{
		{ZoneID: "Z1", EntityID: "anchor"},
		{ZoneID: "Z1", EntityID: "edge"},
	}, pairs)
}

func TestJoinEmptyInputs(t *testing.T) {
	set := mustZoneSet(t, zone("Z1", 0, 0))
	j := mustJoiner(t, set, 800, JoinOptions{})

	pairs, err := j.Join(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	empty, err := NewJoiner(nil, JoinOptions{})
	require.NoError(t, err)
	pairs, err = empty.Join(context.Background(), []models.CanonicalRecord{canonical("E1", 0, 0)})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func randomScene(rng *rand.Rand, zones, records int, extent float64) ([]models.Zone, []models.CanonicalRecord) {
	zs := make([]models.Zone, zones)
	for i := range zs {
		zs[i] = zone(fmt.Sprintf("Z%d", i), rng.Float64()*extent, rng.Float64()*extent)
	}
	rs := make([]models.CanonicalRecord, records)
	for i := range rs {
		rs[i] = canonical(fmt.Sprintf("E%d", i), rng.Float64()*extent, rng.Float64()*extent)
	}
	return zs, rs
}

func bruteForce(zones []models.Zone, records []models.CanonicalRecord, radius float64) []models.MatchPair {
	var pairs []models.MatchPair
	for _, r := range records {
		for _, z := range zones {
			dx, dy := r.Location[0]-z.Anchor[0], r.Location[1]-z.Anchor[1]
			if dx*dx+dy*dy <= radius*radius {
				pairs = append(pairs, models.MatchPair{ZoneID: z.ID, EntityID: r.EntityID})
			}
		}
	}
	return pairs
}

func sortPairs(pairs []models.MatchPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].EntityID != pairs[j].EntityID {
			return pairs[i].EntityID < pairs[j].EntityID
		}
		return pairs[i].ZoneID < pairs[j].ZoneID
	})
}

func TestJoinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	zones, records := randomScene(rng, 200, 3000, 15000)
	set := mustZoneSet(t, zones...)

	for _, opts := range []JoinOptions{{Workers: 1, ChunkSize: 3000}, {Workers: 4, ChunkSize: 7}, {}} {
		j := mustJoiner(t, set, 800, opts)
		got, err := j.Join(context.Background(), records)
		require.NoError(t, err)

		want := bruteForce(zones, records, 800)
		sortPairs(got)
		sortPairs(want)
		assert.Equal(t, want, got, "options %+v", opts)
	}
}

func TestJoinIsDeterministicAcrossWorkerCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	zones, records := randomScene(rng, 100, 2000, 10000)
	set := mustZoneSet(t, zones...)

	serial, err := mustJoiner(t, set, 800, JoinOptions{Workers: 1, ChunkSize: 64}).Join(context.Background(), records)
	require.NoError(t, err)
	parallel, err := mustJoiner(t, set, 800, JoinOptions{Workers: 8, ChunkSize: 64}).Join(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)
}

func TestStreamDeliversSamePairs(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	zones, records := randomScene(rng, 80, 1500, 8000)
	set := mustZoneSet(t, zones...)
	j := mustJoiner(t, set, 800, JoinOptions{Workers: 4, ChunkSize: 100})

	var streamed []models.MatchPair
	batches := 0
	err := j.Stream(context.Background(), records, func(pairs []models.MatchPair) error {
		batches++
		streamed = append(streamed, pairs...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 15, batches)

	joined, err := j.Join(context.Background(), records)
	require.NoError(t, err)
	sortPairs(streamed)
	sortPairs(joined)
	assert.Equal(t, joined, streamed)
}

func TestStreamSinkErrorAborts(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	zones, records := randomScene(rng, 20, 500, 2000)
	set := mustZoneSet(t, zones...)
	j := mustJoiner(t, set, 800, JoinOptions{Workers: 2, ChunkSize: 10})

	boom := errors.New("sink full")
	err := j.Stream(context.Background(), records, func([]models.MatchPair) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestJoinCancelled(t *testing.T) {
	rng := rand.New(rand.NewSource(15))
	zones, records := randomScene(rng, 20, 500, 2000)
	set := mustZoneSet(t, zones...)
	j := mustJoiner(t, set, 800, JoinOptions{Workers: 2, ChunkSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := j.Join(ctx, records)
	assert.ErrorIs(t, err, context.Canceled)
}
