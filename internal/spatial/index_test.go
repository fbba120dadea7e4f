package spatial

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDisks(t *testing.T, r float64, centres ...orb.Point) []Disk {
	t.Helper()
	disks := make([]Disk, 0, len(centres))
	for _, c := range centres {
		d, err := NewDisk(c, r)
		require.NoError(t, err)
		disks = append(disks, d)
	}
	return disks
}

func TestBufferIndexContaining(t *testing.T) {
	idx, err := NewBufferIndex(mustDisks(t, 100,
		orb.Point{0, 0},
		orb.Point{150, 0},
		orb.Point{1000, 1000},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Size())

	assert.Equal(t, []int{0, 1}, idx.Containing(orb.Point{75, 0}, nil))
	assert.Equal(t, []int{0}, idx.Containing(orb.Point{-100, 0}, nil), "touching west edge")
	assert.Equal(t, []int{1}, idx.Containing(orb.Point{250, 0}, nil), "touching east edge")
	assert.Empty(t, idx.Containing(orb.Point{500, 500}, nil))

	// box corner of disk 2 is a candidate but not inside the disk
	assert.Equal(t, []int{2}, idx.Candidates(orb.Point{1099, 1099}, nil))
	assert.Empty(t, idx.Containing(orb.Point{1099, 1099}, nil))
}

func TestBufferIndexAppendsToDst(t *testing.T) {
	idx, err := NewBufferIndex(mustDisks(t, 10, orb.Point{0, 0}))
	require.NoError(t, err)

	dst := []int{42}
	dst = idx.Containing(orb.Point{5, 5}, dst)
	assert.Equal(t, []int{42, 0}, dst)
}

func TestBufferIndexEmpty(t *testing.T) {
	idx, err := NewBufferIndex(nil)
	require.NoError(t, err)
	assert.Empty(t, idx.Containing(orb.Point{0, 0}, nil))
}

func TestBufferIndexMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	centres := make([]orb.Point, 300)
	for i := range centres {
		centres[i] = orb.Point{rng.Float64() * 20000, rng.Float64() * 20000}
	}
	disks := mustDisks(t, 800, centres...)
	idx, err := NewBufferIndex(disks)
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		p := orb.Point{rng.Float64() * 20000, rng.Float64() * 20000}

		var want []int
		for pos, d := range disks {
			if d.Contains(p) {
				want = append(want, pos)
			}
		}
		got := idx.Containing(p, nil)
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got, "point %v", p)
	}
}
