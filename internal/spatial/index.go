package spatial

import (
	"fmt"
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// touchTolerance widens query points so that a point lying exactly on a
// bounding box edge still intersects it
const touchTolerance = 1e-6

const (
	minBranching = 25
	maxBranching = 50
)

type indexedDisk struct {
	pos  int
	rect rtreego.Rect
}

func (d *indexedDisk) Bounds() rtreego.Rect {
	return d.rect
}

// BufferIndex is a read-only R-tree over disks. It is safe for concurrent queries.
type BufferIndex struct {
	tree  *rtreego.Rtree
	disks []Disk
}

// NewBufferIndex bulk loads the disks. Query results refer to positions in disks.
func NewBufferIndex(disks []Disk) (*BufferIndex, error) {
	objs := make([]rtreego.Spatial, 0, len(disks))
	for i, d := range disks {
		b := d.Bound()
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{b.Min[0], b.Min[1]},
			rtreego.Point{b.Max[0], b.Max[1]},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to index buffer %d: %w", i, err)
		}
		objs = append(objs, &indexedDisk{pos: i, rect: rect})
	}

	return &BufferIndex{
		tree:  rtreego.NewTree(2, minBranching, maxBranching, objs...),
		disks: disks,
	}, nil
}

// Size returns the number of indexed disks
func (x *BufferIndex) Size() int {
	return len(x.disks)
}

// Disk returns the disk at position i
func (x *BufferIndex) Disk(i int) Disk {
	return x.disks[i]
}

// Candidates appends the positions of disks whose bounding box touches p
func (x *BufferIndex) Candidates(p orb.Point, dst []int) []int {
	hits := x.tree.SearchIntersect(rtreego.Point{p[0], p[1]}.ToRect(touchTolerance))
	for _, h := range hits {
		dst = append(dst, h.(*indexedDisk).pos)
	}
	return dst
}

// Containing appends the positions of disks that contain p, boundary included,
// in ascending position order
func (x *BufferIndex) Containing(p orb.Point, dst []int) []int {
	start := len(dst)
	dst = x.Candidates(p, dst)

	kept := dst[:start]
	for _, pos := range dst[start:] {
		if x.disks[pos].Contains(p) {
			kept = append(kept, pos)
		}
	}
	slices.Sort(kept[start:])
	return kept
}
