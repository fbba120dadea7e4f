package density

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/spatial"
)

// DefaultChunkSize is the number of records a join worker takes at a time
const DefaultChunkSize = 4096

// cancelCheckEvery is how many records a worker matches between context checks
const cancelCheckEvery = 1024

// JoinOptions tunes the spatial join worker pool
type JoinOptions struct {
	Workers   int // <= 0 means GOMAXPROCS
	ChunkSize int // <= 0 means DefaultChunkSize
}

func (o JoinOptions) normalize() JoinOptions {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Joiner matches canonical records against zone buffers through an R-tree.
// The index and buffers are read-only after construction, so one Joiner can
// serve concurrent joins.
type Joiner struct {
	buffers []ZoneBuffer
	index   *spatial.BufferIndex
	opts    JoinOptions
}

// NewJoiner indexes the buffers
func NewJoiner(buffers []ZoneBuffer, opts JoinOptions) (*Joiner, error) {
	disks := make([]spatial.Disk, len(buffers))
	for i, b := range buffers {
		disks[i] = b.Disk
	}
	index, err := spatial.NewBufferIndex(disks)
	if err != nil {
		return nil, fmt.Errorf("failed to build buffer index: %w", err)
	}
	return &Joiner{
		buffers: buffers,
		index:   index,
		opts:    opts.normalize(),
	}, nil
}

// Join returns every (zone, entity) pair whose record lies inside or on the
// zone's buffer. A record inside overlapping buffers yields one pair per
// buffer; a record inside none yields nothing. Pairs are ordered by record,
// then by zone position.
func (j *Joiner) Join(ctx context.Context, records []models.CanonicalRecord) ([]models.MatchPair, error) {
	chunks := chunkCount(len(records), j.opts.ChunkSize)
	partials := make([][]models.MatchPair, chunks)

	err := j.run(ctx, records, func(chunk int, pairs []models.MatchPair) error {
		partials[chunk] = pairs
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, p := range partials {
		total += len(p)
	}
	pairs := make([]models.MatchPair, 0, total)
	for _, p := range partials {
		pairs = append(pairs, p...)
	}
	return pairs, nil
}

// Stream hands each worker's partial pair set to sink as soon as its chunk is
// done, so the full pair set never has to be resident. Sink calls are
// serialised but arrive in no particular order; an error from sink aborts
// the join.
func (j *Joiner) Stream(ctx context.Context, records []models.CanonicalRecord, sink func([]models.MatchPair) error) error {
	var mu sync.Mutex
	return j.run(ctx, records, func(_ int, pairs []models.MatchPair) error {
		mu.Lock()
		defer mu.Unlock()
		return sink(pairs)
	})
}

func (j *Joiner) run(ctx context.Context, records []models.CanonicalRecord, emit func(chunk int, pairs []models.MatchPair) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.opts.Workers)

	size := j.opts.ChunkSize
	for chunk, start := 0, 0; start < len(records); chunk, start = chunk+1, start+size {
		end := min(start+size, len(records))
		if gctx.Err() != nil {
			break
		}
		chunk, start := chunk, start

		g.Go(func() error {
			pairs, err := j.matchChunk(gctx, records[start:end])
			if err != nil {
				return err
			}
			return emit(chunk, pairs)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (j *Joiner) matchChunk(ctx context.Context, records []models.CanonicalRecord) ([]models.MatchPair, error) {
	var (
		pairs []models.MatchPair
		hits  []int
	)
	for i, rec := range records {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits = j.index.Containing(rec.Location, hits[:0])
		for _, pos := range hits {
			pairs = append(pairs, models.MatchPair{
				ZoneID:   j.buffers[pos].ZoneID,
				EntityID: rec.EntityID,
			})
		}
	}
	return pairs, nil
}

func chunkCount(n, size int) int {
	if n == 0 {
		return 0
	}
	return (n + size - 1) / size
}
