package density

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/zone-density/internal/models"
)

// DefaultRadius is the neighbourhood buffer radius in CRS units (metres)
const DefaultRadius = 800.0

// Config holds the engine parameters
type Config struct {
	Radius           float64
	DefaultRecordCRS string
	Join             JoinOptions
}

// Diagnostics summarises one run, including the data-quality gap between raw
// input and matched entities
type Diagnostics struct {
	ZoneCRS string  `json:"zone_crs"`
	Radius  float64 `json:"radius"`
	Zones   int     `json:"zones"`

	Quality          DataQuality `json:"quality"`
	CanonicalRecords int         `json:"canonical_records"`

	MatchPairs          int     `json:"match_pairs"`
	MatchedEntities     int     `json:"matched_entities"`
	UnmatchedEntities   int     `json:"unmatched_entities"`
	Amplification       float64 `json:"amplification"`
	ZonesWithoutMatches int     `json:"zones_without_matches"`
	MaxZoneCount        int     `json:"max_zone_count"`

	JoinDuration time.Duration `json:"join_duration_ns"`
}

// Result is the output of a run
type Result struct {
	Counts      []models.ZoneCount  `json:"counts"`
	Zones       []models.ZoneResult `json:"-"`
	Diagnostics Diagnostics         `json:"diagnostics"`
}

// Engine runs the density pipeline:
// reproject → deduplicate → buffer → join → aggregate → merge.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine validates the configuration
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if math.IsNaN(cfg.Radius) || math.IsInf(cfg.Radius, 0) || cfg.Radius <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, cfg.Radius)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Join = cfg.Join.normalize()
	return &Engine{cfg: cfg, logger: logger.Named("density")}, nil
}

// WithRadius returns an engine sharing everything but the buffer radius
func (e *Engine) WithRadius(radius float64) (*Engine, error) {
	cfg := e.cfg
	cfg.Radius = radius
	return NewEngine(cfg, e.logger)
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Run executes the full pipeline over one zone collection and one raw record
// collection. Structural problems (CRS, duplicate or missing zone keys) fail
// the whole run; malformed records are excluded and counted.
func (e *Engine) Run(ctx context.Context, zoneCRS string, zones []models.Zone, records []models.RawRecord) (*Result, error) {
	set, err := NewZoneSet(zoneCRS, zones)
	if err != nil {
		return nil, err
	}
	log := e.logger.With(zap.String("crs", set.CRS().Code), zap.Float64("radius", e.cfg.Radius))
	log.Info("starting density run", zap.Int("zones", set.Len()), zap.Int("records", len(records)))

	reprojector, err := NewReprojector(set.CRS(), e.cfg.DefaultRecordCRS)
	if err != nil {
		return nil, err
	}
	projected, unprojectable, err := reprojector.Reproject(records)
	if err != nil {
		return nil, err
	}

	canonical, quality := Deduplicate(projected)
	quality.Unprojectable = unprojectable
	if quality.Malformed() > 0 {
		log.Warn("excluded malformed records",
			zap.Int("missing_entity_id", quality.MissingEntityID),
			zap.Int("invalid_location", quality.InvalidLocation),
			zap.Int("unprojectable", quality.Unprojectable),
			zap.Int("invalid_timestamp", quality.InvalidTimestamp),
		)
	}
	log.Info("deduplicated records",
		zap.Int("accepted", quality.Accepted),
		zap.Int("canonical", len(canonical)),
		zap.Int("collapsed", quality.DuplicatesCollapsed),
	)

	buffers, err := GenerateBuffers(set, e.cfg.Radius)
	if err != nil {
		return nil, err
	}
	joiner, err := NewJoiner(buffers, e.cfg.Join)
	if err != nil {
		return nil, err
	}

	counter := NewCounter(set)
	start := time.Now()
	if err := joiner.Stream(ctx, canonical, counter.Add); err != nil {
		return nil, fmt.Errorf("spatial join failed: %w", err)
	}
	joinDuration := time.Since(start)

	counts := counter.Counts()
	merged, err := Merge(set, counts)
	if err != nil {
		return nil, err
	}

	diag := Diagnostics{
		ZoneCRS:           set.CRS().Code,
		Radius:            e.cfg.Radius,
		Zones:             set.Len(),
		Quality:           quality,
		CanonicalRecords:  len(canonical),
		MatchPairs:        counter.Pairs(),
		MatchedEntities:   counter.MatchedEntities(),
		UnmatchedEntities: len(canonical) - counter.MatchedEntities(),
		JoinDuration:      joinDuration,
	}
	if diag.MatchedEntities > 0 {
		diag.Amplification = float64(diag.MatchPairs) / float64(diag.MatchedEntities)
	}
	for _, c := range counts {
		if c.Count == 0 {
			diag.ZonesWithoutMatches++
		}
		diag.MaxZoneCount = max(diag.MaxZoneCount, c.Count)
	}

	if diag.UnmatchedEntities > 0 {
		log.Warn("canonical records outside every buffer", zap.Int("unmatched", diag.UnmatchedEntities))
	}
	log.Info("density run finished",
		zap.Int("match_pairs", diag.MatchPairs),
		zap.Int("matched_entities", diag.MatchedEntities),
		zap.Float64("amplification", diag.Amplification),
		zap.Int("zones_without_matches", diag.ZonesWithoutMatches),
		zap.Duration("join", joinDuration),
	)

	return &Result{Counts: counts, Zones: merged, Diagnostics: diag}, nil
}
