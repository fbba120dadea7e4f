package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jengzang/zone-density/internal/density"
	"github.com/jengzang/zone-density/internal/metrics"
	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/repository"
	"github.com/jengzang/zone-density/internal/stats"
)

var (
	ErrNoZones         = errors.New("no zones imported")
	ErrRunNotCompleted = errors.New("run has not completed")
	ErrRunNotActive    = errors.New("run is not pending or running")
	ErrServiceShutdown = errors.New("service is shutting down")
	ErrZonesChanged    = errors.New("zones changed since the run")
	errCancelledByUser = errors.New("cancelled by user")
)

const interruptedOnRestart = "interrupted by restart"

// RunRequest holds the caller-chosen parameters of a run
type RunRequest struct {
	// Radius overrides the configured buffer radius when > 0
	Radius    float64 `json:"radius"`
	CreatedBy string  `json:"-"`
}

// RunSummary is stored as the run's result_summary JSON
type RunSummary struct {
	Diagnostics density.Diagnostics `json:"diagnostics"`
	Counts      stats.Summary       `json:"counts"`
}

// Repositories bundles the stores the density service reads and writes
type Repositories struct {
	Zones   *repository.ZoneRepository
	Records *repository.RecordRepository
	Runs    *repository.RunRepository
	Counts  *repository.CountRepository
}

// DensityService creates and executes density runs and serves their results
type DensityService struct {
	repos  Repositories
	engine *density.Engine
	cache  *cache.Cache
	logger *zap.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
}

// NewDensityService creates a new density service. Rendered GeoJSON is cached
// per run for cacheTTL.
func NewDensityService(repos Repositories, engine *density.Engine, cacheTTL time.Duration, logger *zap.Logger) *DensityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	ctx, stop := context.WithCancel(context.Background())
	return &DensityService{
		repos:  repos,
		engine: engine,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		logger: logger.Named("density_service"),
		ctx:    ctx,
		stop:   stop,
		active: make(map[string]context.CancelCauseFunc),
	}
}

// RecoverInterrupted fails runs left pending or running by a previous process
func (s *DensityService) RecoverInterrupted() (int, error) {
	n, err := s.repos.Runs.FailUnfinished(interruptedOnRestart, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("failed interrupted runs", zap.Int("runs", n))
	}
	return n, nil
}

// CreateRun stores a pending run and executes it in the background
func (s *DensityService) CreateRun(req RunRequest) (*models.DensityRun, error) {
	if s.ctx.Err() != nil {
		return nil, ErrServiceShutdown
	}
	run, engine, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(s.ctx)
	s.mu.Lock()
	s.active[run.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(run.ID)
		if _, err := s.execute(ctx, run, engine); err != nil {
			s.logger.Error("density run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()

	return run, nil
}

// ExecuteRun stores a run and executes it on the calling goroutine
func (s *DensityService) ExecuteRun(ctx context.Context, req RunRequest) (*models.DensityRun, *density.Result, error) {
	run, engine, err := s.prepare(req)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.execute(ctx, run, engine)
	return run, result, err
}

// CancelRun stops a run started by this process, or fails an orphaned one
func (s *DensityService) CancelRun(id string) error {
	run, err := s.repos.Runs.GetByID(id)
	if err != nil {
		return err
	}
	if run.Finished() {
		return fmt.Errorf("%w (status: %s)", ErrRunNotActive, run.Status)
	}

	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		cancel(errCancelledByUser)
		return nil
	}
	return s.repos.Runs.MarkFailed(id, errCancelledByUser.Error(), time.Now().UTC())
}

// Wait blocks until every background run has finished
func (s *DensityService) Wait() {
	s.wg.Wait()
}

// Close cancels background runs and waits for them
func (s *DensityService) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *DensityService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.active[id]; ok {
		cancel(nil)
		delete(s.active, id)
	}
}

func (s *DensityService) prepare(req RunRequest) (*models.DensityRun, *density.Engine, error) {
	engine := s.engine
	if req.Radius != 0 {
		var err error
		if engine, err = s.engine.WithRadius(req.Radius); err != nil {
			return nil, nil, err
		}
	}

	n, err := s.repos.Zones.Count()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count zones: %w", err)
	}
	if n == 0 {
		return nil, nil, ErrNoZones
	}

	cfg := engine.Config()
	run := &models.DensityRun{
		Status:    models.RunStatusPending,
		Radius:    cfg.Radius,
		Workers:   cfg.Join.Workers,
		ZoneCount: n,
		CreatedBy: req.CreatedBy,
	}
	if err := s.repos.Runs.Create(run); err != nil {
		return nil, nil, fmt.Errorf("failed to create run: %w", err)
	}
	s.logger.Info("created density run", zap.String("run_id", run.ID), zap.Float64("radius", run.Radius))
	return run, engine, nil
}

func (s *DensityService) execute(ctx context.Context, run *models.DensityRun, engine *density.Engine) (*density.Result, error) {
	started := time.Now().UTC()
	if err := s.repos.Runs.MarkRunning(run.ID, started); err != nil {
		return nil, s.fail(run, err)
	}
	run.Status = models.RunStatusRunning
	run.StartedAt = &started

	result, err := s.compute(ctx, run, engine)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		return nil, s.fail(run, err)
	}

	d := result.Diagnostics
	metrics.ObserveRun(models.RunStatusCompleted, d.Quality.Total, map[string]int{
		"missing_entity_id": d.Quality.MissingEntityID,
		"invalid_location":  d.Quality.InvalidLocation,
		"invalid_timestamp": d.Quality.InvalidTimestamp,
	}, d.MatchPairs, d.JoinDuration)

	s.logger.Info("density run completed",
		zap.String("run_id", run.ID),
		zap.Int("zones", d.Zones),
		zap.Int("canonical_records", d.CanonicalRecords),
		zap.Int("match_pairs", d.MatchPairs),
	)
	return result, nil
}

// fail records err on the run and returns it
func (s *DensityService) fail(run *models.DensityRun, err error) error {
	failedAt := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = err.Error()
	run.CompletedAt = &failedAt
	if markErr := s.repos.Runs.MarkFailed(run.ID, run.ErrorMessage, failedAt); markErr != nil {
		s.logger.Error("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(markErr))
	}
	metrics.ObserveRun(models.RunStatusFailed, run.RecordCount, nil, 0, 0)
	return err
}

func (s *DensityService) compute(ctx context.Context, run *models.DensityRun, engine *density.Engine) (*density.Result, error) {
	crs, zones, err := s.repos.Zones.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	records, err := s.repos.Records.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	run.RecordCount = len(records)

	result, err := engine.Run(ctx, crs, zones, records)
	if err != nil {
		return nil, err
	}

	d := result.Diagnostics
	summary, err := json.Marshal(RunSummary{
		Diagnostics: d,
		Counts:      stats.Summarize(stats.FromInts(countValues(result.Counts))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode run summary: %w", err)
	}

	if err := s.repos.Counts.SaveCounts(run.ID, result.Counts); err != nil {
		return nil, err
	}

	run.ZoneCRS = d.ZoneCRS
	run.ZoneCount = d.Zones
	run.CanonicalRecords = d.CanonicalRecords
	run.MalformedRecords = d.Quality.Malformed()
	run.MatchPairs = d.MatchPairs
	run.MatchedEntities = d.MatchedEntities
	run.UnmatchedEntities = d.UnmatchedEntities
	run.Amplification = d.Amplification
	run.ResultSummary = string(summary)
	if err := s.repos.Runs.MarkCompleted(run); err != nil {
		return nil, err
	}

	if data, err := json.Marshal(density.FeatureCollection(result.Zones)); err == nil {
		s.cache.SetDefault(run.ID, data)
	}
	return result, nil
}

// GetRun retrieves a run by ID
func (s *DensityService) GetRun(id string) (*models.DensityRun, error) {
	return s.repos.Runs.GetByID(id)
}

// ListRuns retrieves runs newest first with the total matching the filter
func (s *DensityService) ListRuns(filter models.RunFilter) ([]*models.DensityRun, int, error) {
	return s.repos.Runs.List(filter)
}

// GetCounts returns the zone counts of a completed run
func (s *DensityService) GetCounts(id string, filter models.CountFilter) ([]models.ZoneCount, error) {
	if _, err := s.completedRun(id); err != nil {
		return nil, err
	}
	return s.repos.Counts.ListByRun(id, filter)
}

// GetResultGeoJSON renders the counts of a completed run onto the stored
// zone boundaries. It fails if the zones were replaced since the run.
func (s *DensityService) GetResultGeoJSON(id string) ([]byte, error) {
	if cached, ok := s.cache.Get(id); ok {
		metrics.CacheHits.WithLabelValues("geojson").Inc()
		return cached.([]byte), nil
	}
	metrics.CacheMisses.WithLabelValues("geojson").Inc()

	run, err := s.completedRun(id)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.Counts.ListByRun(id, models.CountFilter{})
	if err != nil {
		return nil, err
	}
	crs, zones, err := s.repos.Zones.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	set, err := density.NewZoneSet(crs, zones)
	if err != nil {
		return nil, err
	}
	// zones added after the run were never measured and must not render as 0
	if run.ZoneCount != set.Len() || len(counts) != set.Len() {
		return nil, fmt.Errorf("%w: run %s counted %d zones, %d stored now",
			ErrZonesChanged, id, len(counts), set.Len())
	}
	merged, err := density.Merge(set, counts)
	if err != nil {
		return nil, fmt.Errorf("%w: run %s: %w", ErrZonesChanged, id, err)
	}

	data, err := json.Marshal(density.FeatureCollection(merged))
	if err != nil {
		return nil, fmt.Errorf("failed to encode geojson: %w", err)
	}
	s.cache.SetDefault(id, data)
	return data, nil
}

// GetHistogram buckets the zone counts of a completed run
func (s *DensityService) GetHistogram(id string, bins int) ([]stats.Bin, error) {
	counts, err := s.GetCounts(id, models.CountFilter{})
	if err != nil {
		return nil, err
	}
	return stats.Histogram(stats.FromInts(countValues(counts)), bins)
}

func (s *DensityService) completedRun(id string) (*models.DensityRun, error) {
	run, err := s.repos.Runs.GetByID(id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusCompleted {
		return nil, fmt.Errorf("%w (status: %s)", ErrRunNotCompleted, run.Status)
	}
	return run, nil
}

func countValues(counts []models.ZoneCount) []int {
	values := make([]int, len(counts))
	for i, c := range counts {
		values[i] = c.Count
	}
	return values
}
