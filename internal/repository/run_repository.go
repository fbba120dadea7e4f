package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/zone-density/internal/models"
)

// RunRepository handles database operations for density runs
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, status, radius, zone_crs, workers, zone_count, record_count,
	canonical_records, malformed_records, match_pairs, matched_entities,
	unmatched_entities, amplification, result_summary, error_message,
	created_by, created_at, started_at, completed_at`

// Create inserts a new run. An empty ID is replaced by a fresh UUID and an
// empty status by pending.
func (r *RunRepository) Create(run *models.DensityRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO density_runs (
			id, status, radius, zone_crs, workers, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		run.ID,
		run.Status,
		run.Radius,
		run.ZoneCRS,
		run.Workers,
		run.CreatedBy,
		run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create density run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(id string) (*models.DensityRun, error) {
	row := r.db.QueryRow("SELECT "+runColumns+" FROM density_runs WHERE id = ?", id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("density run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get density run: %w", err)
	}
	return run, nil
}

// List retrieves runs newest first, with the total matching the filter
func (r *RunRepository) List(filter models.RunFilter) ([]*models.DensityRun, int, error) {
	filter.Normalize()

	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM density_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count density runs: %w", err)
	}

	query := "SELECT " + runColumns + " FROM density_runs" + where +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list density runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.DensityRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan density run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate density runs: %w", err)
	}
	return runs, total, nil
}

// MarkRunning moves a pending run to running
func (r *RunRepository) MarkRunning(id string, at time.Time) error {
	res, err := r.db.Exec(`UPDATE density_runs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		models.RunStatusRunning, at.UnixMilli(), id, models.RunStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	return expectOne(res, id)
}

// MarkCompleted stores the results of a finished run
func (r *RunRepository) MarkCompleted(run *models.DensityRun) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	run.Status = models.RunStatusCompleted

	query := `
		UPDATE density_runs
		SET status = ?, zone_crs = ?, zone_count = ?, record_count = ?,
			canonical_records = ?, malformed_records = ?, match_pairs = ?,
			matched_entities = ?, unmatched_entities = ?, amplification = ?,
			result_summary = ?, error_message = '', completed_at = ?
		WHERE id = ?
	`
	res, err := r.db.Exec(query,
		run.Status,
		run.ZoneCRS,
		run.ZoneCount,
		run.RecordCount,
		run.CanonicalRecords,
		run.MalformedRecords,
		run.MatchPairs,
		run.MatchedEntities,
		run.UnmatchedEntities,
		run.Amplification,
		run.ResultSummary,
		run.CompletedAt.UnixMilli(),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run completed: %w", err)
	}
	return expectOne(res, run.ID)
}

// MarkFailed records the error that stopped a run
func (r *RunRepository) MarkFailed(id, message string, at time.Time) error {
	res, err := r.db.Exec(`UPDATE density_runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		models.RunStatusFailed, message, at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return expectOne(res, id)
}

// FailUnfinished marks every pending or running run as failed; used at start-up
// for runs interrupted by a restart
func (r *RunRepository) FailUnfinished(message string, at time.Time) (int, error) {
	res, err := r.db.Exec(`UPDATE density_runs SET status = ?, error_message = ?, completed_at = ?
		WHERE status IN (?, ?)`,
		models.RunStatusFailed, message, at.UnixMilli(), models.RunStatusPending, models.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to fail unfinished runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.DensityRun, error) {
	var (
		run                    models.DensityRun
		createdAt              int64
		startedAt, completedAt sql.NullInt64
	)
	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.Radius,
		&run.ZoneCRS,
		&run.Workers,
		&run.ZoneCount,
		&run.RecordCount,
		&run.CanonicalRecords,
		&run.MalformedRecords,
		&run.MatchPairs,
		&run.MatchedEntities,
		&run.UnmatchedEntities,
		&run.Amplification,
		&run.ResultSummary,
		&run.ErrorMessage,
		&run.CreatedBy,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	run.StartedAt = millisPtr(startedAt)
	run.CompletedAt = millisPtr(completedAt)
	return &run, nil
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("density run %s: %w", id, ErrNotFound)
	}
	return nil
}
