package repository

import (
	"database/sql"
	"fmt"

	"github.com/jengzang/zone-density/internal/database"
	"github.com/jengzang/zone-density/internal/models"
)

// CountRepository stores per-zone counts of completed runs
type CountRepository struct {
	db *sql.DB
}

// NewCountRepository creates a new count repository
func NewCountRepository(db *sql.DB) *CountRepository {
	return &CountRepository{db: db}
}

// SaveCounts replaces the counts of runID, keeping their order
func (r *CountRepository) SaveCounts(runID string, counts []models.ZoneCount) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM zone_counts WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("failed to clear counts: %w", err)
		}

		stmt, err := tx.Prepare("INSERT INTO zone_counts (run_id, position, zone_id, count) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, c := range counts {
			if _, err := stmt.Exec(runID, i, c.ZoneID, c.Count); err != nil {
				return fmt.Errorf("failed to insert count for zone %q: %w", c.ZoneID, err)
			}
		}
		return nil
	})
}

// ListByRun returns the counts of runID. Order "count" sorts by descending
// count; anything else keeps zone order. A zero limit returns every row.
func (r *CountRepository) ListByRun(runID string, filter models.CountFilter) ([]models.ZoneCount, error) {
	query := "SELECT zone_id, count FROM zone_counts WHERE run_id = ?"
	args := []interface{}{runID}

	if filter.MinCount > 0 {
		query += " AND count >= ?"
		args = append(args, filter.MinCount)
	}

	if filter.Order == "count" {
		query += " ORDER BY count DESC, position"
	} else {
		query += " ORDER BY position"
	}

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	counts := []models.ZoneCount{}
	for rows.Next() {
		var c models.ZoneCount
		if err := rows.Scan(&c.ZoneID, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counts: %w", err)
	}
	return counts, nil
}
