package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/jengzang/zone-density/internal/database"
	"github.com/jengzang/zone-density/internal/models"
)

// RecordRepository stores raw, undeduplicated records. Missing coordinates
// and timestamps are kept as NULL so the engine can count them.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// InsertBatch appends records in one transaction
func (r *RecordRepository) InsertBatch(records []models.RawRecord) error {
	if len(records) == 0 {
		return nil
	}
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		return insertRecords(tx, records)
	})
}

// Import runs fn inside one transaction, clearing the table first when replace
// is set. Every batch fn passes to insert commits together or not at all.
func (r *RecordRepository) Import(replace bool, fn func(insert func([]models.RawRecord) error) error) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		if replace {
			if _, err := tx.Exec("DELETE FROM raw_records"); err != nil {
				return fmt.Errorf("failed to delete records: %w", err)
			}
		}
		return fn(func(records []models.RawRecord) error {
			return insertRecords(tx, records)
		})
	})
}

func insertRecords(tx *sql.Tx, records []models.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO raw_records (entity_id, x, y, crs, recorded_at, recorded_nanos) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var x, y sql.NullFloat64
		if rec.Location != nil {
			x = sql.NullFloat64{Float64: rec.Location[0], Valid: true}
			y = sql.NullFloat64{Float64: rec.Location[1], Valid: true}
		}
		// seconds plus nanos covers dates UnixNano cannot represent
		var at sql.NullInt64
		var nanos int64
		if !rec.RecordedAt.IsZero() {
			at = sql.NullInt64{Int64: rec.RecordedAt.Unix(), Valid: true}
			nanos = int64(rec.RecordedAt.Nanosecond())
		}
		if _, err := stmt.Exec(rec.EntityID, x, y, rec.CRS, at, nanos); err != nil {
			return fmt.Errorf("failed to insert record %q: %w", rec.EntityID, err)
		}
	}
	return nil
}

// List returns all records in insertion order
func (r *RecordRepository) List() ([]models.RawRecord, error) {
	rows, err := r.db.Query("SELECT entity_id, x, y, crs, recorded_at, recorded_nanos FROM raw_records ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.RawRecord
	for rows.Next() {
		var (
			rec   models.RawRecord
			x, y  sql.NullFloat64
			at    sql.NullInt64
			nanos int64
		)
		if err := rows.Scan(&rec.EntityID, &x, &y, &rec.CRS, &at, &nanos); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if x.Valid && y.Valid {
			rec.Location = &orb.Point{x.Float64, y.Float64}
		}
		if at.Valid {
			rec.RecordedAt = time.Unix(at.Int64, nanos).UTC()
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records
func (r *RecordRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM raw_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// DeleteAll removes every stored record
func (r *RecordRepository) DeleteAll() error {
	if _, err := r.db.Exec("DELETE FROM raw_records"); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}
