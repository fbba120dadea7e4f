package repository

import (
	"database/sql"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jengzang/zone-density/internal/database"
	"github.com/jengzang/zone-density/internal/models"
)

// ZoneRepository stores the zone collection; boundaries are kept as WKB
type ZoneRepository struct {
	db *sql.DB
}

// NewZoneRepository creates a new zone repository
func NewZoneRepository(db *sql.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// ReplaceAll swaps the stored zone collection for zones, all in crs
func (r *ZoneRepository) ReplaceAll(crs string, zones []models.Zone) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM zones"); err != nil {
			return fmt.Errorf("failed to clear zones: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO zones (position, zone_id, crs, anchor_x, anchor_y, boundary)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, z := range zones {
			var boundary []byte
			if z.Boundary != nil {
				boundary, err = wkb.Marshal(z.Boundary)
				if err != nil {
					return fmt.Errorf("failed to encode boundary of zone %q: %w", z.ID, err)
				}
			}
			if _, err := stmt.Exec(i, z.ID, crs, z.Anchor[0], z.Anchor[1], boundary); err != nil {
				return fmt.Errorf("failed to insert zone %q: %w", z.ID, err)
			}
		}
		return nil
	})
}

// List returns the stored zones in import order together with their CRS.
// An empty store returns an empty CRS and no zones.
func (r *ZoneRepository) List() (string, []models.Zone, error) {
	var crsCount int
	var crs sql.NullString
	if err := r.db.QueryRow("SELECT COUNT(DISTINCT crs), MIN(crs) FROM zones").Scan(&crsCount, &crs); err != nil {
		return "", nil, fmt.Errorf("failed to read zone crs: %w", err)
	}
	if crsCount > 1 {
		return "", nil, ErrMixedCRS
	}

	rows, err := r.db.Query("SELECT zone_id, anchor_x, anchor_y, boundary FROM zones ORDER BY position")
	if err != nil {
		return "", nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var (
			z        models.Zone
			x, y     float64
			boundary []byte
		)
		if err := rows.Scan(&z.ID, &x, &y, &boundary); err != nil {
			return "", nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		z.Anchor = orb.Point{x, y}
		if len(boundary) > 0 {
			z.Boundary, err = wkb.Unmarshal(boundary)
			if err != nil {
				return "", nil, fmt.Errorf("failed to decode boundary of zone %q: %w", z.ID, err)
			}
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("failed to iterate zones: %w", err)
	}

	return crs.String, zones, nil
}

// Count returns the number of stored zones
func (r *ZoneRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM zones").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count zones: %w", err)
	}
	return n, nil
}
