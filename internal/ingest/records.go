package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/jengzang/zone-density/internal/models"
)

// DefaultBatchSize is the number of records handed to the sink at once
const DefaultBatchSize = 1000

// TimeLayouts are tried in order when parsing the timestamp column
var TimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVOptions names the columns read from a record file. The CRS column is
// optional; the others must be present in the header.
type CSVOptions struct {
	IDColumn   string
	XColumn    string
	YColumn    string
	CRSColumn  string
	TimeColumn string
	// DefaultCRS is stamped on rows without a CRS cell
	DefaultCRS string
	BatchSize  int
}

// ReadStats describes one CSV import
type ReadStats struct {
	Rows            int `json:"rows"`
	BadLocation     int `json:"bad_location"`
	BadTimestamp    int `json:"bad_timestamp"`
	MissingEntityID int `json:"missing_entity_id"`
}

type columns struct {
	id, x, y, crs, at int
}

// ReadRecords streams rows from r into sink in batches. Cells that do not
// parse are kept as missing values so the deduplicator can report them;
// only structural problems (missing header columns, broken CSV) are errors.
func ReadRecords(r io.Reader, opts CSVOptions, sink func([]models.RawRecord) error) (ReadStats, error) {
	var stats ReadStats
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return stats, ErrEmptyCSVHeader
	}
	if err != nil {
		return stats, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols, err := resolveColumns(header, opts)
	if err != nil {
		return stats, err
	}

	batch := make([]models.RawRecord, 0, opts.BatchSize)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read csv row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		rec := parseRow(row, cols, opts.DefaultCRS)
		if rec.EntityID == "" {
			stats.MissingEntityID++
		}
		if rec.Location == nil {
			stats.BadLocation++
		}
		if rec.RecordedAt.IsZero() {
			stats.BadTimestamp++
		}

		batch = append(batch, rec)
		if len(batch) == opts.BatchSize {
			if err := sink(batch); err != nil {
				return stats, err
			}
			batch = make([]models.RawRecord, 0, opts.BatchSize)
		}
	}

	if len(batch) > 0 {
		if err := sink(batch); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// ParseRecords reads every row of r into memory
func ParseRecords(r io.Reader, opts CSVOptions) ([]models.RawRecord, ReadStats, error) {
	var all []models.RawRecord
	stats, err := ReadRecords(r, opts, func(batch []models.RawRecord) error {
		all = append(all, batch...)
		return nil
	})
	return all, stats, err
}

func resolveColumns(header []string, opts CSVOptions) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		index[strings.ToLower(h)] = i
	}

	find := func(name string, required bool) (int, error) {
		if name == "" && !required {
			return -1, nil
		}
		i, ok := index[strings.ToLower(name)]
		if !ok {
			if required {
				return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
			}
			return -1, nil
		}
		return i, nil
	}

	var cols columns
	var err error
	if cols.id, err = find(opts.IDColumn, true); err != nil {
		return cols, err
	}
	if cols.x, err = find(opts.XColumn, true); err != nil {
		return cols, err
	}
	if cols.y, err = find(opts.YColumn, true); err != nil {
		return cols, err
	}
	if cols.at, err = find(opts.TimeColumn, true); err != nil {
		return cols, err
	}
	cols.crs, _ = find(opts.CRSColumn, false)
	return cols, nil
}

func parseRow(row []string, cols columns, defaultCRS string) models.RawRecord {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := models.RawRecord{
		EntityID: cell(cols.id),
		CRS:      cell(cols.crs),
	}
	if rec.CRS == "" {
		rec.CRS = defaultCRS
	}

	x, errX := strconv.ParseFloat(cell(cols.x), 64)
	y, errY := strconv.ParseFloat(cell(cols.y), 64)
	if errX == nil && errY == nil {
		rec.Location = &orb.Point{x, y}
	}

	rec.RecordedAt = ParseTime(cell(cols.at))
	return rec
}

// ParseTime tries TimeLayouts, then unix seconds. It returns the zero time
// when nothing matches.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}
