package service

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jengzang/zone-density/internal/density"
	"github.com/jengzang/zone-density/internal/ingest"
	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/repository"
)

// ImportService loads zone and record files into the store
type ImportService struct {
	zones   *repository.ZoneRepository
	records *repository.RecordRepository
	logger  *zap.Logger
}

// NewImportService creates a new import service
func NewImportService(zones *repository.ZoneRepository, records *repository.RecordRepository, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{zones: zones, records: records, logger: logger.Named("import")}
}

// ImportZones validates a zone collection in crs and replaces the stored one
func (s *ImportService) ImportZones(crs string, src ingest.ZoneSources) (int, error) {
	zones, err := ingest.LoadZones(src)
	if err != nil {
		return 0, err
	}
	set, err := density.NewZoneSet(crs, zones)
	if err != nil {
		return 0, err
	}
	if err := s.zones.ReplaceAll(set.CRS().Code, zones); err != nil {
		return 0, err
	}

	s.logger.Info("imported zones", zap.Int("zones", set.Len()), zap.String("crs", set.CRS().Code))
	return set.Len(), nil
}

// ImportRecords appends CSV records to the store, first clearing it when
// replace is set. A file that fails partway leaves the stored records as they
// were.
func (s *ImportService) ImportRecords(r io.Reader, opts ingest.CSVOptions, replace bool) (ingest.ReadStats, error) {
	var stats ingest.ReadStats
	err := s.records.Import(replace, func(insert func([]models.RawRecord) error) error {
		var err error
		stats, err = ingest.ReadRecords(r, opts, func(batch []models.RawRecord) error {
			return insert(batch)
		})
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("failed to import records: %w", err)
	}

	s.logger.Info("imported records",
		zap.Int("rows", stats.Rows),
		zap.Int("bad_location", stats.BadLocation),
		zap.Int("bad_timestamp", stats.BadTimestamp),
		zap.Int("missing_entity_id", stats.MissingEntityID),
	)
	return stats, nil
}
