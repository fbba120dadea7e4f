package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jengzang/zone-density/internal/density"
	"github.com/jengzang/zone-density/internal/models"
)

// WriteGeoJSON writes merged results as a GeoJSON FeatureCollection
func WriteGeoJSON(w io.Writer, results []models.ZoneResult) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(density.FeatureCollection(results)); err != nil {
		return fmt.Errorf("failed to write geojson: %w", err)
	}
	return nil
}

// WriteCountsCSV writes zone_id,count rows
func WriteCountsCSV(w io.Writer, counts []models.ZoneCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"zone_id", "count"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, c := range counts {
		if err := cw.Write([]string{c.ZoneID, strconv.Itoa(c.Count)}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
