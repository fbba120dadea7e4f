package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jengzang/zone-density/internal/database"
	"github.com/jengzang/zone-density/internal/density"
	"github.com/jengzang/zone-density/internal/ingest"
	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/repository"
)

type fixture struct {
	db      *sql.DB
	density *DensityService
	imports *ImportService
	repos   Repositories
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "svc.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := Repositories{
		Zones:   repository.NewZoneRepository(db),
		Records: repository.NewRecordRepository(db),
		Runs:    repository.NewRunRepository(db),
		Counts:  repository.NewCountRepository(db),
	}
	engine, err := density.NewEngine(density.Config{Radius: 800, DefaultRecordCRS: "EPSG:27700"}, logger)
	require.NoError(t, err)

	svc := NewDensityService(repos, engine, time.Minute, logger)
	t.Cleanup(svc.Close)
	return &fixture{db: db, density: svc, imports: NewImportService(repos.Zones, repos.Records, logger), repos: repos}
}

func squareFeature(id string, x, y float64) string {
	return fmt.Sprintf(`{"type":"Feature","properties":{"zone_id":%q},"geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}}`,
		id, x-50, y-50, x+50, y-50, x+50, y+50, x-50, y+50, x-50, y-50)
}

func pointFeature(id string, x, y float64) string {
	return fmt.Sprintf(`{"type":"Feature","properties":{"zone_id":%q},"geometry":{"type":"Point","coordinates":[%g,%g]}}`, id, x, y)
}

func collection(features ...string) string {
	return `{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`
}

const recordsCSV = `entity_id,x,y,crs,recorded_at
E1,9000,9000,,2020-01-01
E1,500,0,,2020-03-01
E2,-100,0,,2020-01-01
E3,5000,5000,,2020-01-01
,0,0,,2020-01-01
`

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	n, err := f.imports.ImportZones("27700", ingest.ZoneSources{
		Boundaries: strings.NewReader(collection(squareFeature("Z1", 0, 0), squareFeature("Z2", 1000, 0), squareFeature("Z3", 10000, 10000))),
		Anchors:    strings.NewReader(collection(pointFeature("Z3", 10000, 10000), pointFeature("Z1", 0, 0), pointFeature("Z2", 1000, 0))),
		IDProperty: "zone_id",
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	stats, err := f.imports.ImportRecords(strings.NewReader(recordsCSV), ingest.CSVOptions{
		IDColumn: "entity_id", XColumn: "x", YColumn: "y", CRSColumn: "crs", TimeColumn: "recorded_at",
	}, true)
	require.NoError(t, err)
	require.Equal(t, 5, stats.Rows)
}

func TestExecuteRun(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	run, result, err := f.density.ExecuteRun(context.Background(), RunRequest{CreatedBy: "cli"})
	require.NoError(t, err)
	assert.Equal(t, []models.ZoneCount{{ZoneID: "Z1", Count: 2}, {ZoneID: "Z2", Count: 1}, {ZoneID: "Z3", Count: 0}}, result.Counts)

	stored, err := f.density.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, "EPSG:27700", stored.ZoneCRS)
	assert.Equal(t, 5, stored.RecordCount)
	assert.Equal(t, 3, stored.CanonicalRecords)
	assert.Equal(t, 1, stored.MalformedRecords)
	assert.Equal(t, 1, stored.UnmatchedEntities)

	var summary RunSummary
	require.NoError(t, json.Unmarshal([]byte(stored.ResultSummary), &summary))
	assert.Equal(t, 3, summary.Diagnostics.MatchPairs)
	assert.Equal(t, 3.0, summary.Counts.Sum)
	assert.Equal(t, 1, summary.Counts.Zeros)

	counts, err := f.density.GetCounts(run.ID, models.CountFilter{Order: "count", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []models.ZoneCount{{ZoneID: "Z1", Count: 2}}, counts)

	bins, err := f.density.GetHistogram(run.ID, 2)
	require.NoError(t, err)
	require.Len(t, bins, 2)
	assert.Equal(t, 1, bins[0].Count)
	assert.Equal(t, 2, bins[1].Count)
}

func TestGeoJSONIsRebuiltAfterCacheMiss(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	run, _, err := f.density.ExecuteRun(context.Background(), RunRequest{Radius: 2000})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, run.Radius)

	cached, err := f.density.GetResultGeoJSON(run.ID)
	require.NoError(t, err)

	f.density.cache.Flush()
	rebuilt, err := f.density.GetResultGeoJSON(run.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(cached), string(rebuilt))
	assert.Contains(t, string(rebuilt), `"zone_id":"Z3"`)
}

func TestGeoJSONRejectsChangedZones(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	run, _, err := f.density.ExecuteRun(context.Background(), RunRequest{})
	require.NoError(t, err)

	_, err = f.imports.ImportZones("27700", ingest.ZoneSources{
		Boundaries: strings.NewReader(collection(squareFeature("Z1", 0, 0), squareFeature("Z2", 1000, 0),
			squareFeature("Z3", 10000, 10000), squareFeature("Z4", 20000, 0))),
		Anchors: strings.NewReader(collection(pointFeature("Z1", 0, 0), pointFeature("Z2", 1000, 0),
			pointFeature("Z3", 10000, 10000), pointFeature("Z4", 20000, 0))),
		IDProperty: "zone_id",
	})
	require.NoError(t, err)

	f.density.cache.Flush()
	data, err := f.density.GetResultGeoJSON(run.ID)
	assert.ErrorIs(t, err, ErrZonesChanged)
	assert.Nil(t, data)

	_, err = f.imports.ImportZones("27700", ingest.ZoneSources{
		Boundaries: strings.NewReader(collection(squareFeature("Z1", 0, 0), squareFeature("Z2", 1000, 0))),
		Anchors:    strings.NewReader(collection(pointFeature("Z1", 0, 0), pointFeature("Z2", 1000, 0))),
		IDProperty: "zone_id",
	})
	require.NoError(t, err)
	_, err = f.density.GetResultGeoJSON(run.ID)
	assert.ErrorIs(t, err, ErrZonesChanged)
}

func TestFailedReplaceImportKeepsRecords(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	broken := "entity_id,x,y,crs,recorded_at\n" +
		"N1,1,1,,2021-01-01\n" +
		"N2,2,2,,2021-01-01\n" +
		"N3,\"3,3,,2021-01-01\n"
	_, err := f.imports.ImportRecords(strings.NewReader(broken), ingest.CSVOptions{
		IDColumn: "entity_id", XColumn: "x", YColumn: "y", CRSColumn: "crs", TimeColumn: "recorded_at",
		BatchSize: 1,
	}, true)
	require.Error(t, err)

	n, err := f.repos.Records.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	records, err := f.repos.Records.List()
	require.NoError(t, err)
	assert.Equal(t, "E1", records[0].EntityID)
}

func TestRunFailsWhenItCannotStart(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	_, err := f.db.Exec(`CREATE TRIGGER block_running BEFORE UPDATE OF status ON density_runs
		WHEN NEW.status = 'running' BEGIN SELECT RAISE(ABORT, 'running blocked'); END`)
	require.NoError(t, err)

	run, _, err := f.density.ExecuteRun(context.Background(), RunRequest{})
	require.Error(t, err)
	require.NotNil(t, run)

	stored, err := f.density.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "running blocked")
}

func TestCreateRunInBackground(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	run, err := f.density.CreateRun(RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, run.Status)

	f.density.Wait()
	stored, err := f.density.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)

	runs, total, err := f.density.ListRuns(models.RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, run.ID, runs[0].ID)

	assert.ErrorIs(t, f.density.CancelRun(run.ID), ErrRunNotActive)
}

func TestRunFailures(t *testing.T) {
	f := newFixture(t)

	_, err := f.density.CreateRun(RunRequest{})
	assert.ErrorIs(t, err, ErrNoZones)

	f.seed(t)
	_, err = f.density.CreateRun(RunRequest{Radius: -3})
	assert.ErrorIs(t, err, density.ErrInvalidRadius)

	_, err = f.imports.ImportRecords(strings.NewReader("entity_id,x,y,crs,recorded_at\nE9,1,1,EPSG:2157,2020-01-01\n"),
		ingest.CSVOptions{IDColumn: "entity_id", XColumn: "x", YColumn: "y", CRSColumn: "crs", TimeColumn: "recorded_at"}, false)
	require.NoError(t, err)

	run, _, err := f.density.ExecuteRun(context.Background(), RunRequest{})
	assert.ErrorIs(t, err, density.ErrCRSMismatch)

	stored, err := f.density.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)

	_, err = f.density.GetCounts(run.ID, models.CountFilter{})
	assert.ErrorIs(t, err, ErrRunNotCompleted)

	_, err = f.density.GetRun("nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCancelledRunFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, _, err := f.density.ExecuteRun(ctx, RunRequest{})
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := f.density.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
}

func TestRecoverInterrupted(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repos.Runs.Create(&models.DensityRun{Radius: 800}))

	n, err := f.density.RecoverInterrupted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportZonesRejectsGeographicCRS(t *testing.T) {
	f := newFixture(t)
	_, err := f.imports.ImportZones("EPSG:4326", ingest.ZoneSources{
		Boundaries: strings.NewReader(collection(squareFeature("Z1", 0, 0))),
		Anchors:    strings.NewReader(collection(pointFeature("Z1", 0, 0))),
		IDProperty: "zone_id",
	})
	assert.ErrorIs(t, err, density.ErrCRSMismatch)
}
