package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jengzang/zone-density/internal/ingest"
	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/service"
)

func newImportZonesCmd() *cobra.Command {
	var boundaries, anchors, crs, idProperty string

	cmd := &cobra.Command{
		Use:   "import-zones",
		Short: "Replace the zone set with boundary and anchor GeoJSON files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			if idProperty == "" {
				idProperty = a.Config.Ingest.ZoneIDProperty
			}

			bf, err := os.Open(boundaries)
			if err != nil {
				return err
			}
			defer bf.Close()
			af, err := os.Open(anchors)
			if err != nil {
				return err
			}
			defer af.Close()

			n, err := a.Imports.ImportZones(crs, ingest.ZoneSources{Boundaries: bf, Anchors: af, IDProperty: idProperty})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d zones\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&boundaries, "boundaries", "", "zone boundary GeoJSON FeatureCollection (required)")
	cmd.Flags().StringVar(&anchors, "anchors", "", "anchor point GeoJSON FeatureCollection (required)")
	cmd.Flags().StringVar(&crs, "crs", "EPSG:27700", "projected CRS of both files")
	cmd.Flags().StringVar(&idProperty, "id-property", "", "property joining boundaries to anchors (default from config)")
	_ = cmd.MarkFlagRequired("boundaries")
	_ = cmd.MarkFlagRequired("anchors")
	return cmd
}

func newImportRecordsCmd() *cobra.Command {
	var file, defaultCRS string
	var replace bool

	cmd := &cobra.Command{
		Use:   "import-records",
		Short: "Append property records from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			opts := a.CSVOptions()
			opts.DefaultCRS = defaultCRS
			stats, err := a.Imports.ImportRecords(f, opts, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records (%d bad locations, %d bad timestamps, %d without id)\n",
				stats.Rows, stats.BadLocation, stats.BadTimestamp, stats.MissingEntityID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "record CSV file (required)")
	cmd.Flags().StringVar(&defaultCRS, "default-crs", "", "CRS stamped on rows without one")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete stored records first")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRunCmd() *cobra.Command {
	var radius float64
	var out, countsOut string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a density run over the stored zones and records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}

			run, result, err := a.Density.ExecuteRun(cmd.Context(), service.RunRequest{Radius: radius, CreatedBy: "cli"})
			if err != nil {
				if run != nil {
					return fmt.Errorf("run %s failed: %w", run.ID, err)
				}
				return err
			}

			if out != "" {
				if err := writeFile(out, func(f *os.File) error { return ingest.WriteGeoJSON(f, result.Zones) }); err != nil {
					return err
				}
			}
			if countsOut != "" {
				if err := writeFile(countsOut, func(f *os.File) error { return ingest.WriteCountsCSV(f, result.Counts) }); err != nil {
					return err
				}
			}

			d := result.Diagnostics
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s completed\n", run.ID)
			fmt.Fprintf(w, "zones=%d canonical=%d malformed=%d pairs=%d matched=%d unmatched=%d amplification=%.3f\n",
				d.Zones, d.CanonicalRecords, d.Quality.Malformed(), d.MatchPairs, d.MatchedEntities, d.UnmatchedEntities, d.Amplification)
			return nil
		},
	}

	cmd.Flags().Float64Var(&radius, "radius", 0, "buffer radius in CRS units (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "write merged zones as GeoJSON to this file")
	cmd.Flags().StringVar(&countsOut, "counts-csv", "", "write zone_id,count CSV to this file")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var filter models.RunFilter
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List density runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}

			runs, total, err := a.Density.ListRuns(filter)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{"runs": runs, "total": total})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tRADIUS\tZONES\tCANONICAL\tPAIRS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%d\t%d\t%s\n",
					r.ID, r.Status, r.Radius, r.ZoneCount, r.CanonicalRecords, r.MatchPairs, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(tw, "(%d total)\n", total)
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "filter by status")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
