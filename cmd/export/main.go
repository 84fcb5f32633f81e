/*
main.go - Offline visit report export

PURPOSE:
  Renders the billing report straight from the SQLite database without
  running the API server. Used for month-end billing runs and cron jobs.

COMMAND-LINE FLAGS:
  -db        SQLite database path (DB_PATH, default visits.db)
  -format    csv | xlsx | pdf (default csv)
  -start     First visit date, YYYY-MM-DD (optional)
  -end       Last visit date, YYYY-MM-DD (optional)
  -promoter  Only this promoter id (optional)
  -store     Only this store id (optional)
  -brand     Only this brand id (optional)
  -out       Output file, or directory with -split (default: suggested name)
  -split     One file per promoter

EXAMPLES:
  ./export -db=visits.db -format=xlsx -start=2024-01-01 -end=2024-01-31
  ./export -format=pdf -split -out=./billing/2024-01 -start=2024-01-01 -end=2024-01-31

SEE ALSO:
  - export/: Renderers
  - engine/report.go: ReportService
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/warp/visit-engine/config"
	"github.com/warp/visit-engine/engine"
	"github.com/warp/visit-engine/export"
	"github.com/warp/visit-engine/logger"
	"github.com/warp/visit-engine/store/sqlite"
)

type options struct {
	format   string
	start    string
	end      string
	promoter int64
	store    int64
	brand    int64
	out      string
	split    bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var opts options
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flag.StringVar(&opts.format, "format", "csv", "csv, xlsx or pdf")
	flag.StringVar(&opts.start, "start", "", "first visit date (YYYY-MM-DD)")
	flag.StringVar(&opts.end, "end", "", "last visit date (YYYY-MM-DD)")
	flag.Int64Var(&opts.promoter, "promoter", 0, "only this promoter id")
	flag.Int64Var(&opts.store, "store", 0, "only this store id")
	flag.Int64Var(&opts.brand, "brand", 0, "only this brand id")
	flag.StringVar(&opts.out, "out", "", "output file, or directory with -split")
	flag.BoolVar(&opts.split, "split", false, "write one file per promoter")
	flag.Parse()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})

	if err := run(context.Background(), cfg.DatabasePath, opts, log); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
}

func run(ctx context.Context, dbPath string, opts options, log zerolog.Logger) error {
	renderer, err := export.ForFormat(opts.format)
	if err != nil {
		return err
	}
	filter, err := opts.filter()
	if err != nil {
		return err
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	reports := engine.NewReportService(store)
	report, err := reports.Generate(ctx, filter)
	if err != nil {
		return err
	}

	if !opts.split {
		path := opts.out
		if path == "" {
			path = export.Filename(report, renderer.Extension())
		}
		if err := writeFile(path, renderer, report, true); err != nil {
			return err
		}
		log.Info().Str("file", path).Int("rows", report.TotalCount).Str("total", report.TotalValue.StringFixed(2)).Msg("Report written")
		return nil
	}

	dir := opts.out
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	parts := splitByPromoter(report)
	bar := progressbar.Default(int64(len(parts)), "promoters")
	for _, sub := range parts {
		promoter := sub.Summary[0].Promoter
		name := fmt.Sprintf("promoter-%d_%s", promoter.ID, export.Filename(sub, renderer.Extension()))
		path := filepath.Join(dir, name)
		if err := writeFile(path, renderer, sub, false); err != nil {
			return fmt.Errorf("promoter %d: %w", promoter.ID, err)
		}
		log.Debug().Str("file", path).Str("promoter", promoter.Name).Msg("Promoter report written")
		_ = bar.Add(1)
	}
	log.Info().Str("dir", dir).Int("files", len(parts)).Msg("Reports written")
	return nil
}

// splitByPromoter cuts a promoter-major report at its group boundaries.
// Counts and cumulative values already restart per promoter, so each group
// is a complete report under the filter narrowed to that promoter.
func splitByPromoter(r *engine.Report) []*engine.Report {
	var parts []*engine.Report
	start := 0
	for i, row := range r.Rows {
		if !row.EndsGroup {
			continue
		}
		group := r.Rows[start : i+1]
		start = i + 1

		id := row.Promoter.ID
		f := r.Filter
		f.PromoterID = &id
		parts = append(parts, &engine.Report{
			Filter:     f,
			Rows:       group,
			Summary:    []engine.PromoterTotal{{Promoter: row.Promoter, Count: row.Count, Total: row.Cumulative}},
			TotalCount: len(group),
			TotalValue: row.Cumulative,
		})
	}
	return parts
}

func writeFile(path string, renderer export.Renderer, report *engine.Report, showProgress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if showProgress {
		bar := progressbar.DefaultBytes(-1, "writing "+filepath.Base(path))
		defer bar.Finish()
		w = io.MultiWriter(f, bar)
	}
	if err := renderer.Render(w, report); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

// filter builds an unscoped report filter; the tool runs with operator rights.
func (o options) filter() (engine.VisitFilter, error) {
	f := engine.VisitFilter{Scope: engine.Scope{Role: engine.RoleManager}}
	if o.start != "" {
		d, err := engine.ParseDate(o.start)
		if err != nil {
			return f, fmt.Errorf("-start: %w", err)
		}
		f.Start = &d
	}
	if o.end != "" {
		d, err := engine.ParseDate(o.end)
		if err != nil {
			return f, fmt.Errorf("-end: %w", err)
		}
		f.End = &d
	}
	if o.promoter > 0 {
		id := engine.PromoterID(o.promoter)
		f.PromoterID = &id
	}
	if o.store > 0 {
		id := engine.StoreID(o.store)
		f.StoreID = &id
	}
	if o.brand > 0 {
		id := engine.BrandID(o.brand)
		f.BrandID = &id
	}
	return f, f.Validate()
}
