// Command fapiao extracts structured records from a directory of scanned
// invoice PDFs and writes them as spreadsheet files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"fapiao/internal/config"
	"fapiao/internal/domain"
	"fapiao/internal/export"
	"fapiao/internal/normalize"
	"fapiao/internal/pipeline"
	"fapiao/internal/port"
	"fapiao/internal/raster"
	"fapiao/internal/recognize"
	"fapiao/internal/repository/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var (
		inputDir    = flag.String("input", ".", "directory containing invoice PDFs")
		outputDir   = flag.String("output", cfg.Output.Dir, "directory for result files")
		languages   = flag.String("languages", strings.Join(cfg.OCR.Languages, ","), "recognition languages, comma-separated")
		accel       = flag.Bool("accel", cfg.OCR.UseAccelerator, "allow the recognition engine to use all cores")
		batchSize   = flag.Int("batch-size", cfg.OCR.BatchSize, "pages recognized per engine session")
		concurrency = flag.Int("concurrency", cfg.Pipeline.Concurrency, "documents processed in parallel")
		scale       = flag.Float64("scale", cfg.Raster.Scale, "rasterization scale factor")
		formats     = flag.String("formats", strings.Join(cfg.Output.Formats, ","), "output formats: xlsx, csv")
	)
	flag.Parse()

	paths, err := findPDFs(*inputDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", domain.ErrNoDocuments, *inputDir)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	// The run log mirrors console output into the output directory so a batch
	// can be audited after the terminal is gone.
	logFile, err := os.Create(filepath.Join(*outputDir, "process.log"))
	if err != nil {
		return fmt.Errorf("creating run log: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []pipeline.Option{
		pipeline.WithProgress(func(ev pipeline.ProgressEvent) {
			log.Printf("[%d/%d] %s: %s", ev.Done, ev.Total, filepath.Base(ev.SourcePath), ev.Stage)
		}),
	}
	if cfg.Normalize.Confusions != nil {
		opts = append(opts, pipeline.WithNormalizer(normalize.NewWithConfusions(cfg.Normalize.Confusions)))
	}

	orch := pipeline.New(
		raster.New(),
		recognize.New(),
		pipeline.Config{
			Concurrency:       *concurrency,
			MaxImagesInFlight: cfg.Pipeline.MaxImagesInFlight,
			DocTimeout:        cfg.Pipeline.DocTimeout(),
			Raster: port.RenderOptions{
				Scale: *scale,
				Alpha: cfg.Raster.Alpha,
			},
			Recognize: port.RecognizeOptions{
				Languages:      splitList(*languages),
				UseAccelerator: *accel,
				BatchSize:      *batchSize,
			},
		},
		opts...,
	)

	result, err := orch.Run(ctx, paths)
	if err != nil {
		return err
	}

	// Persist results even when the run was interrupted; partial batches are
	// still worth keeping.
	if err := writeOutputs(context.WithoutCancel(ctx), cfg, result, *outputDir, splitList(*formats)); err != nil {
		return err
	}

	printSummary(result)
	return nil
}

// findPDFs lists the PDF files directly under dir, sorted by name for
// deterministic batch order.
func findPDFs(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInputDirMissing, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInputDirMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// writeOutputs persists the batch through every configured sink. Sink errors
// are fatal: a batch whose results cannot be saved has not succeeded.
func writeOutputs(ctx context.Context, cfg *config.Config, result *domain.BatchResult, outputDir string, formats []string) error {
	for _, format := range formats {
		switch format {
		case "xlsx":
			w := export.NewExcelWriter(filepath.Join(outputDir, "invoices.xlsx"))
			if err := w.WriteBatch(ctx, result); err != nil {
				return fmt.Errorf("writing xlsx: %w", err)
			}
		case "csv":
			f, err := os.Create(filepath.Join(outputDir, "invoices.csv"))
			if err != nil {
				return fmt.Errorf("creating csv: %w", err)
			}
			if _, err := f.Write(export.BOM); err != nil {
				f.Close()
				return fmt.Errorf("writing csv: %w", err)
			}
			if err := export.NewCSVWriter(f).WriteBatch(ctx, result); err != nil {
				f.Close()
				return fmt.Errorf("writing csv: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing csv: %w", err)
			}
		default:
			return fmt.Errorf("unknown output format %q", format)
		}
	}

	if cfg.DB.Enabled() {
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repo := postgres.NewBatchRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := repo.WriteBatch(ctx, result); err != nil {
			return fmt.Errorf("writing batch to database: %w", err)
		}
	}
	return nil
}

// printSummary logs the batch outcome. Per-document failures do not change the
// exit code; the process fails only when the run itself cannot proceed.
func printSummary(result *domain.BatchResult) {
	log.Printf("run %s: %d of %d documents assembled", result.RunID, len(result.Records), result.Submitted())

	missing := 0
	flagged := 0
	for i := range result.Records {
		if len(result.Records[i].MissingFields) > 0 {
			missing++
		}
		if len(result.Records[i].QualityFlags) > 0 {
			flagged++
		}
	}
	if missing > 0 {
		log.Printf("%d records have missing fields", missing)
	}
	if flagged > 0 {
		log.Printf("%d records carry quality flags", flagged)
	}

	for _, fail := range result.Failures {
		log.Printf("failed: %s (%s at %s): %s", filepath.Base(fail.SourcePath), fail.Kind, fail.Stage, fail.Message)
	}
	for _, warning := range result.Warnings {
		log.Printf("warning: %s", warning)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
