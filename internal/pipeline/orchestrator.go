// Package pipeline drives the per-document flow (rasterize, recognize,
// normalize, extract, assemble) across a batch of PDFs with bounded
// concurrency and per-document failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"fapiao/internal/assemble"
	"fapiao/internal/domain"
	"fapiao/internal/extract"
	"fapiao/internal/normalize"
	"fapiao/internal/port"
)

// Config holds orchestration settings. Concurrency bounds the worker pool;
// MaxImagesInFlight bounds documents holding page images (defaults to
// Concurrency when zero).
type Config struct {
	Concurrency       int
	MaxImagesInFlight int
	DocTimeout        time.Duration
	Raster            port.RenderOptions
	Recognize         port.RecognizeOptions
}

// ProgressEvent reports one document reaching a terminal state.
type ProgressEvent struct {
	SourcePath string
	Stage      domain.DocumentStage // StageAssembled or StageFailed
	Done       int
	Total      int
}

// ProgressFunc receives a ProgressEvent per terminal document. It is invoked
// from worker goroutines and must be safe for concurrent use.
type ProgressFunc func(ProgressEvent)

// Orchestrator runs batches. Safe for concurrent Run calls with independent
// results; all shared state is per-run.
type Orchestrator struct {
	rasterizer port.Rasterizer
	recognizer port.Recognizer
	normalizer *normalize.Normalizer
	assembler  *assemble.Assembler
	cfg        Config
	progress   ProgressFunc
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a per-document completion callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithNormalizer overrides the default confusion table.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// New creates an Orchestrator. Configuration is passed explicitly so
// concurrent runs with different settings cannot interfere.
func New(rasterizer port.Rasterizer, recognizer port.Recognizer, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxImagesInFlight < 1 {
		cfg.MaxImagesInFlight = cfg.Concurrency
	}
	if cfg.DocTimeout <= 0 {
		cfg.DocTimeout = 5 * time.Minute
	}
	o := &Orchestrator{
		rasterizer: rasterizer,
		recognizer: recognizer,
		normalizer: normalize.New(),
		assembler:  assemble.New(),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// docOutcome is the terminal state of one document.
type docOutcome struct {
	record   *domain.InvoiceRecord
	failure  *domain.DocumentFailure
	rawLines []string
}

// Run processes every path and returns once all submitted documents reach a
// terminal state. Per-document errors become failure descriptors; Run itself
// only errors on an empty submission. Canceling ctx stops submission of new
// documents; in-flight documents still run to completion under their own
// timeout, and already-assembled records are preserved.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*domain.BatchResult, error) {
	if len(paths) == 0 {
		return nil, domain.ErrNoDocuments
	}

	result := &domain.BatchResult{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		RawText:   make(map[string][]string, len(paths)),
	}

	gov := NewGovernor(o.cfg.MaxImagesInFlight)
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var done int
	var recognitionFailures int

	log.Printf("pipeline.Orchestrator: run %s started (docs=%d, concurrency=%d, imagesInFlight=%d)",
		result.RunID, len(paths), o.cfg.Concurrency, gov.Capacity())

	collect := func(path string, out docOutcome) {
		mu.Lock()
		if out.record != nil {
			result.Records = append(result.Records, *out.record)
		}
		if out.failure != nil {
			result.Failures = append(result.Failures, *out.failure)
			if out.failure.Kind == domain.FailureRecognition {
				recognitionFailures++
			}
		}
		if out.rawLines != nil {
			result.RawText[path] = out.rawLines
		}
		done++
		n := done
		mu.Unlock()

		if o.progress != nil {
			stage := domain.StageAssembled
			if out.failure != nil {
				stage = domain.StageFailed
			}
			o.progress(ProgressEvent{SourcePath: path, Stage: stage, Done: n, Total: len(paths)})
		}
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			collect(path, docOutcome{failure: &domain.DocumentFailure{
				SourcePath: path,
				Stage:      domain.StagePending,
				Kind:       domain.FailureCanceled,
				Message:    "run canceled before submission",
			}})
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()
			collect(path, o.processDocument(ctx, path, gov))
		}(path)
	}

	wg.Wait()
	result.FinishedAt = time.Now().UTC()

	markDuplicateNumbers(result)
	if recognitionFailures >= 3 && recognitionFailures*2 > len(paths) {
		warning := fmt.Sprintf("recognition failed for %d of %d documents; check engine installation and language data", recognitionFailures, len(paths))
		result.Warnings = append(result.Warnings, warning)
		log.Printf("pipeline.Orchestrator: warning: %s", warning)
	}

	log.Printf("pipeline.Orchestrator: run %s finished (assembled=%d, failed=%d, elapsed=%s)",
		result.RunID, len(result.Records), len(result.Failures), result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

// ProcessOne runs the full pipeline for a single document, bypassing batch
// bookkeeping. Used by the HTTP extraction endpoint.
func (o *Orchestrator) ProcessOne(ctx context.Context, path string) (*domain.InvoiceRecord, *domain.DocumentFailure) {
	out := o.processDocument(ctx, path, NewGovernor(1))
	return out.record, out.failure
}

// processDocument walks one document through the stage machine. Every stage
// error is captured into a failure descriptor; nothing propagates to sibling
// documents. Documents run under a fresh timeout context so a run-level
// cancellation stops the submission loop without tearing down work already
// dispatched.
func (o *Orchestrator) processDocument(runCtx context.Context, path string, gov *Governor) (out docOutcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), o.cfg.DocTimeout)
	defer cancel()

	stage := domain.StagePending
	defer func() {
		if r := recover(); r != nil {
			out = docOutcome{failure: &domain.DocumentFailure{
				SourcePath: path,
				Stage:      stage,
				Kind:       domain.FailureExtraction,
				Message:    fmt.Sprintf("panic: %v", r),
			}}
		}
	}()

	fail := func(kind domain.FailureKind, err error) docOutcome {
		if ctx.Err() == context.DeadlineExceeded {
			kind = domain.FailureTimeout
		}
		log.Printf("pipeline.Orchestrator: %s failed at %s: %v", path, stage, err)
		return docOutcome{failure: &domain.DocumentFailure{
			SourcePath: path,
			Stage:      stage,
			Kind:       kind,
			Message:    err.Error(),
		}}
	}

	// Rasterizing. The governor slot covers the whole window where page
	// images exist in memory.
	stage = domain.StageRasterizing
	if err := gov.Acquire(ctx); err != nil {
		return fail(domain.FailureCanceled, err)
	}
	pages, err := o.rasterizer.Render(ctx, path, o.cfg.Raster)
	if err != nil {
		gov.Release()
		return fail(domain.FailureRasterization, err)
	}
	numPages := len(pages)

	// Recognizing.
	stage = domain.StageRecognizing
	fragmentsByPage, err := o.recognizer.Recognize(ctx, pages, o.cfg.Recognize)
	pages = nil // release image memory before extraction
	gov.Release()
	if err != nil {
		return fail(domain.FailureRecognition, err)
	}

	// Extracting. Operates purely on text, in page order.
	stage = domain.StageExtracting
	var fragments []domain.Fragment
	for i := 0; i < numPages; i++ {
		fragments = append(fragments, fragmentsByPage[i]...)
	}
	text := o.normalizer.Document(fragments)
	candidates := extract.Run(text, fragments)

	record := o.assembler.Assemble(path, candidates)
	if len(text.Lines) == 0 {
		record.QualityFlags = append(record.QualityFlags, domain.QualityNoTextRecognized)
	}

	rawLines := make([]string, len(text.Lines))
	for i, line := range text.Lines {
		rawLines[i] = line.Text
	}
	return docOutcome{record: &record, rawLines: rawLines}
}

// markDuplicateNumbers flags every record whose invoice number also appears on
// an earlier record of the batch. Duplicates are a quality signal: the same
// invoice scanned twice should be caught at reconciliation, not dropped here.
func markDuplicateNumbers(result *domain.BatchResult) {
	seen := make(map[string]int)
	for i := range result.Records {
		num := result.Records[i].InvoiceNumber
		if num == nil {
			continue
		}
		if _, dup := seen[*num]; dup {
			result.Records[i].QualityFlags = append(result.Records[i].QualityFlags, domain.QualityDuplicateNumber)
			continue
		}
		seen[*num] = i
	}
}
