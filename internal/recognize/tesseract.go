// Package recognize adapts the Tesseract engine (gosseract) to the pipeline's
// Recognizer port.
package recognize

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"fapiao/internal/domain"
	"fapiao/internal/port"
)

// TesseractRecognizer implements port.Recognizer. One engine client is created
// per page batch to amortize setup cost, matching BatchSize from the
// configuration rather than the caller's document concurrency.
type TesseractRecognizer struct {
	clientFactory func() *gosseract.Client
}

func New() *TesseractRecognizer {
	return &TesseractRecognizer{clientFactory: gosseract.NewClient}
}

// Recognize runs OCR over the pages and returns fragments keyed by page
// index. Line order inside a page follows the engine's layout analysis and
// carries no guarantee.
func (r *TesseractRecognizer) Recognize(ctx context.Context, pages []domain.RawPage, opts port.RecognizeOptions) (map[int][]domain.Fragment, error) {
	if len(pages) == 0 {
		return map[int][]domain.Fragment{}, nil
	}
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	if !opts.UseAccelerator {
		// Tesseract parallelizes internally through OpenMP; a single thread
		// keeps it off the shared cores when acceleration is disabled.
		os.Setenv("OMP_THREAD_LIMIT", "1")
	}

	out := make(map[int][]domain.Fragment, len(pages))
	for start := 0; start < len(pages); start += batchSize {
		end := start + batchSize
		if end > len(pages) {
			end = len(pages)
		}
		if err := r.recognizeBatch(ctx, pages[start:end], opts, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *TesseractRecognizer) recognizeBatch(ctx context.Context, pages []domain.RawPage, opts port.RecognizeOptions, out map[int][]domain.Fragment) error {
	client := r.clientFactory()
	defer client.Close()

	if len(opts.Languages) > 0 {
		if err := client.SetLanguage(opts.Languages...); err != nil {
			return fmt.Errorf("setting languages %v: %w", opts.Languages, err)
		}
	}

	for _, page := range pages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := client.SetImageFromBytes(page.PNG); err != nil {
			return fmt.Errorf("loading page %d of %s: %w", page.PageIndex+1, page.SourcePath, err)
		}
		fragments, err := lineFragments(client)
		if err != nil {
			return fmt.Errorf("recognizing page %d of %s: %w", page.PageIndex+1, page.SourcePath, err)
		}
		out[page.PageIndex] = append(out[page.PageIndex], fragments...)
	}
	return nil
}

// lineFragments extracts per-line spans with geometry and confidence. When the
// engine reports no line boxes, the plain text fallback still yields fragments
// without geometry.
func lineFragments(client *gosseract.Client) ([]domain.Fragment, error) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err == nil && len(boxes) > 0 {
		fragments := make([]domain.Fragment, 0, len(boxes))
		for _, b := range boxes {
			if b.Word == "" {
				continue
			}
			fragments = append(fragments, domain.Fragment{
				Text: b.Word,
				Bounds: &domain.Bounds{
					X:      float64(b.Box.Min.X),
					Y:      float64(b.Box.Min.Y),
					Width:  float64(b.Box.Dx()),
					Height: float64(b.Box.Dy()),
				},
				Confidence: b.Confidence / 100.0,
			})
		}
		return fragments, nil
	}

	text, err := client.Text()
	if err != nil {
		return nil, err
	}
	var fragments []domain.Fragment
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fragments = append(fragments, domain.Fragment{Text: line})
	}
	return fragments, nil
}
