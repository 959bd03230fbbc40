package port

import (
	"context"

	"fapiao/internal/domain"
)

// RecognizeOptions controls the OCR engine.
type RecognizeOptions struct {
	Languages      []string // engine language codes, e.g. "chi_sim", "eng"
	UseAccelerator bool
	BatchSize      int // pages recognized per engine session
}

// Recognizer runs text recognition over a batch of page images and returns the
// detected fragments keyed by page index. Fragment order within a page is
// engine-defined and must not be relied on.
type Recognizer interface {
	Recognize(ctx context.Context, pages []domain.RawPage, opts RecognizeOptions) (map[int][]domain.Fragment, error)
}
