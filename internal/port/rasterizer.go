package port

import (
	"context"

	"fapiao/internal/domain"
)

// RenderOptions controls PDF page rasterization.
type RenderOptions struct {
	Scale float64 // page zoom factor; 2.0 renders at 144 DPI
	Alpha bool    // keep the alpha channel; false flattens onto white
}

// Rasterizer converts a PDF document into page images.
type Rasterizer interface {
	Render(ctx context.Context, path string, opts RenderOptions) ([]domain.RawPage, error)
}
