// Package raster renders PDF pages to images through MuPDF (go-fitz).
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"fapiao/internal/domain"
	"fapiao/internal/port"
)

// baseDPI is the PDF user-space resolution; RenderOptions.Scale multiplies it,
// so scale 2.0 renders at 144 DPI.
const baseDPI = 72

// FitzRasterizer implements port.Rasterizer with go-fitz.
type FitzRasterizer struct{}

func New() *FitzRasterizer { return &FitzRasterizer{} }

// Render rasterizes every page of the PDF at path. A corrupt or unreadable
// document returns an error; the caller converts it into a per-document
// failure.
func (r *FitzRasterizer) Render(ctx context.Context, path string, opts port.RenderOptions) ([]domain.RawPage, error) {
	scale := opts.Scale
	if scale <= 0 {
		scale = 2.0
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("%s has no pages", path)
	}

	pages := make([]domain.RawPage, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rendered, err := doc.ImageDPI(i, baseDPI*scale)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d of %s: %w", i+1, path, err)
		}
		var img image.Image = rendered
		if !opts.Alpha {
			img = flatten(img)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding page %d of %s: %w", i+1, path, err)
		}
		pages = append(pages, domain.RawPage{
			SourcePath: path,
			PageIndex:  i,
			PNG:        buf.Bytes(),
		})
	}
	return pages, nil
}

// flatten composites the page onto a white background, discarding alpha.
// Scanned invoices are white-paper documents; transparent margins confuse
// binarization inside the OCR engine.
func flatten(src image.Image) image.Image {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Over)
	return dst
}
