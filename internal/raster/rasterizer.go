// Package raster turns input files into ordered page images and bounds their size
// before recognition.
package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
)

// BaseDPI is the PDF user-space resolution that render scale factors are relative to.
const BaseDPI = 72.0

// Pages is the ordered output of a rasterization.
type Pages struct {
	Images []image.Image
	// DeclaredPages is the page count read from the document structure, 0 when unknown
	// or not applicable.
	DeclaredPages int
}

// Rasterizer renders paginated documents and decodes single images.
type Rasterizer struct {
	dpi    int
	logger *logging.Logger
}

// NewRasterizer creates a rasterizer rendering PDF pages at dpi.
func NewRasterizer(dpi int) *Rasterizer {
	if dpi <= 0 {
		dpi = 250
	}
	return &Rasterizer{
		dpi:    dpi,
		logger: logging.NewLogger("raster"),
	}
}

// Rasterize returns the page images of path in document order.
func (r *Rasterizer) Rasterize(ctx context.Context, path string, ft input.FileType) (*Pages, error) {
	switch ft {
	case input.FileTypePDF:
		return r.renderPDF(ctx, path)
	case input.FileTypeImage:
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		return &Pages{Images: []image.Image{img}}, nil
	default:
		return nil, fmt.Errorf("cannot rasterize file type %q", ft)
	}
}

func (r *Rasterizer) renderPDF(ctx context.Context, path string) (*Pages, error) {
	declared, err := api.PageCountFile(path)
	if err != nil {
		// MuPDF repairs many files pdfcpu rejects, so rendering still gets a chance.
		r.logger.Warn("pdf page count unavailable", "file", path, "error", err)
		declared = 0
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	if declared > 0 && declared != n {
		r.logger.Warn("page count mismatch", "file", path, "declared", declared, "rendered", n)
	}

	images := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, float64(r.dpi))
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		images = append(images, img)
	}

	r.logger.Debug("pdf rendered", "file", path, "pages", n, "dpi", r.dpi, "scale", float64(r.dpi)/BaseDPI)
	return &Pages{Images: images, DeclaredPages: declared}, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
