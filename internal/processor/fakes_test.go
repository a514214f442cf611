package processor

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/adverant/nexus/fileprocess-ocr/internal/input"
	"github.com/adverant/nexus/fileprocess-ocr/internal/raster"
	"github.com/adverant/nexus/fileprocess-ocr/internal/recognizer"
)

// pageImage encodes the 1-based page number in the image width.
func pageImage(page int) image.Image {
	return image.NewGray(image.Rect(0, 0, 100+page, 50))
}

func pageOf(img image.Image) int {
	return img.Bounds().Dx() - 100
}

type fakeRasterizer struct {
	pages map[string]int
	err   error
}

func (f *fakeRasterizer) Rasterize(_ context.Context, path string, _ input.FileType) (*raster.Pages, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.pages[path]
	if !ok {
		n = 1
	}
	out := &raster.Pages{DeclaredPages: n}
	for i := 1; i <= n; i++ {
		out.Images = append(out.Images, pageImage(i))
	}
	return out, nil
}

type call struct {
	page   int
	width  int
	params recognizer.Params
}

// fakeRecognizer answers with one token per page. fail decides whether a call errors.
type fakeRecognizer struct {
	mu         sync.Mutex
	calls      []call
	confidence float64
	fail       func(page, attempt int) error
	attempts   map[int]int
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(_ context.Context, img image.Image, params recognizer.Params) (*recognizer.Recognition, error) {
	page := pageOf(img)
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = map[int]int{}
	}
	f.attempts[page]++
	attempt := f.attempts[page]
	f.calls = append(f.calls, call{page: page, width: img.Bounds().Dx(), params: params})
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(page, attempt); err != nil {
			return nil, err
		}
	}

	conf := f.confidence
	if conf == 0 {
		conf = 100
	}
	return &recognizer.Recognition{
		Tokens: []recognizer.Token{
			{Text: fmt.Sprintf("text%d", page), Confidence: conf, Block: 1, Paragraph: 1, Line: 1, Word: 1},
		},
		HOCR: []byte(fmt.Sprintf("<div class='ocr_page'>page %d</div>", page)),
	}, nil
}

func newTestProcessor(t *testing.T, ras Rasterizer, rec recognizer.Recognizer) (*Processor, Layout) {
	t.Helper()
	layout := NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	p, err := NewProcessor(&ProcessorConfig{
		Layout:            layout,
		Rasterizer:        ras,
		Recognizer:        rec,
		Language:          "eng",
		AccuracyThreshold: 0.95,
		MaxSide:           2400,
		MaxRetries:        2,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p, layout
}
