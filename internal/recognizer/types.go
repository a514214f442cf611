/**
 * Recognition types - shared data structures for OCR operations
 *
 * A Recognizer turns one normalized page image into word tokens with
 * block/paragraph/line grouping plus an hOCR rendering of the same page.
 */

package recognizer

import (
	"context"
	"image"
)

// Tesseract page segmentation modes used by the pipeline.
const (
	PSMAuto        = 3 // fully automatic page segmentation
	PSMSingleBlock = 6 // assume a single uniform block of text
)

// OEMDefault selects the engine mode based on what is available.
const OEMDefault = 3

// Params tunes one recognition call.
type Params struct {
	// Language is a '+'-joined list of trained data names, e.g. "chi_sim+eng".
	Language string
	PSM      int
	OEM      int
}

// Token is one recognized word with its grouping identifiers.
type Token struct {
	Text string
	// Confidence is on the engine's 0-100 scale; negative means unknown.
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
	Word       int
}

// Recognition is the raw output for one page.
type Recognition struct {
	Tokens []Token
	HOCR   []byte
}

// Recognizer is the OCR capability consumed by the pipeline. Implementations
// perform no retries; errors propagate to the caller.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, params Params) (*Recognition, error)
}
