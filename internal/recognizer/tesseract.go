/**
 * Tesseract recognizer
 *
 * Local, offline OCR through the gosseract bindings. One client is created per
 * call so concurrent workers never share engine state.
 */

package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	ocrerrors "github.com/adverant/nexus/fileprocess-ocr/internal/errors"
)

// Tesseract implements Recognizer with gosseract.
type Tesseract struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// Language is checked against the installed trained data at construction.
	Language       string
	TessdataPrefix string
}

// NewTesseract creates a Tesseract recognizer, failing fast when the engine or any
// language of the profile is unavailable.
func NewTesseract(cfg *TesseractConfig) (*Tesseract, error) {
	available, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, ocrerrors.NewEngineUnavailableError("tesseract", err)
	}
	if missing := missingLanguages(cfg.Language, available); len(missing) > 0 {
		return nil, ocrerrors.NewEngineUnavailableError("tesseract",
			fmt.Errorf("trained data not installed for: %s", strings.Join(missing, ", ")))
	}

	return &Tesseract{
		tessdataPrefix: cfg.TessdataPrefix,
		clientFactory:  gosseract.NewClient,
	}, nil
}

// Name identifies the provider in reports.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize runs OCR on one page image.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, params Params) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Engine mode is init-only in Tesseract and gosseract always initializes with the default.
	if params.OEM != OEMDefault {
		return nil, fmt.Errorf("engine mode %d is not supported, only %d", params.OEM, OEMDefault)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}

	client := t.clientFactory()
	defer client.Close()

	if t.tessdataPrefix != "" {
		client.TessdataPrefix = t.tessdataPrefix
	}
	if langs := SplitLanguages(params.Language); len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			return nil, fmt.Errorf("failed to set languages: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(params.PSM)); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}
	hocr, err := client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("tesseract hocr rendering failed: %w", err)
	}

	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, Token{
			Text:       b.Word,
			Confidence: b.Confidence,
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
			Word:       b.WordNum,
		})
	}

	return &Recognition{Tokens: tokens, HOCR: []byte(hocr)}, nil
}

// SplitLanguages splits a '+'-joined language profile, dropping empty parts.
func SplitLanguages(profile string) []string {
	var langs []string
	for _, l := range strings.Split(profile, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

func missingLanguages(profile string, available []string) []string {
	installed := make(map[string]bool, len(available))
	for _, l := range available {
		installed[l] = true
	}
	var missing []string
	for _, l := range SplitLanguages(profile) {
		if !installed[l] {
			missing = append(missing, l)
		}
	}
	return missing
}
