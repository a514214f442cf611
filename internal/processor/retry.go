package processor

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/raster"
	"github.com/adverant/nexus/fileprocess-ocr/internal/recognizer"
)

// retryScale enlarges the side budget on retries so more detail survives normalization.
const retryScale = 1.25

// RetryPolicy bounds the attempts made on one page.
type RetryPolicy struct {
	Language   string
	MaxSide    int
	MaxRetries int
	RetryDelay time.Duration
}

// PageRunner normalizes, recognizes and reconstructs one page with bounded retry.
type PageRunner struct {
	recognizer recognizer.Recognizer
	policy     RetryPolicy
	logger     *logging.Logger
}

// NewPageRunner creates a page runner.
func NewPageRunner(rec recognizer.Recognizer, policy RetryPolicy, logger *logging.Logger) *PageRunner {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if logger == nil {
		logger = logging.NewLogger("PageRunner")
	}
	return &PageRunner{recognizer: rec, policy: policy, logger: logger}
}

// attempt is the tagged outcome of one recognition attempt: either rec is set,
// or err carries the reason it failed.
type attempt struct {
	rec *recognizer.Recognition
	err error
}

func (a attempt) succeeded() bool { return a.err == nil && a.rec != nil }

// Run processes page index (1-based). A page that fails every attempt is returned
// as failed with empty text and zero confidence; Run never returns an error.
func (r *PageRunner) Run(ctx context.Context, index int, img image.Image) *PageOutcome {
	start := time.Now()
	out := &PageOutcome{Index: index, Status: StatusFailed}
	maxAttempts := r.policy.MaxRetries + 1

	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			break
		}

		out.Attempts = n
		a := r.try(ctx, img, n)
		if a.succeeded() {
			out.Status = StatusSuccess
			out.Text = recognizer.Reconstruct(a.rec.Tokens)
			out.Confidence, _ = recognizer.Confidence(a.rec.Tokens)
			out.HOCR = a.rec.HOCR
			out.Err = nil
			break
		}

		out.Err = a.err
		r.logger.Warn("Page recognition attempt failed",
			"page", index, "attempt", n, "max_attempts", maxAttempts, "error", a.err)

		if n < maxAttempts && !sleepCtx(ctx, r.policy.RetryDelay) {
			out.Err = ctx.Err()
			break
		}
	}

	out.Duration = time.Since(start)
	return out
}

// Params returns the normalization budget and recognizer parameters for attempt n.
func (r *PageRunner) Params(n int) (int, recognizer.Params) {
	if n <= 1 {
		return r.policy.MaxSide, recognizer.Params{
			Language: r.policy.Language,
			PSM:      recognizer.PSMSingleBlock,
			OEM:      recognizer.OEMDefault,
		}
	}
	return int(float64(r.policy.MaxSide) * retryScale), recognizer.Params{
		Language: r.policy.Language,
		PSM:      recognizer.PSMAuto,
		OEM:      recognizer.OEMDefault,
	}
}

func (r *PageRunner) try(ctx context.Context, img image.Image, n int) (a attempt) {
	defer func() {
		if p := recover(); p != nil {
			a = attempt{err: fmt.Errorf("recognizer panic: %v", p)}
		}
	}()

	maxSide, params := r.Params(n)
	rec, err := r.recognizer.Recognize(ctx, raster.Normalize(img, maxSide), params)
	if err != nil {
		return attempt{err: err}
	}
	if rec == nil {
		return attempt{err: fmt.Errorf("recognizer returned no result")}
	}
	return attempt{rec: rec}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
