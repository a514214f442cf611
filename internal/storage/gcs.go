package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
)

// GCSMirror copies the artifacts of each file to a bucket under
// <prefix>/<run-id>/{text,hocr,reports}/.
type GCSMirror struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	logger *logging.Logger
}

// NewGCSMirror creates a mirror for bucket. The client uses application default credentials.
func NewGCSMirror(ctx context.Context, bucket, prefix string) (*GCSMirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSMirror{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: prefix,
		logger: logging.NewLogger("GCSMirror"),
	}, nil
}

// ObjectName maps a local artifact to its object name.
func ObjectName(prefix, runID, kind, localPath string) string {
	return path.Join(prefix, runID, kind, filepath.Base(localPath))
}

// FileCompleted uploads the text artifact, hOCR pages and report of result.
func (g *GCSMirror) FileCompleted(ctx context.Context, runID string, result *processor.FileResult) error {
	var uploads [][2]string
	if result.TextOutputPath != nil {
		uploads = append(uploads, [2]string{processor.TextDir, *result.TextOutputPath})
	}
	for _, p := range result.LayoutPaths {
		uploads = append(uploads, [2]string{processor.HOCRDir, p})
	}
	if result.ReportPath != "" {
		uploads = append(uploads, [2]string{processor.ReportsDir, result.ReportPath})
	}

	for _, u := range uploads {
		if err := g.upload(ctx, ObjectName(g.prefix, runID, u[0], u[1]), u[1]); err != nil {
			return err
		}
	}
	g.logger.Debug("Mirrored artifacts", "file", result.OriginalFilename, "objects", len(uploads))
	return nil
}

// RunCompleted uploads the run summary.
func (g *GCSMirror) RunCompleted(ctx context.Context, summary *processor.RunSummary) error {
	summaryPath := processor.NewLayout(summary.OutputDir).SummaryPath()
	return g.upload(ctx, ObjectName(g.prefix, summary.RunID, processor.ReportsDir, summaryPath), summaryPath)
}

// upload writes a local file to objectName unless the object already exists.
func (g *GCSMirror) upload(ctx context.Context, objectName, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	w := g.bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType(localPath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gs object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			g.logger.Debug("Object already exists, skipping", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize gs object %s: %w", objectName, err)
	}
	return nil
}

func contentType(localPath string) string {
	switch filepath.Ext(localPath) {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Close releases the client.
func (g *GCSMirror) Close() error {
	return g.client.Close()
}
