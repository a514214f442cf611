/**
 * Storage Manager for the OCR pipeline
 *
 * Fans batch results out to the optional sinks configured for the process:
 * PostgreSQL (result rows) and GCS (artifact mirror). A sink that is not
 * configured is simply absent.
 */

package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"

	"github.com/adverant/nexus/fileprocess-ocr/internal/config"
	ocrerrors "github.com/adverant/nexus/fileprocess-ocr/internal/errors"
	"github.com/adverant/nexus/fileprocess-ocr/internal/logging"
	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
)

// sink mirrors batch.Sink so storage does not depend on the orchestrator.
type sink interface {
	FileCompleted(ctx context.Context, runID string, result *processor.FileResult) error
	RunCompleted(ctx context.Context, summary *processor.RunSummary) error
}

// StorageManager coordinates the configured result sinks
type StorageManager struct {
	postgres *PostgresStore
	gcs      *GCSMirror
	sinks    []sink
	logger   *logging.Logger
}

// NewStorageManager opens the sinks enabled in cfg. With neither DATABASE_URL nor
// GCS_BUCKET set it returns an empty manager.
func NewStorageManager(ctx context.Context, cfg *config.Config) (*StorageManager, error) {
	sm := &StorageManager{logger: logging.NewLogger("StorageManager")}

	if cfg.DatabaseURL != "" {
		pg, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
		}
		sm.postgres = pg
		sm.sinks = append(sm.sinks, pg)
		sm.logger.Info("PostgreSQL result store enabled")
	}

	if cfg.GCSBucket != "" {
		mirror, err := NewGCSMirror(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			sm.Close() // Cleanup on failure
			return nil, fmt.Errorf("failed to initialize GCS mirror: %w", err)
		}
		sm.gcs = mirror
		sm.sinks = append(sm.sinks, mirror)
		sm.logger.Info("GCS artifact mirror enabled", "bucket", cfg.GCSBucket, "prefix", cfg.GCSPrefix)
	}

	return sm, nil
}

// Enabled reports whether any sink is configured.
func (sm *StorageManager) Enabled() bool {
	return len(sm.sinks) > 0
}

// FileCompleted forwards result to every sink, continuing past failures.
func (sm *StorageManager) FileCompleted(ctx context.Context, runID string, result *processor.FileResult) error {
	var errs []error
	for _, s := range sm.sinks {
		if err := s.FileCompleted(ctx, runID, result); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return ocrerrors.NewStorageFailedError(result.SourcePath, stderrors.Join(errs...))
	}
	return nil
}

// RunCompleted forwards summary to every sink, continuing past failures.
func (sm *StorageManager) RunCompleted(ctx context.Context, summary *processor.RunSummary) error {
	var errs []error
	for _, s := range sm.sinks {
		if err := s.RunCompleted(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return ocrerrors.NewStorageFailedError("", stderrors.Join(errs...))
	}
	return nil
}

// Postgres returns the PostgreSQL store, nil when not configured.
func (sm *StorageManager) Postgres() *PostgresStore {
	return sm.postgres
}

// Close closes all sinks
func (sm *StorageManager) Close() error {
	var errs []error
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}
	if sm.gcs != nil {
		if err := sm.gcs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs close error: %w", err))
		}
	}
	return stderrors.Join(errs...)
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes Unicode escapes that JSONB rejects. Recognized
// text can contain stray control characters from noisy scans.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
