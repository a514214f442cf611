/**
 * PostgreSQL result store for the OCR pipeline
 *
 * Records every FileResult and RunSummary of a batch so downstream tooling can
 * query outcomes without walking the reports directory.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/adverant/nexus/fileprocess-ocr/internal/processor"
)

// PostgresStore handles database operations
type PostgresStore struct {
	db *sql.DB
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS ocr;

	CREATE TABLE IF NOT EXISTS ocr.runs (
		id               UUID PRIMARY KEY,
		started_at       TIMESTAMPTZ NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL,
		success_count    INTEGER NOT NULL,
		low_accuracy_count INTEGER NOT NULL,
		failed_count     INTEGER NOT NULL,
		metrics          JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS ocr.file_results (
		run_id            UUID NOT NULL,
		source_path       TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		file_type         TEXT NOT NULL,
		status            TEXT NOT NULL,
		accuracy          NUMERIC(5,4),
		page_count        INTEGER NOT NULL,
		duration_seconds  DOUBLE PRECISION NOT NULL,
		text_output_path  TEXT,
		hocr_paths        TEXT[] NOT NULL DEFAULT '{}',
		errors            TEXT[] NOT NULL DEFAULT '{}',
		metrics           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, source_path)
	);

	CREATE INDEX IF NOT EXISTS file_results_status_idx ON ocr.file_results (status);
`

// sanitizeConfidence rounds accuracy to 4 decimal places and clamps it to [0, 1]
// so it fits NUMERIC(5,4).
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	store := &PostgresStore{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the ocr schema and tables when absent.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// FileCompleted upserts one file result.
func (p *PostgresStore) FileCompleted(ctx context.Context, runID string, result *processor.FileResult) error {
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}

	var accuracy sql.NullFloat64
	if result.Accuracy != nil {
		accuracy = sql.NullFloat64{Float64: sanitizeConfidence(*result.Accuracy), Valid: true}
	}
	var textPath sql.NullString
	if result.TextOutputPath != nil {
		textPath = sql.NullString{String: *result.TextOutputPath, Valid: true}
	}

	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	metricsJSON = sanitizeJSONForPostgres(metricsJSON)

	query := `
		INSERT INTO ocr.file_results (
			run_id, source_path, original_filename, file_type, status,
			accuracy, page_count, duration_seconds, text_output_path,
			hocr_paths, errors, metrics
		) VALUES (
			$1::uuid, $2, $3, $4, $5,
			$6::NUMERIC(5,4), $7, $8, $9,
			$10, $11, $12::jsonb
		)
		ON CONFLICT (run_id, source_path) DO UPDATE SET
			status = EXCLUDED.status,
			accuracy = EXCLUDED.accuracy,
			page_count = EXCLUDED.page_count,
			duration_seconds = EXCLUDED.duration_seconds,
			text_output_path = EXCLUDED.text_output_path,
			hocr_paths = EXCLUDED.hocr_paths,
			errors = EXCLUDED.errors,
			metrics = EXCLUDED.metrics
	`

	_, err = p.db.ExecContext(ctx, query,
		runID,
		result.SourcePath,
		result.OriginalFilename,
		string(result.FileType),
		string(result.Status),
		accuracy,
		result.PageCount,
		result.DurationSeconds,
		textPath,
		pq.Array(result.LayoutPaths),
		pq.Array(result.Errors),
		metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to store file result (run=%s, file=%s, status=%s): %w",
			runID, result.OriginalFilename, result.Status, err)
	}
	return nil
}

// RunCompleted records the run summary row.
func (p *PostgresStore) RunCompleted(ctx context.Context, summary *processor.RunSummary) error {
	metricsJSON, err := json.Marshal(summary.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	metricsJSON = sanitizeJSONForPostgres(metricsJSON)

	query := `
		INSERT INTO ocr.runs (
			id, started_at, duration_seconds,
			success_count, low_accuracy_count, failed_count, metrics
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			duration_seconds = EXCLUDED.duration_seconds,
			success_count = EXCLUDED.success_count,
			low_accuracy_count = EXCLUDED.low_accuracy_count,
			failed_count = EXCLUDED.failed_count,
			metrics = EXCLUDED.metrics
	`

	_, err = p.db.ExecContext(ctx, query,
		summary.RunID,
		summary.StartedAt,
		summary.DurationSeconds,
		summary.Counts[processor.StatusSuccess],
		summary.Counts[processor.StatusLowAccuracy],
		summary.Counts[processor.StatusFailed],
		metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", summary.RunID, err)
	}
	return nil
}

// FailedFiles lists files of a run whose status is failed.
func (p *PostgresStore) FailedFiles(ctx context.Context, runID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT source_path FROM ocr.file_results
		WHERE run_id = $1::uuid AND status = 'failed'
		ORDER BY source_path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// Ping checks database connectivity
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
