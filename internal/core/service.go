package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/nbbaier/tableimport/internal/config"
	"github.com/nbbaier/tableimport/internal/logging"
)

// Service ties parsing, the import limiter, and the Importer to the shared
// database handle of the running application.
type Service struct {
	db       Database
	importer *Importer
	limiter  *ImportLimiter
	timeout  time.Duration
}

// NewService creates a Service using the import settings from cfg.
func NewService(db Database, cfg *config.Config) *Service {
	return &Service{
		db:       db,
		importer: &Importer{BatchSize: cfg.Import.BatchSize},
		limiter:  NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		timeout:  cfg.Import.Timeout,
	}
}

// ImportDelimited parses r and replaces table tableName with its contents.
// r is not read until an import slot is free.
//
// The import is detached from ctx cancellation: once started it runs to
// completion or failure, bounded only by the configured import timeout.
func (s *Service) ImportDelimited(ctx context.Context, tableName string, r io.Reader, opts ParseOptions) (*ImportResult, error) {
	start := time.Now()
	importID := uuid.New().String()
	logger := logging.WithFields(ctx, "import_id", importID, "table", tableName)

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	parsed, err := ParseDelimited(r, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", tableName, err)
	}

	importCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		importCtx, cancel = context.WithTimeout(importCtx, s.timeout)
		defer cancel()
	}

	logger.Info("import started", "columns", len(parsed.Columns), "rows", len(parsed.Rows))

	meta, err := s.importer.Import(importCtx, s.db, tableName, parsed.Columns, parsed.Rows)
	if err != nil {
		logger.Error("import failed", "error", err)
		return nil, err
	}

	duration := time.Since(start)
	logger.Info("import completed", "duration_ms", duration.Milliseconds())

	return &ImportResult{
		ImportID:   importID,
		Table:      meta,
		Delimiter:  string(parsed.Delimiter),
		Duration:   duration,
		DurationMS: duration.Milliseconds(),
	}, nil
}

// Preview parses r and infers the table layout without writing anything.
func (s *Service) Preview(tableName string, r io.Reader, opts ParseOptions) (*TableMetadata, error) {
	parsed, err := ParseDelimited(r, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", tableName, err)
	}
	return Plan(tableName, parsed.Columns, parsed.Rows)
}

// TableRowCount returns the sanitized table name and its number of rows.
// tableName is sanitized the same way Import sanitizes it.
func (s *Service) TableRowCount(ctx context.Context, tableName string) (string, int64, error) {
	table := truncateIdentifier(SanitizeIdentifier(tableName))
	var count int64
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM "+quoteIdent(table)).Scan(&count)
	if err != nil {
		return "", 0, fmt.Errorf("count %s: %w", table, err)
	}
	return table, count, nil
}

// DropTable removes an imported table and returns its sanitized name.
// Dropping a table that does not exist is not an error.
func (s *Service) DropTable(ctx context.Context, tableName string) (string, error) {
	table := truncateIdentifier(SanitizeIdentifier(tableName))
	if _, err := s.db.Exec(ctx, dropTableSQL(table)); err != nil {
		return "", fmt.Errorf("drop %s: %w", table, err)
	}
	logging.WithFields(ctx, "table", table).Info("table dropped")
	return table, nil
}

// LimiterStatus reports how many imports are running.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
