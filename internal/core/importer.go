package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/nbbaier/tableimport/internal/logging"
)

// DefaultBatchSize is the number of rows sent per pgx.Batch.
const DefaultBatchSize = 500

// Import stages reported in ImportError.
const (
	StagePlan   = "plan"
	StageBegin  = "begin"
	StageCreate = "create table"
	StageInsert = "insert"
	StageCommit = "commit"
)

// ErrNoColumns is returned when an import or preview has no columns.
var ErrNoColumns = errors.New("no columns to import")

// ImportError is the single error type returned by a failed import.
// Nothing from the failed call is left in the database.
type ImportError struct {
	Table string // sanitized table name
	Stage string
	Row   int // 1-based input row for insert failures, 0 otherwise
	Err   error
}

func (e *ImportError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("import %s: %s row %d: %v", e.Table, e.Stage, e.Row, e.Err)
	}
	return fmt.Sprintf("import %s: %s: %v", e.Table, e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Importer creates or replaces a typed table from raw rows.
//
// An Importer holds settings only. The database handle is passed to each
// Import call and is not retained, so one Importer can serve any number of
// callers. Imports to the same table name are not coordinated: two
// concurrent calls can interleave their DROP/CREATE/INSERT statements.
type Importer struct {
	// BatchSize is the number of rows per batch. Zero means DefaultBatchSize.
	BatchSize int
}

// NewImporter returns an Importer with the default batch size.
func NewImporter() *Importer {
	return &Importer{BatchSize: DefaultBatchSize}
}

func (im *Importer) batchSize() int {
	if im == nil || im.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return im.BatchSize
}

// Plan sanitizes names and infers column types without touching a database.
func Plan(tableName string, columns []string, rows []RawRow) (*TableMetadata, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	names := sanitizeColumnNames(columns)
	types := inferColumnTypes(len(columns), rows)

	meta := &TableMetadata{
		TableName:          tableName,
		SanitizedTableName: truncateIdentifier(SanitizeIdentifier(tableName)),
		Columns:            make([]ColumnMetadata, len(columns)),
		RowCount:           len(rows),
	}
	for i, col := range columns {
		meta.Columns[i] = ColumnMetadata{
			OriginalName:  col,
			SanitizedName: names[i],
			Type:          types[i],
		}
	}
	return meta, nil
}

// Import replaces table tableName with the given columns and rows.
//
// The whole import runs in one transaction: the previous table is dropped
// inside a savepoint, the new table is created, and rows are inserted in
// batches. Any create, insert, or commit failure rolls everything back and
// is returned as an *ImportError.
func (im *Importer) Import(ctx context.Context, db DB, tableName string, columns []string, rows []RawRow) (*TableMetadata, error) {
	meta, err := Plan(tableName, columns, rows)
	if err != nil {
		return nil, &ImportError{Table: truncateIdentifier(SanitizeIdentifier(tableName)), Stage: StagePlan, Err: err}
	}

	table := meta.SanitizedTableName
	logger := logging.WithFields(ctx, "table", table)

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, &ImportError{Table: table, Stage: StageBegin, Err: err}
	}
	defer tx.Rollback(ctx)

	dropTable(ctx, tx, table, logger)

	if _, err := tx.Exec(ctx, createTableSQL(meta)); err != nil {
		return nil, &ImportError{Table: table, Stage: StageCreate, Err: err}
	}

	if err := im.insertRows(ctx, tx, meta, rows); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &ImportError{Table: table, Stage: StageCommit, Err: err}
	}

	logger.Info("table imported",
		"columns", len(meta.Columns),
		"rows", meta.RowCount,
	)
	return meta, nil
}

// dropTable removes any previous table of the same name. It runs in a
// savepoint so a failure leaves the surrounding transaction usable.
func dropTable(ctx context.Context, tx pgx.Tx, table string, logger *slog.Logger) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		logger.Warn("drop table skipped", "error", err)
		return
	}
	if _, err := sp.Exec(ctx, dropTableSQL(table)); err != nil {
		_ = sp.Rollback(ctx)
		logger.Warn("drop table failed", "error", err)
		return
	}
	if err := sp.Commit(ctx); err != nil {
		logger.Warn("drop table release failed", "error", err)
	}
}

// insertRows sends rows in fixed-size batches. Statements within a batch
// execute in order and the first failure stops the import.
func (im *Importer) insertRows(ctx context.Context, tx pgx.Tx, meta *TableMetadata, rows []RawRow) error {
	types := make([]ColumnType, len(meta.Columns))
	for i, c := range meta.Columns {
		types[i] = c.Type
	}

	query := insertSQL(meta)
	size := im.batchSize()
	logger := logging.WithFields(ctx, "table", meta.SanitizedTableName)

	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			batch.Queue(query, convertRow(types, row)...)
		}

		if err := execBatch(ctx, tx, batch, start); err != nil {
			err.Table = meta.SanitizedTableName
			return err
		}
		logger.Debug("batch inserted", "from", start+1, "to", end)
	}
	return nil
}

// execBatch runs one batch and reports the first failing row.
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, offset int) *ImportError {
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return &ImportError{Stage: StageInsert, Row: offset + i + 1, Err: err}
		}
	}
	if err := results.Close(); err != nil {
		return &ImportError{Stage: StageInsert, Err: err}
	}
	return nil
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func dropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + quoteIdent(table) + " CASCADE"
}

func createTableSQL(meta *TableMetadata) string {
	defs := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		defs[i] = quoteIdent(c.SanitizedName) + " " + c.Type.SQLType()
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(meta.SanitizedTableName), strings.Join(defs, ", "))
}

func insertSQL(meta *TableMetadata) string {
	cols := make([]string, len(meta.Columns))
	params := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		cols[i] = quoteIdent(c.SanitizedName)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(meta.SanitizedTableName), strings.Join(cols, ", "), strings.Join(params, ", "))
}
