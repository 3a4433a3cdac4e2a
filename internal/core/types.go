package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the execution interface an import borrows for the duration of one call.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	Begin(context.Context) (pgx.Tx, error)
}

// DBTX is the interface for single-statement database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Database is everything the Service needs from the shared handle.
type Database interface {
	DB
	DBTX
}

// ColumnType is the inferred SQL type of an imported column.
type ColumnType string

const (
	ColumnText    ColumnType = "TEXT"
	ColumnInteger ColumnType = "INTEGER"
	ColumnReal    ColumnType = "REAL"
	ColumnDate    ColumnType = "DATE"
	ColumnBoolean ColumnType = "BOOLEAN"
)

// SQLType returns the PostgreSQL column type used in generated DDL.
func (t ColumnType) SQLType() string {
	switch t {
	case ColumnInteger:
		return "BIGINT"
	case ColumnReal:
		return "DOUBLE PRECISION"
	case ColumnDate:
		return "DATE"
	case ColumnBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// RawRow is one input row. Cells are matched to columns by position.
type RawRow []string

// ColumnMetadata describes one imported column.
type ColumnMetadata struct {
	OriginalName  string     `json:"originalName"`
	SanitizedName string     `json:"sanitizedName"`
	Type          ColumnType `json:"type"`
}

// TableMetadata is returned by every successful import or preview.
// The caller owns it; nothing in this package keeps a reference.
type TableMetadata struct {
	TableName          string           `json:"tableName"`
	SanitizedTableName string           `json:"sanitizedTableName"`
	Columns            []ColumnMetadata `json:"columns"`
	RowCount           int              `json:"rowCount"`
}

// ImportResult wraps the table metadata with service-level bookkeeping.
type ImportResult struct {
	ImportID  string         `json:"importId"`
	Table     *TableMetadata `json:"table"`
	Delimiter string         `json:"delimiter"`
	Duration  time.Duration  `json:"-"`
	// DurationMS mirrors Duration for JSON clients.
	DurationMS int64 `json:"durationMs"`
}
