package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB is an in-memory stand-in for a PostgreSQL pool. It understands the
// handful of statements the importer issues and gives transactions and
// savepoints real copy-on-begin, publish-on-commit semantics.
type fakeDB struct {
	mu     sync.Mutex
	tables map[string]*fakeTable

	beginErr  error
	dropErr   error
	createErr error
	commitErr error
	// failInsert makes an INSERT fail when it returns non-nil.
	failInsert func(args []any) error

	statements []string
	batchSizes []int
	rollbacks  int
	commits    int
}

type fakeTable struct {
	ddl  string
	rows [][]any
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: make(map[string]*fakeTable)}
}

// seed installs a committed table as if a previous import had run.
func (db *fakeDB) seed(table, ddl string, rows ...[]any) {
	db.tables[quoteIdent(table)] = &fakeTable{ddl: ddl, rows: rows}
}

func (db *fakeDB) table(name string) (*fakeTable, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[quoteIdent(name)]
	return t, ok
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	return &fakeTx{db: db, tables: cloneTables(db.tables)}, nil
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	defer tx.Rollback(ctx)
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return tag, err
	}
	return tag, tx.Commit(ctx)
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDB: Query not supported")
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	const prefix = "SELECT count(*) FROM "
	if !strings.HasPrefix(sql, prefix) {
		return fakeRow{err: errors.New("fakeDB: unsupported query")}
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[strings.TrimPrefix(sql, prefix)]
	if !ok {
		return fakeRow{err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}}
	}
	return fakeRow{count: int64(len(t.rows))}
}

type fakeRow struct {
	count int64
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.count
	return nil
}

// fakeTx implements the parts of pgx.Tx the importer uses. Calling any
// other method panics on the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	db     *fakeDB
	parent *fakeTx
	tables map[string]*fakeTable
	closed bool
}

func (tx *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	if tx.closed {
		return nil, pgx.ErrTxClosed
	}
	return &fakeTx{db: tx.db, parent: tx, tables: cloneTables(tx.tables)}, nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true

	if tx.parent != nil {
		tx.parent.tables = tx.tables
		return nil
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.db.commitErr != nil {
		tx.db.rollbacks++
		return tx.db.commitErr
	}
	tx.db.tables = tx.tables
	tx.db.commits++
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	if tx.parent == nil {
		tx.db.mu.Lock()
		tx.db.rollbacks++
		tx.db.mu.Unlock()
	}
	return nil
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.db.mu.Lock()
	tx.db.statements = append(tx.db.statements, sql)
	dropErr, createErr, failInsert := tx.db.dropErr, tx.db.createErr, tx.db.failInsert
	tx.db.mu.Unlock()

	switch {
	case strings.HasPrefix(sql, "DROP TABLE IF EXISTS "):
		if dropErr != nil {
			return pgconn.CommandTag{}, dropErr
		}
		name := strings.TrimSuffix(strings.TrimPrefix(sql, "DROP TABLE IF EXISTS "), " CASCADE")
		delete(tx.tables, name)
		return pgconn.NewCommandTag("DROP TABLE"), nil

	case strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS "):
		if createErr != nil {
			return pgconn.CommandTag{}, createErr
		}
		rest := strings.TrimPrefix(sql, "CREATE TABLE IF NOT EXISTS ")
		name := rest[:strings.Index(rest, " (")]
		if _, ok := tx.tables[name]; !ok {
			tx.tables[name] = &fakeTable{ddl: sql}
		}
		return pgconn.NewCommandTag("CREATE TABLE"), nil

	case strings.HasPrefix(sql, "INSERT INTO "):
		rest := strings.TrimPrefix(sql, "INSERT INTO ")
		name := rest[:strings.Index(rest, " (")]
		t, ok := tx.tables[name]
		if !ok {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
		}
		if failInsert != nil {
			if err := failInsert(args); err != nil {
				return pgconn.CommandTag{}, err
			}
		}
		row := make([]any, len(args))
		copy(row, args)
		t.rows = append(t.rows, row)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}

	return pgconn.CommandTag{}, errors.New("fakeDB: unsupported statement: " + sql)
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	tx.db.mu.Lock()
	tx.db.batchSizes = append(tx.db.batchSizes, b.Len())
	tx.db.mu.Unlock()
	return &fakeBatchResults{ctx: ctx, tx: tx, queries: b.QueuedQueries}
}

// fakeBatchResults runs queued statements one at a time as Exec is called.
type fakeBatchResults struct {
	pgx.BatchResults
	ctx     context.Context
	tx      *fakeTx
	queries []*pgx.QueuedQuery
	next    int
	err     error
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	if r.next >= len(r.queries) {
		return pgconn.CommandTag{}, errors.New("fakeDB: no more batch results")
	}
	q := r.queries[r.next]
	r.next++
	tag, err := r.tx.Exec(r.ctx, q.SQL, q.Arguments...)
	if err != nil {
		r.err = err
	}
	return tag, err
}

func (r *fakeBatchResults) Close() error {
	return nil
}

func cloneTables(in map[string]*fakeTable) map[string]*fakeTable {
	out := make(map[string]*fakeTable, len(in))
	for name, t := range in {
		rows := make([][]any, len(t.rows))
		copy(rows, t.rows)
		out[name] = &fakeTable{ddl: t.ddl, rows: rows}
	}
	return out
}
