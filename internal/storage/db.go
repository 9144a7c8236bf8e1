package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type rowIterator interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close()
}

// dbHandle is the query surface shared by the pgx pool, pgx transactions and
// database/sql handles.
type dbHandle interface {
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) rowScanner
	Query(ctx context.Context, query string, args ...interface{}) (rowIterator, error)
}

type txHandle interface {
	dbHandle
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type txBeginner interface {
	dbHandle
	Begin(ctx context.Context) (txHandle, error)
}

// notFoundRow maps driver specific no-rows errors to ErrNotFound.
type notFoundRow struct {
	row rowScanner
}

func (r notFoundRow) Scan(dest ...interface{}) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ---- pgx ----

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxHandle struct {
	q pgxQuerier
}

func (h pgxHandle) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	tag, err := h.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (h pgxHandle) QueryRow(ctx context.Context, query string, args ...interface{}) rowScanner {
	return notFoundRow{row: h.q.QueryRow(ctx, query, args...)}
}

func (h pgxHandle) Query(ctx context.Context, query string, args ...interface{}) (rowIterator, error) {
	rows, err := h.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type pgxBeginner interface {
	pgxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgxPoolHandle struct {
	pgxHandle
	pool pgxBeginner
}

func (h pgxPoolHandle) Begin(ctx context.Context) (txHandle, error) {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgxTxHandle{pgxHandle: pgxHandle{q: tx}, tx: tx}, nil
}

type pgxTxHandle struct {
	pgxHandle
	tx pgx.Tx
}

func (h pgxTxHandle) Commit(ctx context.Context) error   { return h.tx.Commit(ctx) }
func (h pgxTxHandle) Rollback(ctx context.Context) error { return h.tx.Rollback(ctx) }

// ---- database/sql ----

var placeholderRE = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders into SQLite's ?N form.
func rebind(query string) string {
	return placeholderRE.ReplaceAllString(query, "?$1")
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlHandle struct {
	q sqlQuerier
}

func (h sqlHandle) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := h.q.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (h sqlHandle) QueryRow(ctx context.Context, query string, args ...interface{}) rowScanner {
	return notFoundRow{row: h.q.QueryRowContext(ctx, rebind(query), args...)}
}

func (h sqlHandle) Query(ctx context.Context, query string, args ...interface{}) (rowIterator, error) {
	rows, err := h.q.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{Rows: rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

type sqlDBHandle struct {
	sqlHandle
	db *sql.DB
}

func (h sqlDBHandle) Begin(ctx context.Context) (txHandle, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTxHandle{sqlHandle: sqlHandle{q: tx}, tx: tx}, nil
}

type sqlTxHandle struct {
	sqlHandle
	tx *sql.Tx
}

func (h sqlTxHandle) Commit(context.Context) error   { return h.tx.Commit() }
func (h sqlTxHandle) Rollback(context.Context) error { return h.tx.Rollback() }
