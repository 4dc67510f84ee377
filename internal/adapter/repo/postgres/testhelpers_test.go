package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// execResult maps a SQL fragment to the simulated command tag or error for
// any Exec whose statement contains that fragment.
type execResult struct {
	rows int64
	err  error
}

// poolStub implements postgres.PgxPool for tests. Exec results are keyed by
// statement fragment; every executed statement is recorded for assertions.
type poolStub struct {
	results  map[string]execResult
	row      rowStub
	queryErr error

	executed  []string
	committed bool
	rolledBack bool
}

func (p *poolStub) lookup(sql string) execResult {
	for frag, res := range p.results {
		if strings.Contains(sql, frag) {
			return res
		}
	}
	return execResult{rows: 1}
}

func (p *poolStub) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	p.executed = append(p.executed, sql)
	res := p.lookup(sql)
	if res.err != nil {
		return pgconn.CommandTag{}, res.err
	}
	return tagWithRows(res.rows), nil
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, p.queryErr
}

func (p *poolStub) Begin(_ context.Context) (pgx.Tx, error) { return txStub{pool: p}, nil }

// txStub forwards statements to the parent stub so tests can assert on the
// full statement sequence regardless of transaction boundaries.
type txStub struct{ pool *poolStub }

func (t txStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.pool.Exec(ctx, sql, args...)
}
func (t txStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.pool.QueryRow(ctx, sql, args...)
}
func (t txStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.pool.Query(ctx, sql, args...)
}
func (t txStub) Commit(context.Context) error   { t.pool.committed = true; return nil }
func (t txStub) Rollback(context.Context) error { t.pool.rolledBack = true; return nil }

func (t txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t txStub) Conn() *pgx.Conn                       { return nil }
func (t txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (t txStub) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }
func (t txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (t txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func tagWithRows(n int64) pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n))
}
