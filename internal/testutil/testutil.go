// Package testutil provides inert database doubles for service tests. The
// repositories under test are replaced with in-memory fakes, so transactions
// only need to satisfy the pgx interfaces structurally.
package testutil

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// NopDB satisfies repository.DB and hands out NopTx transactions.
type NopDB struct{}

func (NopDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &NopTx{}, nil
}

// NopTx is a pgx.Tx whose operations all succeed without touching a
// database. Commit and Rollback record that they were called.
type NopTx struct {
	Committed  bool
	RolledBack bool
}

var _ pgx.Tx = (*NopTx)(nil)

func (t *NopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *NopTx) Commit(ctx context.Context) error {
	t.Committed = true
	return nil
}

func (t *NopTx) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

func (t *NopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *NopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *NopTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *NopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, nil
}

func (t *NopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *NopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (t *NopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *NopTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return pgx.ErrNoRows }
