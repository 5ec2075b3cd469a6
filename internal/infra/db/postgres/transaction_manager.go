package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/ports/repository"
	"media-transcoder/internal/infra/metrics"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager runs job store writes that must land together, such as ClearAll
// dropping every job row. fn receives a pgx.Tx as its repository.Tx.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise. Begin and
// commit failures are reported as domain.ErrStore.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		metrics.IncStoreError("tx_begin")
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStore, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		metrics.IncStoreError("tx_commit")
		return fmt.Errorf("%w: commit tx: %v", domain.ErrStore, err)
	}
	return nil
}

// executor is what job queries need from a pool, a conn or a tx.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// getExecutor resolves the tx argument of a repository call. repository.NoTX
// (nil) means the pool.
func getExecutor(pool *pgxpool.Pool, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case nil:
		if pool == nil {
			return nil, domain.ErrInvalidArgument
		}
		return pool, nil
	case pgx.Tx:
		return v, nil
	case *pgxpool.Conn:
		return v, nil
	case *pgxpool.Pool:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrInvalidExecContext, tx)
	}
}
