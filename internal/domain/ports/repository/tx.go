package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one storage transaction and passes the
// backend handle as tx. Repositories must accept a nil tx (non-transactional
// path); the concrete handle type is defined by the infra implementation.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
