package tx

import (
	"context"

	"github.com/uptrace/bun"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a bun transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a bun transaction from context if present.
func From(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(txKey).(bun.Tx)
	return tx, ok
}

// DB returns the transaction carried by ctx, or db when there is none.
func DB(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Run executes fn inside a transaction on db unless ctx already carries one,
// in which case fn joins it.
func Run(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}
