package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// txKey is the key type for storing transaction in context
type txKey struct{}

// Executor is satisfied by both *sqlx.DB and *sqlx.Tx
type Executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// WithTx returns a new context with the transaction attached
func WithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx retrieves the transaction from context if it exists
func GetTx(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

// GetExecutor returns either a transaction from context or the base db connection
// This allows repositories to execute queries within a transaction if one exists
func GetExecutor(ctx context.Context, db *sqlx.DB) Executor {
	if tx, ok := GetTx(ctx); ok {
		return tx
	}
	return db
}

// RunInTransaction executes a function within a database transaction
// If a transaction already exists in the context, it reuses that transaction
// and does not commit or rollback (delegating that to the outer transaction)
// If no transaction exists, it creates one, and commits or rolls back based on the result
func RunInTransaction(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := WithTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction after error %w: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
