// Package store provides abstractions and implementations for data persistence
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cairnhq/cairn-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// It receives the context and a transaction, and returns an error if the operation fails.
// The transaction is committed if the function returns nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx *sqlx.Tx) error

// RunInTransaction executes the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
// The function handles rollbacks in case of panic and logs appropriate information.
func RunInTransaction(ctx context.Context, db *sqlx.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Roll back on panic, then re-panic so the caller still sees it.
	defer func() {
		if p := recover(); p != nil {
			txErr := tx.Rollback()
			if txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	err = fn(ctx, tx)
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	err = tx.Commit()
	if err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug("transaction committed successfully")
	return nil
}
