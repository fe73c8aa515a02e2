package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// WithTransaction function:
//     Begin transaction từ pool
//     Defer rollback - Sẽ tự động rollback nếu:
//         Function fn return error
//         Có panic xảy ra
//     Execute function fn với transaction context
//     Commit nếu không có error

// TxFunc là function type được execute trong transaction
type TxFunc func(pgx.Tx) error

// TxBeginner is satisfied by *pgxpool.Pool, *pgx.Conn and test fakes.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// WithTransaction wraps một function trong transaction
// Auto rollback nếu có error, auto commit nếu success
func WithTransaction(ctx context.Context, db TxBeginner, fn TxFunc) error {
	return WithTransactionOptions(ctx, db, pgx.TxOptions{}, fn)
}

// WithReadOnlyTransaction chạy fn trong READ ONLY transaction
func WithReadOnlyTransaction(ctx context.Context, db TxBeginner, fn TxFunc) error {
	return WithTransactionOptions(ctx, db, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

// WithTransactionOptions is WithTransaction with explicit pgx options.
func WithTransactionOptions(ctx context.Context, db TxBeginner, opts pgx.TxOptions, fn TxFunc) (err error) {
	// Begin transaction
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Defer rollback (sẽ bị ignore nếu đã commit)
	defer func() {
		if p := recover(); p != nil {
			// Có panic → rollback
			_ = tx.Rollback(ctx)
			panic(p) // Re-throw panic
		} else if err != nil {
			// Có error → rollback
			_ = tx.Rollback(ctx)
		}
	}()

	// Execute function trong transaction context
	if err = fn(tx); err != nil {
		return err // Defer sẽ rollback
	}

	// Commit transaction
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// WithTransactionResult wraps function có return value trong transaction
func WithTransactionResult[T any](ctx context.Context, db TxBeginner, fn func(pgx.Tx) (T, error)) (T, error) {
	var result T
	var fnErr error

	err := WithTransaction(ctx, db, func(tx pgx.Tx) error {
		result, fnErr = fn(tx)
		return fnErr
	})

	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}
