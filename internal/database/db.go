package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
)

// serializationRetries bounds how often a serializable transaction is
// replayed after a 40001/40P01 abort.
const serializationRetries = 3

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		case "23514": // check_violation
			return models.ErrBadRequest
		}
	}

	return err
}

// IsSerializationFailure reports whether err aborted a transaction that may
// succeed if replayed.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return db.WithTxOptions(ctx, pgx.TxOptions{}, fn)
}

// WithTxOptions runs fn inside a transaction. The transaction commits when
// fn returns nil and rolls back on error or panic.
func (db *DB) WithTxOptions(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return err
}

// WithSerializable runs fn at SERIALIZABLE isolation, replaying it when
// Postgres aborts the transaction with a serialization failure.
func (db *DB) WithSerializable(ctx context.Context, fn func(pgx.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}

	var err error
	for attempt := 1; attempt <= serializationRetries; attempt++ {
		err = db.WithTxOptions(ctx, opts, fn)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
		db.logger.Warn("serializable transaction aborted, retrying",
			"attempt", attempt,
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}
