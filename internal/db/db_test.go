package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestWithTxCommits(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), xdb, func(tx *sqlx.Tx) error {
		_, err := tx.Exec("UPDATE wallets SET balance = 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackBusinessErrorsWithoutRetry(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("insufficient funds")
	calls := 0
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRetriesConflictInUnitOfWork(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRetriesConflictAtCommit(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	xdb, mock := newMockDB(t)
	for i := 0; i < maxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})
	}

	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return nil })
	require.ErrorIs(t, err, ErrRetryLimit)
	assert.True(t, IsRetryable(err), "the last conflict stays inspectable")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxStopsRetryingWhenContextDone(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	err := WithTx(ctx, xdb, func(*sqlx.Tx) error {
		cancel()
		return &pq.Error{Code: "40P01"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTxBeginFailure(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error {
		called = true
		return nil
	})
	assert.EqualError(t, err, "connection refused")
	assert.False(t, called)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(nil))
}
