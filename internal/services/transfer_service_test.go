package services

import (
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamsoaresdev/bip-core/internal/models"
	"github.com/williamsoaresdev/bip-core/internal/money"
	"github.com/williamsoaresdev/bip-core/internal/store"
)

var accountRowColumns = []string{"id", "name", "description", "balance", "active", "created_at", "updated_at", "version"}

func accountRow(id int64, name, balance string, active bool, version int64) []driver.Value {
	now := time.Now()
	return []driver.Value{id, name, "", balance, active, now, now, version}
}

func newTransferFixture(t *testing.T) (*TransferService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewTransferService(db, store.NewAccountStore(db), nil), mock
}

const lockQuery = "SELECT id, name, description, balance, active, created_at, updated_at, version FROM accounts WHERE id = ANY\\(\\$1\\) ORDER BY id FOR UPDATE"
const updateQuery = "UPDATE accounts SET name = \\$1, description = \\$2, balance = \\$3, active = \\$4, updated_at = \\$5, version = version \\+ 1 WHERE id = \\$6 AND version = \\$7"
const findQuery = "SELECT id, name, description, balance, active, created_at, updated_at, version FROM accounts WHERE id = \\$1"

func TestTransferService_ExecuteTransfer(t *testing.T) {
	t.Run("successful transfer moves the balance", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectExec(updateQuery).
			WithArgs("Auxilio Alimentacao", "", "900.00", true, sqlmock.AnyArg(), int64(1), int64(0)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateQuery).
			WithArgs("Vale Transporte", "", "600.00", true, sqlmock.AnyArg(), int64(2), int64(0)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := service.ExecuteTransfer(1, 2, money.MustFromString("100.00"), "monthly top-up")
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, "100.00", result.AmountTransferred.String())
		assert.Equal(t, "1000.00", result.BalanceBeforeOrigin.String())
		assert.Equal(t, "900.00", result.BalanceAfterOrigin.String())
		assert.Equal(t, "500.00", result.BalanceBeforeDest.String())
		assert.Equal(t, "600.00", result.BalanceAfterDest.String())
		assert.Equal(t, "monthly top-up", result.Memo)
		assert.NotEmpty(t, result.Reference)
		assert.False(t, result.Timestamp.IsZero())

		// conservation: total balance is unchanged
		totalBefore := result.BalanceBeforeOrigin.Add(result.BalanceBeforeDest)
		totalAfter := result.BalanceAfterOrigin.Add(result.BalanceAfterDest)
		assert.True(t, totalBefore.Equal(totalAfter))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same account is rejected before any lookup", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		_, err := service.ExecuteTransfer(1, 1, money.MustFromString("100.00"), "")

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.NoError(t, mock.ExpectationsWereMet(), "no query may run for a same-account transfer")
	})

	t.Run("non-positive amount is rejected before any lookup", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		_, err := service.ExecuteTransfer(1, 2, money.Zero(), "")

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing destination rolls back with not-found", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 99})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...))
		mock.ExpectRollback()

		_, err := service.ExecuteTransfer(1, 99, money.MustFromString("10.00"), "")

		var notFoundErr *models.NotFoundError
		require.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, []int64{99}, notFoundErr.IDs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive origin rolls back without balance changes", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", false, 0)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectRollback()

		_, err := service.ExecuteTransfer(1, 2, money.MustFromString("10.00"), "")

		var inactiveErr *models.InactiveAccountError
		require.ErrorAs(t, err, &inactiveErr)
		assert.Equal(t, int64(1), inactiveErr.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rolls back with both values", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectRollback()

		_, err := service.ExecuteTransfer(1, 2, money.MustFromString("2000.00"), "")

		var insufficientErr *models.InsufficientBalanceError
		require.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, "1000.00", insufficientErr.Balance.String())
		assert.Equal(t, "2000.00", insufficientErr.Requested.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reversed direction locks in the same ascending order", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectBegin()
		// origin is id 2, but the lock request is still {1, 2}
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectExec(updateQuery).
			WithArgs("Vale Transporte", "", "400.00", true, sqlmock.AnyArg(), int64(2), int64(0)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateQuery).
			WithArgs("Auxilio Alimentacao", "", "1100.00", true, sqlmock.AnyArg(), int64(1), int64(0)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := service.ExecuteTransfer(2, 1, money.MustFromString("100.00"), "")
		require.NoError(t, err)
		assert.Equal(t, "400.00", result.BalanceAfterOrigin.String())
		assert.Equal(t, "1100.00", result.BalanceAfterDest.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version conflict on save rolls back", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 3)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectExec(updateQuery).
			WithArgs("Auxilio Alimentacao", "", "900.00", true, sqlmock.AnyArg(), int64(1), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.ExecuteTransfer(1, 2, money.MustFromString("100.00"), "")

		var conflictErr *models.ConcurrencyConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, int64(1), conflictErr.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure surfaces as storage error", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectExec(updateQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		_, err := service.ExecuteTransfer(1, 2, money.MustFromString("100.00"), "")

		var storageErr *models.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("committed transfer drops the cached aggregates", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		accountStore := store.NewAccountStore(db)
		service := NewTransferService(db, accountStore, NewStatsService(accountStore, redisClient))

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectExec(updateQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateQuery).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		redisMock.ExpectDel(activeCountKey, activeBalanceKey).SetVal(2)

		_, err = service.ExecuteTransfer(1, 2, money.MustFromString("100.00"), "")
		require.NoError(t, err)
		assert.NoError(t, redisMock.ExpectationsWereMet())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolled-back transfer leaves the cache alone", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		accountStore := store.NewAccountStore(db)
		service := NewTransferService(db, accountStore, NewStatsService(accountStore, redisClient))

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))
		mock.ExpectRollback()

		_, err = service.ExecuteTransfer(1, 2, money.MustFromString("2000.00"), "")
		assert.Error(t, err)
		assert.NoError(t, redisMock.ExpectationsWereMet())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransferService_ValidateTransfer(t *testing.T) {
	t.Run("valid transfer reports true", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectQuery(findQuery).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...))
		mock.ExpectQuery(findQuery).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))

		valid, err := service.ValidateTransfer(1, 2, money.MustFromString("100.00"), "")
		require.NoError(t, err)
		assert.True(t, valid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same account reports false without queries", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		valid, err := service.ValidateTransfer(1, 1, money.MustFromString("100.00"), "")
		require.NoError(t, err)
		assert.False(t, valid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing origin reports false", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectQuery(findQuery).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns))

		valid, err := service.ValidateTransfer(99, 2, money.MustFromString("100.00"), "")
		require.NoError(t, err)
		assert.False(t, valid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive destination reports false", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectQuery(findQuery).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...))
		mock.ExpectQuery(findQuery).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(2, "Vale Transporte", "500.00", false, 0)...))

		valid, err := service.ValidateTransfer(1, 2, money.MustFromString("100.00"), "")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("insufficient balance reports false", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectQuery(findQuery).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(1, "Auxilio Alimentacao", "1000.00", true, 0)...))
		mock.ExpectQuery(findQuery).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountRow(2, "Vale Transporte", "500.00", true, 0)...))

		valid, err := service.ValidateTransfer(1, 2, money.MustFromString("2000.00"), "")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("storage failure is not masked as false", func(t *testing.T) {
		service, mock := newTransferFixture(t)

		mock.ExpectQuery(findQuery).
			WithArgs(int64(1)).
			WillReturnError(errors.New("connection refused"))

		_, err := service.ValidateTransfer(1, 2, money.MustFromString("100.00"), "")

		var storageErr *models.StorageError
		require.ErrorAs(t, err, &storageErr)
	})
}

func TestTransferService_CalculateFee(t *testing.T) {
	service, _ := newTransferFixture(t)

	fee, err := service.CalculateFee(money.MustFromString("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "1.00", fee.String())

	fee, err = service.CalculateFee(money.MustFromString("250.00"))
	require.NoError(t, err)
	assert.Equal(t, "2.50", fee.String())

	fee, err = service.CalculateFee(money.Zero())
	require.NoError(t, err)
	assert.Equal(t, "0.00", fee.String())
}
