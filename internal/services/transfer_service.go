package services

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/williamsoaresdev/bip-core/internal/models"
	"github.com/williamsoaresdev/bip-core/internal/money"
	"github.com/williamsoaresdev/bip-core/internal/store"
)

// TransferService moves funds between two accounts atomically. Both rows are
// locked in ascending-id order inside a single transaction, so concurrent
// transfers over the same accounts can never deadlock, and a failure at any
// point rolls the whole movement back.
type TransferService struct {
	db      *sql.DB
	store   *store.AccountStore
	stats   *StatsService
	feeRate decimal.Decimal
}

func NewTransferService(db *sql.DB, accountStore *store.AccountStore, stats *StatsService) *TransferService {
	viper.SetDefault("transfer.fee_rate", "0.01")

	feeRate, err := decimal.NewFromString(viper.GetString("transfer.fee_rate"))
	if err != nil || feeRate.IsNegative() {
		log.Printf("[TRANSFER] Invalid transfer.fee_rate %q, falling back to 0.01", viper.GetString("transfer.fee_rate"))
		feeRate = decimal.RequireFromString("0.01")
	}

	return &TransferService{
		db:      db,
		store:   accountStore,
		stats:   stats,
		feeRate: feeRate,
	}
}

// ExecuteTransfer debits amount from the origin account and credits it to
// the destination account within one database transaction. Parameter checks
// run before any lookup or lock. Failures are reported as the typed errors
// of the models package; nothing is retried here, a caller seeing
// ConcurrencyConflictError retries the whole transfer.
func (s *TransferService) ExecuteTransfer(originID, destID int64, amount money.Amount, memo string) (*models.TransferResult, error) {
	if err := validateTransferParams(originID, destID, amount); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, &models.StorageError{Op: "begin transfer", Err: err}
	}
	defer tx.Rollback()

	origin, dest, err := s.lockPair(tx, originID, destID)
	if err != nil {
		return nil, err
	}

	if !origin.Active {
		return nil, &models.InactiveAccountError{AccountID: origin.ID, Operation: "transfer"}
	}
	if !dest.Active {
		return nil, &models.InactiveAccountError{AccountID: dest.ID, Operation: "transfer"}
	}
	if !origin.HasSufficientBalance(amount) {
		return nil, &models.InsufficientBalanceError{AccountID: origin.ID, Balance: origin.Balance, Requested: amount}
	}

	originBefore := origin.Balance
	destBefore := dest.Balance

	if err := origin.Debit(amount); err != nil {
		return nil, err
	}
	if err := dest.Credit(amount); err != nil {
		return nil, err
	}

	if _, err := s.store.SaveTx(tx, origin); err != nil {
		return nil, err
	}
	if _, err := s.store.SaveTx(tx, dest); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &models.StorageError{Op: "commit transfer", Err: err}
	}
	if s.stats != nil {
		s.stats.Invalidate()
	}

	reference := uuid.NewString()
	log.Printf("[TRANSFER] %s: %s moved from account %d to account %d", reference, amount, originID, destID)

	return &models.TransferResult{
		Success:             true,
		Message:             "transfer completed",
		Reference:           reference,
		Memo:                memo,
		AmountTransferred:   amount,
		BalanceBeforeOrigin: originBefore,
		BalanceAfterOrigin:  origin.Balance,
		BalanceBeforeDest:   destBefore,
		BalanceAfterDest:    dest.Balance,
		Timestamp:           time.Now(),
	}, nil
}

// ValidateTransfer runs the same checks as ExecuteTransfer without taking
// locks or mutating anything. Validation failures (same account, bad amount,
// missing or inactive account, insufficient balance) collapse to false.
// Storage failures do not: they mean the check was inconclusive, not
// negative, and are returned as errors.
func (s *TransferService) ValidateTransfer(originID, destID int64, amount money.Amount, memo string) (bool, error) {
	if err := validateTransferParams(originID, destID, amount); err != nil {
		return false, nil
	}

	origin, err := s.store.FindByID(originID)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	dest, err := s.store.FindByID(destID)
	if err != nil {
		return false, ignoreNotFound(err)
	}

	if !origin.Active || !dest.Active {
		return false, nil
	}
	return origin.HasSufficientBalance(amount), nil
}

// CalculateFee returns the service fee for a transfer of amount, independent
// of account state.
func (s *TransferService) CalculateFee(amount money.Amount) (money.Amount, error) {
	return amount.Multiply(s.feeRate)
}

// lockPair fetches both accounts with exclusive locks, id-ascending, and
// maps them back to their transfer roles.
func (s *TransferService) lockPair(tx *sql.Tx, originID, destID int64) (origin, dest *models.Account, err error) {
	accounts, err := s.store.FindByIDsForUpdate(tx, []int64{originID, destID})
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[int64]*models.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}

	var missing []int64
	if byID[originID] == nil {
		missing = append(missing, originID)
	}
	if byID[destID] == nil {
		missing = append(missing, destID)
	}
	if len(missing) > 0 {
		return nil, nil, &models.NotFoundError{IDs: missing}
	}

	return byID[originID], byID[destID], nil
}

func validateTransferParams(originID, destID int64, amount money.Amount) error {
	if originID == destID {
		return &models.ValidationError{Message: "origin and destination accounts must be different"}
	}
	if !amount.IsPositive() {
		return &models.ValidationError{Message: "transfer amount must be positive"}
	}
	return nil
}

// ignoreNotFound maps NotFoundError to nil so ValidateTransfer can treat a
// missing account as a plain negative result; other errors pass through.
func ignoreNotFound(err error) error {
	var notFound *models.NotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}
