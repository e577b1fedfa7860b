package models

import (
	"time"

	"github.com/williamsoaresdev/bip-core/internal/money"
)

// TransferResult captures the outcome of a completed transfer, including
// both balances before and after the movement.
type TransferResult struct {
	Success             bool         `json:"success"`
	Message             string       `json:"message"`
	Reference           string       `json:"reference"`
	Memo                string       `json:"memo,omitempty"`
	AmountTransferred   money.Amount `json:"amount_transferred"`
	BalanceBeforeOrigin money.Amount `json:"balance_before_origin"`
	BalanceAfterOrigin  money.Amount `json:"balance_after_origin"`
	BalanceBeforeDest   money.Amount `json:"balance_before_dest"`
	BalanceAfterDest    money.Amount `json:"balance_after_dest"`
	Timestamp           time.Time    `json:"timestamp"`
}
