package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/williamsoaresdev/bip-core/internal/money"
)

const (
	// NameMinLength and NameMaxLength bound the account name after trimming.
	NameMinLength = 3
	NameMaxLength = 100
	// DescriptionMaxLength bounds the optional description.
	DescriptionMaxLength = 500
)

// Account is a benefit account: a named balance with an active/inactive
// lifecycle. Balance never goes negative, and debit/credit are only allowed
// while the account is active. The Version column backs optimistic conflict
// detection on save.
type Account struct {
	ID          int64        `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Description string       `json:"description" db:"description"`
	Balance     money.Amount `json:"balance" db:"balance"`
	Active      bool         `json:"active" db:"active"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
	Version     int64        `json:"version" db:"version"`
}

// NewAccount creates an active account with the given initial balance.
// The store assigns the id on first save.
func NewAccount(name, description string, initialBalance money.Amount) (*Account, error) {
	trimmed := strings.TrimSpace(name)
	if err := validateName(trimmed); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Account{
		Name:        trimmed,
		Description: description,
		Balance:     initialBalance,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     0,
	}, nil
}

// Debit withdraws amount from the balance. The account must be active, the
// amount strictly positive, and the balance sufficient.
func (a *Account) Debit(amount money.Amount) error {
	if !a.Active {
		return &InactiveAccountError{AccountID: a.ID, Operation: "debit"}
	}
	if !amount.IsPositive() {
		return &money.InvalidAmountError{Value: amount.String(), Reason: "debit amount must be positive"}
	}
	if !a.HasSufficientBalance(amount) {
		return &InsufficientBalanceError{AccountID: a.ID, Balance: a.Balance, Requested: amount}
	}

	newBalance, err := a.Balance.Subtract(amount)
	if err != nil {
		return err
	}
	a.Balance = newBalance
	a.UpdatedAt = time.Now()
	return nil
}

// Credit deposits amount into the balance. The account must be active and
// the amount strictly positive.
func (a *Account) Credit(amount money.Amount) error {
	if !a.Active {
		return &InactiveAccountError{AccountID: a.ID, Operation: "credit"}
	}
	if !amount.IsPositive() {
		return &money.InvalidAmountError{Value: amount.String(), Reason: "credit amount must be positive"}
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now()
	return nil
}

// Activate transitions the account to active. Activating an already active
// account is rejected rather than silently ignored.
func (a *Account) Activate() error {
	if a.Active {
		return &InvalidStateError{AccountID: a.ID, Message: fmt.Sprintf("account %d is already active", a.ID)}
	}
	a.Active = true
	a.UpdatedAt = time.Now()
	return nil
}

// Deactivate transitions the account to inactive.
func (a *Account) Deactivate() error {
	if !a.Active {
		return &InvalidStateError{AccountID: a.ID, Message: fmt.Sprintf("account %d is already inactive", a.ID)}
	}
	a.Active = false
	a.UpdatedAt = time.Now()
	return nil
}

// UpdateDetails changes name, description and balance in one pass. A blank
// name keeps the previous one; a nil or negative balance keeps the previous
// balance. The description is always replaced. All fields are validated
// before any of them is applied, so a failed update leaves the account
// untouched.
func (a *Account) UpdateDetails(name, description string, balance *decimal.Decimal) error {
	trimmed := strings.TrimSpace(name)
	if trimmed != "" {
		if err := validateName(trimmed); err != nil {
			return err
		}
	}
	if err := validateDescription(description); err != nil {
		return err
	}

	var newBalance *money.Amount
	if balance != nil && !balance.IsNegative() {
		parsed, err := money.New(*balance)
		if err != nil {
			return err
		}
		newBalance = &parsed
	}

	if trimmed != "" {
		a.Name = trimmed
	}
	a.Description = description
	if newBalance != nil {
		a.Balance = *newBalance
	}

	a.UpdatedAt = time.Now()
	return nil
}

// HasSufficientBalance reports whether the balance covers a debit of amount.
func (a *Account) HasSufficientBalance(amount money.Amount) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

func validateName(trimmed string) error {
	if trimmed == "" {
		return &ValidationError{Message: "account name is required"}
	}
	// character count, not byte count: names in this domain carry accents
	if length := utf8.RuneCountInString(trimmed); length < NameMinLength || length > NameMaxLength {
		return &ValidationError{
			Message: fmt.Sprintf("account name must be between %d and %d characters", NameMinLength, NameMaxLength),
		}
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > DescriptionMaxLength {
		return &ValidationError{
			Message: fmt.Sprintf("description cannot exceed %d characters", DescriptionMaxLength),
		}
	}
	return nil
}
