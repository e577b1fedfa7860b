package services

import (
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/williamsoaresdev/bip-core/internal/models"
	"github.com/williamsoaresdev/bip-core/internal/money"
	"github.com/williamsoaresdev/bip-core/internal/store"
)

// CreateAccountParams carries the fields for opening a new benefit account.
type CreateAccountParams struct {
	Name           string           `validate:"required,min=3,max=100"`
	Description    string           `validate:"max=500"`
	InitialBalance *decimal.Decimal `validate:"omitempty"`
}

// UpdateAccountParams carries the fields for updating an account. A blank
// name keeps the current one; a nil or negative balance keeps the current
// balance.
type UpdateAccountParams struct {
	Name        string           `validate:"omitempty,min=3,max=100"`
	Description string           `validate:"max=500"`
	Balance     *decimal.Decimal `validate:"omitempty"`
}

// AccountService orchestrates account lifecycle operations against the
// store. Single-account writes go through Save, where the optimistic
// version token guards against concurrent modification. Every successful
// mutation drops the cached aggregates; stats may be nil when no cache is
// wired.
type AccountService struct {
	store     *store.AccountStore
	stats     *StatsService
	validator *ValidationHelper
}

func NewAccountService(accountStore *store.AccountStore, stats *StatsService) *AccountService {
	return &AccountService{
		store:     accountStore,
		stats:     stats,
		validator: NewValidationHelper(),
	}
}

// CreateAccount opens a new active account, enforcing name uniqueness.
func (s *AccountService) CreateAccount(params CreateAccountParams) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&params); err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByName(params.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &models.ValidationError{Message: fmt.Sprintf("an account named %q already exists", params.Name)}
	}

	balance := money.Zero()
	if params.InitialBalance != nil {
		balance, err = money.New(*params.InitialBalance)
		if err != nil {
			return nil, err
		}
	}

	account, err := models.NewAccount(params.Name, params.Description, balance)
	if err != nil {
		return nil, err
	}

	saved, err := s.store.Save(account)
	if err != nil {
		return nil, err
	}
	s.invalidateStats()

	log.Printf("[ACCOUNT] Created account %d (%s) with balance %s", saved.ID, saved.Name, saved.Balance)
	return saved, nil
}

// UpdateAccount applies new details to an existing account. Renames are
// checked against the unique-name constraint before being applied.
func (s *AccountService) UpdateAccount(id int64, params UpdateAccountParams) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&params); err != nil {
		return nil, err
	}

	account, err := s.store.FindByID(id)
	if err != nil {
		return nil, err
	}

	newName := strings.TrimSpace(params.Name)
	if newName != "" && !strings.EqualFold(newName, account.Name) {
		exists, err := s.store.ExistsByName(newName)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &models.ValidationError{Message: fmt.Sprintf("an account named %q already exists", newName)}
		}
	}

	if err := account.UpdateDetails(params.Name, params.Description, params.Balance); err != nil {
		return nil, err
	}

	saved, err := s.store.Save(account)
	if err != nil {
		return nil, err
	}
	s.invalidateStats()
	return saved, nil
}

// Activate transitions an account to active.
func (s *AccountService) Activate(id int64) (*models.Account, error) {
	return s.transition(id, (*models.Account).Activate)
}

// Deactivate transitions an account to inactive. Inactive accounts cannot
// send or receive transfers until reactivated.
func (s *AccountService) Deactivate(id int64) (*models.Account, error) {
	return s.transition(id, (*models.Account).Deactivate)
}

// GetByID returns the account with the given id.
func (s *AccountService) GetByID(id int64) (*models.Account, error) {
	return s.store.FindByID(id)
}

// GetByName returns the account with the given name, case-insensitively.
func (s *AccountService) GetByName(name string) (*models.Account, error) {
	return s.store.FindByName(name)
}

// ListAll returns every account.
func (s *AccountService) ListAll() ([]*models.Account, error) {
	return s.store.FindAll()
}

// ListActive returns every active account.
func (s *AccountService) ListActive() ([]*models.Account, error) {
	return s.store.FindAllActive()
}

// DeleteAccount removes an account.
func (s *AccountService) DeleteAccount(id int64) error {
	if err := s.store.DeleteByID(id); err != nil {
		return err
	}
	s.invalidateStats()
	return nil
}

func (s *AccountService) transition(id int64, apply func(*models.Account) error) (*models.Account, error) {
	account, err := s.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := apply(account); err != nil {
		return nil, err
	}

	saved, err := s.store.Save(account)
	if err != nil {
		return nil, err
	}
	s.invalidateStats()
	return saved, nil
}

func (s *AccountService) invalidateStats() {
	if s.stats != nil {
		s.stats.Invalidate()
	}
}
