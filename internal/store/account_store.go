package store

import (
	"database/sql"
	"sort"

	"github.com/lib/pq"
	"github.com/williamsoaresdev/bip-core/internal/models"
	"github.com/williamsoaresdev/bip-core/internal/money"
)

const accountColumns = "id, name, description, balance, active, created_at, updated_at, version"

// AccountStore is the persistence boundary for accounts, backed by
// PostgreSQL through database/sql.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// CreateSchema creates the accounts table and its indexes if missing.
func (s *AccountStore) CreateSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			description VARCHAR(500) NOT NULL DEFAULT '',
			balance NUMERIC(19,2) NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			version BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts (active);
		CREATE INDEX IF NOT EXISTS idx_accounts_name ON accounts (name)`)
	if err != nil {
		return &models.StorageError{Op: "create schema", Err: err}
	}
	return nil
}

// FindByID returns the account with the given id.
func (s *AccountStore) FindByID(id int64) (*models.Account, error) {
	row := s.db.QueryRow(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{IDs: []int64{id}}
	}
	if err != nil {
		return nil, &models.StorageError{Op: "find account by id", Err: err}
	}
	return account, nil
}

// FindByName returns the account with the given name, case-insensitively.
func (s *AccountStore) FindByName(name string) (*models.Account, error) {
	row := s.db.QueryRow(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE UPPER(name) = UPPER($1)`, name)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Name: name}
	}
	if err != nil {
		return nil, &models.StorageError{Op: "find account by name", Err: err}
	}
	return account, nil
}

// FindAll returns every account ordered by id.
func (s *AccountStore) FindAll() ([]*models.Account, error) {
	rows, err := s.db.Query(`
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY id`)
	if err != nil {
		return nil, &models.StorageError{Op: "list accounts", Err: err}
	}
	return collectAccounts(rows, "list accounts")
}

// FindAllActive returns every active account ordered by name.
func (s *AccountStore) FindAllActive() ([]*models.Account, error) {
	rows, err := s.db.Query(`
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE active = TRUE
		ORDER BY name`)
	if err != nil {
		return nil, &models.StorageError{Op: "list active accounts", Err: err}
	}
	return collectAccounts(rows, "list active accounts")
}

// FindByIDsForUpdate fetches the given accounts with an exclusive row lock,
// in a single round trip. IDs are deduplicated and sorted ascending before
// the query so that every transaction requests locks in the same global
// order; this is the deadlock-avoidance invariant for concurrent transfers.
// The result is ordered by ascending id and may contain fewer rows than ids
// when some do not exist.
func (s *AccountStore) FindByIDsForUpdate(tx *sql.Tx, ids []int64) ([]*models.Account, error) {
	sorted := dedupeAndSort(ids)
	if len(sorted) == 0 {
		return nil, nil
	}

	rows, err := tx.Query(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, pq.Array(sorted))
	if err != nil {
		return nil, &models.StorageError{Op: "lock accounts", Err: err}
	}
	return collectAccounts(rows, "lock accounts")
}

// ExistsByName reports whether any account has the given name, case-insensitively.
func (s *AccountStore) ExistsByName(name string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM accounts WHERE UPPER(name) = UPPER($1))`, name).Scan(&exists)
	if err != nil {
		return false, &models.StorageError{Op: "check account name", Err: err}
	}
	return exists, nil
}

// ExistsByID reports whether an account with the given id exists.
func (s *AccountStore) ExistsByID(id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, &models.StorageError{Op: "check account id", Err: err}
	}
	return exists, nil
}

// CountActive returns the number of active accounts.
func (s *AccountStore) CountActive() (int64, error) {
	var count int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM accounts WHERE active = TRUE`).Scan(&count)
	if err != nil {
		return 0, &models.StorageError{Op: "count active accounts", Err: err}
	}
	return count, nil
}

// SumActiveBalances returns the total balance held across active accounts.
func (s *AccountStore) SumActiveBalances() (money.Amount, error) {
	var total money.Amount
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE active = TRUE`).Scan(&total)
	if err != nil {
		return money.Zero(), &models.StorageError{Op: "sum active balances", Err: err}
	}
	return total, nil
}

// Save inserts the account when it has no id yet, otherwise updates it.
// Updates are guarded by the version token: a stale version yields a
// ConcurrencyConflictError instead of silently overwriting a concurrent
// write. This is the optimistic backstop for paths that bypass the
// pessimistic row lock.
func (s *AccountStore) Save(account *models.Account) (*models.Account, error) {
	return s.save(s.db, account)
}

// SaveTx is Save executed inside an open transaction; used by the transfer
// engine so both account updates commit or roll back together.
func (s *AccountStore) SaveTx(tx *sql.Tx, account *models.Account) (*models.Account, error) {
	return s.save(tx, account)
}

// DeleteByID removes an account, failing with NotFoundError when absent.
func (s *AccountStore) DeleteByID(id int64) error {
	result, err := s.db.Exec(`
		DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return &models.StorageError{Op: "delete account", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &models.StorageError{Op: "delete account", Err: err}
	}
	if affected == 0 {
		return &models.NotFoundError{IDs: []int64{id}}
	}
	return nil
}

// querier is the subset of *sql.DB and *sql.Tx the store writes through.
type querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (s *AccountStore) save(q querier, account *models.Account) (*models.Account, error) {
	if account.ID == 0 {
		err := q.QueryRow(`
			INSERT INTO accounts (name, description, balance, active, created_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			account.Name, account.Description, account.Balance, account.Active,
			account.CreatedAt, account.UpdatedAt, account.Version).Scan(&account.ID)
		if err != nil {
			return nil, &models.StorageError{Op: "insert account", Err: err}
		}
		return account, nil
	}

	result, err := q.Exec(`
		UPDATE accounts
		SET name = $1, description = $2, balance = $3, active = $4, updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`,
		account.Name, account.Description, account.Balance, account.Active,
		account.UpdatedAt, account.ID, account.Version)
	if err != nil {
		return nil, &models.StorageError{Op: "update account", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, &models.StorageError{Op: "update account", Err: err}
	}
	if affected == 0 {
		return nil, &models.ConcurrencyConflictError{AccountID: account.ID, Version: account.Version}
	}

	account.Version++
	return account, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Balance, &a.Active,
		&a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAccounts(rows *sql.Rows, op string) ([]*models.Account, error) {
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, &models.StorageError{Op: op, Err: err}
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: op, Err: err}
	}
	return accounts, nil
}

func dedupeAndSort(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	sorted := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}
