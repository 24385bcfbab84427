package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrConflict is returned when a write would violate a uniqueness
// constraint (duplicate account email, duplicate day record).
var ErrConflict = errors.New("storage: record already exists")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Accounts() AccountStore
	Ledger() LedgerStore
}

// AccountStore manages user accounts.
type AccountStore interface {
	Get(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	// Create stores a new account. It fails with ErrConflict when the
	// email is already registered.
	Create(ctx context.Context, account Account) error
	// Update rewrites an existing account. It fails with ErrConflict
	// when the account's email collides with a different account.
	Update(ctx context.Context, account Account) error
}

// LedgerStore manages per-account per-day tracking records.
// A record is keyed by (account ID, date); the store enforces that at
// most one record exists per key.
type LedgerStore interface {
	Get(ctx context.Context, accountID, date string) (*DayRecord, error)
	// GetOrCreate returns the record for (accountID, date), creating a
	// zero-valued inactive record when none exists. Idempotent.
	GetOrCreate(ctx context.Context, accountID, date string) (*DayRecord, error)
	Put(ctx context.Context, record DayRecord) error
	// ListRange returns the account's records with from <= date <= to,
	// sorted ascending by date.
	ListRange(ctx context.Context, accountID, from, to string) ([]DayRecord, error)
	// ListRangeAll is ListRange fanned out over every account.
	ListRangeAll(ctx context.Context, from, to string) ([]DayRecord, error)
}
