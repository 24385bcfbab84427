package bolt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stempel-app/stempel/internal/storage"
	"go.etcd.io/bbolt"
)

type accountStore struct {
	db *bbolt.DB
}

// Get retrieves an account by ID.
func (s *accountStore) Get(ctx context.Context, id string) (*storage.Account, error) {
	return getBucketValue[storage.Account](ctx, s.db, bucketAccounts, id)
}

// GetByEmail retrieves an account through the email index.
func (s *accountStore) GetByEmail(ctx context.Context, email string) (*storage.Account, error) {
	var account storage.Account

	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		index := tx.Bucket([]byte(bucketEmailIndex))
		if index == nil {
			return storage.ErrNotFound
		}
		id := index.Get([]byte(normalizeEmail(email)))
		if id == nil {
			return storage.ErrNotFound
		}

		accounts := tx.Bucket([]byte(bucketAccounts))
		if accounts == nil {
			return storage.ErrNotFound
		}
		data := accounts.Get(id)
		if data == nil {
			return storage.ErrNotFound
		}
		return unmarshal(data, &account)
	})

	if err != nil {
		return nil, err
	}

	return &account, nil
}

// List retrieves all accounts sorted by name.
func (s *accountStore) List(ctx context.Context) ([]storage.Account, error) {
	var accounts []storage.Account

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAccounts))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var account storage.Account
			if err := unmarshal(v, &account); err != nil {
				return err
			}
			accounts = append(accounts, account)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// Create stores a new account, claiming its email in the index. Fails
// with ErrConflict when the email is already registered.
func (s *accountStore) Create(ctx context.Context, account storage.Account) error {
	account.Email = normalizeEmail(account.Email)

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		index := tx.Bucket([]byte(bucketEmailIndex))
		if index == nil {
			return fmt.Errorf("email index bucket missing")
		}
		if index.Get([]byte(account.Email)) != nil {
			return storage.ErrConflict
		}

		accounts := tx.Bucket([]byte(bucketAccounts))
		if accounts == nil {
			return fmt.Errorf("accounts bucket missing")
		}

		data, err := marshal(account)
		if err != nil {
			return err
		}
		if err := accounts.Put([]byte(account.ID), data); err != nil {
			return err
		}
		return index.Put([]byte(account.Email), []byte(account.ID))
	})
}

// Update rewrites an existing account, moving its email index entry
// when the email changed. Fails with ErrConflict when the new email
// belongs to a different account.
func (s *accountStore) Update(ctx context.Context, account storage.Account) error {
	account.Email = normalizeEmail(account.Email)
	account.UpdatedAt = time.Now()

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		accounts := tx.Bucket([]byte(bucketAccounts))
		if accounts == nil {
			return fmt.Errorf("accounts bucket missing")
		}
		existing := accounts.Get([]byte(account.ID))
		if existing == nil {
			return storage.ErrNotFound
		}

		var previous storage.Account
		if err := unmarshal(existing, &previous); err != nil {
			return err
		}

		index := tx.Bucket([]byte(bucketEmailIndex))
		if index == nil {
			return fmt.Errorf("email index bucket missing")
		}

		if previous.Email != account.Email {
			if owner := index.Get([]byte(account.Email)); owner != nil && string(owner) != account.ID {
				return storage.ErrConflict
			}
			if err := index.Delete([]byte(previous.Email)); err != nil {
				return err
			}
			if err := index.Put([]byte(account.Email), []byte(account.ID)); err != nil {
				return err
			}
		}

		data, err := marshal(account)
		if err != nil {
			return err
		}
		return accounts.Put([]byte(account.ID), data)
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
