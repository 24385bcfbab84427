package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stempel-app/stempel/internal/storage"
)

type accountStore struct {
	client *redis.Client
}

// Get retrieves an account by ID.
func (s *accountStore) Get(ctx context.Context, id string) (*storage.Account, error) {
	data, err := s.client.HGetAll(ctx, accountKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return parseAccount(data)
}

// GetByEmail retrieves an account through the email index.
func (s *accountStore) GetByEmail(ctx context.Context, email string) (*storage.Account, error) {
	id, err := s.client.HGet(ctx, keyEmailIndex, normalizeEmail(email)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve email: %w", err)
	}
	return s.Get(ctx, id)
}

// List retrieves all accounts sorted by name.
func (s *accountStore) List(ctx context.Context) ([]storage.Account, error) {
	ids, err := s.client.SMembers(ctx, keyAccountSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list account IDs: %w", err)
	}

	accounts := make([]storage.Account, 0, len(ids))
	for _, id := range ids {
		account, err := s.Get(ctx, id)
		if err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return nil, err
		}
		accounts = append(accounts, *account)
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// Create stores a new account. The email claim uses HSETNX so two
// concurrent registrations with the same email cannot both succeed.
func (s *accountStore) Create(ctx context.Context, account storage.Account) error {
	account.Email = normalizeEmail(account.Email)

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	claimed, err := s.client.HSetNX(ctx, keyEmailIndex, account.Email, account.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to claim email: %w", err)
	}
	if !claimed {
		return storage.ErrConflict
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, accountKey(account.ID), accountFields(account))
	pipe.SAdd(ctx, keyAccountSet, account.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store account: %w", err)
	}

	return nil
}

// Update rewrites an existing account, moving the email index entry
// when the email changed.
func (s *accountStore) Update(ctx context.Context, account storage.Account) error {
	account.Email = normalizeEmail(account.Email)
	account.UpdatedAt = time.Now()

	previous, err := s.Get(ctx, account.ID)
	if err != nil {
		return err
	}

	if previous.Email != account.Email {
		owner, err := s.client.HGet(ctx, keyEmailIndex, account.Email).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("failed to check email owner: %w", err)
		}
		if err == nil && owner != account.ID {
			return storage.ErrConflict
		}

		pipe := s.client.TxPipeline()
		pipe.HDel(ctx, keyEmailIndex, previous.Email)
		pipe.HSet(ctx, keyEmailIndex, account.Email, account.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to move email index: %w", err)
		}
	}

	if err := s.client.HSet(ctx, accountKey(account.ID), accountFields(account)).Err(); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
