package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stempel-app/stempel/internal/config"
	"github.com/stempel-app/stempel/internal/storage"
)

// Key layout:
//
//	account:<id>          hash, one account
//	account_emails        hash, email -> account ID
//	accounts              set of account IDs
//	ledger:<id>:<date>    hash, one day record
//	ledger_dates:<id>     set of dates with a record for the account

// Store implements the storage.Store interface using Redis.
type Store struct {
	client   *redis.Client
	accounts *accountStore
	ledger   *ledgerStore
}

// Open creates a new Redis-backed storage instance.
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:   client,
		accounts: &accountStore{client: client},
		ledger:   &ledgerStore{client: client},
	}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Accounts returns the AccountStore implementation.
func (s *Store) Accounts() storage.AccountStore {
	return s.accounts
}

// Ledger returns the LedgerStore implementation.
func (s *Store) Ledger() storage.LedgerStore {
	return s.ledger
}

func accountKey(id string) string            { return "account:" + id }
func recordKey(id, date string) string       { return "ledger:" + id + ":" + date }
func ledgerDatesKey(accountID string) string { return "ledger_dates:" + accountID }

const (
	keyEmailIndex = "account_emails"
	keyAccountSet = "accounts"
)
