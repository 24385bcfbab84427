package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stempel-app/stempel/internal/storage"
)

type ledgerStore struct {
	client *redis.Client
}

// Get retrieves the record for (accountID, date).
func (s *ledgerStore) Get(ctx context.Context, accountID, date string) (*storage.DayRecord, error) {
	data, err := s.client.HGetAll(ctx, recordKey(accountID, date)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get day record: %w", err)
	}
	return parseDayRecord(data)
}

// GetOrCreate returns the record for (accountID, date). The HSETNX on
// the date field claims the key, so two concurrent callers cannot
// create distinct records for the same day.
func (s *ledgerStore) GetOrCreate(ctx context.Context, accountID, date string) (*storage.DayRecord, error) {
	key := recordKey(accountID, date)

	claimed, err := s.client.HSetNX(ctx, key, "date", date).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim day record: %w", err)
	}
	if !claimed {
		return s.Get(ctx, accountID, date)
	}

	record := storage.DayRecord{
		AccountID:    accountID,
		Date:         date,
		Breaks:       []storage.BreakInterval{},
		Status:       storage.DayInactive,
		LastActivity: time.Now(),
	}

	fields, err := recordFields(record)
	if err != nil {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, ledgerDatesKey(accountID), date)
	pipe.SAdd(ctx, keyAccountSet, accountID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store day record: %w", err)
	}

	return &record, nil
}

// Put rewrites the record under its (account, date) key.
func (s *ledgerStore) Put(ctx context.Context, record storage.DayRecord) error {
	record.LastActivity = time.Now()

	fields, err := recordFields(record)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, recordKey(record.AccountID, record.Date), fields)
	pipe.SAdd(ctx, ledgerDatesKey(record.AccountID), record.Date)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put day record: %w", err)
	}

	return nil
}

// ListRange returns the account's records with from <= date <= to in
// ascending date order.
func (s *ledgerStore) ListRange(ctx context.Context, accountID, from, to string) ([]storage.DayRecord, error) {
	dates, err := s.client.SMembers(ctx, ledgerDatesKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list record dates: %w", err)
	}

	sort.Strings(dates)

	records := make([]storage.DayRecord, 0, len(dates))
	for _, date := range dates {
		if date < from || date > to {
			continue
		}
		record, err := s.Get(ctx, accountID, date)
		if err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return nil, err
		}
		records = append(records, *record)
	}

	return records, nil
}

// ListRangeAll returns every account's records with from <= date <= to,
// sorted ascending by date.
func (s *ledgerStore) ListRangeAll(ctx context.Context, from, to string) ([]storage.DayRecord, error) {
	ids, err := s.client.SMembers(ctx, keyAccountSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	records := make([]storage.DayRecord, 0)
	for _, id := range ids {
		perAccount, err := s.ListRange(ctx, id, from, to)
		if err != nil {
			return nil, err
		}
		records = append(records, perAccount...)
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}
