package bolt

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stempel-app/stempel/internal/storage"
	"go.etcd.io/bbolt"
)

type ledgerStore struct {
	db *bbolt.DB
}

// Get retrieves the record for (accountID, date).
func (s *ledgerStore) Get(ctx context.Context, accountID, date string) (*storage.DayRecord, error) {
	return getBucketValue[storage.DayRecord](ctx, s.db, bucketLedger, ledgerKey(accountID, date))
}

// GetOrCreate returns the record for (accountID, date), creating a
// zero-valued inactive record under the composite key when none exists.
// The key claim and the write happen in one transaction, so two callers
// cannot create distinct records for the same day.
func (s *ledgerStore) GetOrCreate(ctx context.Context, accountID, date string) (*storage.DayRecord, error) {
	var record storage.DayRecord

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketLedger))
		if b == nil {
			return fmt.Errorf("ledger bucket missing")
		}

		key := []byte(ledgerKey(accountID, date))
		if existing := b.Get(key); existing != nil {
			return unmarshal(existing, &record)
		}

		record = storage.DayRecord{
			AccountID:    accountID,
			Date:         date,
			Breaks:       []storage.BreakInterval{},
			Status:       storage.DayInactive,
			LastActivity: time.Now(),
		}
		data, err := marshal(record)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})

	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Put rewrites the record under its (account, date) key.
func (s *ledgerStore) Put(ctx context.Context, record storage.DayRecord) error {
	record.LastActivity = time.Now()

	data, err := marshal(record)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketLedger))
		if b == nil {
			return fmt.Errorf("ledger bucket missing")
		}
		return b.Put([]byte(ledgerKey(record.AccountID, record.Date)), data)
	})
}

// ListRange returns the account's records with from <= date <= to in
// ascending date order. Keys under one account prefix sort by date, so
// a cursor seek covers the range without a full scan.
func (s *ledgerStore) ListRange(ctx context.Context, accountID, from, to string) ([]storage.DayRecord, error) {
	records := make([]storage.DayRecord, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		if b == nil {
			return nil
		}

		prefix := []byte(accountID + "/")
		start := []byte(ledgerKey(accountID, from))
		end := []byte(ledgerKey(accountID, to))

		c := b.Cursor()
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, prefix) && bytes.Compare(k, end) <= 0; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var record storage.DayRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListRangeAll returns every account's records with from <= date <= to,
// sorted ascending by date.
func (s *ledgerStore) ListRangeAll(ctx context.Context, from, to string) ([]storage.DayRecord, error) {
	records := make([]storage.DayRecord, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_, date, ok := splitLedgerKey(string(k))
			if !ok || date < from || date > to {
				return nil
			}
			var record storage.DayRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

func splitLedgerKey(key string) (accountID, date string, ok bool) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
