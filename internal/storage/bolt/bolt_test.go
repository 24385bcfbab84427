package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stempel-app/stempel/internal/storage"
)

func TestAccountStoreEmailUniqueness(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	accounts := store.Accounts()

	first := storage.Account{ID: "acc-1", Name: "Alice", Email: "a@x.com", Status: storage.AccountInactive}
	if err := accounts.Create(context.Background(), first); err != nil {
		t.Fatalf("create account: %v", err)
	}

	second := storage.Account{ID: "acc-2", Name: "Other Alice", Email: "A@x.com", Status: storage.AccountInactive}
	if err := accounts.Create(context.Background(), second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	got, err := accounts.GetByEmail(context.Background(), "A@X.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "acc-1" {
		t.Fatalf("expected acc-1, got %s", got.ID)
	}
}

func TestAccountStoreUpdateEmailCollision(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	accounts := store.Accounts()

	for _, account := range []storage.Account{
		{ID: "acc-1", Name: "Alice", Email: "a@x.com"},
		{ID: "acc-2", Name: "Bob", Email: "b@x.com"},
	} {
		if err := accounts.Create(context.Background(), account); err != nil {
			t.Fatalf("create %s: %v", account.ID, err)
		}
	}

	bob, err := accounts.Get(context.Background(), "acc-2")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	bob.Email = "a@x.com"
	if err := accounts.Update(context.Background(), *bob); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for stolen email, got %v", err)
	}

	// Changing to a free email moves the index entry.
	bob.Email = "bob@x.com"
	if err := accounts.Update(context.Background(), *bob); err != nil {
		t.Fatalf("update bob: %v", err)
	}
	if _, err := accounts.GetByEmail(context.Background(), "b@x.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected old email to be released, got %v", err)
	}
	if _, err := accounts.GetByEmail(context.Background(), "bob@x.com"); err != nil {
		t.Fatalf("get by new email: %v", err)
	}
}

func TestZeroStatusRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	account := storage.Account{ID: "acc-1", Name: "Alice", Email: "a@x.com"}
	if err := store.Accounts().Create(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	got, err := store.Accounts().Get(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Status != storage.AccountInactive {
		t.Fatalf("expected zero status to read back as inactive, got %q", got.Status)
	}

	if err := store.Ledger().Put(context.Background(), storage.DayRecord{AccountID: "acc-1", Date: "2025-03-10"}); err != nil {
		t.Fatalf("put record: %v", err)
	}
	record, err := store.Ledger().Get(context.Background(), "acc-1", "2025-03-10")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != storage.DayInactive {
		t.Fatalf("expected zero status to read back as inactive, got %q", record.Status)
	}
}

func TestLedgerStoreGetOrCreateIdempotent(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ledger := store.Ledger()

	first, err := ledger.GetOrCreate(context.Background(), "acc-1", "2025-03-10")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first.Status != storage.DayInactive || first.WorkTime != 0 {
		t.Fatalf("expected zero-valued inactive record, got %+v", first)
	}

	first.WorkTime = 90
	if err := ledger.Put(context.Background(), *first); err != nil {
		t.Fatalf("put record: %v", err)
	}

	second, err := ledger.GetOrCreate(context.Background(), "acc-1", "2025-03-10")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if second.WorkTime != 90 {
		t.Fatalf("expected existing record, got work time %d", second.WorkTime)
	}

	records, err := ledger.ListRange(context.Background(), "acc-1", "2025-03-01", "2025-03-31")
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestLedgerStoreListRange(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ledger := store.Ledger()
	dates := []string{"2025-02-28", "2025-03-01", "2025-03-15", "2025-03-31", "2025-04-01"}

	for _, date := range dates {
		if _, err := ledger.GetOrCreate(context.Background(), "acc-1", date); err != nil {
			t.Fatalf("seed %s: %v", date, err)
		}
	}
	if _, err := ledger.GetOrCreate(context.Background(), "acc-2", "2025-03-10"); err != nil {
		t.Fatalf("seed acc-2: %v", err)
	}

	records, err := ledger.ListRange(context.Background(), "acc-1", "2025-03-01", "2025-03-31")
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records in March, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].Date > records[i].Date {
			t.Fatalf("records not sorted ascending: %s before %s", records[i-1].Date, records[i].Date)
		}
	}

	all, err := ledger.ListRangeAll(context.Background(), "2025-03-01", "2025-03-31")
	if err != nil {
		t.Fatalf("list range all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records across accounts, got %d", len(all))
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stempel.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
