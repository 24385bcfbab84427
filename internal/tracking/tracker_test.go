package tracking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stempel-app/stempel/internal/storage"
	"github.com/stempel-app/stempel/internal/storage/bolt"
)

func newTestTracker(t *testing.T) (*Tracker, storage.LedgerStore) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stempel.bolt")
	store, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewTracker(store.Ledger()), store.Ledger()
}

func TestTodayReturnsZeroViewWithoutPersisting(t *testing.T) {
	tracker, ledger := newTestTracker(t)
	ctx := context.Background()

	record, err := tracker.Today(ctx, "acc-1", "2026-03-02")
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if record.Status != storage.DayInactive {
		t.Errorf("status = %q, want %q", record.Status, storage.DayInactive)
	}
	if record.WorkTime != 0 || record.TotalBreakTime != 0 || len(record.Breaks) != 0 {
		t.Errorf("zero view not empty: %+v", record)
	}

	if _, err := ledger.Get(ctx, "acc-1", "2026-03-02"); err != storage.ErrNotFound {
		t.Errorf("Get after Today = %v, want ErrNotFound", err)
	}
}

func TestBreakLifecycle(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	record, err := tracker.StartBreak(ctx, "acc-1", "2026-03-02", "09:00", 0)
	if err != nil {
		t.Fatalf("start break: %v", err)
	}
	if record.Status != storage.DayOnBreak {
		t.Errorf("status after start = %q, want %q", record.Status, storage.DayOnBreak)
	}
	if record.OpenBreak() == nil {
		t.Fatal("no open break after start")
	}

	if _, err := tracker.StartBreak(ctx, "acc-1", "2026-03-02", "09:05", 0); err != ErrBreakOpen {
		t.Errorf("second start = %v, want ErrBreakOpen", err)
	}

	record, err = tracker.EndBreak(ctx, "acc-1", "2026-03-02", "09:30")
	if err != nil {
		t.Fatalf("end break: %v", err)
	}
	if record.Status != storage.DayCompleted {
		t.Errorf("status after end = %q, want %q", record.Status, storage.DayCompleted)
	}
	if got := record.Breaks[0].Duration; got != 30 {
		t.Errorf("duration = %d, want 30", got)
	}
	if record.TotalBreakTime != 30 {
		t.Errorf("total break time = %d, want 30", record.TotalBreakTime)
	}

	if _, err := tracker.EndBreak(ctx, "acc-1", "2026-03-02", "10:00"); err != ErrNoOpenBreak {
		t.Errorf("end without open = %v, want ErrNoOpenBreak", err)
	}
}

func TestEndBreakClampsNegativeDuration(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	if _, err := tracker.StartBreak(ctx, "acc-1", "2026-03-02", "14:00", 0); err != nil {
		t.Fatalf("start break: %v", err)
	}
	record, err := tracker.EndBreak(ctx, "acc-1", "2026-03-02", "13:45")
	if err != nil {
		t.Fatalf("end break: %v", err)
	}
	if record.Breaks[0].Duration != 0 {
		t.Errorf("duration = %d, want 0", record.Breaks[0].Duration)
	}
}

func TestStartBreakCarriesWorkTime(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	record, err := tracker.StartBreak(ctx, "acc-1", "2026-03-02", "11:00", 120)
	if err != nil {
		t.Fatalf("start break: %v", err)
	}
	if record.WorkTime != 120 {
		t.Errorf("work time = %d, want 120", record.WorkTime)
	}
}

func TestRecomputeSumsIntervals(t *testing.T) {
	record := storage.DayRecord{
		Breaks: []storage.BreakInterval{
			{Start: "09:00", End: "09:15", Duration: 15},
			{Start: "12:00", End: "12:45", Duration: 45},
		},
		TotalBreakTime: 7, // stale on purpose
	}

	record = Recompute(record)
	if record.TotalBreakTime != 60 {
		t.Errorf("total break time = %d, want 60", record.TotalBreakTime)
	}
}

func TestSetWorkTime(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	record, err := tracker.SetWorkTime(ctx, "acc-1", "2026-03-02", 90)
	if err != nil {
		t.Fatalf("set work time: %v", err)
	}
	if record.WorkTime != 90 {
		t.Errorf("work time = %d, want 90", record.WorkTime)
	}
	if record.Status != storage.DayActive {
		t.Errorf("status = %q, want %q", record.Status, storage.DayActive)
	}
}

func TestStats(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	now := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)
	days := []struct {
		date     string
		workTime int
	}{
		{"2026-03-02", 10},
		{"2026-03-03", 50},
		{"2026-03-04", 30},
	}
	for _, d := range days {
		if _, err := tracker.SetWorkTime(ctx, "acc-1", d.date, d.workTime); err != nil {
			t.Fatalf("set work time %s: %v", d.date, err)
		}
	}

	stats, err := tracker.Stats(ctx, "acc-1", "week", now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if stats.TotalDays != 3 {
		t.Errorf("total days = %d, want 3", stats.TotalDays)
	}
	if stats.TotalWorkTime != 90 {
		t.Errorf("total work time = %d, want 90", stats.TotalWorkTime)
	}
	if stats.AverageWorkTime != 30 {
		t.Errorf("average work time = %d, want 30", stats.AverageWorkTime)
	}
	if stats.MostProductiveDay == nil || stats.MostProductiveDay.WorkTime != 50 {
		t.Errorf("most productive = %+v, want work time 50", stats.MostProductiveDay)
	}
	if stats.LeastProductiveDay == nil || stats.LeastProductiveDay.WorkTime != 10 {
		t.Errorf("least productive = %+v, want work time 10", stats.LeastProductiveDay)
	}
}

func TestStatsTieKeepsEarliestDay(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	now := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)
	for _, date := range []string{"2026-03-02", "2026-03-03"} {
		if _, err := tracker.SetWorkTime(ctx, "acc-1", date, 40); err != nil {
			t.Fatalf("set work time %s: %v", date, err)
		}
	}

	stats, err := tracker.Stats(ctx, "acc-1", "week", now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MostProductiveDay.Date != "2026-03-02" {
		t.Errorf("most productive date = %s, want 2026-03-02", stats.MostProductiveDay.Date)
	}
	if stats.LeastProductiveDay.Date != "2026-03-02" {
		t.Errorf("least productive date = %s, want 2026-03-02", stats.LeastProductiveDay.Date)
	}
}

func TestStatsEmptyPeriod(t *testing.T) {
	tracker, _ := newTestTracker(t)

	stats, err := tracker.Stats(context.Background(), "acc-1", "month", time.Now())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDays != 0 || stats.AverageWorkTime != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
	if stats.MostProductiveDay != nil {
		t.Error("most productive set for empty period")
	}
}

func TestStatsAverageRounding(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	now := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)
	for i, workTime := range []int{10, 11} { // average 10.5 rounds up
		date := time.Date(2026, time.March, 2+i, 0, 0, 0, 0, time.UTC).Format(DateFormat)
		if _, err := tracker.SetWorkTime(ctx, "acc-1", date, workTime); err != nil {
			t.Fatalf("set work time: %v", err)
		}
	}

	stats, err := tracker.Stats(ctx, "acc-1", "week", now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AverageWorkTime != 11 {
		t.Errorf("average work time = %d, want 11", stats.AverageWorkTime)
	}
}

func TestMonthlyFor(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	dates := []string{"2026-01-31", "2026-02-01", "2026-02-28", "2026-03-01"}
	for _, date := range dates {
		if _, err := tracker.SetWorkTime(ctx, "acc-1", date, 60); err != nil {
			t.Fatalf("set work time %s: %v", date, err)
		}
	}

	records, err := tracker.MonthlyFor(ctx, "acc-1", 2026, time.February)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Date != "2026-02-01" || records[1].Date != "2026-02-28" {
		t.Errorf("dates = %s, %s", records[0].Date, records[1].Date)
	}
}

func TestMonthlyAllGroupsByAccount(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	if _, err := tracker.SetWorkTime(ctx, "acc-1", "2026-02-10", 60); err != nil {
		t.Fatalf("set work time: %v", err)
	}
	if _, err := tracker.SetWorkTime(ctx, "acc-2", "2026-02-11", 45); err != nil {
		t.Fatalf("set work time: %v", err)
	}

	byAccount, err := tracker.MonthlyAll(ctx, 2026, time.February)
	if err != nil {
		t.Fatalf("monthly all: %v", err)
	}
	if len(byAccount) != 2 {
		t.Fatalf("got %d accounts, want 2", len(byAccount))
	}
	if len(byAccount["acc-1"]) != 1 || len(byAccount["acc-2"]) != 1 {
		t.Errorf("grouping wrong: %+v", byAccount)
	}
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		from  string
		to    string
	}{
		{2026, time.February, "2026-02-01", "2026-02-28"},
		{2024, time.February, "2024-02-01", "2024-02-29"},
		{2026, time.April, "2026-04-01", "2026-04-30"},
		{2026, time.December, "2026-12-01", "2026-12-31"},
	}
	for _, tc := range tests {
		from, to := monthRange(tc.year, tc.month)
		if from != tc.from || to != tc.to {
			t.Errorf("monthRange(%d, %s) = %s..%s, want %s..%s",
				tc.year, tc.month, from, to, tc.from, tc.to)
		}
	}
}

func TestClockConversion(t *testing.T) {
	minutes, err := ClockToMinutes("09:30")
	if err != nil {
		t.Fatalf("clock to minutes: %v", err)
	}
	if minutes != 570 {
		t.Errorf("minutes = %d, want 570", minutes)
	}
	if got := MinutesToClock(570); got != "09:30" {
		t.Errorf("clock = %s, want 09:30", got)
	}

	if _, err := ClockToMinutes("25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
	if ValidClock("9:60") {
		t.Error("9:60 accepted")
	}
	if !ValidClock("23:59") {
		t.Error("23:59 rejected")
	}
}
