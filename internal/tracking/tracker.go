package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stempel-app/stempel/internal/storage"
)

var (
	// ErrBreakOpen is returned when a break is started while the day
	// record already has an open interval.
	ErrBreakOpen = errors.New("a break is already open")

	// ErrNoOpenBreak is returned when a break is ended but no open
	// interval exists.
	ErrNoOpenBreak = errors.New("no open break found")
)

// Tracker owns the per-day ledger: break intervals, work time, and the
// aggregation queries over stored records.
type Tracker struct {
	ledger storage.LedgerStore
}

// NewTracker creates a new ledger tracker.
func NewTracker(ledger storage.LedgerStore) *Tracker {
	return &Tracker{ledger: ledger}
}

// Recompute derives the record's total break time from its intervals.
// Every mutating operation runs it before persisting, so the stored
// total always equals the sum of interval durations.
func Recompute(record storage.DayRecord) storage.DayRecord {
	total := 0
	for _, interval := range record.Breaks {
		total += interval.Duration
	}
	record.TotalBreakTime = total
	return record
}

// Today returns the record for the given date, or a zero-valued
// inactive view when none exists. The view is not persisted; records
// are created lazily by the first mutation.
func (t *Tracker) Today(ctx context.Context, accountID, date string) (*storage.DayRecord, error) {
	record, err := t.ledger.Get(ctx, accountID, date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &storage.DayRecord{
				AccountID:    accountID,
				Date:         date,
				Breaks:       []storage.BreakInterval{},
				Status:       storage.DayInactive,
				LastActivity: time.Now(),
			}, nil
		}
		return nil, err
	}
	return record, nil
}

// StartBreak appends a new open interval to the day's record and marks
// it on break. At most one interval may be open at a time.
// carriedWorkTime seeds a freshly created record with the account's
// running daily total.
func (t *Tracker) StartBreak(ctx context.Context, accountID, date, startTime string, carriedWorkTime int) (*storage.DayRecord, error) {
	record, err := t.ledger.GetOrCreate(ctx, accountID, date)
	if err != nil {
		return nil, fmt.Errorf("get day record: %w", err)
	}

	if record.OpenBreak() != nil {
		return nil, ErrBreakOpen
	}

	if record.WorkTime == 0 {
		record.WorkTime = carriedWorkTime
	}

	record.Breaks = append(record.Breaks, storage.BreakInterval{Start: startTime})
	record.Status = storage.DayOnBreak

	updated := Recompute(*record)
	if err := t.ledger.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("put day record: %w", err)
	}

	return &updated, nil
}

// EndBreak closes the day's open interval. The duration is clamped at
// zero when the end time precedes the start. The record completes when
// every interval is closed; the recompute is defensive about another
// interval still being open.
func (t *Tracker) EndBreak(ctx context.Context, accountID, date, endTime string) (*storage.DayRecord, error) {
	record, err := t.ledger.Get(ctx, accountID, date)
	if err != nil {
		return nil, err
	}

	open := record.OpenBreak()
	if open == nil {
		return nil, ErrNoOpenBreak
	}

	startMinutes, err := ClockToMinutes(open.Start)
	if err != nil {
		return nil, err
	}
	endMinutes, err := ClockToMinutes(endTime)
	if err != nil {
		return nil, err
	}

	open.End = endTime
	open.Duration = endMinutes - startMinutes
	if open.Duration < 0 {
		open.Duration = 0
	}

	if record.OpenBreak() == nil {
		record.Status = storage.DayCompleted
	} else {
		record.Status = storage.DayOnBreak
	}

	updated := Recompute(*record)
	if err := t.ledger.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("put day record: %w", err)
	}

	return &updated, nil
}

// SetWorkTime mirrors the account's running daily total into the day's
// record and marks it active.
func (t *Tracker) SetWorkTime(ctx context.Context, accountID, date string, totalMinutes int) (*storage.DayRecord, error) {
	record, err := t.ledger.GetOrCreate(ctx, accountID, date)
	if err != nil {
		return nil, fmt.Errorf("get day record: %w", err)
	}

	record.WorkTime = totalMinutes
	record.Status = storage.DayActive

	updated := Recompute(*record)
	if err := t.ledger.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("put day record: %w", err)
	}

	return &updated, nil
}

// PeriodStats aggregates an account's records over a stats period.
type PeriodStats struct {
	Period             string             `json:"period"`
	StartDate          string             `json:"startDate"`
	EndDate            string             `json:"endDate"`
	TotalWorkTime      int                `json:"totalWorkTime"`
	TotalBreakTime     int                `json:"totalBreakTime"`
	TotalDays          int                `json:"totalDays"`
	AverageWorkTime    int                `json:"averageWorkTime"`
	AverageBreakTime   int                `json:"averageBreakTime"`
	MostProductiveDay  *storage.DayRecord `json:"mostProductiveDay"`
	LeastProductiveDay *storage.DayRecord `json:"leastProductiveDay"`
}

// Stats folds the account's records over the period ending at now.
// Most and least productive days are picked by work time; ties go to
// the earliest date, since records arrive in ascending date order and
// only a strictly better value replaces the pick.
func (t *Tracker) Stats(ctx context.Context, accountID, period string, now time.Time) (*PeriodStats, error) {
	from, to := periodRange(period, now)

	records, err := t.ledger.ListRange(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	stats := &PeriodStats{
		Period:    period,
		StartDate: from,
		EndDate:   to,
		TotalDays: len(records),
	}

	if len(records) == 0 {
		return stats, nil
	}

	maxIdx, minIdx := 0, 0
	for i, record := range records {
		stats.TotalWorkTime += record.WorkTime
		stats.TotalBreakTime += record.TotalBreakTime

		if record.WorkTime > records[maxIdx].WorkTime {
			maxIdx = i
		}
		if record.WorkTime < records[minIdx].WorkTime {
			minIdx = i
		}
	}

	stats.AverageWorkTime = roundedAverage(stats.TotalWorkTime, len(records))
	stats.AverageBreakTime = roundedAverage(stats.TotalBreakTime, len(records))
	stats.MostProductiveDay = &records[maxIdx]
	stats.LeastProductiveDay = &records[minIdx]

	return stats, nil
}

// MonthlyFor returns the account's records for a calendar month,
// sorted ascending by date.
func (t *Tracker) MonthlyFor(ctx context.Context, accountID string, year int, month time.Month) ([]storage.DayRecord, error) {
	from, to := monthRange(year, month)
	return t.ledger.ListRange(ctx, accountID, from, to)
}

// MonthlyAll returns every account's records for a calendar month,
// keyed by account ID.
func (t *Tracker) MonthlyAll(ctx context.Context, year int, month time.Month) (map[string][]storage.DayRecord, error) {
	from, to := monthRange(year, month)

	records, err := t.ledger.ListRangeAll(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[string][]storage.DayRecord)
	for _, record := range records {
		byAccount[record.AccountID] = append(byAccount[record.AccountID], record)
	}
	return byAccount, nil
}

func roundedAverage(total, count int) int {
	return int(math.Round(float64(total) / float64(count)))
}
