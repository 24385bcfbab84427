package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AccountStatus represents an account's current activity state.
type AccountStatus string

const (
	AccountInactive AccountStatus = "inactive"
	AccountActive   AccountStatus = "active"
	AccountOnBreak  AccountStatus = "break"
)

// UnmarshalJSON implements json.Unmarshaler to normalize and validate
// the status value.
func (s *AccountStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := AccountStatus(strings.ToLower(raw))
	switch normalized {
	case AccountInactive, AccountActive, AccountOnBreak:
		*s = normalized
		return nil
	case "":
		// Zero-value accounts round-trip as inactive.
		*s = AccountInactive
		return nil
	default:
		return fmt.Errorf("invalid account status: %s (must be inactive, active, or break)", raw)
	}
}

// DayStatus represents the state of a daily tracking record.
type DayStatus string

const (
	DayInactive  DayStatus = "inactive"
	DayActive    DayStatus = "active"
	DayOnBreak   DayStatus = "break"
	DayCompleted DayStatus = "completed"
)

// UnmarshalJSON implements json.Unmarshaler to normalize and validate
// the status value.
func (s *DayStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := DayStatus(strings.ToLower(raw))
	switch normalized {
	case DayInactive, DayActive, DayOnBreak, DayCompleted:
		*s = normalized
		return nil
	case "":
		*s = DayInactive
		return nil
	default:
		return fmt.Errorf("invalid day status: %s (must be inactive, active, break, or completed)", raw)
	}
}

// Account represents a registered user.
type Account struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	PasswordHash      string        `json:"password_hash"`
	Avatar            string        `json:"avatar,omitempty"`
	Status            AccountStatus `json:"status"`
	CurrentBreakStart *time.Time    `json:"current_break_start,omitempty"`
	DailyWorkTime     int           `json:"daily_work_time"` // minutes
	LastActiveDate    time.Time     `json:"last_active_date"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Profile is the public view of an account, safe to return to clients.
type Profile struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Avatar            string        `json:"avatar,omitempty"`
	Status            AccountStatus `json:"status"`
	CurrentBreakStart *time.Time    `json:"currentBreakStart,omitempty"`
	DailyWorkTime     int           `json:"dailyWorkTime"`
	LastActiveDate    time.Time     `json:"lastActiveDate"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Profile returns the account's public view with the credential stripped.
func (a *Account) Profile() Profile {
	return Profile{
		ID:                a.ID,
		Name:              a.Name,
		Email:             a.Email,
		Avatar:            a.Avatar,
		Status:            a.Status,
		CurrentBreakStart: a.CurrentBreakStart,
		DailyWorkTime:     a.DailyWorkTime,
		LastActiveDate:    a.LastActiveDate,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// BreakInterval is a single break within a day record. An empty End
// marks the interval as still open.
type BreakInterval struct {
	Start    string `json:"start"`         // HH:mm
	End      string `json:"end,omitempty"` // HH:mm, empty while open
	Duration int    `json:"duration"`      // minutes
}

// Open reports whether the interval has no recorded end time.
func (b *BreakInterval) Open() bool {
	return b.End == ""
}

// DayRecord is the per-account per-day ledger entry of work and break
// time.
type DayRecord struct {
	AccountID      string          `json:"account_id"`
	Date           string          `json:"date"` // YYYY-MM-DD
	WorkTime       int             `json:"work_time"` // minutes
	Breaks         []BreakInterval `json:"breaks"`
	TotalBreakTime int             `json:"total_break_time"` // derived, minutes
	Status         DayStatus       `json:"status"`
	LastActivity   time.Time       `json:"last_activity"`
}

// OpenBreak returns the record's open interval, or nil when every
// interval is closed.
func (r *DayRecord) OpenBreak() *BreakInterval {
	for i := range r.Breaks {
		if r.Breaks[i].Open() {
			return &r.Breaks[i]
		}
	}
	return nil
}
