package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stempel-app/stempel/internal/storage"
)

// parseAccount converts a Redis hash to an Account.
func parseAccount(data map[string]string) (*storage.Account, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	dailyWorkTime, err := strconv.Atoi(data["daily_work_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse daily_work_time: %w", err)
	}

	lastActive, err := time.Parse(time.RFC3339Nano, data["last_active_date"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_active_date: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	status := storage.AccountStatus(data["status"])
	if status == "" {
		status = storage.AccountInactive
	}

	account := &storage.Account{
		ID:             data["id"],
		Name:           data["name"],
		Email:          data["email"],
		PasswordHash:   data["password_hash"],
		Avatar:         data["avatar"],
		Status:         status,
		DailyWorkTime:  dailyWorkTime,
		LastActiveDate: lastActive,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}

	if raw := data["current_break_start"]; raw != "" {
		breakStart, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current_break_start: %w", err)
		}
		account.CurrentBreakStart = &breakStart
	}

	return account, nil
}

// accountFields converts an Account to a Redis hash.
func accountFields(account storage.Account) map[string]any {
	breakStart := ""
	if account.CurrentBreakStart != nil {
		breakStart = account.CurrentBreakStart.Format(time.RFC3339Nano)
	}

	return map[string]any{
		"id":                  account.ID,
		"name":                account.Name,
		"email":               account.Email,
		"password_hash":       account.PasswordHash,
		"avatar":              account.Avatar,
		"status":              string(account.Status),
		"current_break_start": breakStart,
		"daily_work_time":     strconv.Itoa(account.DailyWorkTime),
		"last_active_date":    account.LastActiveDate.Format(time.RFC3339Nano),
		"created_at":          account.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":          account.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// parseDayRecord converts a Redis hash to a DayRecord.
func parseDayRecord(data map[string]string) (*storage.DayRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	workTime, err := strconv.Atoi(data["work_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse work_time: %w", err)
	}

	totalBreakTime, err := strconv.Atoi(data["total_break_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_break_time: %w", err)
	}

	lastActivity, err := time.Parse(time.RFC3339Nano, data["last_activity"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_activity: %w", err)
	}

	breaks := []storage.BreakInterval{}
	if raw := data["breaks"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &breaks); err != nil {
			return nil, fmt.Errorf("failed to parse breaks: %w", err)
		}
	}

	status := storage.DayStatus(data["status"])
	if status == "" {
		status = storage.DayInactive
	}

	return &storage.DayRecord{
		AccountID:      data["account_id"],
		Date:           data["date"],
		WorkTime:       workTime,
		Breaks:         breaks,
		TotalBreakTime: totalBreakTime,
		Status:         status,
		LastActivity:   lastActivity,
	}, nil
}

// recordFields converts a DayRecord to a Redis hash.
func recordFields(record storage.DayRecord) (map[string]any, error) {
	breaks, err := json.Marshal(record.Breaks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal breaks: %w", err)
	}

	return map[string]any{
		"account_id":       record.AccountID,
		"date":             record.Date,
		"work_time":        strconv.Itoa(record.WorkTime),
		"breaks":           string(breaks),
		"total_break_time": strconv.Itoa(record.TotalBreakTime),
		"status":           string(record.Status),
		"last_activity":    record.LastActivity.Format(time.RFC3339Nano),
	}, nil
}
