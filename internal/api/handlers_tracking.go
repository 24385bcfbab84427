package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/stempel-app/stempel/internal/metrics"
	"github.com/stempel-app/stempel/internal/storage"
	"github.com/stempel-app/stempel/internal/tracking"
)

func today() string {
	return time.Now().Format(tracking.DateFormat)
}

func (s *Server) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req startBreakRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if errs := validate(clockRule("startTime", req.StartTime)); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	// The account transition guards the operation; the ledger append
	// follows so account state and open interval stay in step.
	account, err := s.auth.StartBreak(r.Context(), accountID)
	if err != nil {
		s.writeServiceError(w, err, "start break")
		return
	}

	record, err := s.tracker.StartBreak(r.Context(), accountID, today(), req.StartTime, account.DailyWorkTime)
	if err != nil {
		// The ledger append failed; undo the account transition so the
		// two stay in step.
		if _, endErr := s.auth.EndBreak(r.Context(), accountID); endErr != nil {
			s.logger.Error().Err(endErr).Str("account", accountID).Msg("Failed to revert break state")
		}
		s.writeServiceError(w, err, "start break")
		return
	}

	metrics.BreaksStartedTotal.Inc()

	writeSuccess(w, http.StatusOK, "Break started", map[string]interface{}{
		"user":   account.Profile(),
		"record": record,
	})
}

func (s *Server) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req endBreakRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if errs := validate(clockRule("endTime", req.EndTime)); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	// Close the ledger interval before touching the account, so a
	// missing or already-closed record leaves the account state alone.
	record, err := s.tracker.EndBreak(r.Context(), accountID, today(), req.EndTime)
	if err != nil {
		s.writeServiceError(w, err, "end break")
		return
	}

	account, err := s.auth.EndBreak(r.Context(), accountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account", accountID).Msg("Account and ledger break state out of step")
		s.writeServiceError(w, err, "end break")
		return
	}

	metrics.BreaksEndedTotal.Inc()

	writeSuccess(w, http.StatusOK, "Break ended", map[string]interface{}{
		"user":   account.Profile(),
		"record": record,
	})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	date := r.URL.Query().Get("date")
	if errs := validate(dateRule("date", date)); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}
	if date == "" {
		date = today()
	}

	account, err := s.auth.Account(r.Context(), accountID)
	if err != nil {
		s.writeServiceError(w, err, "today")
		return
	}

	record, err := s.tracker.Today(r.Context(), accountID, date)
	if err != nil {
		s.writeServiceError(w, err, "today")
		return
	}

	writeSuccess(w, http.StatusOK, "Daily record", map[string]interface{}{
		"user":   account.Profile(),
		"record": record,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	period := r.URL.Query().Get("period")
	if errs := validate(periodRule(period)); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}
	if period == "" {
		period = "week"
	}

	stats, err := s.tracker.Stats(r.Context(), accountID, period, time.Now())
	if err != nil {
		s.writeServiceError(w, err, "stats")
		return
	}

	writeSuccess(w, http.StatusOK, "Period statistics", map[string]interface{}{
		"stats": stats,
	})
}

func (s *Server) handleWorkTime(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req workTimeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if errs := validate(minutesRule(req.Minutes)); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	account, err := s.auth.AddWorkTime(r.Context(), accountID, *req.Minutes)
	if err != nil {
		s.writeServiceError(w, err, "work time")
		return
	}

	// The day's record mirrors the account's accumulated total.
	record, err := s.tracker.SetWorkTime(r.Context(), accountID, today(), account.DailyWorkTime)
	if err != nil {
		s.writeServiceError(w, err, "work time")
		return
	}

	metrics.WorkTimeUpdatesTotal.Inc()

	writeSuccess(w, http.StatusOK, "Work time updated", map[string]interface{}{
		"user":   account.Profile(),
		"record": record,
	})
}

// monthParams reads the month/year query parameters, defaulting to the
// current calendar month.
func monthParams(r *http.Request) (int, time.Month, []FieldError) {
	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	var parseErrs []FieldError
	if raw := r.URL.Query().Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			parseErrs = append(parseErrs, FieldError{Field: "year", Message: "year must be a number"})
		} else {
			year = v
		}
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			parseErrs = append(parseErrs, FieldError{Field: "month", Message: "month must be a number"})
		} else {
			month = v
		}
	}
	if len(parseErrs) > 0 {
		return 0, 0, parseErrs
	}

	if errs := validate(monthRule(month), yearRule(year)); len(errs) > 0 {
		return 0, 0, errs
	}
	return year, time.Month(month), nil
}

func (s *Server) handleUserMonthly(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountID"]

	year, month, errs := monthParams(r)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	account, err := s.auth.Account(r.Context(), accountID)
	if err != nil {
		s.writeServiceError(w, err, "user monthly")
		return
	}

	records, err := s.tracker.MonthlyFor(r.Context(), accountID, year, month)
	if err != nil {
		s.writeServiceError(w, err, "user monthly")
		return
	}

	writeSuccess(w, http.StatusOK, "Monthly records", map[string]interface{}{
		"user":    account.Profile(),
		"year":    year,
		"month":   int(month),
		"records": records,
		"count":   len(records),
	})
}

// monthlyGroup is one account's slice of the all-accounts monthly view.
type monthlyGroup struct {
	Name    string              `json:"name"`
	Email   string              `json:"email"`
	Records []storage.DayRecord `json:"records"`
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	year, month, errs := monthParams(r)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	byAccount, err := s.tracker.MonthlyAll(r.Context(), year, month)
	if err != nil {
		s.writeServiceError(w, err, "monthly")
		return
	}

	accounts, err := s.auth.ListAccounts(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "monthly")
		return
	}

	groups := make([]monthlyGroup, 0, len(accounts))
	for i := range accounts {
		records, ok := byAccount[accounts[i].ID]
		if !ok {
			continue
		}
		groups = append(groups, monthlyGroup{
			Name:    accounts[i].Name,
			Email:   accounts[i].Email,
			Records: records,
		})
	}

	writeSuccess(w, http.StatusOK, "Monthly records", map[string]interface{}{
		"year":  year,
		"month": int(month),
		"users": groups,
	})
}
