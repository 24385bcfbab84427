package api

import (
	"regexp"
	"strings"

	"github.com/stempel-app/stempel/internal/tracking"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// rule is one declarative validation constraint. A request handler
// builds its rule set, and validate evaluates every rule so the client
// receives all failures at once instead of the first.
type rule struct {
	field   string
	ok      func() bool
	message string
}

func validate(rules ...rule) []FieldError {
	var errs []FieldError
	for _, r := range rules {
		if !r.ok() {
			errs = append(errs, FieldError{Field: r.field, Message: r.message})
		}
	}
	return errs
}

func nameRule(name string) rule {
	return rule{
		field:   "name",
		ok:      func() bool { n := len(strings.TrimSpace(name)); return n >= 2 && n <= 64 },
		message: "name must be between 2 and 64 characters",
	}
}

func emailRule(email string) rule {
	return rule{
		field:   "email",
		ok:      func() bool { return emailPattern.MatchString(email) },
		message: "email must be a valid address",
	}
}

func passwordRule(field, password string) rule {
	return rule{
		field:   field,
		ok:      func() bool { return len(password) >= 6 },
		message: field + " must be at least 6 characters",
	}
}

func clockRule(field, value string) rule {
	return rule{
		field:   field,
		ok:      func() bool { return tracking.ValidClock(value) },
		message: field + " must be a HH:mm time of day",
	}
}

func dateRule(field, value string) rule {
	return rule{
		field:   field,
		ok:      func() bool { return value == "" || tracking.ValidDate(value) },
		message: field + " must be a YYYY-MM-DD date",
	}
}

func periodRule(value string) rule {
	return rule{
		field: "period",
		ok: func() bool {
			switch value {
			case "", "week", "month", "year":
				return true
			}
			return false
		},
		message: "period must be one of week, month, year",
	}
}

func minutesRule(minutes *int) rule {
	return rule{
		field:   "minutes",
		ok:      func() bool { return minutes != nil && *minutes >= 0 },
		message: "minutes is required and must not be negative",
	}
}

func monthRule(month int) rule {
	return rule{
		field:   "month",
		ok:      func() bool { return month >= 1 && month <= 12 },
		message: "month must be between 1 and 12",
	}
}

func yearRule(year int) rule {
	return rule{
		field:   "year",
		ok:      func() bool { return year >= 2000 && year <= 2200 },
		message: "year must be a four-digit year",
	}
}

// optional skips a rule when the value is absent, for PUT payloads
// where empty means unchanged.
func optional(value string, r rule) rule {
	return rule{
		field:   r.field,
		ok:      func() bool { return value == "" || r.ok() },
		message: r.message,
	}
}
