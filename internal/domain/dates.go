package domain

import (
	"strings"
	"time"
)

// ParseMMDDYYYY parses the user-facing date layout used by upload
// columns and generation requests.
func ParseMMDDYYYY(s string) (time.Time, error) {
	return time.Parse("01/02/2006", strings.TrimSpace(s))
}

// FormatMMDDYYYY renders a date in the same layout.
func FormatMMDDYYYY(t time.Time) string {
	return t.Format("01/02/2006")
}

// ReportingWindow returns the calendar date range a submission's
// fiscal period covers. Period 1 is October of the prior calendar
// year; quarterly submissions span the three months closing at their
// period.
func ReportingWindow(fiscalYear, period int, cadence Cadence) (time.Time, time.Time) {
	endMonth := time.Month((period+8)%12 + 1)
	calendarYear := fiscalYear
	if endMonth >= time.October {
		calendarYear = fiscalYear - 1
	}
	monthStart := time.Date(calendarYear, endMonth, 1, 0, 0, 0, 0, time.UTC)
	end := monthStart.AddDate(0, 1, -1)
	start := monthStart
	if cadence == CadenceQuarterly {
		start = monthStart.AddDate(0, -2, 0)
	}
	return start, end
}
