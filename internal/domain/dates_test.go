package domain

import (
	"testing"
	"time"
)

func TestParseMMDDYYYY(t *testing.T) {
	got, err := ParseMMDDYYYY("01/31/2024")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Year() != 2024 || got.Month() != 1 || got.Day() != 31 {
		t.Fatalf("parsed %v", got)
	}

	for _, bad := range []string{"", "2024-01-31", "13/01/2024", "1/31/24", "02/30/2024"} {
		if _, err := ParseMMDDYYYY(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestReportingWindow(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	cases := []struct {
		year, period int
		cadence      Cadence
		start, end   time.Time
	}{
		// Period 1 is October of the prior calendar year.
		{2024, 1, CadenceMonthly, day(2023, time.October, 1), day(2023, time.October, 31)},
		{2024, 4, CadenceMonthly, day(2024, time.January, 1), day(2024, time.January, 31)},
		{2024, 12, CadenceMonthly, day(2024, time.September, 1), day(2024, time.September, 30)},
		// A quarter spans the three months closing at its period.
		{2024, 6, CadenceQuarterly, day(2024, time.January, 1), day(2024, time.March, 31)},
		{2024, 3, CadenceQuarterly, day(2023, time.October, 1), day(2023, time.December, 31)},
	}
	for _, tc := range cases {
		start, end := ReportingWindow(tc.year, tc.period, tc.cadence)
		if !start.Equal(tc.start) || !end.Equal(tc.end) {
			t.Errorf("window(%d, %d, %s) = %s to %s, want %s to %s",
				tc.year, tc.period, tc.cadence, start, end, tc.start, tc.end)
		}
	}
}
