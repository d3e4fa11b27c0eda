package validation

import (
	"strings"
	"testing"

	types "github.com/usaspending/data-broker/internal/domain"
)

func TestReportWriter(t *testing.T) {
	rw := newReportWriter()
	rw.add(failure{
		RowNumber: 2,
		Header:    "agencyidentifier",
		RuleLabel: "agencyidentifier_required",
		Message:   "Required field agencyidentifier is missing",
		Severity:  types.SeverityFatal,
	}, "note: abc")
	raw, err := rw.bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Row Number,") {
		t.Fatalf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "agencyidentifier_required") || !strings.Contains(lines[1], "note: abc") {
		t.Fatalf("detail line = %q", lines[1])
	}
	if rw.rows != 1 {
		t.Fatalf("rows = %d", rw.rows)
	}
}

func TestFlexIndexRender(t *testing.T) {
	fi := flexIndex{}
	fi.add(&types.FlexField{RowNumber: 2, Header: "zeta", Value: "2"})
	fi.add(&types.FlexField{RowNumber: 2, Header: "alpha", Value: "1"})
	if got, want := fi.render(2), "alpha: 1; zeta: 2"; got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
	if fi.render(3) != "" {
		t.Fatal("expected empty render for row with no flex fields")
	}
}
