package validation

import (
	"testing"

	types "github.com/usaspending/data-broker/internal/domain"
)

func layoutFor(t *testing.T, ft types.FileType) *headerLayout {
	t.Helper()
	headers, err := canonicalHeaders(ft)
	if err != nil {
		t.Fatalf("canonicalHeaders: %v", err)
	}
	layout, err := resolveHeaders(ft, headers)
	if err != nil {
		t.Fatalf("resolveHeaders: %v", err)
	}
	return layout
}

func record(layout *headerLayout, values map[string]string) []string {
	out := make([]string, len(layout.canonical))
	for i, name := range layout.canonical {
		out[i] = values[name]
	}
	return out
}

func labels(failures []failure) map[string]bool {
	out := make(map[string]bool, len(failures))
	for _, f := range failures {
		out[f.RuleLabel] = true
	}
	return out
}

func TestCheckColumns_CleanRow(t *testing.T) {
	layout := layoutFor(t, types.FileTypeA)
	rec := record(layout, map[string]string{
		"agencyidentifier":            "097",
		"mainaccountcode":             "4930",
		"totalbudgetaryresources_cpe": "1000.50",
		"availabilitytypecode":        "X",
	})
	if failures := checkColumns(types.FileTypeA, layout, rec, 2); len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
}

func TestCheckColumns_RequiredAndType(t *testing.T) {
	layout := layoutFor(t, types.FileTypeA)
	rec := record(layout, map[string]string{
		"agencyidentifier":            "",
		"mainaccountcode":             "4930",
		"totalbudgetaryresources_cpe": "not-a-number",
	})
	got := labels(checkColumns(types.FileTypeA, layout, rec, 3))
	if !got["agencyidentifier_required"] {
		t.Errorf("expected agencyidentifier_required, got %v", got)
	}
	if !got["totalbudgetaryresources_cpe_type"] {
		t.Errorf("expected totalbudgetaryresources_cpe_type, got %v", got)
	}
}

func TestCheckColumns_LengthAndEnum(t *testing.T) {
	layout := layoutFor(t, types.FileTypeA)
	rec := record(layout, map[string]string{
		"agencyidentifier":            "09700",
		"mainaccountcode":             "4930",
		"totalbudgetaryresources_cpe": "0",
		"availabilitytypecode":        "q",
	})
	got := labels(checkColumns(types.FileTypeA, layout, rec, 4))
	if !got["agencyidentifier_length"] {
		t.Errorf("expected agencyidentifier_length, got %v", got)
	}
	if !got["availabilitytypecode_enum"] {
		t.Errorf("expected availabilitytypecode_enum, got %v", got)
	}
}

func TestCheckColumns_DateAndInt(t *testing.T) {
	layout := layoutFor(t, types.FileTypeD2)
	rec := record(layout, map[string]string{
		"recordtype":                "two",
		"awardingagencycode":        "012",
		"awardingsubtieragencycode": "1200",
		"actiondate":                "2024-01-31",
	})
	got := labels(checkColumns(types.FileTypeD2, layout, rec, 2))
	if !got["recordtype_type"] {
		t.Errorf("expected recordtype_type, got %v", got)
	}
	if !got["actiondate_type"] {
		t.Errorf("expected actiondate_type, got %v", got)
	}
}

func TestFatalCount(t *testing.T) {
	failures := []failure{
		{Severity: types.SeverityFatal},
		{Severity: types.SeverityWarning},
		{Severity: types.SeverityFatal},
	}
	if got := fatalCount(failures); got != 2 {
		t.Fatalf("fatalCount = %d, want 2", got)
	}
}
