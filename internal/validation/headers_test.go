package validation

import (
	"testing"

	types "github.com/usaspending/data-broker/internal/domain"
)

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"\uFEFFAgency Identifier": "agencyidentifier",
		" agency_identifier ":     "agencyidentifier",
		"AGENCYIDENTIFIER":        "agencyidentifier",
		"Flex Field 1":            "flexfield1",
	}
	for in, want := range cases {
		if got := normalizeHeader(in); got != want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveHeaders_FlexAndCaseFolding(t *testing.T) {
	raw := []string{
		"\uFEFFAgency Identifier",
		"Allocation_Transfer_Agency_Identifier",
		"BeginningPeriodOfAvailability",
		"EndingPeriodOfAvailability",
		"AvailabilityTypeCode",
		"MainAccountCode",
		"SubAccountCode",
		"TotalBudgetaryResources_CPE",
		"BudgetAuthorityAppropriatedAmount_CPE",
		"GrossOutlayAmountByTAS_CPE",
		"StatusOfBudgetaryResourcesTotal_CPE",
		"DeobligationsRecoveriesRefundsByTAS_CPE",
		"my custom column",
	}
	layout, err := resolveHeaders(types.FileTypeA, raw)
	if err != nil {
		t.Fatalf("resolveHeaders: %v", err)
	}
	if !layout.structuralOK() {
		t.Fatalf("expected structural pass, missing=%v duplicates=%v", layout.missing, layout.duplicates)
	}
	if layout.canonical[0] != "agencyidentifier" {
		t.Fatalf("column 0 resolved to %q", layout.canonical[0])
	}
	if layout.canonical[12] != "" || layout.flex[12] != "my custom column" {
		t.Fatalf("column 12 should be flex, got canonical=%q flex=%q", layout.canonical[12], layout.flex[12])
	}
	header := layout.decoderHeader()
	if header[0] != "agencyidentifier" || header[12] != "my custom column" {
		t.Fatalf("decoder header wrong: %v", header)
	}
}

func TestResolveHeaders_MissingAndDuplicate(t *testing.T) {
	raw := []string{"agencyidentifier", "agencyidentifier", "mainaccountcode"}
	layout, err := resolveHeaders(types.FileTypeA, raw)
	if err != nil {
		t.Fatalf("resolveHeaders: %v", err)
	}
	if layout.structuralOK() {
		t.Fatal("expected structural failure")
	}
	if len(layout.duplicates) != 1 || layout.duplicates[0] != "agencyidentifier" {
		t.Fatalf("duplicates = %v", layout.duplicates)
	}
	found := false
	for _, name := range layout.missing {
		if name == "totalbudgetaryresources_cpe" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing = %v, expected totalbudgetaryresources_cpe", layout.missing)
	}
}

func TestCanonicalHeaders_UnknownType(t *testing.T) {
	if _, err := canonicalHeaders(types.FileTypeE); err == nil {
		t.Fatal("expected error for non-uploaded file type")
	}
}
