package subawards

import (
	"testing"

	types "github.com/usaspending/data-broker/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestContractAwardKey(t *testing.T) {
	prime := &types.PrimeContract{
		ContractNumber:     "w912dy-20-d-0034",
		ContractAgencyCode: "2100",
		IDVReferenceNumber: strPtr("gs-00f-0001"),
	}
	want := "CONT_AWD_W912DY20D0034_2100_GS00F0001_-NONE-"
	if got := contractAwardKey(prime); got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}

	prime.IDVReferenceNumber = nil
	want = "CONT_AWD_W912DY20D0034_2100_-NONE-_-NONE-"
	if got := contractAwardKey(prime); got != want {
		t.Fatalf("key without idv = %q, want %q", got, want)
	}

	if contractAwardKey(&types.PrimeContract{ContractAgencyCode: "2100"}) != "" {
		t.Fatal("expected empty key without a contract number")
	}
}

func TestGrantAwardKey(t *testing.T) {
	prime := &types.PrimeGrant{
		FAIN:            "fai-n01",
		FederalAgencyID: strPtr("1234"),
		RecordType:      2,
	}
	if got, want := grantAwardKey(prime), "ASST_NON_FAIN01_1234"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}

	// Aggregate grants never link.
	prime.RecordType = 1
	if grantAwardKey(prime) != "" {
		t.Fatal("expected empty key for aggregate grant")
	}

	// Reports without a federal agency id never link.
	prime.RecordType = 2
	prime.FederalAgencyID = nil
	if grantAwardKey(prime) != "" {
		t.Fatal("expected empty key without a federal agency id")
	}
}
