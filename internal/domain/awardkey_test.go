package domain

import "testing"

func TestNormalizeAwardID(t *testing.T) {
	cases := map[string]string{
		"  w91 2dy-20-d-0034 ": "W912DY20D0034",
		"abc":                  "ABC",
		"":                     "",
		" - ":                  "",
	}
	for in, want := range cases {
		if got := NormalizeAwardID(in); got != want {
			t.Errorf("NormalizeAwardID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContractAwardKey(t *testing.T) {
	got := ContractAwardKey("w912dy-20-d-0034", "2100", "gs-00f-0001", "4730")
	want := "CONT_AWD_W912DY20D0034_2100_GS00F0001_4730"
	if got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}

func TestContractAwardKey_MissingParts(t *testing.T) {
	got := ContractAwardKey("0034", "", "", "")
	want := "CONT_AWD_0034_-NONE-_-NONE-_-NONE-"
	if got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
	if ContractAwardKey("", "2100", "", "") != "" {
		t.Fatal("expected empty key without a piid")
	}
}

func TestAssistanceAwardKey(t *testing.T) {
	if got, want := AssistanceAwardKey(2, "fai-n01", "", "1234"), "ASST_NON_FAIN01_1234"; got != want {
		t.Fatalf("non-aggregate key = %q, want %q", got, want)
	}
	if got, want := AssistanceAwardKey(1, "", "uri-99", "1234"), "ASST_AGG_URI99_1234"; got != want {
		t.Fatalf("aggregate key = %q, want %q", got, want)
	}
	if AssistanceAwardKey(2, "", "", "1234") != "" {
		t.Fatal("expected empty key without a fain")
	}
	if AssistanceAwardKey(1, "fain", "", "1234") != "" {
		t.Fatal("expected empty key for aggregate without a uri")
	}
}
