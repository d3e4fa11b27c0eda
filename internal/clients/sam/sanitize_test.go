package sam

import "testing"

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"0000-00-00":      "0001-01-01",
		"ACME\tCORP":      "ACME CORP",
		"line1\nline2":    "line1 line2",
		"  padded  ":      "padded",
		"plain":           "plain",
		"ctl\x00\x07char": "ctl  char",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
