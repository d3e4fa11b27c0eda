package gcs

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/usaspending/data-broker/internal/domain"
)

func TestSubmissionKey(t *testing.T) {
	id := uuid.MustParse("f6f2a7a2-9d6e-4f70-a479-3c9f4b0a2d11")
	if got, want := SubmissionKey(id, "appropriations.csv"), id.String()+"/appropriations.csv"; got != want {
		t.Fatalf("SubmissionKey = %q, want %q", got, want)
	}
}

func TestObjectKey(t *testing.T) {
	id := uuid.New()
	if got := ObjectKey(id, "upload.csv"); got != id.String()+"/upload.csv" {
		t.Fatalf("bare name not submission scoped: %q", got)
	}
	full := "generated/award/012/awarding/20240101_20240131_1.csv"
	if got := ObjectKey(id, full); got != full {
		t.Fatalf("full key rewritten: %q", got)
	}
}

func TestGenerationKey(t *testing.T) {
	key := types.GenerationKey{
		FileType:   types.FileTypeD1,
		AgencyCode: "097",
		AgencyRole: types.RoleAwarding,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	at := time.Unix(0, 42)
	got := GenerationKey(key, at)
	if !strings.HasPrefix(got, "generated/award_procurement/097/awarding/20240101_20240131_") {
		t.Fatalf("key = %q", got)
	}
	if !strings.HasSuffix(got, "_42.csv") {
		t.Fatalf("key = %q", got)
	}

	key.FileType = types.FileTypeE
	key.AgencyRole = types.RoleNone
	if got := GenerationKey(key, at); !strings.Contains(got, "/none/") {
		t.Fatalf("empty role should render as none: %q", got)
	}
}
