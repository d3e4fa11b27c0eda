package gcs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/usaspending/data-broker/internal/domain"
)

// SubmissionKey returns the blob key for a submission-scoped file.
func SubmissionKey(submissionID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s", submissionID, filename)
}

// ObjectKey resolves a job filename to its blob key: names carrying a
// path (generated artifacts, report files) are already full keys,
// bare upload names are submission-scoped.
func ObjectKey(submissionID uuid.UUID, filename string) string {
	if strings.Contains(filename, "/") {
		return filename
	}
	return SubmissionKey(submissionID, filename)
}

// GenerationKey returns the blob key for a shared generation artifact.
func GenerationKey(key types.GenerationKey, requestedAt time.Time) string {
	role := string(key.AgencyRole)
	if role == "" {
		role = "none"
	}
	return fmt.Sprintf("generated/%s/%s/%s/%s_%s_%d.csv",
		key.FileType, key.AgencyCode, role,
		key.Start.Format("20060102"), key.End.Format("20060102"),
		requestedAt.UnixNano(),
	)
}
