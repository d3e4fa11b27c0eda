package domain

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// ErrorMetadata aggregates rule failures per (job, rule_label).
type ErrorMetadata struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID          uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	RuleLabel      string    `gorm:"column:rule_label;not null;index" json:"rule_label"`
	RuleFailed     string    `gorm:"column:rule_failed" json:"rule_failed"`
	Severity       Severity  `gorm:"column:severity;not null" json:"severity"`
	FileType       FileType  `gorm:"column:file_type;not null" json:"file_type"`
	TargetFileType FileType  `gorm:"column:target_file_type" json:"target_file_type,omitempty"`
	Occurrences    int       `gorm:"column:occurrences;not null;default:0" json:"occurrences"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ErrorMetadata) TableName() string { return "error_metadata" }

// PublishedErrorMetadata holds the aggregate active after the most
// recent successful publish.
type PublishedErrorMetadata struct {
	ErrorMetadata
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`
}

func (PublishedErrorMetadata) TableName() string { return "published_error_metadata" }
