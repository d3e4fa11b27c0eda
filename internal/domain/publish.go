package domain

import (
	"time"

	"github.com/google/uuid"
)

// PublishHistory records each publish action on a submission.
// Append-only.
type PublishHistory struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`
	CreatedAt    time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (PublishHistory) TableName() string { return "publish_history" }

// CertifyHistory records each certify action. A publish may be
// certified at most once.
type CertifyHistory struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`
	CreatedAt    time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (CertifyHistory) TableName() string { return "certify_history" }

// PublishedFilesHistory snapshots one file path as of a publish
// action. Rows are never rewritten; revert reads the latest snapshot.
type PublishedFilesHistory struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PublishHistoryID uuid.UUID  `gorm:"type:uuid;not null;index" json:"publish_history_id"`
	CertifyHistoryID *uuid.UUID `gorm:"type:uuid;index" json:"certify_history_id,omitempty"`
	SubmissionID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"submission_id"`
	FileType         FileType   `gorm:"column:file_type;not null" json:"file_type"`
	FilePath         string     `gorm:"column:file_path;not null" json:"file_path"`
	WarningFilePath  string     `gorm:"column:warning_file_path" json:"warning_file_path,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (PublishedFilesHistory) TableName() string { return "published_files_history" }
