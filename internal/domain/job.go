package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeFileUpload    JobType = "file_upload"
	JobTypeCSVValidation JobType = "csv_record_validation"
	JobTypeValidation    JobType = "validation"
	JobTypeFileGen       JobType = "file_generation"
)

type FileType string

const (
	FileTypeA    FileType = "appropriations"
	FileTypeB    FileType = "program_activity"
	FileTypeC    FileType = "award_financial"
	FileTypeD1   FileType = "award_procurement"
	FileTypeD2   FileType = "award"
	FileTypeE    FileType = "executive_compensation"
	FileTypeF    FileType = "sub_award"
	FileTypeFABS FileType = "fabs"
	// FileTypeCross marks the cross-file validation job, which has no
	// single file of its own.
	FileTypeCross FileType = ""
)

type JobStatus string

const (
	StatusWaiting  JobStatus = "waiting"
	StatusReady    JobStatus = "ready"
	StatusRunning  JobStatus = "running"
	StatusFinished JobStatus = "finished"
	StatusFailed   JobStatus = "failed"
	StatusInvalid  JobStatus = "invalid"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusInvalid
}

// Job is one unit of work on one submission.
type Job struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubmissionID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"submission_id"`
	JobType          JobType    `gorm:"column:job_type;not null;index" json:"job_type"`
	FileType         FileType   `gorm:"column:file_type;index" json:"file_type"`
	Status           JobStatus  `gorm:"column:status;not null;index" json:"status"`
	Filename         string     `gorm:"column:filename" json:"filename,omitempty"`
	OriginalFilename string     `gorm:"column:original_filename" json:"original_filename,omitempty"`
	StartDate        *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate          *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	NumberOfRows     int        `gorm:"column:number_of_rows;not null;default:0" json:"number_of_rows"`
	NumberOfErrors   int        `gorm:"column:number_of_errors;not null;default:0" json:"number_of_errors"`
	NumberOfWarnings int        `gorm:"column:number_of_warnings;not null;default:0" json:"number_of_warnings"`
	ErrorMessage     string     `gorm:"column:error_message" json:"error_message,omitempty"`
	FileGenerationID *uuid.UUID `gorm:"type:uuid;column:file_generation_id;index" json:"file_generation_id,omitempty"`
	LastValidated    *time.Time `gorm:"column:last_validated" json:"last_validated,omitempty"`
	Attempts         int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	StartedAt        *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Job) TableName() string { return "job" }

// JobDependency is a directed edge from a job to one prerequisite in
// the per-submission DAG.
type JobDependency struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID          uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	PrerequisiteID uuid.UUID `gorm:"type:uuid;not null;index" json:"prerequisite_id"`
}

func (JobDependency) TableName() string { return "job_dependency" }
