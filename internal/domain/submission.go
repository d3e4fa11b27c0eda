package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SubmissionKind string

const (
	KindDABS SubmissionKind = "dabs"
	KindFABS SubmissionKind = "fabs"
)

type Cadence string

const (
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
)

type PublishState string

const (
	StateUnpublished PublishState = "unpublished"
	StatePublishing  PublishState = "publishing"
	StatePublished   PublishState = "published"
	StateUpdated     PublishState = "updated"
	StateReverting   PublishState = "reverting"
)

// Submission identifies a reporting unit for one agency over one
// reporting period. Exactly one of CGACCode / FRECCode is set.
type Submission struct {
	ID                    uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	CGACCode              *string        `gorm:"column:cgac_code;index" json:"cgac_code,omitempty"`
	FRECCode              *string        `gorm:"column:frec_code;index" json:"frec_code,omitempty"`
	ReportingFiscalYear   int            `gorm:"column:reporting_fiscal_year;not null;index" json:"reporting_fiscal_year"`
	ReportingFiscalPeriod int            `gorm:"column:reporting_fiscal_period;not null;index" json:"reporting_fiscal_period"`
	Cadence               Cadence        `gorm:"column:cadence;not null" json:"cadence"`
	Kind                  SubmissionKind `gorm:"column:kind;not null;index" json:"kind"`
	PublishState          PublishState   `gorm:"column:publish_state;not null;index" json:"publish_state"`
	TestFlag              bool           `gorm:"column:test_flag;not null;default:false" json:"test_flag"`
	CertifiedFlag         bool           `gorm:"column:certified_flag;not null;default:false" json:"certified_flag"`
	NumberOfErrors        int            `gorm:"column:number_of_errors;not null;default:0" json:"number_of_errors"`
	NumberOfWarnings      int            `gorm:"column:number_of_warnings;not null;default:0" json:"number_of_warnings"`
	// IDs of submissions whose publish superseded this one as the
	// certifiable submission for the period.
	PublishedSubmissionIDs datatypes.JSON `gorm:"column:published_submission_ids;type:jsonb" json:"published_submission_ids"`
	CreatedAt              time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Submission) TableName() string { return "submission" }

// AgencyCode returns whichever of CGAC or FREC identifies the owner.
func (s *Submission) AgencyCode() string {
	if s.FRECCode != nil && *s.FRECCode != "" {
		return *s.FRECCode
	}
	if s.CGACCode != nil {
		return *s.CGACCode
	}
	return ""
}

// QuarterlyPeriods are the only reporting periods a quarterly
// submission may carry: the closing period of each fiscal quarter.
var QuarterlyPeriods = map[int]bool{3: true, 6: true, 9: true, 12: true}
