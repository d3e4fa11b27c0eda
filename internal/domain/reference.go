package domain

import (
	"time"

	"github.com/google/uuid"
)

// Agency is a CGAC or FREC agency record. Sensitive agencies run only
// the rules flagged for them.
type Agency struct {
	Code      string `gorm:"column:code;primaryKey" json:"code"`
	Name      string `gorm:"column:name;not null" json:"name"`
	IsFREC    bool   `gorm:"column:is_frec;not null;default:false" json:"is_frec"`
	Sensitive bool   `gorm:"column:sensitive;not null;default:false" json:"sensitive"`
}

func (Agency) TableName() string { return "agency" }

type RuleCategory string

const (
	CategoryCompleteness RuleCategory = "completeness"
	CategoryAccuracy     RuleCategory = "accuracy"
	CategoryExistence    RuleCategory = "existence"
)

// RuleSQL is one catalog entry of the SQL rule set. Rule texts are
// data: the catalog is loaded once per worker from the rules file and
// executed as a single parameterized query with the job's submission
// bound.
type RuleSQL struct {
	ID             uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RuleLabel      string       `gorm:"column:rule_label;uniqueIndex" json:"rule_label" yaml:"label"`
	FileType       FileType     `gorm:"column:file_type;not null;index" json:"file_type" yaml:"file_type"`
	TargetFileType FileType     `gorm:"column:target_file_type" json:"target_file_type,omitempty" yaml:"target_file_type"`
	CrossFileFlag  bool         `gorm:"column:rule_cross_file_flag;not null;default:false" json:"rule_cross_file_flag" yaml:"cross_file"`
	Severity       Severity     `gorm:"column:severity;not null" json:"severity" yaml:"severity"`
	Category       RuleCategory `gorm:"column:category" json:"category" yaml:"category"`
	Sensitive      bool         `gorm:"column:sensitive;not null;default:false" json:"sensitive" yaml:"sensitive"`
	Description    string       `gorm:"column:rule_failed" json:"rule_failed" yaml:"description"`
	Query          string       `gorm:"column:query;type:text" json:"query" yaml:"query"`
}

func (RuleSQL) TableName() string { return "rule_sql" }

// SubmissionWindow carries the reporting calendar for one fiscal
// period: when the window opens and when certification comes due.
type SubmissionWindow struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Year                  int       `gorm:"column:year;not null;index:idx_window,unique" json:"year"`
	Period                int       `gorm:"column:period;not null;index:idx_window,unique" json:"period"`
	PeriodStart           time.Time `gorm:"column:period_start;not null" json:"period_start"`
	CertificationDeadline time.Time `gorm:"column:certification_deadline;not null" json:"certification_deadline"`
}

func (SubmissionWindow) TableName() string { return "submission_window" }

// Banner is an operator notice. A blocking banner suspends publishing
// for its window.
type Banner struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Message   string    `gorm:"column:message;not null" json:"message"`
	Blocking  bool      `gorm:"column:blocking;not null;default:false" json:"blocking"`
	StartDate time.Time `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"column:end_date;not null" json:"end_date"`
}

func (Banner) TableName() string { return "banner" }
