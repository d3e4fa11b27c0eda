package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubawardKind string

const (
	SubawardContract SubawardKind = "sub-contract"
	SubawardGrant    SubawardKind = "sub-grant"
)

// PrimeContract mirrors a prime contract report from the subaward
// feed.
type PrimeContract struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	InternalID          string    `gorm:"column:internal_id;uniqueIndex" json:"internal_id"`
	ContractNumber      string    `gorm:"column:contract_number;index" json:"contract_number"`
	IDVReferenceNumber  *string   `gorm:"column:idv_reference_number" json:"idv_reference_number,omitempty"`
	ContractAgencyCode  string    `gorm:"column:contract_agency_code" json:"contract_agency_code"`
	ContractIDVAgencyCode *string `gorm:"column:contract_idv_agency_code" json:"contract_idv_agency_code,omitempty"`
	UEI                 *string   `gorm:"column:uei" json:"uei,omitempty"`
	SubmittedDate       *time.Time `gorm:"column:submitted_date" json:"submitted_date,omitempty"`
	ReportPeriodMonth   *string   `gorm:"column:report_period_mon" json:"report_period_mon,omitempty"`
	ReportPeriodYear    *string   `gorm:"column:report_period_year" json:"report_period_year,omitempty"`
}

func (PrimeContract) TableName() string { return "prime_contract" }

// Subcontract is one subaward report under a PrimeContract.
type Subcontract struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParentID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"parent_id"`
	ReportNumber    string           `gorm:"column:report_number;index" json:"report_number"`
	SubcontractNum  string           `gorm:"column:subcontract_num" json:"subcontract_num"`
	Amount          *decimal.Decimal `gorm:"column:subcontract_amount;type:numeric" json:"subcontract_amount,omitempty"`
	SubcontractDate *time.Time       `gorm:"column:subcontract_date" json:"subcontract_date,omitempty"`
	UEI             *string          `gorm:"column:uei" json:"uei,omitempty"`
	LegalName       *string          `gorm:"column:company_name" json:"company_name,omitempty"`
	City            *string          `gorm:"column:company_address_city" json:"company_address_city,omitempty"`
	State           *string          `gorm:"column:company_address_state" json:"company_address_state,omitempty"`
	Description     *string          `gorm:"column:overall_description" json:"overall_description,omitempty"`
}

func (Subcontract) TableName() string { return "subcontract" }

// PrimeGrant mirrors a prime grant report from the subaward feed.
type PrimeGrant struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	InternalID      string     `gorm:"column:internal_id;uniqueIndex" json:"internal_id"`
	FAIN            string     `gorm:"column:fain;index" json:"fain"`
	URI             *string    `gorm:"column:uri" json:"uri,omitempty"`
	FederalAgencyID *string    `gorm:"column:federal_agency_id" json:"federal_agency_id,omitempty"`
	RecordType      int        `gorm:"column:record_type" json:"record_type"`
	UEI             *string    `gorm:"column:uei" json:"uei,omitempty"`
	SubmittedDate   *time.Time `gorm:"column:submitted_date" json:"submitted_date,omitempty"`
}

func (PrimeGrant) TableName() string { return "prime_grant" }

// Subgrant is one subaward report under a PrimeGrant.
type Subgrant struct {
	ID           uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParentID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"parent_id"`
	ReportNumber string           `gorm:"column:report_number;index" json:"report_number"`
	SubawardNum  string           `gorm:"column:subaward_num" json:"subaward_num"`
	Amount       *decimal.Decimal `gorm:"column:subaward_amount;type:numeric" json:"subaward_amount,omitempty"`
	SubawardDate *time.Time       `gorm:"column:subaward_date" json:"subaward_date,omitempty"`
	UEI          *string          `gorm:"column:uei" json:"uei,omitempty"`
	LegalName    *string          `gorm:"column:awardee_name" json:"awardee_name,omitempty"`
	City         *string          `gorm:"column:awardee_address_city" json:"awardee_address_city,omitempty"`
	State        *string          `gorm:"column:awardee_address_state" json:"awardee_address_state,omitempty"`
	Description  *string          `gorm:"column:project_description" json:"project_description,omitempty"`
}

func (Subgrant) TableName() string { return "subgrant" }

// Subaward is the denormalized join of a prime report and one subaward
// report, with award-mirror fields folded in when the prime award key
// resolves. Prime-side fields are either all populated (linked) or all
// null (unlinked); there are no partial links.
type Subaward struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReportNumber string       `gorm:"column:subaward_report_number;index:idx_subaward_report,unique" json:"subaward_report_number"`
	Kind         SubawardKind `gorm:"column:subaward_type;index:idx_subaward_report,unique" json:"subaward_type"`

	UniqueAwardKey string `gorm:"column:unique_award_key;index" json:"unique_award_key"`
	// Ambiguous marks report rows whose award key matched more than one
	// prime award candidate; they stay unlinked until the mirror
	// disambiguates.
	Ambiguous bool `gorm:"column:ambiguous;not null;default:false" json:"ambiguous"`

	// Sub side, always populated from the feed.
	SubawardNumber string           `gorm:"column:subaward_number" json:"subaward_number"`
	Amount         *decimal.Decimal `gorm:"column:subaward_amount;type:numeric" json:"subaward_amount,omitempty"`
	ActionDate     *time.Time       `gorm:"column:sub_action_date" json:"sub_action_date,omitempty"`
	SubAwardeeUEI  *string          `gorm:"column:sub_awardee_uei" json:"sub_awardee_uei,omitempty"`
	SubAwardeeName *string          `gorm:"column:sub_awardee_name" json:"sub_awardee_name,omitempty"`
	SubCity        *string          `gorm:"column:sub_awardee_city" json:"sub_awardee_city,omitempty"`
	SubState       *string          `gorm:"column:sub_awardee_state" json:"sub_awardee_state,omitempty"`
	Description    *string          `gorm:"column:description" json:"description,omitempty"`

	// Prime report identifiers, populated from the feed.
	AwardID       string  `gorm:"column:award_id;index" json:"award_id"`
	ParentAwardID *string `gorm:"column:parent_award_id" json:"parent_award_id,omitempty"`

	// Prime side, populated only when the award key resolves against
	// the awards mirror.
	PrimeAwardeeUEI    *string `gorm:"column:prime_awardee_uei" json:"prime_awardee_uei,omitempty"`
	PrimeAwardeeName   *string `gorm:"column:prime_awardee_name" json:"prime_awardee_name,omitempty"`
	AwardingAgencyCode *string `gorm:"column:awarding_agency_code;index" json:"awarding_agency_code,omitempty"`
	AwardingAgencyName *string `gorm:"column:awarding_agency_name" json:"awarding_agency_name,omitempty"`
	AwardingSubTierC   *string `gorm:"column:awarding_sub_tier_agency_c" json:"awarding_sub_tier_agency_c,omitempty"`
	FundingAgencyCode  *string `gorm:"column:funding_agency_code" json:"funding_agency_code,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Subaward) TableName() string { return "subaward" }

// Linked reports whether the prime side has been resolved.
func (s *Subaward) Linked() bool {
	return s.AwardingAgencyCode != nil && *s.AwardingAgencyCode != ""
}
