package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Staging rows carry the decoded contents of one uploaded or generated
// file, scoped to (submission, job). The csv tags are the canonical
// header names files are validated and written with; header matching
// on upload is case-insensitive.
//
// The paired Published* tables hold the snapshot active after the most
// recent successful publish. They embed the staging shape so the
// publish/revert copy is column-for-column.

// Appropriation is a File A row.
type Appropriation struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" csv:"-" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"submission_id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"job_id"`
	RowNumber    int       `gorm:"column:row_number;not null" csv:"-" json:"row_number"`

	AllocationTransferAgency   *string          `gorm:"column:allocation_transfer_agency" csv:"allocationtransferagencyidentifier"`
	AgencyIdentifier           string           `gorm:"column:agency_identifier" csv:"agencyidentifier"`
	BeginningPeriodOfAvail     *string          `gorm:"column:beginning_period_of_availability" csv:"beginningperiodofavailability"`
	EndingPeriodOfAvail        *string          `gorm:"column:ending_period_of_availability" csv:"endingperiodofavailability"`
	AvailabilityTypeCode       *string          `gorm:"column:availability_type_code" csv:"availabilitytypecode"`
	MainAccountCode            string           `gorm:"column:main_account_code" csv:"mainaccountcode"`
	SubAccountCode             *string          `gorm:"column:sub_account_code" csv:"subaccountcode"`
	TotalBudgetaryResources    *decimal.Decimal `gorm:"column:total_budgetary_resources;type:numeric" csv:"totalbudgetaryresources_cpe"`
	BudgetAuthorityAppropriated *decimal.Decimal `gorm:"column:budget_authority_appropria" csv:"budgetauthorityappropriatedamount_cpe"`
	GrossOutlayAmount          *decimal.Decimal `gorm:"column:gross_outlay_amount_by_tas" csv:"grossoutlayamountbytas_cpe"`
	StatusOfBudgetaryResources *decimal.Decimal `gorm:"column:status_of_budgetary_resour" csv:"statusofbudgetaryresourcestotal_cpe"`
	DeobligationsRecoveries    *decimal.Decimal `gorm:"column:deobligations_recoveries_r" csv:"deobligationsrecoveriesrefundsbytas_cpe"`
}

func (Appropriation) TableName() string { return "appropriation" }

type PublishedAppropriation struct {
	Appropriation
}

func (PublishedAppropriation) TableName() string { return "published_appropriation" }

// ObjectClassProgramActivity is a File B row.
type ObjectClassProgramActivity struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" csv:"-" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"submission_id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"job_id"`
	RowNumber    int       `gorm:"column:row_number;not null" csv:"-" json:"row_number"`

	AgencyIdentifier     string           `gorm:"column:agency_identifier" csv:"agencyidentifier"`
	MainAccountCode      string           `gorm:"column:main_account_code" csv:"mainaccountcode"`
	ObjectClass          string           `gorm:"column:object_class" csv:"objectclass"`
	ProgramActivityCode  *string          `gorm:"column:program_activity_code" csv:"programactivitycode"`
	ProgramActivityName  *string          `gorm:"column:program_activity_name" csv:"programactivityname"`
	ByDirectReimbursable *string          `gorm:"column:by_direct_reimbursable_fun" csv:"bydirectreimbursablefundingsource"`
	ObligationsIncurred  *decimal.Decimal `gorm:"column:obligations_incurred_by_pr;type:numeric" csv:"obligationsincurredbyprogramobjectclass_cpe"`
	GrossOutlaysDelivered *decimal.Decimal `gorm:"column:gross_outlays_delivered_or;type:numeric" csv:"grossoutlaysdeliveredorderspaidtotal_cpe"`
	DeobligationsRecoveries *decimal.Decimal `gorm:"column:deobligations_recov_by_pro;type:numeric" csv:"deobligationsrecoveriesrefundsofprioryearbyprogramobjectclass_cpe"`
}

func (ObjectClassProgramActivity) TableName() string { return "object_class_program_activity" }

type PublishedObjectClassProgramActivity struct {
	ObjectClassProgramActivity
}

func (PublishedObjectClassProgramActivity) TableName() string {
	return "published_object_class_program_activity"
}

// AwardFinancial is a File C row.
type AwardFinancial struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" csv:"-" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"submission_id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"job_id"`
	RowNumber    int       `gorm:"column:row_number;not null" csv:"-" json:"row_number"`

	AgencyIdentifier           string           `gorm:"column:agency_identifier" csv:"agencyidentifier"`
	MainAccountCode            string           `gorm:"column:main_account_code" csv:"mainaccountcode"`
	PIID                       *string          `gorm:"column:piid;index" csv:"piid"`
	FAIN                       *string          `gorm:"column:fain;index" csv:"fain"`
	URI                        *string          `gorm:"column:uri;index" csv:"uri"`
	ObjectClass                string           `gorm:"column:object_class" csv:"objectclass"`
	TransactionObligatedAmount *decimal.Decimal `gorm:"column:transaction_obligated_amou;type:numeric" csv:"transactionobligatedamount"`
}

func (AwardFinancial) TableName() string { return "award_financial" }

type PublishedAwardFinancial struct {
	AwardFinancial
}

func (PublishedAwardFinancial) TableName() string { return "published_award_financial" }

// AwardProcurement is a staged D1 row attributed to a submission.
type AwardProcurement struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" csv:"-" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"submission_id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"job_id"`
	RowNumber    int       `gorm:"column:row_number;not null" csv:"-" json:"row_number"`

	PIID                   string           `gorm:"column:piid;index" csv:"piid"`
	ParentAwardID          *string          `gorm:"column:parent_award_id" csv:"parentawardid"`
	AwardingAgencyCode     string           `gorm:"column:awarding_agency_code;index" csv:"awardingagencycode"`
	AwardingSubTierAgencyC string           `gorm:"column:awarding_sub_tier_agency_c" csv:"awardingsubtieragencycode"`
	FundingAgencyCode      *string          `gorm:"column:funding_agency_code" csv:"fundingagencycode"`
	AwardeeUEI             string           `gorm:"column:awardee_or_recipient_uei;index" csv:"awardeeorrecipientuei"`
	AwardeeLegalName       string           `gorm:"column:awardee_or_recipient_legal" csv:"awardeeorrecipientlegalentityname"`
	ActionDate             *time.Time       `gorm:"column:action_date" csv:"actiondate"`
	FederalActionObligation *decimal.Decimal `gorm:"column:federal_action_obligation;type:numeric" csv:"federalactionobligation"`
	PlaceOfPerformCity     *string          `gorm:"column:place_of_perform_city_name" csv:"placeofperformancecityname"`
	PlaceOfPerformState    *string          `gorm:"column:place_of_performance_state" csv:"placeofperformancestatecode"`
	LegalEntityAddressLine1 *string         `gorm:"column:legal_entity_address_line1" csv:"legalentityaddressline1"`
	LegalEntityCityName    *string          `gorm:"column:legal_entity_city_name" csv:"legalentitycityname"`
	LegalEntityStateCode   *string          `gorm:"column:legal_entity_state_code" csv:"legalentitystatecode"`
	LegalEntityZip4        *string          `gorm:"column:legal_entity_zip4" csv:"legalentityzip4"`
}

func (AwardProcurement) TableName() string { return "award_procurement" }

type PublishedAwardProcurement struct {
	AwardProcurement
}

func (PublishedAwardProcurement) TableName() string { return "published_award_procurement" }

// AwardFinancialAssistance is a staged D2 (or FABS) row.
type AwardFinancialAssistance struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" csv:"-" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"submission_id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index" csv:"-" json:"job_id"`
	RowNumber    int       `gorm:"column:row_number;not null" csv:"-" json:"row_number"`

	FAIN                    *string          `gorm:"column:fain;index" csv:"fain"`
	URI                     *string          `gorm:"column:uri;index" csv:"uri"`
	RecordType              int              `gorm:"column:record_type" csv:"recordtype"`
	AssistanceListingNumber *string          `gorm:"column:assistance_listing_number" csv:"assistancelistingnumber"`
	AwardingAgencyCode      string           `gorm:"column:awarding_agency_code;index" csv:"awardingagencycode"`
	AwardingSubTierAgencyC  string           `gorm:"column:awarding_sub_tier_agency_c" csv:"awardingsubtieragencycode"`
	FundingAgencyCode       *string          `gorm:"column:funding_agency_code" csv:"fundingagencycode"`
	AwardeeUEI              *string          `gorm:"column:uei;index" csv:"uei"`
	AwardeeLegalName        *string          `gorm:"column:awardee_or_recipient_legal" csv:"awardeeorrecipientlegalentityname"`
	ActionDate              *time.Time       `gorm:"column:action_date" csv:"actiondate"`
	FederalActionObligation *decimal.Decimal `gorm:"column:federal_action_obligation;type:numeric" csv:"federalactionobligation"`
	LegalEntityCityName     *string          `gorm:"column:legal_entity_city_name" csv:"legalentitycityname"`
	LegalEntityStateCode    *string          `gorm:"column:legal_entity_state_code" csv:"legalentitystatecode"`
	CorrectionDeleteInd     *string          `gorm:"column:correction_delete_indicatr" csv:"correctiondeleteindicator"`
}

func (AwardFinancialAssistance) TableName() string { return "award_financial_assistance" }

type PublishedAwardFinancialAssistance struct {
	AwardFinancialAssistance
}

func (PublishedAwardFinancialAssistance) TableName() string {
	return "published_award_financial_assistance"
}

// FlexField preserves a submission-specific extra column value for one
// staged row. Flex values ride along with every failure row reported
// for that row number.
type FlexField struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	RowNumber    int       `gorm:"column:row_number;not null" json:"row_number"`
	Header       string    `gorm:"column:header;not null" json:"header"`
	Value        string    `gorm:"column:value" json:"value"`
}

func (FlexField) TableName() string { return "flex_field" }
