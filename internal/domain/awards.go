package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProcurementAward mirrors one procurement feed record. The mirror is
// the authoritative source for D1 generation and for subaward contract
// linking.
type ProcurementAward struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DetachedAwardProcID string `gorm:"column:detached_award_proc_unique;uniqueIndex" json:"detached_award_proc_unique"`
	UniqueAwardKey string    `gorm:"column:unique_award_key;index" json:"unique_award_key"`

	PIID                   string           `gorm:"column:piid;index" json:"piid"`
	ParentAwardID          *string          `gorm:"column:parent_award_id" json:"parent_award_id,omitempty"`
	AwardingAgencyCode     string           `gorm:"column:awarding_agency_code;index" json:"awarding_agency_code"`
	AwardingAgencyName     *string          `gorm:"column:awarding_agency_name" json:"awarding_agency_name,omitempty"`
	AwardingSubTierAgencyC string           `gorm:"column:awarding_sub_tier_agency_c;index" json:"awarding_sub_tier_agency_c"`
	FundingAgencyCode      *string          `gorm:"column:funding_agency_code;index" json:"funding_agency_code,omitempty"`
	AwardeeUEI             string           `gorm:"column:awardee_or_recipient_uei;index" json:"awardee_or_recipient_uei"`
	AwardeeLegalName       string           `gorm:"column:awardee_or_recipient_legal" json:"awardee_or_recipient_legal"`
	ActionDate             time.Time        `gorm:"column:action_date;index" json:"action_date"`
	FederalActionObligation *decimal.Decimal `gorm:"column:federal_action_obligation;type:numeric" json:"federal_action_obligation,omitempty"`
	PlaceOfPerformCity     *string          `gorm:"column:place_of_perform_city_name" json:"place_of_perform_city_name,omitempty"`
	PlaceOfPerformState    *string          `gorm:"column:place_of_performance_state" json:"place_of_performance_state,omitempty"`
	LegalEntityAddressLine1 *string         `gorm:"column:legal_entity_address_line1" json:"legal_entity_address_line1,omitempty"`
	LegalEntityCityName    *string          `gorm:"column:legal_entity_city_name" json:"legal_entity_city_name,omitempty"`
	LegalEntityStateCode   *string          `gorm:"column:legal_entity_state_code" json:"legal_entity_state_code,omitempty"`
	LegalEntityZip4        *string          `gorm:"column:legal_entity_zip4" json:"legal_entity_zip4,omitempty"`
	CreatedAt              time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time        `gorm:"not null;default:now();index" json:"updated_at"`
}

func (ProcurementAward) TableName() string { return "procurement_award" }

// AssistanceAward mirrors one financial-assistance feed record.
// RecordType 1 is an aggregate record keyed by URI; 2 is non-aggregate
// keyed by FAIN.
type AssistanceAward struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AFAGeneratedID string    `gorm:"column:afa_generated_unique;uniqueIndex" json:"afa_generated_unique"`
	UniqueAwardKey string    `gorm:"column:unique_award_key;index" json:"unique_award_key"`

	FAIN                    *string          `gorm:"column:fain;index" json:"fain,omitempty"`
	URI                     *string          `gorm:"column:uri;index" json:"uri,omitempty"`
	RecordType              int              `gorm:"column:record_type" json:"record_type"`
	AssistanceListingNumber *string          `gorm:"column:assistance_listing_number" json:"assistance_listing_number,omitempty"`
	AwardingAgencyCode      string           `gorm:"column:awarding_agency_code;index" json:"awarding_agency_code"`
	AwardingAgencyName      *string          `gorm:"column:awarding_agency_name" json:"awarding_agency_name,omitempty"`
	AwardingSubTierAgencyC  string           `gorm:"column:awarding_sub_tier_agency_c;index" json:"awarding_sub_tier_agency_c"`
	FundingAgencyCode       *string          `gorm:"column:funding_agency_code;index" json:"funding_agency_code,omitempty"`
	AwardeeUEI              *string          `gorm:"column:uei;index" json:"uei,omitempty"`
	AwardeeLegalName        *string          `gorm:"column:awardee_or_recipient_legal" json:"awardee_or_recipient_legal,omitempty"`
	ActionDate              time.Time        `gorm:"column:action_date;index" json:"action_date"`
	FederalActionObligation *decimal.Decimal `gorm:"column:federal_action_obligation;type:numeric" json:"federal_action_obligation,omitempty"`
	LegalEntityCityName     *string          `gorm:"column:legal_entity_city_name" json:"legal_entity_city_name,omitempty"`
	LegalEntityStateCode    *string          `gorm:"column:legal_entity_state_code" json:"legal_entity_state_code,omitempty"`
	CorrectionDeleteInd     *string          `gorm:"column:correction_delete_indicatr" json:"correction_delete_indicatr,omitempty"`
	CreatedAt               time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time        `gorm:"not null;default:now();index" json:"updated_at"`
}

func (AssistanceAward) TableName() string { return "assistance_award" }

// SAMRecipient mirrors an entity record from the SAM source, including
// up to five top-paid officers. File E is written straight off this
// shape.
type SAMRecipient struct {
	ID                uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UEI               string    `gorm:"column:uei;uniqueIndex" json:"uei"`
	LegalBusinessName string    `gorm:"column:legal_business_name" json:"legal_business_name"`
	UltimateParentUEI *string   `gorm:"column:ultimate_parent_uei" json:"ultimate_parent_uei,omitempty"`
	UltimateParentName *string  `gorm:"column:ultimate_parent_name" json:"ultimate_parent_name,omitempty"`

	Officer1Name   *string          `gorm:"column:high_comp_officer1_full_na" json:"high_comp_officer1_full_na,omitempty"`
	Officer1Amount *decimal.Decimal `gorm:"column:high_comp_officer1_amount;type:numeric" json:"high_comp_officer1_amount,omitempty"`
	Officer2Name   *string          `gorm:"column:high_comp_officer2_full_na" json:"high_comp_officer2_full_na,omitempty"`
	Officer2Amount *decimal.Decimal `gorm:"column:high_comp_officer2_amount;type:numeric" json:"high_comp_officer2_amount,omitempty"`
	Officer3Name   *string          `gorm:"column:high_comp_officer3_full_na" json:"high_comp_officer3_full_na,omitempty"`
	Officer3Amount *decimal.Decimal `gorm:"column:high_comp_officer3_amount;type:numeric" json:"high_comp_officer3_amount,omitempty"`
	Officer4Name   *string          `gorm:"column:high_comp_officer4_full_na" json:"high_comp_officer4_full_na,omitempty"`
	Officer4Amount *decimal.Decimal `gorm:"column:high_comp_officer4_amount;type:numeric" json:"high_comp_officer4_amount,omitempty"`
	Officer5Name   *string          `gorm:"column:high_comp_officer5_full_na" json:"high_comp_officer5_full_na,omitempty"`
	Officer5Amount *decimal.Decimal `gorm:"column:high_comp_officer5_amount;type:numeric" json:"high_comp_officer5_amount,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SAMRecipient) TableName() string { return "sam_recipient" }

// ExternalDataLoadDate records the completion time of the most recent
// load per external source. The D1 cache freshness gate reads the
// procurement row.
type ExternalDataLoadDate struct {
	SourceType   string    `gorm:"column:source_type;primaryKey" json:"source_type"`
	LastLoadDate time.Time `gorm:"column:last_load_date;not null" json:"last_load_date"`
}

func (ExternalDataLoadDate) TableName() string { return "external_data_load_date" }

const (
	SourceProcurement = "procurement"
	SourceAssistance  = "assistance"
	SourceSubaward    = "subaward"
	SourceSAM         = "sam"
)
