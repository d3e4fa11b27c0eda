package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// ProcurementRecord is one record from the procurement award feed.
type ProcurementRecord struct {
	DetachedAwardProcUnique string  `json:"detached_award_proc_unique"`
	PIID                    string  `json:"piid"`
	ParentAwardID           *string `json:"parent_award_id"`
	AwardingAgencyCode      string  `json:"awarding_agency_code"`
	AwardingAgencyName      *string `json:"awarding_agency_name"`
	AwardingSubTierAgencyC  string  `json:"awarding_sub_tier_agency_c"`
	FundingAgencyCode       *string `json:"funding_agency_code"`
	AwardeeUEI              string  `json:"awardee_or_recipient_uei"`
	AwardeeLegalName        string  `json:"awardee_or_recipient_legal"`
	ActionDate              string  `json:"action_date"`
	FederalActionObligation *string `json:"federal_action_obligation"`
	PlaceOfPerformCity      *string `json:"place_of_perform_city_name"`
	PlaceOfPerformState     *string `json:"place_of_performance_state"`
	LegalEntityAddressLine1 *string `json:"legal_entity_address_line1"`
	LegalEntityCityName     *string `json:"legal_entity_city_name"`
	LegalEntityStateCode    *string `json:"legal_entity_state_code"`
	LegalEntityZip4         *string `json:"legal_entity_zip4"`
}

// AssistanceRecord is one record from the financial-assistance feed.
type AssistanceRecord struct {
	AFAGeneratedUnique      string  `json:"afa_generated_unique"`
	FAIN                    *string `json:"fain"`
	URI                     *string `json:"uri"`
	RecordType              int     `json:"record_type"`
	AssistanceListingNumber *string `json:"assistance_listing_number"`
	AwardingAgencyCode      string  `json:"awarding_agency_code"`
	AwardingAgencyName      *string `json:"awarding_agency_name"`
	AwardingSubTierAgencyC  string  `json:"awarding_sub_tier_agency_c"`
	FundingAgencyCode       *string `json:"funding_agency_code"`
	UEI                     *string `json:"uei"`
	AwardeeLegalName        *string `json:"awardee_or_recipient_legal"`
	ActionDate              string  `json:"action_date"`
	FederalActionObligation *string `json:"federal_action_obligation"`
	LegalEntityCityName     *string `json:"legal_entity_city_name"`
	LegalEntityStateCode    *string `json:"legal_entity_state_code"`
	CorrectionDeleteInd     *string `json:"correction_delete_indicatr"`
}

// AwardsClient pulls the procurement and assistance feeds page by
// page.
type AwardsClient interface {
	ProcurementPage(ctx context.Context, window Window, page int) (*Page[ProcurementRecord], error)
	AssistancePage(ctx context.Context, window Window, page int) (*Page[AssistanceRecord], error)
}

// Window restricts a pull to an action-date range and optionally a
// single agency.
type Window struct {
	Start      time.Time
	End        time.Time
	AgencyCode string
}

// Page is one feed response. TotalRecords spans the whole window, not
// the page.
type Page[T any] struct {
	TotalRecords int
	PageNumber   int
	Records      []T
}

type awardsClient struct {
	log     *logger.Logger
	http    *http.Client
	baseURL string
	pageSize int
}

func NewAwardsClient(log *logger.Logger) (AwardsClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("AWARDS_FEED_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing AWARDS_FEED_URL")
	}
	return &awardsClient{
		log:      log.With("service", "AwardsClient"),
		http:     &http.Client{Timeout: 2 * time.Minute},
		baseURL:  baseURL,
		pageSize: 1000,
	}, nil
}

type feedEnvelope struct {
	TotalRecords int             `json:"totalRecords"`
	PageNumber   int             `json:"pageNumber"`
	Records      json.RawMessage `json:"records"`
}

func (c *awardsClient) fetch(ctx context.Context, path string, window Window, page int) (*feedEnvelope, error) {
	params := url.Values{}
	params.Set("start_date", window.Start.Format("2006-01-02"))
	params.Set("end_date", window.End.Format("2006-01-02"))
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(c.pageSize))
	if window.AgencyCode != "" {
		params.Set("agency_code", window.AgencyCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Transient(err, "awards feed request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, errs.Transient(fmt.Errorf("status %d", resp.StatusCode), "awards feed request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Internal(fmt.Errorf("status %d", resp.StatusCode), "awards feed request rejected")
	}
	var env feedEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errs.Internal(err, "awards feed response undecodable")
	}
	return &env, nil
}

func (c *awardsClient) ProcurementPage(ctx context.Context, window Window, page int) (*Page[ProcurementRecord], error) {
	env, err := c.fetch(ctx, "/procurement", window, page)
	if err != nil {
		return nil, err
	}
	var records []ProcurementRecord
	if err := json.Unmarshal(env.Records, &records); err != nil {
		return nil, errs.Internal(err, "procurement records undecodable")
	}
	return &Page[ProcurementRecord]{TotalRecords: env.TotalRecords, PageNumber: env.PageNumber, Records: records}, nil
}

func (c *awardsClient) AssistancePage(ctx context.Context, window Window, page int) (*Page[AssistanceRecord], error) {
	env, err := c.fetch(ctx, "/assistance", window, page)
	if err != nil {
		return nil, err
	}
	var records []AssistanceRecord
	if err := json.Unmarshal(env.Records, &records); err != nil {
		return nil, errs.Internal(err, "assistance records undecodable")
	}
	return &Page[AssistanceRecord]{TotalRecords: env.TotalRecords, PageNumber: env.PageNumber, Records: records}, nil
}
