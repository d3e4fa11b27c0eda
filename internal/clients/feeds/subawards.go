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

// SubawardReport is one prime report plus its subaward reports from
// either subaward feed endpoint (assistance or contract).
type SubawardReport struct {
	InternalID    string `json:"id"`
	Status        string `json:"status"`
	SubmittedDate string `json:"submittedDate"`

	// Contract endpoint fields.
	ContractNumber        string  `json:"contractNumber"`
	IDVReferenceNumber    *string `json:"idvReferenceNumber"`
	ContractAgencyCode    string  `json:"contractAgencyCode"`
	ContractIDVAgencyCode *string `json:"contractIdvAgencyCode"`

	// Assistance endpoint fields.
	FAIN            string  `json:"fain"`
	URI             *string `json:"uri"`
	FederalAgencyID *string `json:"federalAgencyId"`
	RecordType      int     `json:"recordType"`

	UEI       string             `json:"uei"`
	Subawards []SubawardFeedItem `json:"subawards"`
}

// SubawardFeedItem is one subaward report row under a prime report.
type SubawardFeedItem struct {
	ReportNumber string  `json:"subawardReportNumber"`
	Number       string  `json:"subawardNumber"`
	Amount       *string `json:"subawardAmount"`
	Date         string  `json:"subawardDate"`
	UEI          *string `json:"uei"`
	LegalName    *string `json:"awardeeName"`
	City         *string `json:"awardeeCity"`
	State        *string `json:"awardeeState"`
	Description  *string `json:"description"`
}

const (
	SubawardStatusPublished = "published"
	SubawardStatusDeleted   = "deleted"
)

// SubawardClient pulls the subaward feed. The same endpoints serve
// deletion notices under the deleted status filter.
type SubawardClient interface {
	ContractPage(ctx context.Context, since *time.Time, status string, page int) (*Page[SubawardReport], error)
	AssistancePage(ctx context.Context, since *time.Time, status string, page int) (*Page[SubawardReport], error)
}

type subawardClient struct {
	log      *logger.Logger
	http     *http.Client
	baseURL  string
	pageSize int
}

func NewSubawardClient(log *logger.Logger) (SubawardClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("SUBAWARD_FEED_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing SUBAWARD_FEED_URL")
	}
	return &subawardClient{
		log:      log.With("service", "SubawardClient"),
		http:     &http.Client{Timeout: 2 * time.Minute},
		baseURL:  baseURL,
		pageSize: 500,
	}, nil
}

func (c *subawardClient) fetch(ctx context.Context, path string, since *time.Time, status string, page int) (*Page[SubawardReport], error) {
	params := url.Values{}
	params.Set("pageNumber", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	if status != "" {
		params.Set("status", status)
	}
	if since != nil {
		params.Set("fromDate", since.Format("2006-01-02"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Transient(err, "subaward feed request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, errs.Transient(fmt.Errorf("status %d", resp.StatusCode), "subaward feed request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Internal(fmt.Errorf("status %d", resp.StatusCode), "subaward feed request rejected")
	}

	var env struct {
		TotalRecords int              `json:"totalRecords"`
		PageNumber   int              `json:"pageNumber"`
		Records      []SubawardReport `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errs.Internal(err, "subaward feed response undecodable")
	}
	return &Page[SubawardReport]{TotalRecords: env.TotalRecords, PageNumber: env.PageNumber, Records: env.Records}, nil
}

func (c *subawardClient) ContractPage(ctx context.Context, since *time.Time, status string, page int) (*Page[SubawardReport], error) {
	return c.fetch(ctx, "/subcontracts", since, status, page)
}

func (c *subawardClient) AssistancePage(ctx context.Context, since *time.Time, status string, page int) (*Page[SubawardReport], error) {
	return c.fetch(ctx, "/subgrants", since, status, page)
}
