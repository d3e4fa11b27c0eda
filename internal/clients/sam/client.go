package sam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// BatchSize is the maximum number of recipient ids per request the
// source accepts.
const BatchSize = 100

// EntityClient looks up entity and executive-compensation data for
// recipient unique ids.
type EntityClient interface {
	GetRecipients(ctx context.Context, ueis []string) ([]*types.SAMRecipient, error)
}

type entityClient struct {
	log      *logger.Logger
	http     *http.Client
	baseURL  string
	username string
	password string
}

func NewEntityClient(log *logger.Logger) (EntityClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("SAM_API_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing SAM_API_URL")
	}
	username := os.Getenv("SAM_USERNAME")
	password := os.Getenv("SAM_PASSWORD")
	if username == "" || password == "" {
		return nil, fmt.Errorf("missing SAM_USERNAME / SAM_PASSWORD")
	}
	return &entityClient{
		log:      log.With("service", "SAMEntityClient"),
		http:     &http.Client{Timeout: 60 * time.Second},
		baseURL:  baseURL,
		username: username,
		password: password,
	}, nil
}

type entityRequest struct {
	UEIs []string `json:"ueiList"`
}

type officerPayload struct {
	Name   string `json:"name"`
	Amount string `json:"compensation"`
}

type entityPayload struct {
	UEI               string           `json:"uei"`
	LegalBusinessName string           `json:"legalBusinessName"`
	ParentUEI         string           `json:"ultimateParentUEI"`
	ParentName        string           `json:"ultimateParentLegalBusinessName"`
	RegistrationDate  string           `json:"registrationDate"`
	Officers          []officerPayload `json:"highestPaidOfficers"`
}

type entityResponse struct {
	Entities []entityPayload `json:"entityData"`
}

func (c *entityClient) GetRecipients(ctx context.Context, ueis []string) ([]*types.SAMRecipient, error) {
	if len(ueis) == 0 {
		return nil, nil
	}
	if len(ueis) > BatchSize {
		return nil, errs.Client("at most %d recipient ids per request, got %d", BatchSize, len(ueis))
	}

	body, err := json.Marshal(entityRequest{UEIs: ueis})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/entity-information/v2/entities", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Transient(err, "sam request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, errs.Transient(fmt.Errorf("status %d", resp.StatusCode), "sam request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Internal(fmt.Errorf("status %d", resp.StatusCode), "sam request rejected")
	}

	var payload entityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errs.Internal(err, "sam response undecodable")
	}

	out := make([]*types.SAMRecipient, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		rec, err := toRecipient(e)
		if err != nil {
			return nil, errs.Internal(err, "sam entity %s unusable", e.UEI)
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecipient(e entityPayload) (*types.SAMRecipient, error) {
	rec := &types.SAMRecipient{
		UEI:               Sanitize(e.UEI),
		LegalBusinessName: Sanitize(e.LegalBusinessName),
	}
	if p := Sanitize(e.ParentUEI); p != "" {
		rec.UltimateParentUEI = &p
	}
	if p := Sanitize(e.ParentName); p != "" {
		rec.UltimateParentName = &p
	}

	names := []**string{&rec.Officer1Name, &rec.Officer2Name, &rec.Officer3Name, &rec.Officer4Name, &rec.Officer5Name}
	amounts := []**decimal.Decimal{&rec.Officer1Amount, &rec.Officer2Amount, &rec.Officer3Amount, &rec.Officer4Amount, &rec.Officer5Amount}
	for i, officer := range e.Officers {
		if i >= 5 {
			break
		}
		name := Sanitize(officer.Name)
		if name == "" {
			continue
		}
		*names[i] = &name
		if raw := Sanitize(officer.Amount); raw != "" {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("officer compensation %q: %w", raw, err)
			}
			*amounts[i] = &amount
		}
	}
	return rec, nil
}
