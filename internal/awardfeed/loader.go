package awardfeed

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/clients/feeds"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Loader mirrors the procurement and assistance feeds into the award
// tables that back D1/D2 generation and subaward linking.
type Loader struct {
	db     *gorm.DB
	log    *logger.Logger
	repos  *repos.All
	client feeds.AwardsClient
}

func NewLoader(db *gorm.DB, baseLog *logger.Logger, all *repos.All, client feeds.AwardsClient) *Loader {
	return &Loader{
		db:     db,
		log:    baseLog.With("service", "AwardFeedLoader"),
		repos:  all,
		client: client,
	}
}

// LoadProcurement mirrors the procurement feed for the window. When
// dryRun is set the feed is paged and counted but nothing is written.
// Stamps the procurement load date on success, which expires cached D1
// artifacts requested before the load.
func (l *Loader) LoadProcurement(dbc dbctx.Context, window feeds.Window, dryRun bool) (int, error) {
	total := 0
	for page := 1; ; page++ {
		pg, err := l.client.ProcurementPage(dbc.Ctx, window, page)
		if err != nil {
			return total, err
		}
		if len(pg.Records) == 0 {
			break
		}
		rows := make([]*types.ProcurementAward, 0, len(pg.Records))
		for _, rec := range pg.Records {
			rows = append(rows, procurementRow(rec))
		}
		total += len(rows)
		if !dryRun {
			if err := l.repos.Procurement.UpsertBatch(dbc, rows); err != nil {
				return total, err
			}
		}
		if pageDone(pg, page) {
			break
		}
	}
	l.log.Info("procurement load complete", "rows", total, "dry_run", dryRun)
	if dryRun {
		return total, nil
	}
	return total, l.repos.LoadDates.Set(dbc, types.SourceProcurement, time.Now())
}

// LoadAssistance mirrors the assistance feed for the window. Records
// flagged with the delete indicator are removed instead of upserted.
func (l *Loader) LoadAssistance(dbc dbctx.Context, window feeds.Window, dryRun bool) (int, error) {
	total := 0
	for page := 1; ; page++ {
		pg, err := l.client.AssistancePage(dbc.Ctx, window, page)
		if err != nil {
			return total, err
		}
		if len(pg.Records) == 0 {
			break
		}
		rows := make([]*types.AssistanceAward, 0, len(pg.Records))
		deletions := make([]string, 0)
		for _, rec := range pg.Records {
			if rec.CorrectionDeleteInd != nil && *rec.CorrectionDeleteInd == "D" {
				deletions = append(deletions, rec.AFAGeneratedUnique)
				continue
			}
			rows = append(rows, assistanceRow(rec))
		}
		total += len(rows)
		if !dryRun {
			if err := l.repos.Assistance.UpsertBatch(dbc, rows); err != nil {
				return total, err
			}
			if err := l.repos.Assistance.DeleteByGeneratedIDs(dbc, deletions); err != nil {
				return total, err
			}
		}
		if pageDone(pg, page) {
			break
		}
	}
	l.log.Info("assistance load complete", "rows", total, "dry_run", dryRun)
	if dryRun {
		return total, nil
	}
	return total, l.repos.LoadDates.Set(dbc, types.SourceAssistance, time.Now())
}

func procurementRow(rec feeds.ProcurementRecord) *types.ProcurementAward {
	parentPIID := ""
	if rec.ParentAwardID != nil {
		parentPIID = *rec.ParentAwardID
	}
	return &types.ProcurementAward{
		DetachedAwardProcID:     rec.DetachedAwardProcUnique,
		UniqueAwardKey:          types.ContractAwardKey(rec.PIID, rec.AwardingSubTierAgencyC, parentPIID, ""),
		PIID:                    rec.PIID,
		ParentAwardID:           rec.ParentAwardID,
		AwardingAgencyCode:      rec.AwardingAgencyCode,
		AwardingAgencyName:      rec.AwardingAgencyName,
		AwardingSubTierAgencyC:  rec.AwardingSubTierAgencyC,
		FundingAgencyCode:       rec.FundingAgencyCode,
		AwardeeUEI:              rec.AwardeeUEI,
		AwardeeLegalName:        rec.AwardeeLegalName,
		ActionDate:              parseActionDate(rec.ActionDate),
		FederalActionObligation: parseAmount(rec.FederalActionObligation),
		PlaceOfPerformCity:      rec.PlaceOfPerformCity,
		PlaceOfPerformState:     rec.PlaceOfPerformState,
		LegalEntityAddressLine1: rec.LegalEntityAddressLine1,
		LegalEntityCityName:     rec.LegalEntityCityName,
		LegalEntityStateCode:    rec.LegalEntityStateCode,
		LegalEntityZip4:         rec.LegalEntityZip4,
	}
}

func assistanceRow(rec feeds.AssistanceRecord) *types.AssistanceAward {
	fain, uri := "", ""
	if rec.FAIN != nil {
		fain = *rec.FAIN
	}
	if rec.URI != nil {
		uri = *rec.URI
	}
	return &types.AssistanceAward{
		AFAGeneratedID:          rec.AFAGeneratedUnique,
		UniqueAwardKey:          types.AssistanceAwardKey(rec.RecordType, fain, uri, rec.AwardingSubTierAgencyC),
		FAIN:                    rec.FAIN,
		URI:                     rec.URI,
		RecordType:              rec.RecordType,
		AssistanceListingNumber: rec.AssistanceListingNumber,
		AwardingAgencyCode:      rec.AwardingAgencyCode,
		AwardingAgencyName:      rec.AwardingAgencyName,
		AwardingSubTierAgencyC:  rec.AwardingSubTierAgencyC,
		FundingAgencyCode:       rec.FundingAgencyCode,
		AwardeeUEI:              rec.UEI,
		AwardeeLegalName:        rec.AwardeeLegalName,
		ActionDate:              parseActionDate(rec.ActionDate),
		FederalActionObligation: parseAmount(rec.FederalActionObligation),
		LegalEntityCityName:     rec.LegalEntityCityName,
		LegalEntityStateCode:    rec.LegalEntityStateCode,
		CorrectionDeleteInd:     rec.CorrectionDeleteInd,
	}
}

func pageDone[T any](pg *feeds.Page[T], page int) bool {
	if pg.TotalRecords <= 0 {
		return true
	}
	return page*len(pg.Records) >= pg.TotalRecords
}

func parseActionDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseAmount(s *string) *decimal.Decimal {
	if s == nil || *s == "" {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
