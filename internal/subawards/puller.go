package subawards

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/clients/feeds"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Puller mirrors the subaward feed locally and hands each page to the
// reconciler. Deletion notices remove the mirror rows and their
// denormalized output; rows are never removed for staleness.
type Puller struct {
	db         *gorm.DB
	log        *logger.Logger
	repos      *repos.All
	client     feeds.SubawardClient
	reconciler *Reconciler
}

func NewPuller(db *gorm.DB, baseLog *logger.Logger, all *repos.All, client feeds.SubawardClient, rec *Reconciler) *Puller {
	return &Puller{
		db:         db,
		log:        baseLog.With("service", "SubawardPuller"),
		repos:      all,
		client:     client,
		reconciler: rec,
	}
}

// Pull ingests published reports of the kind changed since the given
// date, then applies deletion notices, then stamps the load date.
func (p *Puller) Pull(dbc dbctx.Context, kind types.SubawardKind, since *time.Time) (int, error) {
	ingested, err := p.pullPublished(dbc, kind, since)
	if err != nil {
		return ingested, err
	}
	if err := p.pullDeleted(dbc, kind, since); err != nil {
		return ingested, err
	}
	return ingested, p.repos.LoadDates.Set(dbc, types.SourceSubaward, time.Now())
}

func (p *Puller) pullPublished(dbc dbctx.Context, kind types.SubawardKind, since *time.Time) (int, error) {
	total := 0
	for page := 1; ; page++ {
		pg, err := p.fetch(dbc, kind, since, feeds.SubawardStatusPublished, page)
		if err != nil {
			return total, err
		}
		if len(pg.Records) == 0 {
			break
		}
		n, err := p.ingestPage(dbc, kind, pg.Records)
		if err != nil {
			return total, err
		}
		total += n
		if pageDone(pg, page) {
			break
		}
	}
	p.log.Info("subaward pull complete", "kind", kind, "rows", total)
	return total, nil
}

func (p *Puller) pullDeleted(dbc dbctx.Context, kind types.SubawardKind, since *time.Time) error {
	for page := 1; ; page++ {
		pg, err := p.fetch(dbc, kind, since, feeds.SubawardStatusDeleted, page)
		if err != nil {
			return err
		}
		if len(pg.Records) == 0 {
			break
		}
		ids := make([]string, 0, len(pg.Records))
		for _, rec := range pg.Records {
			ids = append(ids, rec.InternalID)
		}
		if err := p.retract(dbc, kind, ids); err != nil {
			return err
		}
		if pageDone(pg, page) {
			break
		}
	}
	return nil
}

func (p *Puller) fetch(dbc dbctx.Context, kind types.SubawardKind, since *time.Time, status string, page int) (*feeds.Page[feeds.SubawardReport], error) {
	if kind == types.SubawardContract {
		return p.client.ContractPage(dbc.Ctx, since, status, page)
	}
	return p.client.AssistancePage(dbc.Ctx, since, status, page)
}

// ingestPage upserts the page's prime reports, replaces their subaward
// report rows, and reconciles the result.
func (p *Puller) ingestPage(dbc dbctx.Context, kind types.SubawardKind, records []feeds.SubawardReport) (int, error) {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.InternalID)
	}

	if kind == types.SubawardContract {
		primes := make([]*types.PrimeContract, 0, len(records))
		for _, rec := range records {
			primes = append(primes, &types.PrimeContract{
				InternalID:            rec.InternalID,
				ContractNumber:        rec.ContractNumber,
				IDVReferenceNumber:    rec.IDVReferenceNumber,
				ContractAgencyCode:    rec.ContractAgencyCode,
				ContractIDVAgencyCode: rec.ContractIDVAgencyCode,
				UEI:                   optional(rec.UEI),
				SubmittedDate:         parseFeedDate(rec.SubmittedDate),
			})
		}
		if err := p.repos.SubReports.UpsertPrimeContracts(dbc, primes); err != nil {
			return 0, err
		}
		stored, err := p.repos.SubReports.GetPrimeContracts(dbc, ids)
		if err != nil {
			return 0, err
		}
		byInternal := make(map[string]*types.PrimeContract, len(stored))
		for _, row := range stored {
			byInternal[row.InternalID] = row
		}
		for _, rec := range records {
			prime := byInternal[rec.InternalID]
			if prime == nil {
				continue
			}
			subs := make([]*types.Subcontract, 0, len(rec.Subawards))
			for _, item := range rec.Subawards {
				subs = append(subs, &types.Subcontract{
					ParentID:        prime.ID,
					ReportNumber:    item.ReportNumber,
					SubcontractNum:  item.Number,
					Amount:          parseFeedAmount(item.Amount),
					SubcontractDate: parseFeedDate(item.Date),
					UEI:             item.UEI,
					LegalName:       item.LegalName,
					City:            item.City,
					State:           item.State,
					Description:     item.Description,
				})
			}
			if err := p.repos.SubReports.ReplaceSubcontracts(dbc, prime.ID, subs); err != nil {
				return 0, err
			}
		}
		return p.reconciler.IngestBatch(dbc, kind, ids)
	}

	primes := make([]*types.PrimeGrant, 0, len(records))
	for _, rec := range records {
		primes = append(primes, &types.PrimeGrant{
			InternalID:      rec.InternalID,
			FAIN:            rec.FAIN,
			URI:             rec.URI,
			FederalAgencyID: rec.FederalAgencyID,
			RecordType:      rec.RecordType,
			UEI:             optional(rec.UEI),
			SubmittedDate:   parseFeedDate(rec.SubmittedDate),
		})
	}
	if err := p.repos.SubReports.UpsertPrimeGrants(dbc, primes); err != nil {
		return 0, err
	}
	stored, err := p.repos.SubReports.GetPrimeGrants(dbc, ids)
	if err != nil {
		return 0, err
	}
	byInternal := make(map[string]*types.PrimeGrant, len(stored))
	for _, row := range stored {
		byInternal[row.InternalID] = row
	}
	for _, rec := range records {
		prime := byInternal[rec.InternalID]
		if prime == nil {
			continue
		}
		subs := make([]*types.Subgrant, 0, len(rec.Subawards))
		for _, item := range rec.Subawards {
			subs = append(subs, &types.Subgrant{
				ParentID:     prime.ID,
				ReportNumber: item.ReportNumber,
				SubawardNum:  item.Number,
				Amount:       parseFeedAmount(item.Amount),
				SubawardDate: parseFeedDate(item.Date),
				UEI:          item.UEI,
				LegalName:    item.LegalName,
				City:         item.City,
				State:        item.State,
				Description:  item.Description,
			})
		}
		if err := p.repos.SubReports.ReplaceSubgrants(dbc, prime.ID, subs); err != nil {
			return 0, err
		}
	}
	return p.reconciler.IngestBatch(dbc, kind, ids)
}

// retract drops retracted reports from the mirror and the denormalized
// table.
func (p *Puller) retract(dbc dbctx.Context, kind types.SubawardKind, internalIDs []string) error {
	if kind == types.SubawardContract {
		primes, err := p.repos.SubReports.GetPrimeContracts(dbc, internalIDs)
		if err != nil {
			return err
		}
		reportNumbers, err := p.contractReportNumbers(dbc, primes)
		if err != nil {
			return err
		}
		if err := p.repos.SubReports.DeletePrimeContracts(dbc, internalIDs); err != nil {
			return err
		}
		return p.repos.Subawards.DeleteByReports(dbc, kind, reportNumbers)
	}

	primes, err := p.repos.SubReports.GetPrimeGrants(dbc, internalIDs)
	if err != nil {
		return err
	}
	reportNumbers, err := p.grantReportNumbers(dbc, primes)
	if err != nil {
		return err
	}
	if err := p.repos.SubReports.DeletePrimeGrants(dbc, internalIDs); err != nil {
		return err
	}
	return p.repos.Subawards.DeleteByReports(dbc, kind, reportNumbers)
}

func (p *Puller) contractReportNumbers(dbc dbctx.Context, primes []*types.PrimeContract) ([]string, error) {
	parentIDs := make([]uuid.UUID, 0, len(primes))
	for _, prime := range primes {
		parentIDs = append(parentIDs, prime.ID)
	}
	subs, err := p.repos.SubReports.SubcontractsByParents(dbc, parentIDs)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.ReportNumber)
	}
	return out, nil
}

func (p *Puller) grantReportNumbers(dbc dbctx.Context, primes []*types.PrimeGrant) ([]string, error) {
	parentIDs := make([]uuid.UUID, 0, len(primes))
	for _, prime := range primes {
		parentIDs = append(parentIDs, prime.ID)
	}
	subs, err := p.repos.SubReports.SubgrantsByParents(dbc, parentIDs)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.ReportNumber)
	}
	return out, nil
}

func pageDone[T any](pg *feeds.Page[T], page int) bool {
	if pg.TotalRecords <= 0 {
		return true
	}
	return page*len(pg.Records) >= pg.TotalRecords
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseFeedDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func parseFeedAmount(s *string) *decimal.Decimal {
	if s == nil || *s == "" {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
