package generation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/clients/gcs"
	"github.com/usaspending/data-broker/internal/clients/sam"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Builder produces the artifact bytes for one FileGeneration and
// uploads them. It never touches job or cache state; the coordinator
// owns those.
type Builder struct {
	db    *gorm.DB
	log   *logger.Logger
	repos *repos.All
	blob  gcs.BlobStore
	sam   sam.EntityClient
}

func NewBuilder(db *gorm.DB, baseLog *logger.Logger, all *repos.All, blob gcs.BlobStore, entities sam.EntityClient) *Builder {
	return &Builder{
		db:    db,
		log:   baseLog.With("service", "GenerationBuilder"),
		repos: all,
		blob:  blob,
		sam:   entities,
	}
}

// Build produces and uploads the artifact for a generation request and
// returns its blob key and row count. An empty result set still
// produces a header-only CSV.
func (b *Builder) Build(dbc dbctx.Context, gen *types.FileGeneration) (string, int, error) {
	var (
		artifact []byte
		rows     int
		err      error
	)
	switch gen.FileType {
	case types.FileTypeD1:
		artifact, rows, err = b.buildD1(dbc, gen)
	case types.FileTypeD2:
		artifact, rows, err = b.buildD2(dbc, gen)
	case types.FileTypeE:
		artifact, rows, err = b.buildE(dbc, gen)
	case types.FileTypeF:
		artifact, rows, err = b.buildF(dbc, gen)
	default:
		return "", 0, errs.Client("file type %q is not generated", gen.FileType)
	}
	if err != nil {
		return "", 0, err
	}

	key := gcs.GenerationKey(gen.Key(), gen.RequestDate)
	if err := b.blob.Upload(dbc.Ctx, key, bytes.NewReader(artifact)); err != nil {
		return "", 0, errs.Transient(err, "could not upload %s artifact", gen.FileType)
	}
	return key, rows, nil
}

// encodeCSV writes rows with the canonical headers from the row
// struct's csv tags. Dates render as YYYYMMDD, booleans lowercase.
func encodeCSV[T any](rows []*T) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	enc.Register(func(t time.Time) ([]byte, error) {
		return []byte(t.Format("20060102")), nil
	})
	if len(rows) == 0 {
		if err := enc.EncodeHeader(new(T)); err != nil {
			return nil, err
		}
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Builder) buildD1(dbc dbctx.Context, gen *types.FileGeneration) ([]byte, int, error) {
	awards, err := b.repos.Procurement.InWindow(dbc, gen.AgencyCode, gen.AgencyRole, gen.StartDate, gen.EndDate)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]*types.AwardProcurement, 0, len(awards))
	for _, a := range awards {
		actionDate := a.ActionDate
		rows = append(rows, &types.AwardProcurement{
			PIID:                    a.PIID,
			ParentAwardID:           a.ParentAwardID,
			AwardingAgencyCode:      a.AwardingAgencyCode,
			AwardingSubTierAgencyC:  a.AwardingSubTierAgencyC,
			FundingAgencyCode:       a.FundingAgencyCode,
			AwardeeUEI:              a.AwardeeUEI,
			AwardeeLegalName:        a.AwardeeLegalName,
			ActionDate:              &actionDate,
			FederalActionObligation: a.FederalActionObligation,
			PlaceOfPerformCity:      a.PlaceOfPerformCity,
			PlaceOfPerformState:     a.PlaceOfPerformState,
			LegalEntityAddressLine1: a.LegalEntityAddressLine1,
			LegalEntityCityName:     a.LegalEntityCityName,
			LegalEntityStateCode:    a.LegalEntityStateCode,
			LegalEntityZip4:         a.LegalEntityZip4,
		})
	}
	artifact, err := encodeCSV(rows)
	return artifact, len(rows), err
}

func (b *Builder) buildD2(dbc dbctx.Context, gen *types.FileGeneration) ([]byte, int, error) {
	awards, err := b.repos.Assistance.InWindow(dbc, gen.AgencyCode, gen.AgencyRole, gen.StartDate, gen.EndDate)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]*types.AwardFinancialAssistance, 0, len(awards))
	for _, a := range awards {
		actionDate := a.ActionDate
		rows = append(rows, &types.AwardFinancialAssistance{
			FAIN:                    a.FAIN,
			URI:                     a.URI,
			RecordType:              a.RecordType,
			AssistanceListingNumber: a.AssistanceListingNumber,
			AwardingAgencyCode:      a.AwardingAgencyCode,
			AwardingSubTierAgencyC:  a.AwardingSubTierAgencyC,
			FundingAgencyCode:       a.FundingAgencyCode,
			AwardeeUEI:              a.AwardeeUEI,
			AwardeeLegalName:        a.AwardeeLegalName,
			ActionDate:              &actionDate,
			FederalActionObligation: a.FederalActionObligation,
			LegalEntityCityName:     a.LegalEntityCityName,
			LegalEntityStateCode:    a.LegalEntityStateCode,
			CorrectionDeleteInd:     a.CorrectionDeleteInd,
		})
	}
	artifact, err := encodeCSV(rows)
	return artifact, len(rows), err
}

// executiveCompensationRow is the 14-column file E shape.
type executiveCompensationRow struct {
	UEI            string `csv:"awardeeorrecipientuei"`
	LegalName      string `csv:"awardeeorrecipientlegalentityname"`
	ParentUEI      string `csv:"ultimateparentuei"`
	ParentName     string `csv:"ultimateparentlegalentityname"`
	Officer1Name   string `csv:"highcompofficer1fullname"`
	Officer1Amount string `csv:"highcompofficer1amount"`
	Officer2Name   string `csv:"highcompofficer2fullname"`
	Officer2Amount string `csv:"highcompofficer2amount"`
	Officer3Name   string `csv:"highcompofficer3fullname"`
	Officer3Amount string `csv:"highcompofficer3amount"`
	Officer4Name   string `csv:"highcompofficer4fullname"`
	Officer4Amount string `csv:"highcompofficer4amount"`
	Officer5Name   string `csv:"highcompofficer5fullname"`
	Officer5Amount string `csv:"highcompofficer5amount"`
}

func (b *Builder) buildE(dbc dbctx.Context, gen *types.FileGeneration) ([]byte, int, error) {
	if gen.ParentJobID == nil {
		return nil, 0, errs.Client("file E generation requires a parent job")
	}
	parent, err := b.repos.Jobs.GetByID(dbc, *gen.ParentJobID)
	if err != nil {
		return nil, 0, err
	}
	if parent == nil {
		return nil, 0, fmt.Errorf("job %s: %w", *gen.ParentJobID, errs.ErrNotFound)
	}
	ueis, err := b.repos.Staging.DistinctRecipientUEIs(dbc, parent.SubmissionID)
	if err != nil {
		return nil, 0, err
	}

	var rows []*executiveCompensationRow
	for offset := 0; offset < len(ueis); offset += sam.BatchSize {
		chunk := ueis[offset:min(offset+sam.BatchSize, len(ueis))]
		recipients, err := b.lookupRecipients(dbc, chunk)
		if err != nil {
			return nil, 0, err
		}
		for _, uei := range chunk {
			rec, ok := recipients[uei]
			if !ok {
				continue
			}
			rows = append(rows, &executiveCompensationRow{
				UEI:            rec.UEI,
				LegalName:      rec.LegalBusinessName,
				ParentUEI:      strv(rec.UltimateParentUEI),
				ParentName:     strv(rec.UltimateParentName),
				Officer1Name:   strv(rec.Officer1Name),
				Officer1Amount: decv(rec.Officer1Amount),
				Officer2Name:   strv(rec.Officer2Name),
				Officer2Amount: decv(rec.Officer2Amount),
				Officer3Name:   strv(rec.Officer3Name),
				Officer3Amount: decv(rec.Officer3Amount),
				Officer4Name:   strv(rec.Officer4Name),
				Officer4Amount: decv(rec.Officer4Amount),
				Officer5Name:   strv(rec.Officer5Name),
				Officer5Amount: decv(rec.Officer5Amount),
			})
		}
	}
	artifact, err := encodeCSV(rows)
	return artifact, len(rows), err
}

// lookupRecipients serves a chunk from the SAM mirror and pulls only
// the missing ids from the source, persisting what comes back.
func (b *Builder) lookupRecipients(dbc dbctx.Context, ueis []string) (map[string]*types.SAMRecipient, error) {
	known, err := b.repos.SAM.GetByUEIs(dbc, ueis)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, uei := range ueis {
		if _, ok := known[uei]; !ok {
			missing = append(missing, uei)
		}
	}
	if len(missing) == 0 || b.sam == nil {
		return known, nil
	}
	fetched, err := b.sam.GetRecipients(dbc.Ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := b.repos.SAM.UpsertBatch(dbc, fetched); err != nil {
		return nil, err
	}
	for _, rec := range fetched {
		known[rec.UEI] = rec
	}
	return known, nil
}

// subawardRow is the denormalized file F shape.
type subawardRow struct {
	PrimeAwardID       string `csv:"primeawardid"`
	ParentAwardID      string `csv:"primeawardparentid"`
	AwardingAgencyCode string `csv:"awardingagencycode"`
	AwardingAgencyName string `csv:"awardingagencyname"`
	PrimeAwardeeUEI    string `csv:"primeawardeeuei"`
	PrimeAwardeeName   string `csv:"primeawardeename"`
	ReportNumber       string `csv:"subawardreportnumber"`
	SubawardNumber     string `csv:"subawardnumber"`
	SubawardType       string `csv:"subawardtype"`
	Amount             string `csv:"subawardamount"`
	ActionDate         string `csv:"subawardactiondate"`
	SubAwardeeUEI      string `csv:"subawardeeuei"`
	SubAwardeeName     string `csv:"subawardeename"`
	Description        string `csv:"subawarddescription"`
}

func (b *Builder) buildF(dbc dbctx.Context, gen *types.FileGeneration) ([]byte, int, error) {
	subawards, err := b.repos.Subawards.ForAgencyWindow(dbc, gen.AgencyCode, gen.StartDate, gen.EndDate)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]*subawardRow, 0, len(subawards))
	for _, s := range subawards {
		rows = append(rows, &subawardRow{
			PrimeAwardID:       s.AwardID,
			ParentAwardID:      strv(s.ParentAwardID),
			AwardingAgencyCode: strv(s.AwardingAgencyCode),
			AwardingAgencyName: strv(s.AwardingAgencyName),
			PrimeAwardeeUEI:    strv(s.PrimeAwardeeUEI),
			PrimeAwardeeName:   strv(s.PrimeAwardeeName),
			ReportNumber:       s.ReportNumber,
			SubawardNumber:     s.SubawardNumber,
			SubawardType:       string(s.Kind),
			Amount:             decv(s.Amount),
			ActionDate:         datev(s.ActionDate),
			SubAwardeeUEI:      strv(s.SubAwardeeUEI),
			SubAwardeeName:     strv(s.SubAwardeeName),
			Description:        strv(s.Description),
		})
	}
	artifact, err := encodeCSV(rows)
	return artifact, len(rows), err
}

func strv(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decv(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func datev(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("20060102")
}
