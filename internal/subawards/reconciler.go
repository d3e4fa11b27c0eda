package subawards

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Reconciler joins subaward report mirrors with the awards mirror into
// denormalized Subaward rows. A row links to its prime award only when
// the derived key resolves to exactly one mirror candidate; zero
// candidates leave it unlinked for a later fix pass, more than one
// marks it ambiguous.
type Reconciler struct {
	db    *gorm.DB
	log   *logger.Logger
	repos *repos.All
}

func NewReconciler(db *gorm.DB, baseLog *logger.Logger, all *repos.All) *Reconciler {
	return &Reconciler{
		db:    db,
		log:   baseLog.With("service", "SubawardReconciler"),
		repos: all,
	}
}

// IngestBatch rebuilds the denormalized rows for the prime reports with
// the given internal ids, or for every report of the kind when ids is
// empty. Returns the number of rows written.
func (s *Reconciler) IngestBatch(dbc dbctx.Context, kind types.SubawardKind, internalIDs []string) (int, error) {
	switch kind {
	case types.SubawardContract:
		return s.ingestContracts(dbc, internalIDs)
	default:
		return s.ingestGrants(dbc, internalIDs)
	}
}

func (s *Reconciler) ingestContracts(dbc dbctx.Context, internalIDs []string) (int, error) {
	primes, err := s.repos.SubReports.GetPrimeContracts(dbc, internalIDs)
	if err != nil {
		return 0, err
	}
	if len(primes) == 0 {
		return 0, nil
	}
	byParent := make(map[uuid.UUID]*types.PrimeContract, len(primes))
	parentIDs := make([]uuid.UUID, 0, len(primes))
	keys := make(map[string]bool)
	for _, p := range primes {
		byParent[p.ID] = p
		parentIDs = append(parentIDs, p.ID)
		if k := contractAwardKey(p); k != "" {
			keys[k] = true
		}
	}
	subs, err := s.repos.SubReports.SubcontractsByParents(dbc, parentIDs)
	if err != nil {
		return 0, err
	}
	resolved, err := s.repos.Procurement.ByUniqueKeys(dbc, keySlice(keys))
	if err != nil {
		return 0, err
	}

	rows := make([]*types.Subaward, 0, len(subs))
	for _, sub := range subs {
		prime := byParent[sub.ParentID]
		if prime == nil {
			continue
		}
		row := &types.Subaward{
			ReportNumber:   sub.ReportNumber,
			Kind:           types.SubawardContract,
			UniqueAwardKey: contractAwardKey(prime),
			SubawardNumber: sub.SubcontractNum,
			Amount:         sub.Amount,
			ActionDate:     sub.SubcontractDate,
			SubAwardeeUEI:  sub.UEI,
			SubAwardeeName: sub.LegalName,
			SubCity:        sub.City,
			SubState:       sub.State,
			Description:    sub.Description,
			AwardID:        prime.ContractNumber,
			ParentAwardID:  prime.IDVReferenceNumber,
		}
		if row.UniqueAwardKey != "" {
			switch candidates := resolved[row.UniqueAwardKey]; len(candidates) {
			case 0:
			case 1:
				linkContract(row, candidates[0])
			default:
				row.Ambiguous = true
			}
		}
		rows = append(rows, row)
	}
	if err := s.repos.Subawards.UpsertByReport(dbc, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Reconciler) ingestGrants(dbc dbctx.Context, internalIDs []string) (int, error) {
	primes, err := s.repos.SubReports.GetPrimeGrants(dbc, internalIDs)
	if err != nil {
		return 0, err
	}
	if len(primes) == 0 {
		return 0, nil
	}
	byParent := make(map[uuid.UUID]*types.PrimeGrant, len(primes))
	parentIDs := make([]uuid.UUID, 0, len(primes))
	keys := make(map[string]bool)
	for _, p := range primes {
		byParent[p.ID] = p
		parentIDs = append(parentIDs, p.ID)
		if k := grantAwardKey(p); k != "" {
			keys[k] = true
		}
	}
	subs, err := s.repos.SubReports.SubgrantsByParents(dbc, parentIDs)
	if err != nil {
		return 0, err
	}
	resolved, err := s.repos.Assistance.ByUniqueKeys(dbc, keySlice(keys))
	if err != nil {
		return 0, err
	}

	rows := make([]*types.Subaward, 0, len(subs))
	for _, sub := range subs {
		prime := byParent[sub.ParentID]
		if prime == nil {
			continue
		}
		row := &types.Subaward{
			ReportNumber:   sub.ReportNumber,
			Kind:           types.SubawardGrant,
			UniqueAwardKey: grantAwardKey(prime),
			SubawardNumber: sub.SubawardNum,
			Amount:         sub.Amount,
			ActionDate:     sub.SubawardDate,
			SubAwardeeUEI:  sub.UEI,
			SubAwardeeName: sub.LegalName,
			SubCity:        sub.City,
			SubState:       sub.State,
			Description:    sub.Description,
			AwardID:        prime.FAIN,
		}
		if row.UniqueAwardKey != "" {
			switch candidates := resolved[row.UniqueAwardKey]; len(candidates) {
			case 0:
			case 1:
				linkGrant(row, candidates[0])
			default:
				row.Ambiguous = true
			}
		}
		rows = append(rows, row)
	}
	if err := s.repos.Subawards.UpsertByReport(dbc, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// FixBrokenLinks retries unresolved rows against the current awards
// mirror. Only rows that now resolve, or that turn out ambiguous, are
// touched, so repeated runs over the same window are no-ops. Returns
// the number of newly linked rows.
func (s *Reconciler) FixBrokenLinks(dbc dbctx.Context, kind types.SubawardKind, since *time.Time) (int, error) {
	unlinked, err := s.repos.Subawards.Unlinked(dbc, kind, since)
	if err != nil {
		return 0, err
	}
	if len(unlinked) == 0 {
		return 0, nil
	}
	keys := make(map[string]bool, len(unlinked))
	for _, row := range unlinked {
		keys[row.UniqueAwardKey] = true
	}

	linked := 0
	switch kind {
	case types.SubawardContract:
		resolved, err := s.repos.Procurement.ByUniqueKeys(dbc, keySlice(keys))
		if err != nil {
			return 0, err
		}
		for _, row := range unlinked {
			switch candidates := resolved[row.UniqueAwardKey]; len(candidates) {
			case 0:
				continue
			case 1:
				linkContract(row, candidates[0])
				linked++
			default:
				row.Ambiguous = true
			}
			if err := s.repos.Subawards.Update(dbc, row); err != nil {
				return linked, err
			}
		}
	default:
		resolved, err := s.repos.Assistance.ByUniqueKeys(dbc, keySlice(keys))
		if err != nil {
			return 0, err
		}
		for _, row := range unlinked {
			switch candidates := resolved[row.UniqueAwardKey]; len(candidates) {
			case 0:
				continue
			case 1:
				linkGrant(row, candidates[0])
				linked++
			default:
				row.Ambiguous = true
			}
			if err := s.repos.Subawards.Update(dbc, row); err != nil {
				return linked, err
			}
		}
	}
	if linked > 0 {
		s.log.Info("relinked subawards", "kind", kind, "count", linked)
	}
	return linked, nil
}

func linkContract(row *types.Subaward, award *types.ProcurementAward) {
	row.Ambiguous = false
	row.PrimeAwardeeUEI = &award.AwardeeUEI
	row.PrimeAwardeeName = &award.AwardeeLegalName
	row.AwardingAgencyCode = &award.AwardingAgencyCode
	row.AwardingAgencyName = award.AwardingAgencyName
	row.AwardingSubTierC = &award.AwardingSubTierAgencyC
	row.FundingAgencyCode = award.FundingAgencyCode
}

func linkGrant(row *types.Subaward, award *types.AssistanceAward) {
	row.Ambiguous = false
	row.PrimeAwardeeUEI = award.AwardeeUEI
	row.PrimeAwardeeName = award.AwardeeLegalName
	row.AwardingAgencyCode = &award.AwardingAgencyCode
	row.AwardingAgencyName = award.AwardingAgencyName
	row.AwardingSubTierC = &award.AwardingSubTierAgencyC
	row.FundingAgencyCode = award.FundingAgencyCode
}

func keySlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
