package subawards

import (
	"strings"

	types "github.com/usaspending/data-broker/internal/domain"
)

// contractAwardKey derives the key a prime contract report should
// resolve against in the awards mirror. The feed does not carry the
// referenced IDV agency, so that key part is left empty on both sides.
func contractAwardKey(p *types.PrimeContract) string {
	parentPIID := ""
	if p.IDVReferenceNumber != nil {
		parentPIID = *p.IDVReferenceNumber
	}
	return types.ContractAwardKey(p.ContractNumber, p.ContractAgencyCode, parentPIID, "")
}

// grantAwardKey derives the key a prime grant report should resolve
// against. Aggregate records (record_type 1) and reports without a
// federal agency id get no key: they stay unlinked and the fix pass
// never retries them.
func grantAwardKey(g *types.PrimeGrant) string {
	if g.RecordType == 1 {
		return ""
	}
	if g.FederalAgencyID == nil || strings.TrimSpace(*g.FederalAgencyID) == "" {
		return ""
	}
	return types.AssistanceAwardKey(g.RecordType, g.FAIN, "", *g.FederalAgencyID)
}
