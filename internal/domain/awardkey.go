package domain

import (
	"fmt"
	"strings"
)

const awardKeyNone = "-NONE-"

// NormalizeAwardID strips the formatting noise reporters introduce into
// award numbers so derived keys compare equal across sources.
func NormalizeAwardID(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

func awardKeyPart(s string) string {
	if s == "" {
		return awardKeyNone
	}
	return s
}

// ContractAwardKey derives the canonical unique_award_key for a
// procurement award. Empty when no PIID is present.
func ContractAwardKey(piid, agency, parentPIID, parentAgency string) string {
	piid = NormalizeAwardID(piid)
	if piid == "" {
		return ""
	}
	return fmt.Sprintf("CONT_AWD_%s_%s_%s_%s",
		piid,
		awardKeyPart(strings.TrimSpace(agency)),
		awardKeyPart(NormalizeAwardID(parentPIID)),
		awardKeyPart(strings.TrimSpace(parentAgency)),
	)
}

// AssistanceAwardKey derives the canonical unique_award_key for a
// financial-assistance award. Aggregate records (record_type 1) key on
// URI, everything else on FAIN.
func AssistanceAwardKey(recordType int, fain, uri, subTierAgency string) string {
	subTierAgency = strings.TrimSpace(subTierAgency)
	if recordType == 1 {
		uri = NormalizeAwardID(uri)
		if uri == "" {
			return ""
		}
		return fmt.Sprintf("ASST_AGG_%s_%s", uri, awardKeyPart(subTierAgency))
	}
	fain = NormalizeAwardID(fain)
	if fain == "" {
		return ""
	}
	return fmt.Sprintf("ASST_NON_%s_%s", fain, awardKeyPart(subTierAgency))
}
