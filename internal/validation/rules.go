package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	types "github.com/usaspending/data-broker/internal/domain"
)

type columnKind string

const (
	kindText    columnKind = "text"
	kindInt     columnKind = "int"
	kindNumeric columnKind = "numeric"
	kindDate    columnKind = "date"
)

// columnSpec is one per-column rule set: presence, type, length cap
// and enumeration membership.
type columnSpec struct {
	Required bool
	Kind     columnKind
	MaxLen   int
	Enum     []string
}

var columnSpecs = map[types.FileType]map[string]columnSpec{
	types.FileTypeA: {
		"allocationtransferagencyidentifier":      {Kind: kindText, MaxLen: 3},
		"agencyidentifier":                        {Required: true, Kind: kindText, MaxLen: 3},
		"beginningperiodofavailability":           {Kind: kindText, MaxLen: 4},
		"endingperiodofavailability":              {Kind: kindText, MaxLen: 4},
		"availabilitytypecode":                    {Kind: kindText, MaxLen: 1, Enum: []string{"x", "f"}},
		"mainaccountcode":                         {Required: true, Kind: kindText, MaxLen: 4},
		"subaccountcode":                          {Kind: kindText, MaxLen: 3},
		"totalbudgetaryresources_cpe":             {Required: true, Kind: kindNumeric},
		"budgetauthorityappropriatedamount_cpe":   {Kind: kindNumeric},
		"grossoutlayamountbytas_cpe":              {Kind: kindNumeric},
		"statusofbudgetaryresourcestotal_cpe":     {Kind: kindNumeric},
		"deobligationsrecoveriesrefundsbytas_cpe": {Kind: kindNumeric},
	},
	types.FileTypeB: {
		"agencyidentifier":                  {Required: true, Kind: kindText, MaxLen: 3},
		"mainaccountcode":                   {Required: true, Kind: kindText, MaxLen: 4},
		"objectclass":                       {Required: true, Kind: kindText, MaxLen: 4},
		"programactivitycode":               {Kind: kindText, MaxLen: 4},
		"programactivityname":               {Kind: kindText},
		"bydirectreimbursablefundingsource": {Kind: kindText, MaxLen: 1, Enum: []string{"d", "r"}},
		"obligationsincurredbyprogramobjectclass_cpe":                       {Required: true, Kind: kindNumeric},
		"grossoutlaysdeliveredorderspaidtotal_cpe":                          {Kind: kindNumeric},
		"deobligationsrecoveriesrefundsofprioryearbyprogramobjectclass_cpe": {Kind: kindNumeric},
	},
	types.FileTypeC: {
		"agencyidentifier":           {Required: true, Kind: kindText, MaxLen: 3},
		"mainaccountcode":            {Required: true, Kind: kindText, MaxLen: 4},
		"piid":                       {Kind: kindText, MaxLen: 50},
		"fain":                       {Kind: kindText, MaxLen: 30},
		"uri":                        {Kind: kindText, MaxLen: 70},
		"objectclass":                {Required: true, Kind: kindText, MaxLen: 4},
		"transactionobligatedamount": {Required: true, Kind: kindNumeric},
	},
	types.FileTypeD1: {
		"piid":                              {Required: true, Kind: kindText, MaxLen: 50},
		"parentawardid":                     {Kind: kindText, MaxLen: 50},
		"awardingagencycode":                {Required: true, Kind: kindText, MaxLen: 3},
		"awardingsubtieragencycode":         {Required: true, Kind: kindText, MaxLen: 4},
		"fundingagencycode":                 {Kind: kindText, MaxLen: 3},
		"awardeeorrecipientuei":             {Required: true, Kind: kindText, MaxLen: 12},
		"awardeeorrecipientlegalentityname": {Required: true, Kind: kindText},
		"actiondate":                        {Required: true, Kind: kindDate},
		"federalactionobligation":           {Kind: kindNumeric},
		"placeofperformancecityname":        {Kind: kindText},
		"placeofperformancestatecode":       {Kind: kindText, MaxLen: 2},
		"legalentityaddressline1":           {Kind: kindText},
		"legalentitycityname":               {Kind: kindText},
		"legalentitystatecode":              {Kind: kindText, MaxLen: 2},
		"legalentityzip4":                   {Kind: kindText, MaxLen: 10},
	},
	types.FileTypeD2: d2ColumnSpecs,
	// FABS uploads share the D2 shape.
	types.FileTypeFABS: d2ColumnSpecs,
}

var d2ColumnSpecs = map[string]columnSpec{
	"fain":                              {Kind: kindText, MaxLen: 30},
	"uri":                               {Kind: kindText, MaxLen: 70},
	"recordtype":                        {Required: true, Kind: kindInt, Enum: []string{"1", "2"}},
	"assistancelistingnumber":           {Kind: kindText, MaxLen: 6},
	"awardingagencycode":                {Required: true, Kind: kindText, MaxLen: 3},
	"awardingsubtieragencycode":         {Required: true, Kind: kindText, MaxLen: 4},
	"fundingagencycode":                 {Kind: kindText, MaxLen: 3},
	"uei":                               {Kind: kindText, MaxLen: 12},
	"awardeeorrecipientlegalentityname": {Kind: kindText},
	"actiondate":                        {Required: true, Kind: kindDate},
	"federalactionobligation":           {Kind: kindNumeric},
	"legalentitycityname":               {Kind: kindText},
	"legalentitystatecode":              {Kind: kindText, MaxLen: 2},
	"correctiondeleteindicator":         {Kind: kindText, MaxLen: 1, Enum: []string{"c", "d"}},
}

// failure is one rule violation on one row.
type failure struct {
	RowNumber int
	Header    string
	RuleLabel string
	Message   string
	Severity  types.Severity
}

// checkColumns applies the column rules to one raw record and returns
// each violated rule once.
func checkColumns(ft types.FileType, layout *headerLayout, record []string, rowNumber int) []failure {
	specs := columnSpecs[ft]
	var out []failure
	add := func(header, label, message string) {
		out = append(out, failure{
			RowNumber: rowNumber,
			Header:    header,
			RuleLabel: label,
			Message:   message,
			Severity:  types.SeverityFatal,
		})
	}
	for i, name := range layout.canonical {
		if name == "" || i >= len(record) {
			continue
		}
		spec, ok := specs[name]
		if !ok {
			continue
		}
		value := strings.TrimSpace(record[i])
		if value == "" {
			if spec.Required {
				add(name, name+"_required", fmt.Sprintf("Required field %s is missing", name))
			}
			continue
		}
		switch spec.Kind {
		case kindInt:
			if _, err := strconv.Atoi(value); err != nil {
				add(name, name+"_type", fmt.Sprintf("Field %s must be an integer, got %q", name, value))
				continue
			}
		case kindNumeric:
			if _, err := decimal.NewFromString(value); err != nil {
				add(name, name+"_type", fmt.Sprintf("Field %s must be numeric, got %q", name, value))
				continue
			}
		case kindDate:
			if _, err := types.ParseMMDDYYYY(value); err != nil {
				add(name, name+"_type", fmt.Sprintf("Field %s must be a MM/DD/YYYY date, got %q", name, value))
				continue
			}
		}
		if spec.MaxLen > 0 && len(value) > spec.MaxLen {
			add(name, name+"_length", fmt.Sprintf("Field %s exceeds %d characters", name, spec.MaxLen))
		}
		if len(spec.Enum) > 0 && !enumMember(spec.Enum, value) {
			add(name, name+"_enum", fmt.Sprintf("Field %s value %q is not an allowed value", name, value))
		}
	}
	return out
}

func enumMember(enum []string, value string) bool {
	value = strings.ToLower(value)
	for _, allowed := range enum {
		if value == allowed {
			return true
		}
	}
	return false
}

func fatalCount(failures []failure) int {
	n := 0
	for _, f := range failures {
		if f.Severity == types.SeverityFatal {
			n++
		}
	}
	return n
}
