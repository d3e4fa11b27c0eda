package validation

import (
	"fmt"
	"reflect"
	"strings"

	types "github.com/usaspending/data-broker/internal/domain"
)

func stagingModel(ft types.FileType) (interface{}, error) {
	switch ft {
	case types.FileTypeA:
		return &types.Appropriation{}, nil
	case types.FileTypeB:
		return &types.ObjectClassProgramActivity{}, nil
	case types.FileTypeC:
		return &types.AwardFinancial{}, nil
	case types.FileTypeD1:
		return &types.AwardProcurement{}, nil
	case types.FileTypeD2, types.FileTypeFABS:
		return &types.AwardFinancialAssistance{}, nil
	default:
		return nil, fmt.Errorf("no staging model for file type %q", ft)
	}
}

// canonicalHeaders returns the declared header order for a file type,
// read off the staging struct's csv tags.
func canonicalHeaders(ft types.FileType) ([]string, error) {
	model, err := stagingModel(ft)
	if err != nil {
		return nil, err
	}
	t := reflect.TypeOf(model).Elem()
	var out []string
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("csv")
		if tag == "" || tag == "-" {
			continue
		}
		out = append(out, strings.Split(tag, ",")[0])
	}
	return out, nil
}

// normalizeHeader makes header matching case- and whitespace-
// insensitive. Underscores fold away so historical header spellings
// still resolve.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "_", "")
	return h
}

// headerLayout resolves each raw column of an uploaded file to either
// a canonical header or a flex field.
type headerLayout struct {
	// canonical[i] is the canonical name of column i, or "" when the
	// column is a flex field.
	canonical []string
	// flex[i] is the raw header of column i when it is a flex field.
	flex       []string
	missing    []string
	duplicates []string
}

func (l *headerLayout) structuralOK() bool {
	return len(l.missing) == 0 && len(l.duplicates) == 0
}

func resolveHeaders(ft types.FileType, raw []string) (*headerLayout, error) {
	expected, err := canonicalHeaders(ft)
	if err != nil {
		return nil, err
	}
	byNormalized := make(map[string]string, len(expected))
	for _, name := range expected {
		byNormalized[normalizeHeader(name)] = name
	}

	layout := &headerLayout{
		canonical: make([]string, len(raw)),
		flex:      make([]string, len(raw)),
	}
	seen := map[string]int{}
	for i, col := range raw {
		name, ok := byNormalized[normalizeHeader(col)]
		if !ok {
			layout.flex[i] = strings.TrimSpace(col)
			continue
		}
		layout.canonical[i] = name
		seen[name]++
	}
	for _, name := range expected {
		switch seen[name] {
		case 0:
			layout.missing = append(layout.missing, name)
		case 1:
		default:
			layout.duplicates = append(layout.duplicates, name)
		}
	}
	return layout, nil
}

// decoderHeader is the header row handed to the struct decoder:
// canonical names where columns resolved, raw names for flex columns
// so the decoder reports them as unused.
func (l *headerLayout) decoderHeader() []string {
	out := make([]string, len(l.canonical))
	for i, name := range l.canonical {
		if name != "" {
			out[i] = name
			continue
		}
		out[i] = l.flex[i]
	}
	return out
}
