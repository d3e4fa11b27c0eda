package validation

import (
	"testing"

	types "github.com/usaspending/data-broker/internal/domain"
)

func TestNewRowBatch(t *testing.T) {
	for _, ft := range []types.FileType{
		types.FileTypeA, types.FileTypeB, types.FileTypeC,
		types.FileTypeD1, types.FileTypeD2, types.FileTypeFABS,
	} {
		b, err := newRowBatch(ft)
		if err != nil {
			t.Errorf("%s: %v", ft, err)
		}
		if b == nil {
			t.Errorf("%s: nil batch", ft)
		}
	}

	// Generated file types have no staging table.
	for _, ft := range []types.FileType{types.FileTypeE, types.FileTypeF, types.FileTypeCross} {
		b, err := newRowBatch(ft)
		if err == nil {
			t.Errorf("%s: expected error", ft)
		}
		if b != nil {
			t.Errorf("%s: expected nil batch", ft)
		}
	}
}
