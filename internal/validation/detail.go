package validation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	types "github.com/usaspending/data-broker/internal/domain"
)

// reportWriter accumulates the per-row failure detail CSV for one
// validation job. Rows are encoded as they arrive; only the encoded
// bytes are retained.
type reportWriter struct {
	buf  bytes.Buffer
	w    *csv.Writer
	rows int
}

func newReportWriter() *reportWriter {
	rw := &reportWriter{}
	rw.w = csv.NewWriter(&rw.buf)
	_ = rw.w.Write([]string{"Row Number", "Field Name", "Rule Label", "Severity", "Error Message", "Flex Fields"})
	return rw
}

func (rw *reportWriter) add(f failure, flex string) {
	_ = rw.w.Write([]string{
		strconv.Itoa(f.RowNumber),
		f.Header,
		f.RuleLabel,
		string(f.Severity),
		f.Message,
		flex,
	})
	rw.rows++
}

func (rw *reportWriter) bytes() ([]byte, error) {
	rw.w.Flush()
	if err := rw.w.Error(); err != nil {
		return nil, err
	}
	return rw.buf.Bytes(), nil
}

// flexIndex groups flex values by row number and renders them for the
// failure report.
type flexIndex map[int][]*types.FlexField

func (fi flexIndex) add(f *types.FlexField) {
	fi[f.RowNumber] = append(fi[f.RowNumber], f)
}

func (fi flexIndex) render(rowNumber int) string {
	fields := fi[rowNumber]
	if len(fields) == 0 {
		return ""
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Header < fields[j].Header })
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Header, f.Value))
	}
	return strings.Join(parts, "; ")
}
