package validation

import (
	"github.com/google/uuid"

	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/errs"
)

const insertBatchSize = 1000

// rowBatch buffers decoded staging rows and flushes them in bounded
// chunks so large files never hold all rows in memory.
type rowBatch interface {
	next() interface{}
	keep(row interface{}, submissionID, jobID uuid.UUID, rowNumber int)
	flush(dbc dbctx.Context, staging repos.StagingRepo) error
	pending() int
}

type typedBatch[T any] struct {
	rows   []*T
	assign func(*T, uuid.UUID, uuid.UUID, int)
}

func (b *typedBatch[T]) next() interface{} { return new(T) }

func (b *typedBatch[T]) keep(row interface{}, submissionID, jobID uuid.UUID, rowNumber int) {
	typed := row.(*T)
	b.assign(typed, submissionID, jobID, rowNumber)
	b.rows = append(b.rows, typed)
}

func (b *typedBatch[T]) flush(dbc dbctx.Context, staging repos.StagingRepo) error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := staging.InsertRows(dbc, b.rows); err != nil {
		return err
	}
	b.rows = nil
	return nil
}

func (b *typedBatch[T]) pending() int { return len(b.rows) }

func newRowBatch(ft types.FileType) (rowBatch, error) {
	switch ft {
	case types.FileTypeA:
		return &typedBatch[types.Appropriation]{assign: func(r *types.Appropriation, s, j uuid.UUID, n int) {
			r.ID, r.SubmissionID, r.JobID, r.RowNumber = uuid.New(), s, j, n
		}}, nil
	case types.FileTypeB:
		return &typedBatch[types.ObjectClassProgramActivity]{assign: func(r *types.ObjectClassProgramActivity, s, j uuid.UUID, n int) {
			r.ID, r.SubmissionID, r.JobID, r.RowNumber = uuid.New(), s, j, n
		}}, nil
	case types.FileTypeC:
		return &typedBatch[types.AwardFinancial]{assign: func(r *types.AwardFinancial, s, j uuid.UUID, n int) {
			r.ID, r.SubmissionID, r.JobID, r.RowNumber = uuid.New(), s, j, n
		}}, nil
	case types.FileTypeD1:
		return &typedBatch[types.AwardProcurement]{assign: func(r *types.AwardProcurement, s, j uuid.UUID, n int) {
			r.ID, r.SubmissionID, r.JobID, r.RowNumber = uuid.New(), s, j, n
		}}, nil
	case types.FileTypeD2, types.FileTypeFABS:
		return &typedBatch[types.AwardFinancialAssistance]{assign: func(r *types.AwardFinancialAssistance, s, j uuid.UUID, n int) {
			r.ID, r.SubmissionID, r.JobID, r.RowNumber = uuid.New(), s, j, n
		}}, nil
	default:
		return nil, errs.Internal(nil, "no staging table for file type %q", ft)
	}
}
