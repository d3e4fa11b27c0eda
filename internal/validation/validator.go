package validation

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/clients/gcs"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Validator executes column rules and SQL rules against staged rows
// and finalizes validation jobs with their error aggregates.
type Validator struct {
	db    *gorm.DB
	log   *logger.Logger
	repos *repos.All
	blob  gcs.BlobStore
	graph *jobgraph.Graph
}

func New(db *gorm.DB, baseLog *logger.Logger, all *repos.All, blob gcs.BlobStore, graph *jobgraph.Graph) *Validator {
	return &Validator{
		db:    db,
		log:   baseLog.With("service", "Validator"),
		repos: all,
		blob:  blob,
		graph: graph,
	}
}

// Run dispatches a validation job by its type.
func (v *Validator) Run(dbc dbctx.Context, job *types.Job) error {
	switch job.JobType {
	case types.JobTypeCSVValidation:
		return v.ValidateFile(dbc, job)
	case types.JobTypeValidation:
		return v.ValidateCrossFile(dbc, job)
	default:
		return errs.Client("job %s is not a validation job", job.ID)
	}
}

// ruleHit is one offending row returned by a SQL rule. Cross-file
// rules may also name the matching row of the target file.
type ruleHit struct {
	RowNumber       int  `gorm:"column:row_number"`
	TargetRowNumber *int `gorm:"column:target_row_number"`
}

// ValidateFile runs the single-file pipeline: header resolution,
// streamed column rules with staging inserts, then SQL rules, then a
// failure report and the job's error aggregates.
func (v *Validator) ValidateFile(dbc dbctx.Context, job *types.Job) error {
	sub, err := v.repos.Submissions.GetByID(dbc, job.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("submission %s: %w", job.SubmissionID, errs.ErrNotFound)
	}
	sensitiveOnly, err := v.sensitiveOnly(dbc, sub)
	if err != nil {
		return err
	}

	rc, err := v.blob.Download(dbc.Ctx, gcs.ObjectKey(sub.ID, job.Filename))
	if err != nil {
		return errs.Transient(err, "could not fetch %s for validation", job.Filename)
	}
	defer rc.Close()

	rdr := csv.NewReader(rc)
	rdr.FieldsPerRecord = -1
	rdr.LazyQuotes = true

	rawHeader, err := rdr.Read()
	if err != nil {
		return v.markInvalid(dbc, job, &errs.StructuralError{Message: "The file is empty or has no header row"})
	}
	layout, err := resolveHeaders(job.FileType, rawHeader)
	if err != nil {
		return err
	}
	if !layout.structuralOK() {
		return v.markInvalid(dbc, job, structuralError(layout))
	}

	// Re-validation starts from a clean slate for this job.
	if err := v.repos.Staging.DeleteForJob(dbc, job.FileType, job.ID); err != nil {
		return err
	}

	batch, err := newRowBatch(job.FileType)
	if err != nil {
		return err
	}
	dec, err := csvutil.NewDecoder(rdr, layout.decoderHeader()...)
	if err != nil {
		return err
	}
	dec.Register(func(data []byte, t *time.Time) error {
		parsed, err := types.ParseMMDDYYYY(string(data))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	})

	report := newReportWriter()
	flexByRow := flexIndex{}
	agg := newAggregator(job)
	var flexRows []*types.FlexField

	rowNumber := 1
	rowCount := 0
	for {
		row := batch.next()
		decodeErr := dec.Decode(row)
		if decodeErr == io.EOF {
			break
		}
		rowNumber++
		rowCount++
		record := dec.Record()

		for _, idx := range dec.Unused() {
			if idx >= len(record) || strings.TrimSpace(record[idx]) == "" {
				continue
			}
			flexField := &types.FlexField{
				ID:           uuid.New(),
				SubmissionID: sub.ID,
				JobID:        job.ID,
				RowNumber:    rowNumber,
				Header:       layout.flex[idx],
				Value:        record[idx],
			}
			flexRows = append(flexRows, flexField)
			flexByRow.add(flexField)
		}

		fails := checkColumns(job.FileType, layout, record, rowNumber)
		if decodeErr != nil && fatalCount(fails) == 0 {
			fails = append(fails, failure{
				RowNumber: rowNumber,
				RuleLabel: "row_format",
				Message:   fmt.Sprintf("Row could not be parsed: %v", decodeErr),
				Severity:  types.SeverityFatal,
			})
		}
		for _, f := range fails {
			agg.addColumnFailure(f)
			report.add(f, flexByRow.render(f.RowNumber))
		}
		if decodeErr == nil && fatalCount(fails) == 0 {
			batch.keep(row, sub.ID, job.ID, rowNumber)
			if batch.pending() >= insertBatchSize {
				if err := batch.flush(dbc, v.repos.Staging); err != nil {
					return err
				}
			}
		}
	}
	if err := batch.flush(dbc, v.repos.Staging); err != nil {
		return err
	}
	if err := v.repos.Staging.ReplaceFlexFields(dbc, job.ID, flexRows); err != nil {
		return err
	}

	rules, err := v.repos.Rules.ForFile(dbc, job.FileType, sensitiveOnly)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		hits, err := v.runRule(dbc, rule, sub.ID, job.ID)
		if err != nil {
			return errs.Internal(err, "rule %s failed to execute", rule.RuleLabel)
		}
		agg.addRuleHits(rule, hits)
		for _, hit := range hits {
			report.add(failure{
				RowNumber: hit.RowNumber,
				RuleLabel: rule.RuleLabel,
				Message:   rule.Description,
				Severity:  rule.Severity,
			}, flexByRow.render(hit.RowNumber))
		}
	}

	return v.finishValidation(dbc, sub, job, agg, report, rowCount)
}

// ValidateCrossFile runs the cross-flagged SQL rules whose file pair
// is present in the submission.
func (v *Validator) ValidateCrossFile(dbc dbctx.Context, job *types.Job) error {
	sub, err := v.repos.Submissions.GetByID(dbc, job.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("submission %s: %w", job.SubmissionID, errs.ErrNotFound)
	}
	sensitiveOnly, err := v.sensitiveOnly(dbc, sub)
	if err != nil {
		return err
	}

	present, err := v.finishedFileTypes(dbc, sub.ID)
	if err != nil {
		return err
	}
	rules, err := v.repos.Rules.CrossFile(dbc, sensitiveOnly)
	if err != nil {
		return err
	}

	report := newReportWriter()
	agg := newAggregator(job)
	for _, rule := range rules {
		if !present[rule.FileType] || !present[rule.TargetFileType] {
			continue
		}
		hits, err := v.runRule(dbc, rule, sub.ID, job.ID)
		if err != nil {
			return errs.Internal(err, "rule %s failed to execute", rule.RuleLabel)
		}
		agg.addRuleHits(rule, hits)
		for _, hit := range hits {
			report.add(failure{
				RowNumber: hit.RowNumber,
				RuleLabel: rule.RuleLabel,
				Message:   rule.Description,
				Severity:  rule.Severity,
			}, "")
		}
	}

	return v.finishValidation(dbc, sub, job, agg, report, 0)
}

// Rollup recomputes the submission's error and warning totals from
// its jobs. Runs after every validation job finishes.
func (v *Validator) Rollup(dbc dbctx.Context, submissionID uuid.UUID) error {
	errorsTotal, warningsTotal, err := v.repos.Jobs.SumCounts(dbc, submissionID)
	if err != nil {
		return err
	}
	return v.repos.Submissions.UpdateFields(dbc, submissionID, map[string]interface{}{
		"number_of_errors":   errorsTotal,
		"number_of_warnings": warningsTotal,
	})
}

func (v *Validator) sensitiveOnly(dbc dbctx.Context, sub *types.Submission) (bool, error) {
	agency, err := v.repos.Agencies.GetByCode(dbc, sub.AgencyCode())
	if err != nil {
		return false, err
	}
	return agency != nil && agency.Sensitive, nil
}

func (v *Validator) finishedFileTypes(dbc dbctx.Context, submissionID uuid.UUID) (map[types.FileType]bool, error) {
	jobs, err := v.repos.Jobs.GetBySubmission(dbc, submissionID)
	if err != nil {
		return nil, err
	}
	present := map[types.FileType]bool{}
	for _, j := range jobs {
		if j.JobType == types.JobTypeCSVValidation && j.Status == types.StatusFinished {
			present[j.FileType] = true
		}
	}
	return present, nil
}

// runRule executes one catalog rule with the submission and job
// bound. Queries select row_number (and target_row_number for
// cross-file rules) from the staging tables.
func (v *Validator) runRule(dbc dbctx.Context, rule *types.RuleSQL, submissionID, jobID uuid.UUID) ([]ruleHit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = v.db
	}
	var hits []ruleHit
	err := transaction.WithContext(dbc.Ctx).
		Raw(rule.Query, sql.Named("submission_id", submissionID), sql.Named("job_id", jobID)).
		Scan(&hits).Error
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (v *Validator) finishValidation(dbc dbctx.Context, sub *types.Submission, job *types.Job, agg *aggregator, report *reportWriter, rowCount int) error {
	if err := v.repos.ErrorMeta.Replace(dbc, job.ID, agg.rows()); err != nil {
		return err
	}
	reportBytes, err := report.bytes()
	if err != nil {
		return err
	}
	reportKey := gcs.SubmissionKey(sub.ID, fmt.Sprintf("reports/%s_report.csv", job.ID))
	if err := v.blob.Upload(dbc.Ctx, reportKey, bytes.NewReader(reportBytes)); err != nil {
		return errs.Transient(err, "could not store validation report for job %s", job.ID)
	}

	if err := v.graph.MarkStatus(dbc, job.ID, types.StatusFinished, map[string]interface{}{
		"number_of_rows":     rowCount,
		"number_of_errors":   agg.errors,
		"number_of_warnings": agg.warnings,
		"last_validated":     time.Now(),
	}); err != nil {
		return err
	}
	return v.Rollup(dbc, sub.ID)
}

func (v *Validator) markInvalid(dbc dbctx.Context, job *types.Job, structural *errs.StructuralError) error {
	if err := v.graph.MarkStatus(dbc, job.ID, types.StatusInvalid, map[string]interface{}{
		"error_message": structural.Error(),
	}); err != nil {
		return err
	}
	return v.Rollup(dbc, job.SubmissionID)
}

func structuralError(layout *headerLayout) *errs.StructuralError {
	var parts []string
	if len(layout.missing) > 0 {
		parts = append(parts, "Missing headers: "+strings.Join(layout.missing, ", "))
	}
	if len(layout.duplicates) > 0 {
		parts = append(parts, "Duplicated headers: "+strings.Join(layout.duplicates, ", "))
	}
	return &errs.StructuralError{
		Message:          strings.Join(parts, ". "),
		MissingHeaders:   layout.missing,
		DuplicateHeaders: layout.duplicates,
	}
}

// aggregator folds individual failures into per-(job, rule_label)
// ErrorMetadata rows and running totals.
type aggregator struct {
	job      *types.Job
	byLabel  map[string]*types.ErrorMetadata
	errors   int
	warnings int
}

func newAggregator(job *types.Job) *aggregator {
	return &aggregator{job: job, byLabel: map[string]*types.ErrorMetadata{}}
}

func (a *aggregator) bump(label, message string, severity types.Severity, fileType, targetFileType types.FileType, occurrences int) {
	if occurrences == 0 {
		return
	}
	row, ok := a.byLabel[label]
	if !ok {
		row = &types.ErrorMetadata{
			ID:             uuid.New(),
			JobID:          a.job.ID,
			RuleLabel:      label,
			RuleFailed:     message,
			Severity:       severity,
			FileType:       fileType,
			TargetFileType: targetFileType,
		}
		a.byLabel[label] = row
	}
	row.Occurrences += occurrences
	if severity == types.SeverityWarning {
		a.warnings += occurrences
	} else {
		a.errors += occurrences
	}
}

func (a *aggregator) addColumnFailure(f failure) {
	a.bump(f.RuleLabel, f.Message, f.Severity, a.job.FileType, "", 1)
}

func (a *aggregator) addRuleHits(rule *types.RuleSQL, hits []ruleHit) {
	a.bump(rule.RuleLabel, rule.Description, rule.Severity, rule.FileType, rule.TargetFileType, len(hits))
}

func (a *aggregator) rows() []*types.ErrorMetadata {
	out := make([]*types.ErrorMetadata, 0, len(a.byLabel))
	for _, row := range a.byLabel {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleLabel < out[j].RuleLabel })
	return out
}
