package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/envutil"
	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Controller drives the submission lifecycle: creation, publish,
// certify and revert. Publish-state transitions go through the
// submission CAS so racing callers resolve to exactly one winner.
type Controller struct {
	db    *gorm.DB
	log   *logger.Logger
	repos *repos.All
	graph *jobgraph.Graph

	// Publishes are rejected when the submission was last validated
	// before this date, typically the deploy date of a rule change.
	revalidationThreshold time.Time
}

func New(db *gorm.DB, baseLog *logger.Logger, all *repos.All, graph *jobgraph.Graph) *Controller {
	threshold := time.Time{}
	if raw := envutil.Str("REVALIDATION_THRESHOLD", ""); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			threshold = t
		} else {
			baseLog.Warn("invalid REVALIDATION_THRESHOLD, ignoring", "value", raw)
		}
	}
	return &Controller{
		db:                    db,
		log:                   baseLog.With("service", "LifecycleController"),
		repos:                 all,
		graph:                 graph,
		revalidationThreshold: threshold,
	}
}

// CreateRequest carries everything needed to open a submission.
type CreateRequest struct {
	OwnerUserID uuid.UUID
	CGACCode    *string
	FRECCode    *string
	FiscalYear  int
	Period      int
	Cadence     types.Cadence
	Kind        types.SubmissionKind
	TestFlag    bool
}

// Create validates the request, opens the submission and builds its
// job graph in one transaction.
func (c *Controller) Create(dbc dbctx.Context, req CreateRequest) (*types.Submission, error) {
	hasCGAC := req.CGACCode != nil && *req.CGACCode != ""
	hasFREC := req.FRECCode != nil && *req.FRECCode != ""
	if hasCGAC == hasFREC {
		return nil, errs.Client("exactly one of cgac_code and frec_code must be set")
	}
	code := ""
	if hasCGAC {
		code = *req.CGACCode
	} else {
		code = *req.FRECCode
	}
	agency, err := c.repos.Agencies.GetByCode(dbc, code)
	if err != nil {
		return nil, err
	}
	if agency == nil {
		return nil, errs.Client("unknown agency code %q", code)
	}
	if agency.IsFREC != hasFREC {
		return nil, errs.Client("agency %q submitted under the wrong code type", code)
	}
	if req.Period < 2 || req.Period > 12 {
		return nil, errs.Client("reporting period %d out of range", req.Period)
	}
	if req.Cadence == types.CadenceQuarterly && !types.QuarterlyPeriods[req.Period] {
		return nil, errs.Client("period %d is not a quarter-closing period", req.Period)
	}
	if req.Kind == types.KindFABS && req.Cadence == types.CadenceQuarterly {
		return nil, errs.Client("fabs submissions are not quarterly")
	}

	sub := &types.Submission{
		ID:                    uuid.New(),
		OwnerUserID:           req.OwnerUserID,
		CGACCode:              req.CGACCode,
		FRECCode:              req.FRECCode,
		ReportingFiscalYear:   req.FiscalYear,
		ReportingFiscalPeriod: req.Period,
		Cadence:               req.Cadence,
		Kind:                  req.Kind,
		PublishState:          types.StateUnpublished,
		TestFlag:              req.TestFlag,
	}
	err = c.transact(dbc, func(txc dbctx.Context) error {
		if _, err := c.repos.Submissions.Create(txc, sub); err != nil {
			return err
		}
		_, err := c.graph.CreateSubmissionJobs(txc, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("submission created", "submission_id", sub.ID, "agency", code, "kind", sub.Kind)
	return sub, nil
}

// Publish moves a submission to published after the full precondition
// chain passes. The first publish for a period retires competing
// unpublished submissions to test.
func (c *Controller) Publish(dbc dbctx.Context, submissionID uuid.UUID) error {
	sub, err := c.loadSubmission(dbc, submissionID)
	if err != nil {
		return err
	}
	prior := sub.PublishState
	if err := c.checkPublishable(dbc, sub); err != nil {
		return err
	}

	moved, err := c.repos.Submissions.TransitionPublishState(dbc, sub.ID,
		[]types.PublishState{types.StateUnpublished, types.StateUpdated}, types.StatePublishing)
	if err != nil {
		return err
	}
	if !moved {
		return errs.Conflict("submission %s is not in a publishable state", sub.ID)
	}

	err = c.transact(dbc, func(txc dbctx.Context) error {
		if err := c.repos.Staging.SnapshotToPublished(txc, sub.ID); err != nil {
			return err
		}
		if err := c.repos.ErrorMeta.SnapshotToPublished(txc, sub.ID); err != nil {
			return err
		}
		publish, err := c.repos.Publish.CreatePublish(txc, sub.ID)
		if err != nil {
			return err
		}
		if err := c.snapshotFiles(txc, sub, publish); err != nil {
			return err
		}
		if prior == types.StateUnpublished {
			if err := c.retireCompeting(txc, sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Hand the submission back so the owner can retry.
		if _, casErr := c.repos.Submissions.TransitionPublishState(dbc, sub.ID,
			[]types.PublishState{types.StatePublishing}, prior); casErr != nil {
			c.log.Error("could not release publishing state", "submission_id", sub.ID, "error", casErr)
		}
		return err
	}

	if _, err := c.repos.Submissions.TransitionPublishState(dbc, sub.ID,
		[]types.PublishState{types.StatePublishing}, types.StatePublished); err != nil {
		return err
	}
	c.log.Info("submission published", "submission_id", sub.ID)
	return nil
}

// checkPublishable runs every publish precondition in rejection order.
func (c *Controller) checkPublishable(dbc dbctx.Context, sub *types.Submission) error {
	if sub.Kind != types.KindDABS {
		return errs.Client("only dabs submissions publish through this flow")
	}
	if sub.TestFlag {
		return errs.Client("test submissions cannot be published")
	}
	if sub.PublishState != types.StateUnpublished && sub.PublishState != types.StateUpdated {
		return errs.Conflict("submission %s is %s", sub.ID, sub.PublishState)
	}
	banner, err := c.repos.Banners.ActiveBlocking(dbc, time.Now())
	if err != nil {
		return err
	}
	if banner != nil {
		return errs.Conflict("publishing is suspended: %s", banner.Message)
	}
	if sub.NumberOfErrors > 0 {
		return errs.Client("submission has %d fatal errors", sub.NumberOfErrors)
	}

	lastValidated, err := c.lastCrossValidation(dbc, sub.ID)
	if err != nil {
		return err
	}
	if lastValidated == nil {
		return errs.Client("submission has not completed cross-file validation")
	}
	if !c.revalidationThreshold.IsZero() && lastValidated.Before(c.revalidationThreshold) {
		return errs.Client("submission must be revalidated before publishing")
	}
	window, err := c.repos.Windows.Get(dbc, sub.ReportingFiscalYear, sub.ReportingFiscalPeriod)
	if err != nil {
		return err
	}
	if window == nil {
		return errs.Client("no submission window for year %d period %d", sub.ReportingFiscalYear, sub.ReportingFiscalPeriod)
	}
	if lastValidated.Before(window.PeriodStart) {
		return errs.Client("submission was validated before the reporting window opened")
	}

	for _, ft := range []types.FileType{types.FileTypeA, types.FileTypeB} {
		n, err := c.repos.Staging.CountRows(dbc, ft, sub.ID)
		if err != nil {
			return err
		}
		if n < 1 {
			return errs.Client("file %s has no rows", ft)
		}
	}

	published, err := c.repos.Submissions.FindPublishedForPeriod(dbc, sub.AgencyCode(), sub.ReportingFiscalYear, sub.ReportingFiscalPeriod)
	if err != nil {
		return err
	}
	for _, other := range published {
		if other.ID != sub.ID {
			return errs.Conflict("agency already has a published submission for year %d period %d",
				sub.ReportingFiscalYear, sub.ReportingFiscalPeriod)
		}
	}
	return nil
}

// lastCrossValidation returns the cross-file job's last_validated, nil
// until the whole pipeline has completed at least once.
func (c *Controller) lastCrossValidation(dbc dbctx.Context, submissionID uuid.UUID) (*time.Time, error) {
	cross, err := c.repos.Jobs.GetBySubmissionTypeFile(dbc, submissionID, types.JobTypeValidation, types.FileTypeCross)
	if err != nil {
		return nil, err
	}
	if cross == nil || cross.Status != types.StatusFinished {
		return nil, nil
	}
	return cross.LastValidated, nil
}

// snapshotFiles records the file paths live at publish time.
func (c *Controller) snapshotFiles(dbc dbctx.Context, sub *types.Submission, publish *types.PublishHistory) error {
	jobs, err := c.repos.Jobs.GetBySubmission(dbc, sub.ID)
	if err != nil {
		return err
	}
	rows := make([]*types.PublishedFilesHistory, 0, len(jobs))
	seen := map[types.FileType]bool{}
	for _, job := range jobs {
		if job.Filename == "" || seen[job.FileType] {
			continue
		}
		seen[job.FileType] = true
		rows = append(rows, &types.PublishedFilesHistory{
			ID:               uuid.New(),
			PublishHistoryID: publish.ID,
			SubmissionID:     sub.ID,
			FileType:         job.FileType,
			FilePath:         job.Filename,
		})
	}
	return c.repos.Publish.SnapshotFiles(dbc, rows)
}

// retireCompeting flips every other unpublished submission for the
// period to test and stamps it with the winning submission id.
func (c *Controller) retireCompeting(dbc dbctx.Context, sub *types.Submission) error {
	competing, err := c.repos.Submissions.FindUnpublishedForPeriod(dbc, sub.AgencyCode(),
		sub.ReportingFiscalYear, sub.ReportingFiscalPeriod, sub.ID)
	if err != nil {
		return err
	}
	if len(competing) == 0 {
		return nil
	}
	stamp, err := json.Marshal([]string{sub.ID.String()})
	if err != nil {
		return err
	}
	for _, other := range competing {
		if err := c.repos.Submissions.UpdateFields(dbc, other.ID, map[string]interface{}{
			"test_flag":                true,
			"published_submission_ids": stamp,
		}); err != nil {
			return err
		}
	}
	c.log.Info("retired competing submissions", "submission_id", sub.ID, "count", len(competing))
	return nil
}

// Certify records certification of the latest publish. Quarterly
// submissions certify through PublishAndCertify instead.
func (c *Controller) Certify(dbc dbctx.Context, submissionID uuid.UUID) error {
	sub, err := c.loadSubmission(dbc, submissionID)
	if err != nil {
		return err
	}
	if sub.Cadence != types.CadenceMonthly {
		return errs.Client("quarterly submissions certify at publish time")
	}
	return c.certify(dbc, sub)
}

// certify stamps the latest publish. Only the published state
// qualifies: an updated submission has diverged from its snapshot and
// must publish again first.
func (c *Controller) certify(dbc dbctx.Context, sub *types.Submission) error {
	if sub.PublishState != types.StatePublished {
		return errs.Conflict("submission %s is %s, not published", sub.ID, sub.PublishState)
	}
	latest, err := c.repos.Publish.LatestPublish(dbc, sub.ID)
	if err != nil {
		return err
	}
	if latest == nil {
		return errs.Conflict("submission %s has never been published", sub.ID)
	}
	certified, err := c.repos.Publish.CertifiedSince(dbc, sub.ID, latest)
	if err != nil {
		return err
	}
	if certified {
		return errs.Conflict("latest publish of %s is already certified", sub.ID)
	}
	if _, err := c.repos.Publish.CreateCertify(dbc, sub.ID); err != nil {
		return err
	}
	if err := c.repos.Submissions.UpdateFields(dbc, sub.ID, map[string]interface{}{
		"certified_flag": true,
	}); err != nil {
		return err
	}
	c.log.Info("submission certified", "submission_id", sub.ID)
	return nil
}

// PublishAndCertify performs both actions atomically from the caller's
// point of view. Required for quarterly submissions; monthly ones may
// use it once their certification deadline has passed.
func (c *Controller) PublishAndCertify(dbc dbctx.Context, submissionID uuid.UUID) error {
	sub, err := c.loadSubmission(dbc, submissionID)
	if err != nil {
		return err
	}
	if sub.Cadence == types.CadenceMonthly {
		window, err := c.repos.Windows.Get(dbc, sub.ReportingFiscalYear, sub.ReportingFiscalPeriod)
		if err != nil {
			return err
		}
		if window == nil || time.Now().Before(window.CertificationDeadline) {
			return errs.Client("monthly submissions certify separately until the deadline passes")
		}
	}
	if err := c.Publish(dbc, submissionID); err != nil {
		return err
	}
	sub, err = c.loadSubmission(dbc, submissionID)
	if err != nil {
		return err
	}
	return c.certify(dbc, sub)
}

// Revert restores the latest published snapshot of an updated
// submission: staging rows, error counts and file paths all return to
// their published values.
func (c *Controller) Revert(dbc dbctx.Context, submissionID uuid.UUID) error {
	sub, err := c.loadSubmission(dbc, submissionID)
	if err != nil {
		return err
	}
	moved, err := c.repos.Submissions.TransitionPublishState(dbc, sub.ID,
		[]types.PublishState{types.StateUpdated}, types.StateReverting)
	if err != nil {
		return err
	}
	if !moved {
		return errs.Conflict("submission %s has no published snapshot to revert to", sub.ID)
	}

	err = c.transact(dbc, func(txc dbctx.Context) error {
		if err := c.repos.Staging.RestoreFromPublished(txc, sub.ID); err != nil {
			return err
		}
		if err := c.restoreFilePaths(txc, sub.ID); err != nil {
			return err
		}
		warnings, err := c.publishedWarningCount(txc, sub.ID)
		if err != nil {
			return err
		}
		return c.repos.Submissions.UpdateFields(txc, sub.ID, map[string]interface{}{
			"number_of_errors":   0,
			"number_of_warnings": warnings,
		})
	})
	if err != nil {
		return err
	}

	if _, err := c.repos.Submissions.TransitionPublishState(dbc, sub.ID,
		[]types.PublishState{types.StateReverting}, types.StatePublished); err != nil {
		return err
	}
	c.log.Info("submission reverted to published snapshot", "submission_id", sub.ID)
	return nil
}

func (c *Controller) restoreFilePaths(dbc dbctx.Context, submissionID uuid.UUID) error {
	files, err := c.repos.Publish.LatestFiles(dbc, submissionID)
	if err != nil {
		return err
	}
	byType := make(map[types.FileType]*types.PublishedFilesHistory, len(files))
	for _, f := range files {
		byType[f.FileType] = f
	}
	jobs, err := c.repos.Jobs.GetBySubmission(dbc, submissionID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		snap := byType[job.FileType]
		if snap == nil || job.Filename == snap.FilePath {
			continue
		}
		if err := c.repos.Jobs.UpdateFields(dbc, job.ID, map[string]interface{}{
			"filename": snap.FilePath,
		}); err != nil {
			return err
		}
	}
	return nil
}

// publishedWarningCount recomputes the warning total from the
// published error snapshot. The snapshot carries no fatals, a publish
// precondition.
func (c *Controller) publishedWarningCount(dbc dbctx.Context, submissionID uuid.UUID) (int, error) {
	rows, err := c.repos.ErrorMeta.GetPublished(dbc, submissionID)
	if err != nil {
		return 0, err
	}
	warnings := 0
	for _, row := range rows {
		if row.Severity == types.SeverityWarning {
			warnings += row.Occurrences
		}
	}
	return warnings, nil
}

// Delete removes an unpublished submission with no work in flight.
func (c *Controller) Delete(dbc dbctx.Context, submissionID uuid.UUID) error {
	sub, err := c.loadSubmission(dbc, submissionID)
	if err != nil {
		return err
	}
	if sub.PublishState != types.StateUnpublished {
		return errs.Conflict("submission %s has publish history and cannot be deleted", sub.ID)
	}
	running, err := c.repos.Jobs.CountRunning(dbc, sub.ID)
	if err != nil {
		return err
	}
	if running > 0 {
		return errs.Conflict("submission %s has %d running jobs", sub.ID, running)
	}
	if err := c.repos.Submissions.Delete(dbc, sub.ID); err != nil {
		return err
	}
	c.log.Info("submission deleted", "submission_id", sub.ID)
	return nil
}

// CleanExpired deletes unpublished submissions idle past the retention
// window. Returns the number removed.
func (c *Controller) CleanExpired(dbc dbctx.Context, olderThan time.Time) (int, error) {
	expired, err := c.repos.Submissions.ListExpiredUnpublished(dbc, olderThan)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, sub := range expired {
		running, err := c.repos.Jobs.CountRunning(dbc, sub.ID)
		if err != nil {
			return removed, err
		}
		if running > 0 {
			continue
		}
		if err := c.repos.Submissions.Delete(dbc, sub.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		c.log.Info("cleaned expired submissions", "count", removed)
	}
	return removed, nil
}

func (c *Controller) loadSubmission(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	sub, err := c.repos.Submissions.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errs.Client("submission %s: %v", id, errs.ErrNotFound)
	}
	return sub, nil
}

// transact runs fn inside the caller's transaction when one is open,
// otherwise in a fresh one.
func (c *Controller) transact(dbc dbctx.Context, fn func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return c.db.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: txx})
	})
}
