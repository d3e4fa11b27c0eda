package repos

import (
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/data/repos/awards"
	"github.com/usaspending/data-broker/internal/data/repos/generation"
	"github.com/usaspending/data-broker/internal/data/repos/jobs"
	"github.com/usaspending/data-broker/internal/data/repos/reference"
	"github.com/usaspending/data-broker/internal/data/repos/stagingrows"
	"github.com/usaspending/data-broker/internal/data/repos/submissions"
	"github.com/usaspending/data-broker/internal/data/repos/subs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type SubmissionRepo = submissions.SubmissionRepo
type PublishHistoryRepo = submissions.PublishHistoryRepo

type JobRepo = jobs.JobRepo
type JobDependencyRepo = jobs.JobDependencyRepo
type ErrorMetadataRepo = jobs.ErrorMetadataRepo

type FileGenerationRepo = generation.FileGenerationRepo

type StagingRepo = stagingrows.StagingRepo

type ProcurementAwardRepo = awards.ProcurementAwardRepo
type AssistanceAwardRepo = awards.AssistanceAwardRepo
type SAMRecipientRepo = awards.SAMRecipientRepo
type LoadDateRepo = awards.LoadDateRepo

type SubawardReportRepo = subs.ReportRepo
type SubawardRepo = subs.SubawardRepo

type AgencyRepo = reference.AgencyRepo
type RuleRepo = reference.RuleRepo
type WindowRepo = reference.WindowRepo
type BannerRepo = reference.BannerRepo

var NewSubmissionRepo = submissions.NewSubmissionRepo
var NewPublishHistoryRepo = submissions.NewPublishHistoryRepo
var NewJobRepo = jobs.NewJobRepo
var NewJobDependencyRepo = jobs.NewJobDependencyRepo
var NewErrorMetadataRepo = jobs.NewErrorMetadataRepo
var NewFileGenerationRepo = generation.NewFileGenerationRepo
var NewStagingRepo = stagingrows.NewStagingRepo
var NewProcurementAwardRepo = awards.NewProcurementAwardRepo
var NewAssistanceAwardRepo = awards.NewAssistanceAwardRepo
var NewSAMRecipientRepo = awards.NewSAMRecipientRepo
var NewLoadDateRepo = awards.NewLoadDateRepo
var NewSubawardReportRepo = subs.NewReportRepo
var NewSubawardRepo = subs.NewSubawardRepo
var NewAgencyRepo = reference.NewAgencyRepo
var NewRuleRepo = reference.NewRuleRepo
var NewWindowRepo = reference.NewWindowRepo
var NewBannerRepo = reference.NewBannerRepo

// All bundles every repo over one database handle. Convenience for
// cmd wiring and tests.
type All struct {
	Submissions SubmissionRepo
	Publish     PublishHistoryRepo
	Jobs        JobRepo
	Deps        JobDependencyRepo
	ErrorMeta   ErrorMetadataRepo
	FileGen     FileGenerationRepo
	Staging     StagingRepo
	Procurement ProcurementAwardRepo
	Assistance  AssistanceAwardRepo
	SAM         SAMRecipientRepo
	LoadDates   LoadDateRepo
	SubReports  SubawardReportRepo
	Subawards   SubawardRepo
	Agencies    AgencyRepo
	Rules       RuleRepo
	Windows     WindowRepo
	Banners     BannerRepo
}

func NewAll(db *gorm.DB, log *logger.Logger) *All {
	return &All{
		Submissions: NewSubmissionRepo(db, log),
		Publish:     NewPublishHistoryRepo(db, log),
		Jobs:        NewJobRepo(db, log),
		Deps:        NewJobDependencyRepo(db, log),
		ErrorMeta:   NewErrorMetadataRepo(db, log),
		FileGen:     NewFileGenerationRepo(db, log),
		Staging:     NewStagingRepo(db, log),
		Procurement: NewProcurementAwardRepo(db, log),
		Assistance:  NewAssistanceAwardRepo(db, log),
		SAM:         NewSAMRecipientRepo(db, log),
		LoadDates:   NewLoadDateRepo(db, log),
		SubReports:  NewSubawardReportRepo(db, log),
		Subawards:   NewSubawardRepo(db, log),
		Agencies:    NewAgencyRepo(db, log),
		Rules:       NewRuleRepo(db, log),
		Windows:     NewWindowRepo(db, log),
		Banners:     NewBannerRepo(db, log),
	}
}
