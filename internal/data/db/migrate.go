package db

import (
	types "github.com/usaspending/data-broker/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Submissions + job graph
		// =========================
		&types.Submission{},
		&types.Job{},
		&types.JobDependency{},
		&types.FileGeneration{},
		&types.PublishHistory{},
		&types.CertifyHistory{},
		&types.PublishedFilesHistory{},

		// =========================
		// Staging rows + published snapshots
		// =========================
		&types.Appropriation{},
		&types.PublishedAppropriation{},
		&types.ObjectClassProgramActivity{},
		&types.PublishedObjectClassProgramActivity{},
		&types.AwardFinancial{},
		&types.PublishedAwardFinancial{},
		&types.AwardProcurement{},
		&types.PublishedAwardProcurement{},
		&types.AwardFinancialAssistance{},
		&types.PublishedAwardFinancialAssistance{},
		&types.FlexField{},

		// =========================
		// Validation
		// =========================
		&types.ErrorMetadata{},
		&types.PublishedErrorMetadata{},
		&types.RuleSQL{},

		// =========================
		// External source mirrors
		// =========================
		&types.ProcurementAward{},
		&types.AssistanceAward{},
		&types.SAMRecipient{},
		&types.ExternalDataLoadDate{},

		// =========================
		// Subawards
		// =========================
		&types.PrimeContract{},
		&types.Subcontract{},
		&types.PrimeGrant{},
		&types.Subgrant{},
		&types.Subaward{},

		// =========================
		// Reference data
		// =========================
		&types.Agency{},
		&types.SubmissionWindow{},
		&types.Banner{},
	)
}
