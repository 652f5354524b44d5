package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/domain/recon"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Sources of truth
		&recon.SourceOfTruth{},
		&recon.SOTRow{},
		&recon.SOTUpload{},

		// Panels + generations
		&recon.Panel{},
		&recon.PanelRow{},
		&recon.Upload{},

		// Ledgers
		&recon.ReconciliationRun{},
		&recon.RecategorizationRun{},
		&recon.AuditEvent{},
	)
}
