package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/repos"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type Repos struct {
	SOT              repos.SOTRepo
	SOTUpload        repos.SOTUploadRepo
	Panel            repos.PanelRepo
	PanelRow         repos.PanelRowRepo
	Upload           repos.UploadRepo
	ReconRun         repos.ReconRunRepo
	Recategorization repos.RecategorizationRepo
	Audit            repos.AuditRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		SOT:              repos.NewSOTRepo(db, log),
		SOTUpload:        repos.NewSOTUploadRepo(db, log),
		Panel:            repos.NewPanelRepo(db, log),
		PanelRow:         repos.NewPanelRowRepo(db, log),
		Upload:           repos.NewUploadRepo(db, log),
		ReconRun:         repos.NewReconRunRepo(db, log),
		Recategorization: repos.NewRecategorizationRepo(db, log),
		Audit:            repos.NewAuditRepo(db, log),
	}
}
