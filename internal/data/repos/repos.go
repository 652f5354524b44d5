package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/repos/recon"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type SOTRepo = recon.SOTRepo
type SOTUploadRepo = recon.SOTUploadRepo

type PanelRepo = recon.PanelRepo
type PanelRowRepo = recon.PanelRowRepo
type UploadRepo = recon.UploadRepo

type ReconRunRepo = recon.ReconRunRepo
type RecategorizationRepo = recon.RecategorizationRepo
type AuditRepo = recon.AuditRepo

type InitialAssignment = recon.InitialAssignment
type FinalAssignment = recon.FinalAssignment
type AuditFilter = recon.AuditFilter
type AuditCount = recon.AuditCount
type AuditTally = recon.AuditTally

func NewSOTRepo(db *gorm.DB, baseLog *logger.Logger) SOTRepo { return recon.NewSOTRepo(db, baseLog) }
func NewSOTUploadRepo(db *gorm.DB, baseLog *logger.Logger) SOTUploadRepo {
	return recon.NewSOTUploadRepo(db, baseLog)
}

func NewPanelRepo(db *gorm.DB, baseLog *logger.Logger) PanelRepo {
	return recon.NewPanelRepo(db, baseLog)
}
func NewPanelRowRepo(db *gorm.DB, baseLog *logger.Logger) PanelRowRepo {
	return recon.NewPanelRowRepo(db, baseLog)
}
func NewUploadRepo(db *gorm.DB, baseLog *logger.Logger) UploadRepo {
	return recon.NewUploadRepo(db, baseLog)
}

func NewReconRunRepo(db *gorm.DB, baseLog *logger.Logger) ReconRunRepo {
	return recon.NewReconRunRepo(db, baseLog)
}
func NewRecategorizationRepo(db *gorm.DB, baseLog *logger.Logger) RecategorizationRepo {
	return recon.NewRecategorizationRepo(db, baseLog)
}
func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return recon.NewAuditRepo(db, baseLog)
}
