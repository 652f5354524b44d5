package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/db"
	"github.com/yungbote/reconify-backend/internal/ingest"
	engine "github.com/yungbote/reconify-backend/internal/modules/recon"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
	"github.com/yungbote/reconify-backend/internal/services"
)

type Services struct {
	// Shared
	Parser *ingest.Parser
	Rules  *engine.Rules

	// Auth + ledgers
	Auth    services.AuthService
	Audit   services.AuditService
	Archive services.ArchiveService

	// Domain
	SOTs    services.SOTService
	Panels  services.PanelService
	Uploads services.UploadService
	Recon   services.ReconciliationService
	History services.HistoryService
}

func wireServices(gdb *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	rules := engine.DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := engine.LoadRules(cfg.RulesPath)
		if err != nil {
			return Services{}, fmt.Errorf("load reconciliation rules: %w", err)
		}
		rules = loaded
		log.Info("Loaded reconciliation rules", "path", cfg.RulesPath)
	}

	tx := db.NewTxRunner(gdb)
	parser := ingest.NewParser(cfg.MaxUploadBytes, log)

	authService := services.NewAuthService(log, cfg.JWTSecretKey)
	auditService := services.NewAuditService(log, repos.Audit)
	archiveService := services.NewArchiveService(log, clients.Archive)

	sotService := services.NewSOTService(log, services.SOTServiceDeps{
		DB:                     gdb,
		Tx:                     tx,
		SOTRepo:                repos.SOT,
		SOTUploadRepo:          repos.SOTUpload,
		PanelRepo:              repos.Panel,
		Parser:                 parser,
		Rules:                  rules,
		Audit:                  auditService,
		Archive:                archiveService,
		RejectDuplicateUploads: cfg.RejectDuplicateUploads,
	})
	panelService := services.NewPanelService(log, services.PanelServiceDeps{
		DB:           gdb,
		Tx:           tx,
		PanelRepo:    repos.Panel,
		PanelRowRepo: repos.PanelRow,
		UploadRepo:   repos.Upload,
		RunRepo:      repos.ReconRun,
		Parser:       parser,
		Locker:       clients.Locker,
		Audit:        auditService,
	})
	uploadService := services.NewUploadService(log, services.UploadServiceDeps{
		DB:                     gdb,
		Tx:                     tx,
		PanelRepo:              repos.Panel,
		PanelRowRepo:           repos.PanelRow,
		UploadRepo:             repos.Upload,
		RunRepo:                repos.ReconRun,
		Parser:                 parser,
		Rules:                  rules,
		Locker:                 clients.Locker,
		Audit:                  auditService,
		Archive:                archiveService,
		RejectDuplicateUploads: cfg.RejectDuplicateUploads,
		GenerationRetention:    cfg.GenerationRetention,
		StaleRunAfter:          cfg.StaleRunAfter,
	})
	reconService := services.NewReconciliationService(log, services.ReconciliationServiceDeps{
		DB:           gdb,
		Tx:           tx,
		PanelRepo:    repos.Panel,
		PanelRowRepo: repos.PanelRow,
		UploadRepo:   repos.Upload,
		RunRepo:      repos.ReconRun,
		RecatRepo:    repos.Recategorization,
		SOTs:         sotService,
		Parser:       parser,
		Rules:        rules,
		Locker:       clients.Locker,
		Audit:        auditService,
		Archive:      archiveService,

		StaleRunAfter: cfg.StaleRunAfter,
	})
	historyService := services.NewHistoryService(gdb, log, repos.Panel, repos.PanelRow, repos.Upload, repos.ReconRun, repos.Recategorization)

	return Services{
		Parser:  parser,
		Rules:   rules,
		Auth:    authService,
		Audit:   auditService,
		Archive: archiveService,
		SOTs:    sotService,
		Panels:  panelService,
		Uploads: uploadService,
		Recon:   reconService,
		History: historyService,
	}, nil
}
