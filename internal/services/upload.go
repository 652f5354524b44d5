package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/db"
	"github.com/yungbote/reconify-backend/internal/data/repos"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/ingest"
	engine "github.com/yungbote/reconify-backend/internal/modules/recon"
	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/locks"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

const DefaultGenerationRetention = 3

// UploadResult is a stored panel generation and the run created for it.
type UploadResult struct {
	Upload   *types.Upload            `json:"upload"`
	Run      *types.ReconciliationRun `json:"run"`
	Warnings []ingest.Warning         `json:"warnings,omitempty"`
}

type UploadService interface {
	UploadPanelData(ctx context.Context, panelName string, file FileInput) (*UploadResult, error)
}

type uploadService struct {
	db             *gorm.DB
	log            *logger.Logger
	tx             db.TxRunner
	panelRepo      repos.PanelRepo
	panelRowRepo   repos.PanelRowRepo
	uploadRepo     repos.UploadRepo
	runRepo        repos.ReconRunRepo
	parser         *ingest.Parser
	rules          *engine.Rules
	locker         locks.Locker
	audit          AuditService
	archive        ArchiveService
	rejectDupFiles bool
	retention      int
	staleAfter     time.Duration
}

type UploadServiceDeps struct {
	DB                     *gorm.DB
	Tx                     db.TxRunner
	PanelRepo              repos.PanelRepo
	PanelRowRepo           repos.PanelRowRepo
	UploadRepo             repos.UploadRepo
	RunRepo                repos.ReconRunRepo
	Parser                 *ingest.Parser
	Rules                  *engine.Rules
	Locker                 locks.Locker
	Audit                  AuditService
	Archive                ArchiveService
	RejectDuplicateUploads bool
	// GenerationRetention is how many successful generations keep their rows. Zero means the default.
	GenerationRetention int
	// StaleRunAfter is how long a run may stay reconciling before an upload fails it as abandoned.
	StaleRunAfter time.Duration
}

func NewUploadService(log *logger.Logger, deps UploadServiceDeps) UploadService {
	retention := deps.GenerationRetention
	if retention <= 0 {
		retention = DefaultGenerationRetention
	}
	return &uploadService{
		db:             deps.DB,
		log:            log.With("service", "UploadService"),
		tx:             deps.Tx,
		panelRepo:      deps.PanelRepo,
		panelRowRepo:   deps.PanelRowRepo,
		uploadRepo:     deps.UploadRepo,
		runRepo:        deps.RunRepo,
		parser:         deps.Parser,
		rules:          deps.Rules,
		locker:         deps.Locker,
		audit:          deps.Audit,
		archive:        deps.Archive,
		rejectDupFiles: deps.RejectDuplicateUploads,
		retention:      retention,
		staleAfter:     staleAfterOrDefault(deps.StaleRunAfter),
	}
}

func (s *uploadService) UploadPanelData(ctx context.Context, panelName string, file FileInput) (*UploadResult, error) {
	const op = "panel.upload"
	p, err := requirePanel(ctx, s.panelRepo, op, panelName)
	if err != nil {
		return nil, err
	}
	unlock, err := acquirePanel(ctx, s.locker, p, op)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var previous *types.ReconciliationRun
	if p.CurrentUploadID != nil {
		if previous, err = s.runRepo.GetByUpload(dbctx.Context{Ctx: ctx}, *p.CurrentUploadID); err != nil {
			return nil, err
		}
		recovered, err := recoverAbandonedRun(ctx, s.runRepo, previous, s.staleAfter)
		if err != nil {
			return nil, err
		}
		if recovered {
			s.log.Warn("Failed abandoned reconciliation", "panel", p.Name, "recon_id", previous.ReconID)
		}
		if previous != nil && previous.Status == types.RunReconciling {
			return nil, types.Errorf(types.CodeConflict, op, "panel %q is being reconciled", p.Name)
		}
	}

	actor := ctxutil.Actor(ctx)
	up := &types.Upload{
		PanelID:    p.ID,
		PanelName:  p.Name,
		DocName:    file.Name,
		UploadedBy: actor,
		FileHash:   file.Hash(),
	}
	ref := ArchiveRef{Kind: ArchivePanel, Entity: p.Name, Filename: file.Name}
	fail := func(action string, cause error) (*UploadResult, error) {
		up.DocID = ""
		up.TotalRecords = 0
		up.Status = types.UploadFailed
		up.Error = errorText(cause)
		if err := s.uploadRepo.Create(dbctx.Context{Ctx: ctx}, up); err != nil {
			s.log.Warn("failed upload not recorded", "panel", p.Name, "error", err)
		}
		ref.DocID = up.DocID
		s.archive.Store(ctx, ref, StageFailed, file.Data)
		s.audit.Record(ctx, action, AuditFailed, map[string]any{
			"panel_name": p.Name, "file_name": file.Name, "doc_id": up.DocID, "error": up.Error,
		})
		return nil, cause
	}

	if s.rejectDupFiles {
		dup, err := s.uploadRepo.HashExists(dbctx.Context{Ctx: ctx}, p.ID, up.FileHash)
		if err != nil {
			return nil, err
		}
		if dup {
			return fail(ActionDuplicateUpload, types.Errorf(types.CodeConflict, op,
				"file %q was already uploaded for panel %q", file.Name, p.Name))
		}
	}

	table, err := s.parser.Parse(file.Data, file.Name)
	if err != nil {
		return fail(ActionFileProcessingError, err)
	}
	if missing := missingColumns(p.Mapping().PanelFields(), table.Headers); len(missing) > 0 {
		return fail(ActionFileProcessingError, types.Errorf(types.CodeValidation, op,
			"file is missing mapped columns: %s", strings.Join(missing, ", ")))
	}

	run := &types.ReconciliationRun{
		ReconID:     types.NewReconID(),
		PanelID:     p.ID,
		PanelName:   p.Name,
		SOTType:     s.rules.HR.SOT,
		Status:      types.RunUploaded,
		PerformedBy: actor,
	}
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		up.Status = types.UploadSucceeded
		up.TotalRecords = len(table.Rows)
		up.SetHeaders(table.Headers)
		if err := s.uploadRepo.Create(dbc, up); err != nil {
			return err
		}
		rows := make([]*types.PanelRow, len(table.Rows))
		for i := range table.Rows {
			row := &types.PanelRow{PanelID: p.ID, UploadID: up.DocID, RowIndex: i}
			row.SetRecord(table.Record(i))
			rows[i] = row
		}
		if err := s.panelRowRepo.CreateBatch(dbc, rows); err != nil {
			return err
		}
		run.UploadID = up.DocID
		if err := s.runRepo.Create(dbc, run); err != nil {
			return err
		}
		if previous != nil && previous.Status == types.RunUploaded {
			if _, err := s.runRepo.TransitionStatus(dbc, previous.ReconID, types.RunUploaded, types.RunFailed, map[string]interface{}{
				"error":        fmt.Sprintf("superseded by upload %s", up.DocID),
				"completed_at": time.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		docID := up.DocID
		p.CurrentUploadID = &docID
		p.SetHeaders(table.Headers)
		return s.panelRepo.Update(dbc, p)
	})
	if err != nil {
		return fail(ActionFileProcessingError, err)
	}

	s.prune(ctx, p)

	ref.DocID = up.DocID
	s.archive.Store(ctx, ref, StageUploaded, file.Data)
	s.audit.Record(ctx, ActionPanelUpload, AuditSuccess, map[string]any{
		"panel_name": p.Name, "file_name": file.Name, "doc_id": up.DocID,
		"recon_id": run.ReconID, "total_records": up.TotalRecords,
	})
	s.log.Info("Panel data uploaded", "panel", p.Name, "doc_id", up.DocID, "rows", up.TotalRecords, "recon_id", run.ReconID)
	return &UploadResult{Upload: up, Run: run, Warnings: table.Warnings}, nil
}

// prune drops row data of successful generations beyond the retention window.
// Upload and run records stay.
func (s *uploadService) prune(ctx context.Context, p *types.Panel) {
	dbc := dbctx.Context{Ctx: ctx}
	ups, err := s.uploadRepo.ListSucceeded(dbc, p.ID)
	if err != nil {
		s.log.Warn("generation prune skipped", "panel", p.Name, "error", err)
		return
	}
	if len(ups) <= s.retention {
		return
	}
	var old []string
	for _, u := range ups[s.retention:] {
		old = append(old, u.DocID)
	}
	n, err := s.panelRowRepo.DeleteGenerations(dbc, p.ID, old)
	if err != nil {
		s.log.Warn("generation prune failed", "panel", p.Name, "error", err)
		return
	}
	s.log.Debug("Pruned old generations", "panel", p.Name, "generations", len(old), "rows", n)
}
