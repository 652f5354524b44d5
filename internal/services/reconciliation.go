package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/db"
	"github.com/yungbote/reconify-backend/internal/data/repos"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/ingest"
	engine "github.com/yungbote/reconify-backend/internal/modules/recon"
	"github.com/yungbote/reconify-backend/internal/observability"
	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/locks"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type CategorizeOutput struct {
	Message        string        `json:"message"`
	PanelName      string        `json:"panel_name"`
	ReconID        string        `json:"recon_id"`
	Summary        engine.Counts `json:"summary"`
	TotalProcessed int           `json:"total_processed"`
	Warnings       []string      `json:"warnings,omitempty"`
}

type ReconcileOutput struct {
	ReconID string           `json:"recon_id"`
	Status  types.RunStatus  `json:"status"`
	Summary engine.HRSummary `json:"summary"`
	Message string           `json:"message"`
}

type RecategorizeOutput struct {
	Message   string                     `json:"message"`
	PanelName string                     `json:"panel_name"`
	ReconID   string                     `json:"recon_id"`
	Summary   engine.RecategorizeSummary `json:"summary"`
}

type ReconciliationService interface {
	// CategorizeUsers assigns initial status to the current generation. The run must still be uploaded.
	CategorizeUsers(ctx context.Context, panelName string) (*CategorizeOutput, error)
	// ReconcilePanel categorizes if needed, validates against HR and completes the run.
	ReconcilePanel(ctx context.Context, panelName string) (*ReconcileOutput, error)
	// RecategorizeUsers applies an override file to a completed run.
	RecategorizeUsers(ctx context.Context, panelName string, file FileInput) (*RecategorizeOutput, error)
	// RecoverAbandoned fails runs left reconciling by a process that died mid-run.
	RecoverAbandoned(ctx context.Context) (int64, error)
}

type reconciliationService struct {
	db           *gorm.DB
	log          *logger.Logger
	tx           db.TxRunner
	panelRepo    repos.PanelRepo
	panelRowRepo repos.PanelRowRepo
	uploadRepo   repos.UploadRepo
	runRepo      repos.ReconRunRepo
	recatRepo    repos.RecategorizationRepo
	sots         SOTService
	parser       *ingest.Parser
	rules        *engine.Rules
	locker       locks.Locker
	audit        AuditService
	archive      ArchiveService
	staleAfter   time.Duration
}

type ReconciliationServiceDeps struct {
	DB           *gorm.DB
	Tx           db.TxRunner
	PanelRepo    repos.PanelRepo
	PanelRowRepo repos.PanelRowRepo
	UploadRepo   repos.UploadRepo
	RunRepo      repos.ReconRunRepo
	RecatRepo    repos.RecategorizationRepo
	SOTs         SOTService
	Parser       *ingest.Parser
	Rules        *engine.Rules
	Locker       locks.Locker
	Audit        AuditService
	Archive      ArchiveService
	// StaleRunAfter is how long a run may stay reconciling before it counts as abandoned.
	StaleRunAfter time.Duration
}

func NewReconciliationService(log *logger.Logger, deps ReconciliationServiceDeps) ReconciliationService {
	return &reconciliationService{
		db:           deps.DB,
		log:          log.With("service", "ReconciliationService"),
		tx:           deps.Tx,
		panelRepo:    deps.PanelRepo,
		panelRowRepo: deps.PanelRowRepo,
		uploadRepo:   deps.UploadRepo,
		runRepo:      deps.RunRepo,
		recatRepo:    deps.RecatRepo,
		sots:         deps.SOTs,
		parser:       deps.Parser,
		rules:        deps.Rules,
		locker:       deps.Locker,
		audit:        deps.Audit,
		archive:      deps.Archive,
		staleAfter:   staleAfterOrDefault(deps.StaleRunAfter),
	}
}

// currentRun returns the run of the panel's current generation or NotFound.
func (s *reconciliationService) currentRun(ctx context.Context, op string, p *types.Panel) (*types.ReconciliationRun, error) {
	if p.CurrentUploadID == nil {
		return nil, types.Errorf(types.CodeNotFound, op, "panel %q has no uploaded data", p.Name)
	}
	run, err := s.runRepo.GetByUpload(dbctx.Context{Ctx: ctx}, *p.CurrentUploadID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, types.Errorf(types.CodeNotFound, op, "panel %q has no reconciliation run", p.Name)
	}
	return run, nil
}

func (s *reconciliationService) loadRows(ctx context.Context, p *types.Panel) ([]engine.Row, error) {
	stored, err := s.panelRowRepo.ListGeneration(dbctx.Context{Ctx: ctx}, p.ID, *p.CurrentUploadID)
	if err != nil {
		return nil, err
	}
	rows := make([]engine.Row, len(stored))
	for i, r := range stored {
		rows[i] = engine.Row{
			ID:            r.ID,
			Values:        r.Record(),
			InitialStatus: r.InitialStatus,
			FinalStatus:   r.FinalStatus,
			HRStatus:      r.HRStatus,
		}
		if r.MatchedSOT != nil {
			rows[i].MatchedSOT = *r.MatchedSOT
		}
	}
	return rows, nil
}

func initialAssignments(in []engine.Assignment) []repos.InitialAssignment {
	out := make([]repos.InitialAssignment, len(in))
	for i, a := range in {
		out[i] = repos.InitialAssignment{RowID: a.RowID, Status: a.Status}
		if a.MatchedSOT != "" {
			m := a.MatchedSOT
			out[i].MatchedSOT = &m
		}
	}
	return out
}

func finalAssignments(in []engine.FinalAssignment) []repos.FinalAssignment {
	out := make([]repos.FinalAssignment, len(in))
	for i, a := range in {
		out[i] = repos.FinalAssignment{RowID: a.RowID, FinalStatus: a.FinalStatus, HRStatus: a.HRStatus}
	}
	return out
}

// applyCategories copies assignments onto rows so later passes see them.
func applyCategories(rows []engine.Row, res *engine.CategorizeResult) {
	byID := make(map[int64]engine.Assignment, len(res.Assignments))
	for _, a := range res.Assignments {
		byID[a.RowID] = a
	}
	for i := range rows {
		if a, ok := byID[rows[i].ID]; ok {
			rows[i].InitialStatus = a.Status
			rows[i].MatchedSOT = a.MatchedSOT
		}
	}
}

func (s *reconciliationService) CategorizeUsers(ctx context.Context, panelName string) (out *CategorizeOutput, err error) {
	const op = "recon.categorize"
	ctx, span := observability.StartSpan(ctx, "recon.categorize", attribute.String("panel", panelName))
	defer func() { observability.EndSpan(span, err) }()

	p, err := requirePanel(ctx, s.panelRepo, op, panelName)
	if err != nil {
		return nil, err
	}
	unlock, err := acquirePanel(ctx, s.locker, p, op)
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, err := s.currentRun(ctx, op, p)
	if err != nil {
		return nil, err
	}
	if run.Status != types.RunUploaded {
		return nil, types.Errorf(types.CodeConflict, op, "run %s is %s; categorization is only allowed before reconciliation", run.ReconID, run.Status)
	}

	rows, err := s.loadRows(ctx, p)
	if err != nil {
		return nil, err
	}
	mapping := p.Mapping()
	sots, err := s.sots.LoadData(ctx, mapping.SOTs())
	if err != nil {
		return nil, err
	}
	res, err := engine.Categorize(rows, mapping, sots, s.rules)
	if err != nil {
		s.audit.Record(ctx, ActionUserCategorization, AuditFailed, map[string]any{
			"panel_name": p.Name, "recon_id": run.ReconID, "error": err.Error(),
		})
		return nil, err
	}
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		return s.panelRowRepo.SetInitial(dbc, initialAssignments(res.Assignments))
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ActionUserCategorization, AuditSuccess, map[string]any{
		"panel_name": p.Name, "recon_id": run.ReconID, "summary": res.Summary, "warnings": res.Warnings,
	})
	s.log.Info("Users categorized", "panel", p.Name, "recon_id", run.ReconID, "rows", len(rows))
	return &CategorizeOutput{
		Message:        fmt.Sprintf("Categorized %d users for panel %s", len(rows), p.Name),
		PanelName:      p.Name,
		ReconID:        run.ReconID,
		Summary:        res.Summary,
		TotalProcessed: len(rows),
		Warnings:       res.Warnings,
	}, nil
}

func (s *reconciliationService) ReconcilePanel(ctx context.Context, panelName string) (out *ReconcileOutput, err error) {
	const op = "recon.reconcile"
	ctx, span := observability.StartSpan(ctx, "recon.reconcile", attribute.String("panel", panelName))
	defer func() { observability.EndSpan(span, err) }()

	p, err := requirePanel(ctx, s.panelRepo, op, panelName)
	if err != nil {
		return nil, err
	}
	unlock, err := acquirePanel(ctx, s.locker, p, op)
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, err := s.currentRun(ctx, op, p)
	if err != nil {
		return nil, err
	}
	if recovered, err := recoverAbandonedRun(ctx, s.runRepo, run, s.staleAfter); err != nil {
		return nil, err
	} else if recovered {
		s.log.Warn("Failed abandoned reconciliation", "panel", p.Name, "recon_id", run.ReconID)
	}
	switch run.Status {
	case types.RunUploaded:
	case types.RunReconciling:
		return nil, types.Errorf(types.CodeConflict, op, "reconciliation %s is already in progress", run.ReconID)
	default:
		return nil, types.Errorf(types.CodeConflict, op, "reconciliation %s is already %s; upload new data to start again", run.ReconID, run.Status)
	}
	span.SetAttributes(attribute.String("recon_id", run.ReconID))

	now := time.Now().UTC()
	ok, err := s.runRepo.TransitionStatus(dbctx.Context{Ctx: ctx}, run.ReconID, types.RunUploaded, types.RunReconciling, map[string]interface{}{
		"start_date":   now,
		"recon_month":  now.Format(types.ReconMonthLayout),
		"performed_by": ctxutil.Actor(ctx),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.Errorf(types.CodeConflict, op, "reconciliation %s was started by another request", run.ReconID)
	}

	summary, err := s.reconcile(ctx, p, run)
	if err != nil {
		s.failRun(ctx, p, run, err)
		return nil, err
	}

	s.archiveMove(ctx, p, run, StageCompleted)
	s.audit.Record(ctx, ActionReconciliation, AuditSuccess, map[string]any{
		"panel_name": p.Name, "recon_id": run.ReconID, "summary": summary,
	})
	s.log.Info("Reconciliation complete", "panel", p.Name, "recon_id", run.ReconID,
		"matched", summary.Matched, "not_found", summary.NotFound)
	return &ReconcileOutput{
		ReconID: run.ReconID,
		Status:  types.RunComplete,
		Summary: *summary,
		Message: fmt.Sprintf("Reconciliation completed for panel %s", p.Name),
	}, nil
}

// reconcile computes every result in memory, then persists rows and completes the run in one transaction.
func (s *reconciliationService) reconcile(ctx context.Context, p *types.Panel, run *types.ReconciliationRun) (*engine.HRSummary, error) {
	rows, err := s.loadRows(ctx, p)
	if err != nil {
		return nil, err
	}
	mapping := p.Mapping()
	names := mapping.SOTs()
	hrName := s.rules.HR.SOT
	if _, _, ok := mapping.Pair(hrName); !ok {
		names = append(names, hrName)
	}
	sots, err := s.sots.LoadData(ctx, names)
	if err != nil {
		return nil, err
	}

	var categorized *engine.CategorizeResult
	for _, r := range rows {
		if r.InitialStatus == "" {
			if categorized, err = engine.Categorize(rows, mapping, sots, s.rules); err != nil {
				return nil, err
			}
			applyCategories(rows, categorized)
			break
		}
	}

	var hr *engine.SOTData
	for _, sot := range sots {
		if sot.Name == hrName {
			hr = sot
		}
	}
	res, err := engine.ReconcileHR(rows, mapping, hr, s.rules)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if categorized != nil {
			if err := s.panelRowRepo.SetInitial(dbc, initialAssignments(categorized.Assignments)); err != nil {
				return err
			}
		}
		if err := s.panelRowRepo.SetFinal(dbc, finalAssignments(res.Assignments)); err != nil {
			return err
		}
		ok, err := s.runRepo.TransitionStatus(dbc, run.ReconID, types.RunReconciling, types.RunComplete, map[string]interface{}{
			"summary":      types.EncodeSummary(res.Summary),
			"completed_at": time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return types.Errorf(types.CodeConflict, "recon.reconcile", "run %s left the reconciling state", run.ReconID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res.Summary, nil
}

func (s *reconciliationService) failRun(ctx context.Context, p *types.Panel, run *types.ReconciliationRun, cause error) {
	bg := context.WithoutCancel(ctx)
	if _, err := s.runRepo.TransitionStatus(dbctx.Context{Ctx: bg}, run.ReconID, types.RunReconciling, types.RunFailed, map[string]interface{}{
		"error":        cause.Error(),
		"completed_at": time.Now().UTC(),
	}); err != nil {
		s.log.Error("run not marked failed", "recon_id", run.ReconID, "error", err)
	}
	s.archiveMove(bg, p, run, StageFailed)
	s.audit.Record(bg, ActionReconciliation, AuditFailed, map[string]any{
		"panel_name": p.Name, "recon_id": run.ReconID, "error": cause.Error(),
	})
	s.log.Warn("Reconciliation failed", "panel", p.Name, "recon_id", run.ReconID, "error", cause)
}

func (s *reconciliationService) archiveMove(ctx context.Context, p *types.Panel, run *types.ReconciliationRun, to ArchiveStage) {
	up, err := s.uploadRepo.Get(dbctx.Context{Ctx: ctx}, run.UploadID)
	if err != nil || up == nil {
		return
	}
	ref := ArchiveRef{Kind: ArchivePanel, Entity: p.Name, DocID: up.DocID, Filename: up.DocName}
	s.archive.Move(ctx, ref, StageUploaded, to)
}

func (s *reconciliationService) RecategorizeUsers(ctx context.Context, panelName string, file FileInput) (out *RecategorizeOutput, err error) {
	const op = "recon.recategorize"
	ctx, span := observability.StartSpan(ctx, "recon.recategorize", attribute.String("panel", panelName))
	defer func() { observability.EndSpan(span, err) }()

	p, err := requirePanel(ctx, s.panelRepo, op, panelName)
	if err != nil {
		return nil, err
	}
	unlock, err := acquirePanel(ctx, s.locker, p, op)
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, err := s.currentRun(ctx, op, p)
	if err != nil {
		return nil, err
	}
	switch run.Status {
	case types.RunComplete:
	case types.RunReconciling:
		return nil, types.Errorf(types.CodeConflict, op, "reconciliation %s is still in progress", run.ReconID)
	default:
		return nil, types.Errorf(types.CodeValidation, op, "reconciliation %s is %s; recategorization needs a completed reconciliation", run.ReconID, run.Status)
	}

	failed := func(cause error) (*RecategorizeOutput, error) {
		s.audit.Record(ctx, ActionUserRecategorization, AuditFailed, map[string]any{
			"panel_name": p.Name, "recon_id": run.ReconID, "file_name": file.Name, "error": cause.Error(),
		})
		return nil, cause
	}

	table, err := s.parser.Parse(file.Data, file.Name)
	if err != nil {
		return failed(err)
	}
	mapping := p.Mapping()
	sots, err := s.sots.LoadData(ctx, mapping.SOTs())
	if err != nil {
		return nil, err
	}
	plan, err := engine.PlanRecategorization(table.Headers, p.Headers(), mapping, sots, s.rules)
	if err != nil {
		return failed(err)
	}
	rows, err := s.loadRows(ctx, p)
	if err != nil {
		return nil, err
	}
	res := engine.Recategorize(rows, plan, table.Records())

	ledger := &types.RecategorizationRun{
		ReconID:     run.ReconID,
		PanelID:     p.ID,
		PanelName:   p.Name,
		DocName:     file.Name,
		FileHash:    file.Hash(),
		PerformedBy: ctxutil.Actor(ctx),
		MatchColumn: plan.MatchColumn,
		TypeColumn:  plan.TypeColumn,
		PanelField:  plan.PanelField,
		Summary:     types.EncodeSummary(res.Summary),
	}
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := s.panelRowRepo.SetFinal(dbc, finalAssignments(res.Assignments)); err != nil {
			return err
		}
		return s.recatRepo.Create(dbc, ledger)
	})
	if err != nil {
		return failed(err)
	}

	s.archive.Store(ctx, ArchiveRef{Kind: ArchiveOverride, Entity: p.Name, DocID: ledger.ID.String(), Filename: file.Name}, StageCompleted, file.Data)
	s.audit.Record(ctx, ActionUserRecategorization, AuditSuccess, map[string]any{
		"panel_name": p.Name, "recon_id": run.ReconID, "file_name": file.Name, "plan": plan.String(), "summary": res.Summary,
	})
	s.log.Info("Users recategorized", "panel", p.Name, "recon_id", run.ReconID, "matched", res.Summary.Matched)
	return &RecategorizeOutput{
		Message:   fmt.Sprintf("Recategorized %d users for panel %s", res.Summary.Matched, p.Name),
		PanelName: p.Name,
		ReconID:   run.ReconID,
		Summary:   res.Summary,
	}, nil
}

func (s *reconciliationService) RecoverAbandoned(ctx context.Context) (int64, error) {
	return s.runRepo.FailAbandoned(dbctx.Context{Ctx: ctx}, time.Now().UTC().Add(-s.staleAfter), abandonedRunError)
}
