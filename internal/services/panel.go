package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/db"
	"github.com/yungbote/reconify-backend/internal/data/repos"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/ingest"
	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/locks"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type PanelInput struct {
	Name         string           `json:"name"`
	KeyMapping   types.KeyMapping `json:"key_mapping"`
	PanelHeaders []string         `json:"panel_headers"`
}

type PanelUpdate struct {
	Name         string           `json:"name"`
	KeyMapping   types.KeyMapping `json:"key_mapping"`
	PanelHeaders *[]string        `json:"panel_headers,omitempty"`
}

type PanelDetails struct {
	PanelName string                     `json:"panel_name"`
	Panel     *types.Panel               `json:"panel"`
	Rows      []*types.PanelRow          `json:"rows"`
	Run       *types.ReconciliationRun   `json:"current_run,omitempty"`
	Uploads   []*types.Upload            `json:"uploads"`
	Runs      []*types.ReconciliationRun `json:"runs"`
}

type PanelService interface {
	Create(ctx context.Context, in PanelInput) (*types.Panel, error)
	Modify(ctx context.Context, in PanelUpdate) (*types.Panel, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*types.Panel, error)
	Headers(ctx context.Context, name string) ([]string, error)
	Details(ctx context.Context, name string) (*PanelDetails, error)
	PreviewHeaders(ctx context.Context, file FileInput) ([]string, error)
}

type panelService struct {
	db           *gorm.DB
	log          *logger.Logger
	tx           db.TxRunner
	panelRepo    repos.PanelRepo
	panelRowRepo repos.PanelRowRepo
	uploadRepo   repos.UploadRepo
	runRepo      repos.ReconRunRepo
	parser       *ingest.Parser
	locker       locks.Locker
	audit        AuditService
}

type PanelServiceDeps struct {
	DB           *gorm.DB
	Tx           db.TxRunner
	PanelRepo    repos.PanelRepo
	PanelRowRepo repos.PanelRowRepo
	UploadRepo   repos.UploadRepo
	RunRepo      repos.ReconRunRepo
	Parser       *ingest.Parser
	Locker       locks.Locker
	Audit        AuditService
}

func NewPanelService(log *logger.Logger, deps PanelServiceDeps) PanelService {
	return &panelService{
		db:           deps.DB,
		log:          log.With("service", "PanelService"),
		tx:           deps.Tx,
		panelRepo:    deps.PanelRepo,
		panelRowRepo: deps.PanelRowRepo,
		uploadRepo:   deps.UploadRepo,
		runRepo:      deps.RunRepo,
		parser:       deps.Parser,
		locker:       deps.Locker,
		audit:        deps.Audit,
	}
}

func panelName(op, raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", types.NewError(types.CodeValidation, op, "panel name is required", nil)
	}
	if len(name) > 128 {
		return "", types.NewError(types.CodeValidation, op, "panel name is longer than 128 characters", nil)
	}
	return name, nil
}

// checkMappedFields requires every mapped panel field to be a known header, when headers are known.
func checkMappedFields(op string, mapping types.KeyMapping, headers []string) error {
	if len(headers) == 0 {
		return nil
	}
	if missing := missingColumns(mapping.PanelFields(), headers); len(missing) > 0 {
		return types.Errorf(types.CodeValidation, op, "key mapping uses fields not in panel headers: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *panelService) Create(ctx context.Context, in PanelInput) (*types.Panel, error) {
	const op = "panel.create"
	name, err := panelName(op, in.Name)
	if err != nil {
		return nil, err
	}
	mapping, err := normalizeMapping(in.KeyMapping)
	if err != nil {
		return nil, err
	}
	headers, err := normalizeFields(op, in.PanelHeaders)
	if err != nil {
		return nil, err
	}
	if err := checkMappedFields(op, mapping, headers); err != nil {
		return nil, err
	}

	// empty per-SOT entries are stored as-is: the SOT is known but nothing is mapped yet
	p := &types.Panel{Name: name, CreatedBy: ctxutil.Actor(ctx)}
	p.SetMapping(mapping)
	p.SetHeaders(headers)
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.panelRepo.GetByName(dbc, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return types.Errorf(types.CodeConflict, op, "panel %q already exists", existing.Name)
		}
		return s.panelRepo.Create(dbc, p)
	})
	status := AuditSuccess
	if err != nil {
		status = AuditFailed
	}
	s.audit.Record(ctx, ActionPanelAdded, status, map[string]any{
		"panel_name": name, "key_mapping": mapping, "panel_headers": headers, "error": errorText(err),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Panel created", "panel", name, "sots", len(mapping.SOTs()))
	return p, nil
}

func (s *panelService) Modify(ctx context.Context, in PanelUpdate) (*types.Panel, error) {
	const op = "panel.modify"
	name, err := panelName(op, in.Name)
	if err != nil {
		return nil, err
	}
	update, err := normalizeMapping(in.KeyMapping)
	if err != nil {
		return nil, err
	}
	var headers []string
	if in.PanelHeaders != nil {
		if headers, err = normalizeFields(op, *in.PanelHeaders); err != nil {
			return nil, err
		}
	}

	p, err := requirePanel(ctx, s.panelRepo, op, name)
	if err != nil {
		return nil, err
	}
	unlock, err := acquirePanel(ctx, s.locker, p, op)
	if err != nil {
		return nil, err
	}
	defer unlock()

	before := p.Mapping()
	merged := before.Merge(update)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if in.PanelHeaders == nil {
		headers = p.Headers()
	}
	if err := checkMappedFields(op, merged, headers); err != nil {
		return nil, err
	}
	p.SetMapping(merged)
	p.SetHeaders(headers)
	if err := s.panelRepo.Update(dbctx.Context{Ctx: ctx}, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, ActionPanelModified, AuditSuccess, map[string]any{
		"panel_name": p.Name, "old_key_mapping": before, "new_key_mapping": merged,
	})
	return p, nil
}

// Delete soft-deletes the configuration; rows, uploads and runs stay for audit.
func (s *panelService) Delete(ctx context.Context, name string) error {
	const op = "panel.delete"
	p, err := requirePanel(ctx, s.panelRepo, op, name)
	if err != nil {
		return err
	}
	unlock, err := acquirePanel(ctx, s.locker, p, op)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.panelRepo.SoftDelete(dbctx.Context{Ctx: ctx}, p.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, ActionPanelDeleted, AuditSuccess, map[string]any{
		"panel_name": p.Name, "deleted_panel": map[string]any{"key_mapping": p.Mapping(), "panel_headers": p.Headers()},
	})
	return nil
}

func (s *panelService) List(ctx context.Context) ([]*types.Panel, error) {
	out, err := s.panelRepo.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*types.Panel{}
	}
	return out, nil
}

func (s *panelService) Headers(ctx context.Context, name string) ([]string, error) {
	p, err := requirePanel(ctx, s.panelRepo, "panel.headers", name)
	if err != nil {
		return nil, err
	}
	h := p.Headers()
	if h == nil {
		h = []string{}
	}
	return h, nil
}

func (s *panelService) Details(ctx context.Context, name string) (*PanelDetails, error) {
	p, err := requirePanel(ctx, s.panelRepo, "panel.details", name)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	out := &PanelDetails{PanelName: p.Name, Panel: p, Rows: []*types.PanelRow{}}
	if p.CurrentUploadID != nil {
		rows, err := s.panelRowRepo.ListGeneration(dbc, p.ID, *p.CurrentUploadID)
		if err != nil {
			return nil, err
		}
		if rows != nil {
			out.Rows = rows
		}
		if out.Run, err = s.runRepo.GetByUpload(dbc, *p.CurrentUploadID); err != nil {
			return nil, err
		}
	}
	if out.Uploads, err = s.uploadRepo.List(dbc, &p.ID); err != nil {
		return nil, err
	}
	if out.Runs, err = s.runRepo.List(dbc, &p.ID); err != nil {
		return nil, err
	}
	if out.Uploads == nil {
		out.Uploads = []*types.Upload{}
	}
	if out.Runs == nil {
		out.Runs = []*types.ReconciliationRun{}
	}
	return out, nil
}

func (s *panelService) PreviewHeaders(ctx context.Context, file FileInput) ([]string, error) {
	table, err := s.parser.Parse(file.Data, file.Name)
	if err != nil {
		return nil, err
	}
	return table.Headers, nil
}

// requirePanel loads a live panel by name or fails with NotFound.
func requirePanel(ctx context.Context, panelRepo repos.PanelRepo, op, name string) (*types.Panel, error) {
	name, err := panelName(op, name)
	if err != nil {
		return nil, err
	}
	p, err := panelRepo.GetByName(dbctx.Context{Ctx: ctx}, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, types.Errorf(types.CodeNotFound, op, "panel %q not found", name)
	}
	return p, nil
}
