package services

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/db"
	"github.com/yungbote/reconify-backend/internal/data/repos"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/ingest"
	engine "github.com/yungbote/reconify-backend/internal/modules/recon"
	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type SOTConfigInput struct {
	Name       string   `json:"name"`
	Headers    []string `json:"headers"`
	Category   string   `json:"category,omitempty"`
	Precedence *int     `json:"precedence,omitempty"`
}

type SOTService interface {
	// ListNames returns configured SOTs plus any named in panel mappings, or the defaults.
	ListNames(ctx context.Context) ([]string, error)
	// Fields returns the SOT's columns; unknown SOTs have none.
	Fields(ctx context.Context, name string) ([]string, error)
	Upload(ctx context.Context, sotType string, file FileInput) (*types.SOTUpload, error)
	ListUploads(ctx context.Context, sotName string, limit int) ([]*types.SOTUpload, error)

	ListConfigs(ctx context.Context) ([]*types.SourceOfTruth, error)
	CreateConfig(ctx context.Context, in SOTConfigInput) (*types.SourceOfTruth, error)
	UpdateConfig(ctx context.Context, name string, in SOTConfigInput) (*types.SourceOfTruth, error)
	DeleteConfig(ctx context.Context, name string) error

	// LoadData loads SOTs with their rows in precedence order. A nil names loads all.
	LoadData(ctx context.Context, names []string) ([]*engine.SOTData, error)
}

type sotService struct {
	db             *gorm.DB
	log            *logger.Logger
	tx             db.TxRunner
	sotRepo        repos.SOTRepo
	sotUploadRepo  repos.SOTUploadRepo
	panelRepo      repos.PanelRepo
	parser         *ingest.Parser
	rules          *engine.Rules
	audit          AuditService
	archive        ArchiveService
	rejectDupFiles bool
}

type SOTServiceDeps struct {
	DB                     *gorm.DB
	Tx                     db.TxRunner
	SOTRepo                repos.SOTRepo
	SOTUploadRepo          repos.SOTUploadRepo
	PanelRepo              repos.PanelRepo
	Parser                 *ingest.Parser
	Rules                  *engine.Rules
	Audit                  AuditService
	Archive                ArchiveService
	RejectDuplicateUploads bool
}

func NewSOTService(log *logger.Logger, deps SOTServiceDeps) SOTService {
	return &sotService{
		db:             deps.DB,
		log:            log.With("service", "SOTService"),
		tx:             deps.Tx,
		sotRepo:        deps.SOTRepo,
		sotUploadRepo:  deps.SOTUploadRepo,
		panelRepo:      deps.PanelRepo,
		parser:         deps.Parser,
		rules:          deps.Rules,
		audit:          deps.Audit,
		archive:        deps.Archive,
		rejectDupFiles: deps.RejectDuplicateUploads,
	}
}

func (s *sotService) ListNames(ctx context.Context) ([]string, error) {
	dbc := dbctx.Context{Ctx: ctx}
	sots, err := s.sotRepo.List(dbc)
	if err != nil {
		return nil, err
	}
	panels, err := s.panelRepo.List(dbc)
	if err != nil {
		return nil, err
	}
	set := map[string]struct{}{}
	for _, sot := range sots {
		set[sot.Name] = struct{}{}
	}
	for _, p := range panels {
		for _, name := range p.Mapping().SOTs() {
			set[name] = struct{}{}
		}
	}
	if len(set) == 0 {
		for _, name := range s.rules.DefaultSOTs {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *sotService) Fields(ctx context.Context, name string) ([]string, error) {
	key, err := normalizeSOTName(name)
	if err != nil {
		return []string{}, nil
	}
	sot, err := s.sotRepo.GetByName(dbctx.Context{Ctx: ctx}, key)
	if err != nil {
		return nil, err
	}
	if sot == nil {
		return []string{}, nil
	}
	fields := sot.FieldList()
	if fields == nil {
		fields = []string{}
	}
	return fields, nil
}

func (s *sotService) Upload(ctx context.Context, sotType string, file FileInput) (*types.SOTUpload, error) {
	const op = "sot.upload"
	name, err := normalizeSOTName(sotType)
	if err != nil {
		return nil, err
	}
	rec := &types.SOTUpload{
		SOTName:    name,
		DocName:    file.Name,
		UploadedBy: ctxutil.Actor(ctx),
		FileHash:   file.Hash(),
	}
	ref := ArchiveRef{Kind: ArchiveSOT, Entity: name, Filename: file.Name}
	fail := func(action string, cause error) (*types.SOTUpload, error) {
		rec.DocID = ""
		rec.TotalRecords = 0
		rec.Status = types.UploadFailed
		rec.Error = errorText(cause)
		if err := s.sotUploadRepo.Create(dbctx.Context{Ctx: ctx}, rec); err != nil {
			s.log.Warn("failed SOT upload not recorded", "sot", name, "error", err)
		}
		ref.DocID = rec.DocID
		s.archive.Store(ctx, ref, StageFailed, file.Data)
		s.audit.Record(ctx, action, AuditFailed, map[string]any{
			"sot_type": name, "file_name": file.Name, "doc_id": rec.DocID, "error": rec.Error,
		})
		return nil, cause
	}

	if s.rejectDupFiles {
		dup, err := s.sotUploadRepo.HashExists(dbctx.Context{Ctx: ctx}, name, rec.FileHash)
		if err != nil {
			return nil, err
		}
		if dup {
			return fail(ActionDuplicateUpload, types.Errorf(types.CodeConflict, op,
				"file %q was already uploaded for SOT %q", file.Name, name))
		}
	}

	table, err := s.parser.Parse(file.Data, file.Name)
	if err != nil {
		return fail(ActionFileProcessingError, err)
	}

	existing, err := s.sotRepo.GetByName(dbctx.Context{Ctx: ctx}, name)
	if err != nil {
		return nil, err
	}
	fields := table.Headers
	if existing != nil && len(existing.FieldList()) > 0 {
		fields = existing.FieldList()
		if missing := missingColumns(fields, table.Headers); len(missing) > 0 {
			return fail(ActionFileProcessingError, types.Errorf(types.CodeValidation, op,
				"file is missing required columns for SOT %q: %s", name, strings.Join(missing, ", ")))
		}
	}

	rows := make([]*types.SOTRow, 0, len(table.Rows))
	for i := range table.Rows {
		full := table.Record(i)
		vals := make(map[string]string, len(fields))
		for _, f := range fields {
			vals[f] = full[f]
		}
		row := &types.SOTRow{RowIndex: i}
		row.SetRecord(vals)
		rows = append(rows, row)
	}

	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		sot, err := s.sotRepo.GetByName(dbc, name)
		if err != nil {
			return err
		}
		if sot == nil {
			if sot, err = s.newSOT(dbc, name, "", nil); err != nil {
				return err
			}
			if err := s.sotRepo.Create(dbc, sot); err != nil {
				return err
			}
		}
		rec.Status = types.UploadSucceeded
		rec.TotalRecords = len(rows)
		if err := s.sotUploadRepo.Create(dbc, rec); err != nil {
			return err
		}
		if err := s.sotRepo.ReplaceRows(dbc, sot.ID, rows); err != nil {
			return err
		}
		sot.SetFields(fields)
		sot.RowCount = len(rows)
		sot.CurrentDocID = rec.DocID
		return s.sotRepo.Update(dbc, sot)
	})
	if err != nil {
		return fail(ActionFileProcessingError, err)
	}

	ref.DocID = rec.DocID
	s.archive.Store(ctx, ref, StageCompleted, file.Data)
	s.audit.Record(ctx, ActionSOTUpload, AuditSuccess, map[string]any{
		"sot_type": name, "file_name": file.Name, "doc_id": rec.DocID, "total_records": rec.TotalRecords,
	})
	s.log.Info("SOT uploaded", "sot", name, "rows", rec.TotalRecords, "doc_id", rec.DocID)
	return rec, nil
}

// newSOT builds an unsaved SOT with rule defaults. Unknown SOTs get a category equal
// to their name and a precedence after every existing SOT.
func (s *sotService) newSOT(dbc dbctx.Context, name, category string, precedence *int) (*types.SourceOfTruth, error) {
	sot := &types.SourceOfTruth{Name: name, Category: category, CreatedBy: ctxutil.Actor(dbc.Ctx)}
	if sot.Category == "" {
		sot.Category = s.rules.CategoryFor(name)
	}
	switch rule, ok := s.rules.SOTRule(name); {
	case precedence != nil:
		sot.Precedence = *precedence
	case ok:
		sot.Precedence = rule.Precedence
	default:
		top, err := s.sotRepo.MaxPrecedence(dbc)
		if err != nil {
			return nil, err
		}
		sot.Precedence = top + s.rules.CustomPrecedenceStep
	}
	sot.SetFields(nil)
	return sot, nil
}

func (s *sotService) ListUploads(ctx context.Context, sotName string, limit int) ([]*types.SOTUpload, error) {
	if sotName != "" {
		name, err := normalizeSOTName(sotName)
		if err != nil {
			return []*types.SOTUpload{}, nil
		}
		sotName = name
	}
	out, err := s.sotUploadRepo.List(dbctx.Context{Ctx: ctx}, sotName, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*types.SOTUpload{}
	}
	return out, nil
}

func (s *sotService) ListConfigs(ctx context.Context) ([]*types.SourceOfTruth, error) {
	out, err := s.sotRepo.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*types.SourceOfTruth{}
	}
	return out, nil
}

func (s *sotService) CreateConfig(ctx context.Context, in SOTConfigInput) (*types.SourceOfTruth, error) {
	const op = "sot.config.create"
	name, err := normalizeSOTName(in.Name)
	if err != nil {
		return nil, err
	}
	fields, err := normalizeFields(op, in.Headers)
	if err != nil {
		return nil, err
	}
	var out *types.SourceOfTruth
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.sotRepo.GetByName(dbc, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return types.Errorf(types.CodeConflict, op, "SOT %q already exists", name)
		}
		sot, err := s.newSOT(dbc, name, strings.TrimSpace(in.Category), in.Precedence)
		if err != nil {
			return err
		}
		sot.SetFields(fields)
		if err := s.sotRepo.Create(dbc, sot); err != nil {
			return err
		}
		out = sot
		return nil
	})
	status := AuditSuccess
	if err != nil {
		status = AuditFailed
	}
	s.audit.Record(ctx, ActionSOTConfigCreated, status, map[string]any{
		"sot_name": name, "headers": fields, "error": errorText(err),
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sotService) UpdateConfig(ctx context.Context, name string, in SOTConfigInput) (*types.SourceOfTruth, error) {
	const op = "sot.config.update"
	key, err := normalizeSOTName(name)
	if err != nil {
		return nil, err
	}
	var fields []string
	if in.Headers != nil {
		if fields, err = normalizeFields(op, in.Headers); err != nil {
			return nil, err
		}
	}
	var out *types.SourceOfTruth
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		sot, err := s.sotRepo.GetByName(dbc, key)
		if err != nil {
			return err
		}
		if sot == nil {
			return types.Errorf(types.CodeNotFound, op, "SOT %q not found", key)
		}
		if in.Headers != nil {
			if sot.RowCount > 0 {
				if missing := missingColumns(fields, sot.FieldList()); len(missing) > 0 {
					return types.Errorf(types.CodeValidation, op,
						"stored data for SOT %q has no columns %s; upload a new file first", key, strings.Join(missing, ", "))
				}
			}
			sot.SetFields(fields)
		}
		if c := strings.TrimSpace(in.Category); c != "" {
			sot.Category = c
		}
		if in.Precedence != nil {
			sot.Precedence = *in.Precedence
		}
		if err := s.sotRepo.Update(dbc, sot); err != nil {
			return err
		}
		out = sot
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, ActionSOTConfigUpdated, AuditSuccess, map[string]any{
		"sot_name": key, "headers": out.FieldList(), "category": out.Category, "precedence": out.Precedence,
	})
	return out, nil
}

func (s *sotService) DeleteConfig(ctx context.Context, name string) error {
	const op = "sot.config.delete"
	key, err := normalizeSOTName(name)
	if err != nil {
		return err
	}
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		sot, err := s.sotRepo.GetByName(dbc, key)
		if err != nil {
			return err
		}
		if sot == nil {
			return types.Errorf(types.CodeNotFound, op, "SOT %q not found", key)
		}
		return s.sotRepo.Delete(dbc, sot.ID)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, ActionSOTConfigDeleted, AuditSuccess, map[string]any{"sot_name": key})
	return nil
}

func (s *sotService) LoadData(ctx context.Context, names []string) ([]*engine.SOTData, error) {
	dbc := dbctx.Context{Ctx: ctx}
	all, err := s.sotRepo.List(dbc)
	if err != nil {
		return nil, err
	}
	var want map[string]bool
	if names != nil {
		want = make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
	}
	var selected []*types.SourceOfTruth
	for _, sot := range all {
		if want == nil || want[sot.Name] {
			selected = append(selected, sot)
		}
	}

	out := make([]*engine.SOTData, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sot := range selected {
		g.Go(func() error {
			rows, err := s.sotRepo.ListRows(dbctx.Context{Ctx: gctx}, sot.ID)
			if err != nil {
				return err
			}
			data := &engine.SOTData{
				Name:       sot.Name,
				Category:   sot.Category,
				Precedence: sot.Precedence,
				Fields:     sot.FieldList(),
				Rows:       make([]map[string]string, len(rows)),
			}
			for j, r := range rows {
				data.Rows[j] = r.Record()
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	engine.SortByPrecedence(out)
	return out, nil
}
