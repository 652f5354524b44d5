package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/data/repos"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

const (
	StatusTypeInitial = "initial"
	StatusTypeFinal   = "final"

	// pendingStatus labels rows with no final status yet.
	pendingStatus = "pending"
)

// breakdownPriority columns lead the status breakdown; the rest follow alphabetically.
var breakdownPriority = []string{types.FinalFound, types.FinalNotFoundInHR, types.StatusNotFound}

type UploadHistoryEntry struct {
	*types.Upload
	ReconID     string          `json:"recon_id,omitempty"`
	ReconStatus types.RunStatus `json:"recon_status,omitempty"`
	Current     bool            `json:"current"`
}

type ReconDetail struct {
	*types.ReconciliationRun
	PanelData []*types.PanelRow `json:"panel_data"`
}

type PanelBreakdown struct {
	PanelName       string           `json:"panel_name"`
	ReconID         string           `json:"recon_id"`
	ReconMonth      string           `json:"recon_month"`
	TotalUsers      int64            `json:"total_users"`
	StatusBreakdown map[string]int64 `json:"status_breakdown"`
	UploadDate      *time.Time       `json:"upload_date,omitempty"`
	PerformedBy     string           `json:"performed_by"`
	Status          types.RunStatus  `json:"status"`
}

type StatusBreakdown struct {
	Summaries  []PanelBreakdown `json:"summaries"`
	Columns    []string         `json:"columns"`
	StatusType string           `json:"status_type"`
}

type UserEntry struct {
	EmailID       string `json:"email_id"`
	ReconID       string `json:"recon_id"`
	ReconMonth    string `json:"recon_month"`
	PanelName     string `json:"panel_name"`
	InitialStatus string `json:"initial_status"`
	FinalStatus   string `json:"final_status"`
}

type UserSummary struct {
	TotalUsers int         `json:"total_users"`
	Users      []UserEntry `json:"users"`
}

type HistoryService interface {
	UploadHistory(ctx context.Context) ([]UploadHistoryEntry, error)
	ReconSummaries(ctx context.Context) ([]*types.ReconciliationRun, error)
	ReconSummary(ctx context.Context, reconID string) (*ReconDetail, error)
	// StatusBreakdown tallies rows per status for every run, or for one run when reconID is set.
	StatusBreakdown(ctx context.Context, statusType, reconID string) (*StatusBreakdown, error)
	UserSummary(ctx context.Context) (*UserSummary, error)
	ListRecategorizations(ctx context.Context, panelName string) ([]*types.RecategorizationRun, error)
}

type historyService struct {
	db           *gorm.DB
	log          *logger.Logger
	panelRepo    repos.PanelRepo
	panelRowRepo repos.PanelRowRepo
	uploadRepo   repos.UploadRepo
	runRepo      repos.ReconRunRepo
	recatRepo    repos.RecategorizationRepo
}

func NewHistoryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	panelRepo repos.PanelRepo,
	panelRowRepo repos.PanelRowRepo,
	uploadRepo repos.UploadRepo,
	runRepo repos.ReconRunRepo,
	recatRepo repos.RecategorizationRepo,
) HistoryService {
	return &historyService{
		db:           db,
		log:          baseLog.With("service", "HistoryService"),
		panelRepo:    panelRepo,
		panelRowRepo: panelRowRepo,
		uploadRepo:   uploadRepo,
		runRepo:      runRepo,
		recatRepo:    recatRepo,
	}
}

func (s *historyService) UploadHistory(ctx context.Context) ([]UploadHistoryEntry, error) {
	dbc := dbctx.Context{Ctx: ctx}
	uploads, err := s.uploadRepo.List(dbc, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(uploads))
	for _, u := range uploads {
		ids = append(ids, u.DocID)
	}
	runs, err := s.runRepo.ListByUploads(dbc, ids)
	if err != nil {
		return nil, err
	}
	panels, err := s.panelRepo.List(dbc)
	if err != nil {
		return nil, err
	}
	current := map[string]bool{}
	for _, p := range panels {
		if p.CurrentUploadID != nil {
			current[*p.CurrentUploadID] = true
		}
	}

	out := make([]UploadHistoryEntry, 0, len(uploads))
	for _, u := range uploads {
		e := UploadHistoryEntry{Upload: u, Current: current[u.DocID]}
		if run := runs[u.DocID]; run != nil {
			e.ReconID = run.ReconID
			e.ReconStatus = run.Status
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *historyService) ReconSummaries(ctx context.Context) ([]*types.ReconciliationRun, error) {
	out, err := s.runRepo.List(dbctx.Context{Ctx: ctx}, nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*types.ReconciliationRun{}
	}
	return out, nil
}

func (s *historyService) ReconSummary(ctx context.Context, reconID string) (*ReconDetail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	run, err := s.runRepo.Get(dbc, strings.TrimSpace(reconID))
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, types.Errorf(types.CodeNotFound, "history.recon_summary", "reconciliation %q not found", reconID)
	}
	rows, err := s.panelRowRepo.ListGeneration(dbc, run.PanelID, run.UploadID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*types.PanelRow{}
	}
	return &ReconDetail{ReconciliationRun: run, PanelData: rows}, nil
}

func (s *historyService) StatusBreakdown(ctx context.Context, statusType, reconID string) (*StatusBreakdown, error) {
	const op = "history.status_breakdown"
	statusType = strings.ToLower(strings.TrimSpace(statusType))
	if statusType == "" {
		statusType = StatusTypeInitial
	}
	if statusType != StatusTypeInitial && statusType != StatusTypeFinal {
		return nil, types.Errorf(types.CodeValidation, op, "status_type must be %q or %q", StatusTypeInitial, StatusTypeFinal)
	}

	dbc := dbctx.Context{Ctx: ctx}
	var runs []*types.ReconciliationRun
	if reconID = strings.TrimSpace(reconID); reconID != "" {
		run, err := s.runRepo.Get(dbc, reconID)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, types.Errorf(types.CodeNotFound, op, "reconciliation %q not found", reconID)
		}
		runs = append(runs, run)
	} else {
		var err error
		if runs, err = s.runRepo.List(dbc, nil); err != nil {
			return nil, err
		}
	}

	uploadDates := map[string]time.Time{}
	uploads, err := s.uploadRepo.List(dbc, nil)
	if err != nil {
		return nil, err
	}
	for _, u := range uploads {
		uploadDates[u.DocID] = u.CreatedAt
	}

	out := &StatusBreakdown{Summaries: []PanelBreakdown{}, StatusType: statusType}
	seen := map[string]bool{}
	for _, run := range runs {
		counts, err := s.panelRowRepo.StatusCounts(dbc, run.PanelID, run.UploadID, statusType == StatusTypeFinal)
		if err != nil {
			return nil, err
		}
		b := PanelBreakdown{
			PanelName:       run.PanelName,
			ReconID:         run.ReconID,
			ReconMonth:      run.ReconMonth,
			StatusBreakdown: map[string]int64{},
			PerformedBy:     run.PerformedBy,
			Status:          run.Status,
		}
		if d, ok := uploadDates[run.UploadID]; ok {
			b.UploadDate = &d
		}
		for status, n := range counts {
			if status == "" {
				status = pendingStatus
			}
			b.StatusBreakdown[status] += n
			b.TotalUsers += n
			seen[status] = true
		}
		out.Summaries = append(out.Summaries, b)
	}
	out.Columns = orderColumns(seen)
	return out, nil
}

func orderColumns(seen map[string]bool) []string {
	cols := make([]string, 0, len(seen))
	for _, p := range breakdownPriority {
		if seen[p] {
			cols = append(cols, p)
		}
	}
	var rest []string
	for c := range seen {
		isPriority := false
		for _, p := range breakdownPriority {
			if c == p {
				isPriority = true
				break
			}
		}
		if !isPriority {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// UserSummary lists users of every live panel's current generation. The user key is the panel
// field of the first mapped SOT; rows without one are skipped.
func (s *historyService) UserSummary(ctx context.Context) (*UserSummary, error) {
	dbc := dbctx.Context{Ctx: ctx}
	panels, err := s.panelRepo.List(dbc)
	if err != nil {
		return nil, err
	}
	out := &UserSummary{Users: []UserEntry{}}
	for _, p := range panels {
		if p.CurrentUploadID == nil {
			continue
		}
		mapping := p.Mapping()
		sots := mapping.SOTs()
		if len(sots) == 0 {
			continue
		}
		field, _, _ := mapping.Pair(sots[0])
		run, err := s.runRepo.GetByUpload(dbc, *p.CurrentUploadID)
		if err != nil {
			return nil, err
		}
		rows, err := s.panelRowRepo.ListGeneration(dbc, p.ID, *p.CurrentUploadID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			email := strings.TrimSpace(r.Record()[field])
			if email == "" {
				continue
			}
			e := UserEntry{
				EmailID:       email,
				PanelName:     p.Name,
				InitialStatus: r.InitialStatus,
				FinalStatus:   r.FinalStatus,
			}
			if e.FinalStatus == "" {
				e.FinalStatus = e.InitialStatus
			}
			if run != nil {
				e.ReconID = run.ReconID
				e.ReconMonth = run.ReconMonth
			}
			out.Users = append(out.Users, e)
		}
	}
	sort.SliceStable(out.Users, func(i, j int) bool {
		return strings.ToLower(out.Users[i].EmailID) < strings.ToLower(out.Users[j].EmailID)
	})
	out.TotalUsers = len(out.Users)
	return out, nil
}

func (s *historyService) ListRecategorizations(ctx context.Context, panelName string) ([]*types.RecategorizationRun, error) {
	var panelID *uuid.UUID
	if strings.TrimSpace(panelName) != "" {
		p, err := requirePanel(ctx, s.panelRepo, "history.recategorizations", panelName)
		if err != nil {
			return nil, err
		}
		panelID = &p.ID
	}
	out, err := s.recatRepo.List(dbctx.Context{Ctx: ctx}, panelID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*types.RecategorizationRun{}
	}
	return out, nil
}
