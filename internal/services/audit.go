package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/reconify-backend/internal/data/repos"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

const (
	ActionSOTUpload            = "SOT_UPLOAD"
	ActionSOTConfigCreated     = "SOT_CONFIG_CREATED"
	ActionSOTConfigUpdated     = "SOT_CONFIG_UPDATED"
	ActionSOTConfigDeleted     = "SOT_CONFIG_DELETED"
	ActionPanelAdded           = "NEW_PANEL_ADDED"
	ActionPanelModified        = "PANEL_CONFIG_MODIFY"
	ActionPanelDeleted         = "PANEL_CONFIG_DELETE"
	ActionPanelUpload          = "PANEL_UPLOAD"
	ActionDuplicateUpload      = "DUPLICATE_FILE_UPLOAD"
	ActionFileProcessingError  = "FILE_PROCESSING_ERROR"
	ActionUserCategorization   = "USER_CATEGORIZATION"
	ActionReconciliation       = "RECONCILIATION"
	ActionUserRecategorization = "USER_RECATEGORIZATION"
	ActionAuditCleanup         = "AUDIT_CLEANUP"
)

type AuditAction struct {
	Action      string `json:"action"`
	Description string `json:"description"`
}

var auditActions = []AuditAction{
	{ActionSOTUpload, "SOT file upload"},
	{ActionSOTConfigCreated, "SOT configuration created"},
	{ActionSOTConfigUpdated, "SOT configuration updated"},
	{ActionSOTConfigDeleted, "SOT configuration deleted"},
	{ActionPanelAdded, "New panel added"},
	{ActionPanelModified, "Panel configuration modified"},
	{ActionPanelDeleted, "Panel configuration deleted"},
	{ActionPanelUpload, "Panel data upload"},
	{ActionDuplicateUpload, "Duplicate file upload attempt"},
	{ActionFileProcessingError, "File could not be processed"},
	{ActionUserCategorization, "User categorization"},
	{ActionReconciliation, "Reconciliation process"},
	{ActionUserRecategorization, "User recategorization"},
	{ActionAuditCleanup, "Audit log cleanup"},
}

const (
	DefaultAuditRetentionDays = 90
	defaultRecentActivity     = 10
	maxRecentActivity         = 100
)

const (
	AuditSuccess = "success"
	AuditFailed  = "failed"
)

type AuditPage struct {
	Events []*types.AuditEvent `json:"events"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type AuditSummary struct {
	TotalEvents int64              `json:"total_events"`
	Failed      int64              `json:"failed_events"`
	ByAction    []repos.AuditCount `json:"by_action"`
}

// AuditStats tallies one user's or one action's events. Breakdown is keyed by
// action for a user and by actor for an action.
type AuditStats struct {
	Total       int64               `json:"total_entries"`
	Success     int64               `json:"success_count"`
	Failed      int64               `json:"failed_count"`
	SuccessRate float64             `json:"success_rate"`
	Breakdown   map[string]int64    `json:"breakdown"`
	Recent      []*types.AuditEvent `json:"recent_entries"`
}

type UserActivity struct {
	User string `json:"user_name"`
	AuditStats
}

type ActionStats struct {
	Action      string `json:"action"`
	Description string `json:"action_description"`
	AuditStats
}

type AuditCleanup struct {
	Deleted  int64  `json:"deleted_count"`
	DaysKept int    `json:"days_kept"`
	Message  string `json:"message"`
}

type AuditService interface {
	// Record appends an event. Failures are logged and swallowed.
	Record(ctx context.Context, action, status string, details map[string]any)
	List(ctx context.Context, f repos.AuditFilter) (*AuditPage, error)
	Summary(ctx context.Context, since *time.Time) (*AuditSummary, error)
	Actions() []AuditAction
	UserActivity(ctx context.Context, user string, recent int) (*UserActivity, error)
	ActionStats(ctx context.Context, action string) (*ActionStats, error)
	// Cleanup deletes events older than keepDays days.
	Cleanup(ctx context.Context, keepDays int) (*AuditCleanup, error)
}

type auditService struct {
	log       *logger.Logger
	auditRepo repos.AuditRepo
}

func NewAuditService(log *logger.Logger, auditRepo repos.AuditRepo) AuditService {
	return &auditService{
		log:       log.With("service", "AuditService"),
		auditRepo: auditRepo,
	}
}

func (s *auditService) Record(ctx context.Context, action, status string, details map[string]any) {
	ev := &types.AuditEvent{
		Action:  action,
		Actor:   ctxutil.Actor(ctx),
		Status:  status,
		Details: types.EncodeSummary(details),
	}
	if rd := ctxutil.GetRequestData(ctx); rd != nil {
		ev.IPAddress = rd.IP
		ev.UserAgent = rd.UserAgent
	}
	// Detached so a cancelled request still leaves its trail.
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	if err := s.auditRepo.Create(dbc, ev); err != nil {
		s.log.Warn("audit write failed", "action", action, "error", err)
	}
}

func (s *auditService) List(ctx context.Context, f repos.AuditFilter) (*AuditPage, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	events, total, err := s.auditRepo.List(dbctx.Context{Ctx: ctx}, f)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*types.AuditEvent{}
	}
	return &AuditPage{Events: events, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *auditService) Summary(ctx context.Context, since *time.Time) (*AuditSummary, error) {
	counts, err := s.auditRepo.CountByAction(dbctx.Context{Ctx: ctx}, since)
	if err != nil {
		return nil, err
	}
	out := &AuditSummary{ByAction: counts}
	if out.ByAction == nil {
		out.ByAction = []repos.AuditCount{}
	}
	for _, c := range counts {
		out.TotalEvents += c.Count
		if c.Status == AuditFailed {
			out.Failed += c.Count
		}
	}
	return out, nil
}

func (s *auditService) Actions() []AuditAction {
	return append([]AuditAction(nil), auditActions...)
}

func (s *auditService) UserActivity(ctx context.Context, user string, recent int) (*UserActivity, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, types.Errorf(types.CodeValidation, "audit.user_activity", "user is required")
	}
	stats, err := s.stats(ctx, "action", repos.AuditFilter{Actor: user}, recent)
	if err != nil {
		return nil, err
	}
	return &UserActivity{User: user, AuditStats: *stats}, nil
}

func (s *auditService) ActionStats(ctx context.Context, action string) (*ActionStats, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action == "" {
		return nil, types.Errorf(types.CodeValidation, "audit.action_stats", "action is required")
	}
	stats, err := s.stats(ctx, "actor", repos.AuditFilter{Action: action}, defaultRecentActivity)
	if err != nil {
		return nil, err
	}
	out := &ActionStats{Action: action, Description: "Unknown action", AuditStats: *stats}
	for _, a := range auditActions {
		if a.Action == action {
			out.Description = a.Description
			break
		}
	}
	return out, nil
}

func (s *auditService) stats(ctx context.Context, column string, f repos.AuditFilter, recent int) (*AuditStats, error) {
	if recent <= 0 {
		recent = defaultRecentActivity
	} else if recent > maxRecentActivity {
		recent = maxRecentActivity
	}
	dbc := dbctx.Context{Ctx: ctx}
	tallies, err := s.auditRepo.Tally(dbc, column, f)
	if err != nil {
		return nil, err
	}
	out := &AuditStats{Breakdown: map[string]int64{}}
	for _, t := range tallies {
		out.Total += t.Count
		out.Breakdown[t.Key] += t.Count
		if t.Status == AuditSuccess {
			out.Success += t.Count
		} else {
			out.Failed += t.Count
		}
	}
	if out.Total > 0 {
		out.SuccessRate = float64(out.Success) / float64(out.Total) * 100
	}
	f.Limit = recent
	if out.Recent, _, err = s.auditRepo.List(dbc, f); err != nil {
		return nil, err
	}
	if out.Recent == nil {
		out.Recent = []*types.AuditEvent{}
	}
	return out, nil
}

func (s *auditService) Cleanup(ctx context.Context, keepDays int) (*AuditCleanup, error) {
	if keepDays < 1 {
		return nil, types.Errorf(types.CodeValidation, "audit.cleanup", "days_to_keep must be at least 1")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)
	n, err := s.auditRepo.DeleteBefore(dbctx.Context{Ctx: ctx}, cutoff)
	if err != nil {
		s.Record(ctx, ActionAuditCleanup, AuditFailed, map[string]any{"days_kept": keepDays, "error": err.Error()})
		return nil, err
	}
	s.Record(ctx, ActionAuditCleanup, AuditSuccess, map[string]any{"days_kept": keepDays, "deleted_count": n})
	return &AuditCleanup{
		Deleted:  n,
		DaysKept: keepDays,
		Message:  fmt.Sprintf("Cleaned up %d audit events older than %d days", n, keepDays),
	}, nil
}
