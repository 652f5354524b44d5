package recon

import (
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type AuditFilter struct {
	Action string
	Actor  string
	Status string
	Since  *time.Time
	Limit  int
	Offset int
}

type AuditCount struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// AuditTally is one (key, status) bucket of a grouped count; Key holds the
// grouped column's value.
type AuditTally struct {
	Key    string `gorm:"column:group_key" json:"key"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type AuditRepo interface {
	Create(dbc dbctx.Context, ev *types.AuditEvent) error
	List(dbc dbctx.Context, f AuditFilter) ([]*types.AuditEvent, int64, error)
	CountByAction(dbc dbctx.Context, since *time.Time) ([]AuditCount, error)
	// Tally groups the events matching f by column ("action" or "actor") and status.
	Tally(dbc dbctx.Context, column string, f AuditFilter) ([]AuditTally, error)
	DeleteBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, baseLog *logger.Logger) AuditRepo {
	return &auditRepo{db: db, log: baseLog.With("repo", "AuditRepo")}
}

func (r *auditRepo) Create(dbc dbctx.Context, ev *types.AuditEvent) error {
	if err := dbc.DB(r.db).Create(ev).Error; err != nil {
		return types.Wrap(types.CodeInternal, "audit.create", err)
	}
	return nil
}

// List returns matching events newest first plus the unpaged total.
func (r *auditRepo) List(dbc dbctx.Context, f AuditFilter) ([]*types.AuditEvent, int64, error) {
	var total int64
	if err := r.filtered(dbc, f).Count(&total).Error; err != nil {
		return nil, 0, types.Wrap(types.CodeInternal, "audit.count", err)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []*types.AuditEvent
	err := r.filtered(dbc, f).Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error
	if err != nil {
		return nil, 0, types.Wrap(types.CodeInternal, "audit.list", err)
	}
	return out, total, nil
}

func (r *auditRepo) filtered(dbc dbctx.Context, f AuditFilter) *gorm.DB {
	q := dbc.DB(r.db).Model(&types.AuditEvent{})
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Actor != "" {
		q = q.Where("actor = ?", f.Actor)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", *f.Since)
	}
	return q
}

func (r *auditRepo) CountByAction(dbc dbctx.Context, since *time.Time) ([]AuditCount, error) {
	q := dbc.DB(r.db).Model(&types.AuditEvent{}).
		Select("action, status, COUNT(*) AS count").
		Group("action, status").
		Order("action ASC").Order("status ASC")
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var out []AuditCount
	if err := q.Scan(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "audit.count_by_action", err)
	}
	return out, nil
}

func (r *auditRepo) Tally(dbc dbctx.Context, column string, f AuditFilter) ([]AuditTally, error) {
	switch column {
	case "action", "actor":
	default:
		return nil, types.Errorf(types.CodeValidation, "audit.tally", "cannot group audit events by %q", column)
	}
	var out []AuditTally
	err := r.filtered(dbc, f).
		Select(column + " AS group_key, status, COUNT(*) AS count").
		Group(column + ", status").
		Order(column + " ASC").Order("status ASC").
		Scan(&out).Error
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "audit.tally", err)
	}
	return out, nil
}

// DeleteBefore removes events recorded strictly before cutoff.
func (r *auditRepo) DeleteBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("created_at < ?", cutoff).Delete(&types.AuditEvent{})
	if res.Error != nil {
		return 0, types.Wrap(types.CodeInternal, "audit.delete_before", res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.Info("Pruned audit events", "deleted", res.RowsAffected, "cutoff", cutoff)
	}
	return res.RowsAffected, nil
}
