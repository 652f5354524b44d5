package recon

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type ReconRunRepo interface {
	Create(dbc dbctx.Context, run *types.ReconciliationRun) error
	Get(dbc dbctx.Context, reconID string) (*types.ReconciliationRun, error)
	GetByUpload(dbc dbctx.Context, uploadID string) (*types.ReconciliationRun, error)
	ListByUploads(dbc dbctx.Context, uploadIDs []string) (map[string]*types.ReconciliationRun, error)
	List(dbc dbctx.Context, panelID *uuid.UUID) ([]*types.ReconciliationRun, error)
	TransitionStatus(dbc dbctx.Context, reconID string, from, to types.RunStatus, updates map[string]interface{}) (bool, error)
	FailAbandoned(dbc dbctx.Context, startedBefore time.Time, reason string) (int64, error)
}

type reconRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReconRunRepo(db *gorm.DB, baseLog *logger.Logger) ReconRunRepo {
	return &reconRunRepo{db: db, log: baseLog.With("repo", "ReconRunRepo")}
}

func (r *reconRunRepo) Create(dbc dbctx.Context, run *types.ReconciliationRun) error {
	if run.ReconID == "" {
		run.ReconID = types.NewReconID()
	}
	return mapWriteError("recon_run.create", "reconciliation run "+run.ReconID, dbc.DB(r.db).Create(run).Error)
}

func (r *reconRunRepo) Get(dbc dbctx.Context, reconID string) (*types.ReconciliationRun, error) {
	var out types.ReconciliationRun
	err := dbc.DB(r.db).Where("recon_id = ?", reconID).Take(&out).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "recon_run.get", err)
	}
	return &out, nil
}

func (r *reconRunRepo) GetByUpload(dbc dbctx.Context, uploadID string) (*types.ReconciliationRun, error) {
	var out types.ReconciliationRun
	err := dbc.DB(r.db).Where("upload_id = ?", uploadID).Take(&out).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "recon_run.get_by_upload", err)
	}
	return &out, nil
}

func (r *reconRunRepo) ListByUploads(dbc dbctx.Context, uploadIDs []string) (map[string]*types.ReconciliationRun, error) {
	out := map[string]*types.ReconciliationRun{}
	if len(uploadIDs) == 0 {
		return out, nil
	}
	var runs []*types.ReconciliationRun
	if err := dbc.DB(r.db).Where("upload_id IN ?", uploadIDs).Find(&runs).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "recon_run.list_by_uploads", err)
	}
	for _, run := range runs {
		out[run.UploadID] = run
	}
	return out, nil
}

// List returns runs newest first, optionally for one panel.
func (r *reconRunRepo) List(dbc dbctx.Context, panelID *uuid.UUID) ([]*types.ReconciliationRun, error) {
	q := dbc.DB(r.db).Order("created_at DESC").Order("recon_id ASC")
	if panelID != nil {
		q = q.Where("panel_id = ?", *panelID)
	}
	var out []*types.ReconciliationRun
	if err := q.Find(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "recon_run.list", err)
	}
	return out, nil
}

// TransitionStatus moves the run from -> to only if it is still in from.
// Returns false when another writer got there first.
func (r *reconRunRepo) TransitionStatus(dbc dbctx.Context, reconID string, from, to types.RunStatus, updates map[string]interface{}) (bool, error) {
	if !from.CanTransition(to) {
		return false, types.Errorf(types.CodeInternal, "recon_run.transition", "illegal run transition %s -> %s", from, to)
	}
	fields := map[string]interface{}{"status": to}
	for k, v := range updates {
		fields[k] = v
	}
	res := dbc.DB(r.db).Model(&types.ReconciliationRun{}).
		Where("recon_id = ? AND status = ?", reconID, from).
		Updates(fields)
	if res.Error != nil {
		return false, types.Wrap(types.CodeInternal, "recon_run.transition", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FailAbandoned fails every run still reconciling that started before startedBefore.
func (r *reconRunRepo) FailAbandoned(dbc dbctx.Context, startedBefore time.Time, reason string) (int64, error) {
	res := dbc.DB(r.db).Model(&types.ReconciliationRun{}).
		Where("status = ?", types.RunReconciling).
		Where("(start_date < ? OR (start_date IS NULL AND updated_at < ?))", startedBefore, startedBefore).
		Updates(map[string]interface{}{
			"status":       types.RunFailed,
			"error":        reason,
			"completed_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, types.Wrap(types.CodeInternal, "recon_run.fail_abandoned", res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.Warn("Failed abandoned reconciliation runs", "count", res.RowsAffected, "started_before", startedBefore)
	}
	return res.RowsAffected, nil
}
