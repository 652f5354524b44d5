package recon

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type UploadRepo interface {
	Create(dbc dbctx.Context, u *types.Upload) error
	Get(dbc dbctx.Context, docID string) (*types.Upload, error)
	List(dbc dbctx.Context, panelID *uuid.UUID) ([]*types.Upload, error)
	ListSucceeded(dbc dbctx.Context, panelID uuid.UUID) ([]*types.Upload, error)
	HashExists(dbc dbctx.Context, panelID uuid.UUID, hash string) (bool, error)
}

type uploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUploadRepo(db *gorm.DB, baseLog *logger.Logger) UploadRepo {
	return &uploadRepo{db: db, log: baseLog.With("repo", "UploadRepo")}
}

func (r *uploadRepo) Create(dbc dbctx.Context, u *types.Upload) error {
	if u.DocID == "" {
		u.DocID = uuid.NewString()
	}
	return mapWriteError("upload.create", "upload "+u.DocID, dbc.DB(r.db).Create(u).Error)
}

func (r *uploadRepo) Get(dbc dbctx.Context, docID string) (*types.Upload, error) {
	var out types.Upload
	err := dbc.DB(r.db).Where("doc_id = ?", docID).Take(&out).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "upload.get", err)
	}
	return &out, nil
}

// List returns uploads newest first, optionally for a single panel.
func (r *uploadRepo) List(dbc dbctx.Context, panelID *uuid.UUID) ([]*types.Upload, error) {
	q := dbc.DB(r.db).Order("created_at DESC").Order("doc_id ASC")
	if panelID != nil {
		q = q.Where("panel_id = ?", *panelID)
	}
	var out []*types.Upload
	if err := q.Find(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "upload.list", err)
	}
	return out, nil
}

// ListSucceeded returns the panel's successful uploads newest first.
func (r *uploadRepo) ListSucceeded(dbc dbctx.Context, panelID uuid.UUID) ([]*types.Upload, error) {
	var out []*types.Upload
	err := dbc.DB(r.db).
		Where("panel_id = ? AND status = ?", panelID, types.UploadSucceeded).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "upload.list_succeeded", err)
	}
	return out, nil
}

// HashExists reports whether a live generation of the panel came from a file with this hash.
// Generations whose run failed do not count, so the same file can be uploaded again to retry.
func (r *uploadRepo) HashExists(dbc dbctx.Context, panelID uuid.UUID, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	failedRun := dbc.DB(r.db).Model(&types.ReconciliationRun{}).
		Select("1").
		Where("recon_run.upload_id = panel_upload.doc_id AND recon_run.status = ?", types.RunFailed)
	var n int64
	err := dbc.DB(r.db).Model(&types.Upload{}).
		Where("panel_upload.panel_id = ? AND panel_upload.file_hash = ? AND panel_upload.status = ?", panelID, hash, types.UploadSucceeded).
		Where("NOT EXISTS (?)", failedRun).
		Count(&n).Error
	if err != nil {
		return false, types.Wrap(types.CodeInternal, "upload.hash_exists", err)
	}
	return n > 0, nil
}
