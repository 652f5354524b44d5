package recon

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

const rowBatchSize = 500

type SOTRepo interface {
	Create(dbc dbctx.Context, sot *types.SourceOfTruth) error
	Update(dbc dbctx.Context, sot *types.SourceOfTruth) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	GetByName(dbc dbctx.Context, name string) (*types.SourceOfTruth, error)
	List(dbc dbctx.Context) ([]*types.SourceOfTruth, error)
	MaxPrecedence(dbc dbctx.Context) (int, error)
	ReplaceRows(dbc dbctx.Context, sotID uuid.UUID, rows []*types.SOTRow) error
	ListRows(dbc dbctx.Context, sotID uuid.UUID) ([]*types.SOTRow, error)
}

type sotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSOTRepo(db *gorm.DB, baseLog *logger.Logger) SOTRepo {
	return &sotRepo{db: db, log: baseLog.With("repo", "SOTRepo")}
}

func (r *sotRepo) Create(dbc dbctx.Context, sot *types.SourceOfTruth) error {
	if sot == nil {
		return nil
	}
	err := dbc.DB(r.db).Create(sot).Error
	return mapWriteError("sot.create", fmt.Sprintf("SOT %q", sot.Name), err)
}

func (r *sotRepo) Update(dbc dbctx.Context, sot *types.SourceOfTruth) error {
	if sot == nil {
		return nil
	}
	return mapWriteError("sot.update", fmt.Sprintf("SOT %q", sot.Name), dbc.DB(r.db).Save(sot).Error)
}

func (r *sotRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	tx := dbc.DB(r.db)
	if err := tx.Where("sot_id = ?", id).Delete(&types.SOTRow{}).Error; err != nil {
		return types.Wrap(types.CodeInternal, "sot.delete", err)
	}
	if err := tx.Where("id = ?", id).Delete(&types.SourceOfTruth{}).Error; err != nil {
		return types.Wrap(types.CodeInternal, "sot.delete", err)
	}
	return nil
}

// GetByName returns nil, nil when the SOT does not exist.
func (r *sotRepo) GetByName(dbc dbctx.Context, name string) (*types.SourceOfTruth, error) {
	var out types.SourceOfTruth
	err := dbc.DB(r.db).Where("name = ?", name).Take(&out).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "sot.get", err)
	}
	return &out, nil
}

// List returns SOTs in precedence order (ties by name).
func (r *sotRepo) List(dbc dbctx.Context) ([]*types.SourceOfTruth, error) {
	var out []*types.SourceOfTruth
	if err := dbc.DB(r.db).Order("precedence ASC").Order("name ASC").Find(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "sot.list", err)
	}
	return out, nil
}

func (r *sotRepo) MaxPrecedence(dbc dbctx.Context) (int, error) {
	var max int
	row := dbc.DB(r.db).Model(&types.SourceOfTruth{}).Select("COALESCE(MAX(precedence), 0)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, types.Wrap(types.CodeInternal, "sot.max_precedence", err)
	}
	return max, nil
}

// ReplaceRows swaps the SOT's dataset wholesale. Callers run it inside a transaction.
func (r *sotRepo) ReplaceRows(dbc dbctx.Context, sotID uuid.UUID, rows []*types.SOTRow) error {
	tx := dbc.DB(r.db)
	if err := tx.Where("sot_id = ?", sotID).Delete(&types.SOTRow{}).Error; err != nil {
		return types.Wrap(types.CodeInternal, "sot.replace_rows", err)
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		row.SOTID = sotID
	}
	if err := tx.CreateInBatches(rows, rowBatchSize).Error; err != nil {
		return types.Wrap(types.CodeInternal, "sot.replace_rows", err)
	}
	return nil
}

func (r *sotRepo) ListRows(dbc dbctx.Context, sotID uuid.UUID) ([]*types.SOTRow, error) {
	var out []*types.SOTRow
	if err := dbc.DB(r.db).Where("sot_id = ?", sotID).Order("row_index ASC").Find(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "sot.list_rows", err)
	}
	return out, nil
}

type SOTUploadRepo interface {
	Create(dbc dbctx.Context, u *types.SOTUpload) error
	List(dbc dbctx.Context, sotName string, limit int) ([]*types.SOTUpload, error)
	HashExists(dbc dbctx.Context, sotName, hash string) (bool, error)
}

type sotUploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSOTUploadRepo(db *gorm.DB, baseLog *logger.Logger) SOTUploadRepo {
	return &sotUploadRepo{db: db, log: baseLog.With("repo", "SOTUploadRepo")}
}

func (r *sotUploadRepo) Create(dbc dbctx.Context, u *types.SOTUpload) error {
	if u.DocID == "" {
		u.DocID = uuid.NewString()
	}
	return mapWriteError("sot_upload.create", "SOT upload "+u.DocID, dbc.DB(r.db).Create(u).Error)
}

func (r *sotUploadRepo) List(dbc dbctx.Context, sotName string, limit int) ([]*types.SOTUpload, error) {
	q := dbc.DB(r.db).Order("created_at DESC").Order("doc_id ASC")
	if sotName != "" {
		q = q.Where("sot_name = ?", sotName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.SOTUpload
	if err := q.Find(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "sot_upload.list", err)
	}
	return out, nil
}

func (r *sotUploadRepo) HashExists(dbc dbctx.Context, sotName, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var n int64
	err := dbc.DB(r.db).Model(&types.SOTUpload{}).
		Where("sot_name = ? AND file_hash = ? AND status = ?", sotName, hash, types.UploadSucceeded).
		Count(&n).Error
	if err != nil {
		return false, types.Wrap(types.CodeInternal, "sot_upload.hash_exists", err)
	}
	return n > 0, nil
}
