package recon

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type PanelRepo interface {
	Create(dbc dbctx.Context, p *types.Panel) error
	Update(dbc dbctx.Context, p *types.Panel) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
	GetByName(dbc dbctx.Context, name string) (*types.Panel, error)
	GetByID(dbc dbctx.Context, id uuid.UUID, includeDeleted bool) (*types.Panel, error)
	List(dbc dbctx.Context) ([]*types.Panel, error)
}

type panelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPanelRepo(db *gorm.DB, baseLog *logger.Logger) PanelRepo {
	return &panelRepo{db: db, log: baseLog.With("repo", "PanelRepo")}
}

func (r *panelRepo) Create(dbc dbctx.Context, p *types.Panel) error {
	err := dbc.DB(r.db).Create(p).Error
	return mapWriteError("panel.create", fmt.Sprintf("panel %q", p.Name), err)
}

func (r *panelRepo) Update(dbc dbctx.Context, p *types.Panel) error {
	p.NameKey = types.PanelKey(p.Name)
	err := dbc.DB(r.db).Save(p).Error
	return mapWriteError("panel.update", fmt.Sprintf("panel %q", p.Name), err)
}

func (r *panelRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Panel{})
	if res.Error != nil {
		return types.Wrap(types.CodeInternal, "panel.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.CodeNotFound, "panel.delete", "panel not found", nil)
	}
	return nil
}

// GetByName matches case-insensitively and ignores deleted panels. Returns nil, nil when absent.
func (r *panelRepo) GetByName(dbc dbctx.Context, name string) (*types.Panel, error) {
	var out types.Panel
	err := dbc.DB(r.db).Where("name_key = ?", types.PanelKey(name)).Take(&out).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "panel.get", err)
	}
	return &out, nil
}

func (r *panelRepo) GetByID(dbc dbctx.Context, id uuid.UUID, includeDeleted bool) (*types.Panel, error) {
	q := dbc.DB(r.db)
	if includeDeleted {
		q = q.Unscoped()
	}
	var out types.Panel
	err := q.Where("id = ?", id).Take(&out).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "panel.get_by_id", err)
	}
	return &out, nil
}

func (r *panelRepo) List(dbc dbctx.Context) ([]*types.Panel, error) {
	var out []*types.Panel
	if err := dbc.DB(r.db).Order("name_key ASC").Find(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "panel.list", err)
	}
	return out, nil
}
