package recon

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type RecategorizationRepo interface {
	Create(dbc dbctx.Context, run *types.RecategorizationRun) error
	List(dbc dbctx.Context, panelID *uuid.UUID) ([]*types.RecategorizationRun, error)
}

type recategorizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecategorizationRepo(db *gorm.DB, baseLog *logger.Logger) RecategorizationRepo {
	return &recategorizationRepo{db: db, log: baseLog.With("repo", "RecategorizationRepo")}
}

func (r *recategorizationRepo) Create(dbc dbctx.Context, run *types.RecategorizationRun) error {
	if err := dbc.DB(r.db).Create(run).Error; err != nil {
		return types.Wrap(types.CodeInternal, "recategorization.create", err)
	}
	return nil
}

func (r *recategorizationRepo) List(dbc dbctx.Context, panelID *uuid.UUID) ([]*types.RecategorizationRun, error) {
	q := dbc.DB(r.db).Order("created_at DESC")
	if panelID != nil {
		q = q.Where("panel_id = ?", *panelID)
	}
	var out []*types.RecategorizationRun
	if err := q.Find(&out).Error; err != nil {
		return nil, types.Wrap(types.CodeInternal, "recategorization.list", err)
	}
	return out, nil
}
