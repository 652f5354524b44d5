package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
)

// TxRunner is the shared transaction boundary for multi-table writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return recon.NewError(recon.CodeInternal, "db.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
