package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/reconify-backend/internal/domain/recon"
)

// SeedSOT stores a SOT and its rows.
func SeedSOT(tb testing.TB, ctx context.Context, db *gorm.DB, name, category string, precedence int, fields []string, rows []map[string]string) *recon.SourceOfTruth {
	tb.Helper()
	sot := &recon.SourceOfTruth{
		Name:       name,
		Category:   category,
		Precedence: precedence,
		RowCount:   len(rows),
	}
	sot.SetFields(fields)
	if err := db.WithContext(ctx).Create(sot).Error; err != nil {
		tb.Fatalf("seed sot %s: %v", name, err)
	}
	for i, rec := range rows {
		r := &recon.SOTRow{SOTID: sot.ID, RowIndex: i}
		r.SetRecord(rec)
		if err := db.WithContext(ctx).Create(r).Error; err != nil {
			tb.Fatalf("seed sot row: %v", err)
		}
	}
	return sot
}

func SeedPanel(tb testing.TB, ctx context.Context, db *gorm.DB, name string, mapping recon.KeyMapping, headers []string) *recon.Panel {
	tb.Helper()
	p := &recon.Panel{Name: name}
	p.SetMapping(mapping)
	p.SetHeaders(headers)
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed panel %s: %v", name, err)
	}
	return p
}

func PtrString(v string) *string { return &v }
