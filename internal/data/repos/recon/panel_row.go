package recon

import (
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

// InitialAssignment is the categorization outcome for one row.
type InitialAssignment struct {
	RowID      int64
	Status     string
	MatchedSOT *string
}

// FinalAssignment is the HR or override outcome for one row.
type FinalAssignment struct {
	RowID       int64
	FinalStatus string
	HRStatus    string
}

type PanelRowRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.PanelRow) error
	ListGeneration(dbc dbctx.Context, panelID uuid.UUID, uploadID string) ([]*types.PanelRow, error)
	SetInitial(dbc dbctx.Context, assignments []InitialAssignment) error
	SetFinal(dbc dbctx.Context, assignments []FinalAssignment) error
	DeleteGenerations(dbc dbctx.Context, panelID uuid.UUID, uploadIDs []string) (int64, error)
	StatusCounts(dbc dbctx.Context, panelID uuid.UUID, uploadID string, final bool) (map[string]int64, error)
}

type panelRowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPanelRowRepo(db *gorm.DB, baseLog *logger.Logger) PanelRowRepo {
	return &panelRowRepo{db: db, log: baseLog.With("repo", "PanelRowRepo")}
}

func (r *panelRowRepo) CreateBatch(dbc dbctx.Context, rows []*types.PanelRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := dbc.DB(r.db).CreateInBatches(rows, rowBatchSize).Error; err != nil {
		return types.Wrap(types.CodeInternal, "panel_row.create", err)
	}
	return nil
}

func (r *panelRowRepo) ListGeneration(dbc dbctx.Context, panelID uuid.UUID, uploadID string) ([]*types.PanelRow, error) {
	var out []*types.PanelRow
	err := dbc.DB(r.db).
		Where("panel_id = ? AND upload_id = ?", panelID, uploadID).
		Order("row_index ASC").
		Find(&out).Error
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "panel_row.list", err)
	}
	return out, nil
}

// SetInitial writes categorization results. Final status and HR status are reset
// because they derive from the initial status.
func (r *panelRowRepo) SetInitial(dbc dbctx.Context, assignments []InitialAssignment) error {
	type key struct {
		status  string
		matched string
		hasSOT  bool
	}
	groups := map[key][]int64{}
	for _, a := range assignments {
		k := key{status: a.Status}
		if a.MatchedSOT != nil {
			k.matched, k.hasSOT = *a.MatchedSOT, true
		}
		groups[k] = append(groups[k], a.RowID)
	}
	tx := dbc.DB(r.db)
	for k, ids := range groups {
		var matched *string
		if k.hasSOT {
			m := k.matched
			matched = &m
		}
		updates := map[string]interface{}{
			"initial_status": k.status,
			"matched_sot":    matched,
			"final_status":   "",
			"hr_status":      "",
		}
		if err := updateChunked(tx, ids, updates); err != nil {
			return types.Wrap(types.CodeInternal, "panel_row.set_initial", err)
		}
	}
	return nil
}

func (r *panelRowRepo) SetFinal(dbc dbctx.Context, assignments []FinalAssignment) error {
	type key struct{ final, hr string }
	groups := map[key][]int64{}
	for _, a := range assignments {
		k := key{final: a.FinalStatus, hr: a.HRStatus}
		groups[k] = append(groups[k], a.RowID)
	}
	tx := dbc.DB(r.db)
	for k, ids := range groups {
		updates := map[string]interface{}{"final_status": k.final, "hr_status": k.hr}
		if err := updateChunked(tx, ids, updates); err != nil {
			return types.Wrap(types.CodeInternal, "panel_row.set_final", err)
		}
	}
	return nil
}

func (r *panelRowRepo) DeleteGenerations(dbc dbctx.Context, panelID uuid.UUID, uploadIDs []string) (int64, error) {
	if len(uploadIDs) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("panel_id = ? AND upload_id IN ?", panelID, uploadIDs).Delete(&types.PanelRow{})
	if res.Error != nil {
		return 0, types.Wrap(types.CodeInternal, "panel_row.delete_generations", res.Error)
	}
	return res.RowsAffected, nil
}

// StatusCounts groups a generation by initial_status, or final_status when final is set.
func (r *panelRowRepo) StatusCounts(dbc dbctx.Context, panelID uuid.UUID, uploadID string, final bool) (map[string]int64, error) {
	col := "initial_status"
	if final {
		col = "final_status"
	}
	var rows []struct {
		Status string
		N      int64
	}
	err := dbc.DB(r.db).Model(&types.PanelRow{}).
		Select(col+" AS status, COUNT(*) AS n").
		Where("panel_id = ? AND upload_id = ?", panelID, uploadID).
		Group(col).
		Scan(&rows).Error
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "panel_row.status_counts", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func updateChunked(tx *gorm.DB, ids []int64, updates map[string]interface{}) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for start := 0; start < len(ids); start += rowBatchSize {
		end := start + rowBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		err := tx.Model(&types.PanelRow{}).Where("id IN ?", ids[start:end]).Updates(updates).Error
		if err != nil {
			return err
		}
	}
	return nil
}
