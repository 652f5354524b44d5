package recon

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/reconify-backend/internal/data/repos/testutil"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
)

func TestReconRunRepoTransitions(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	panel := testutil.SeedPanel(t, ctx, db, "p1", types.KeyMapping{}, nil)
	repo := NewReconRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	older := &types.ReconciliationRun{PanelID: panel.ID, PanelName: "p1", UploadID: "u-1", Status: types.RunFailed, CreatedAt: now.Add(-time.Hour)}
	run := &types.ReconciliationRun{PanelID: panel.ID, PanelName: "p1", UploadID: "u-2", Status: types.RunUploaded, CreatedAt: now}
	for _, r := range []*types.ReconciliationRun{older, run} {
		if err := repo.Create(dbc, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if dup := (&types.ReconciliationRun{PanelID: panel.ID, PanelName: "p1", UploadID: "u-2", Status: types.RunUploaded}); !types.IsCode(repo.Create(dbc, dup), types.CodeConflict) {
		t.Fatalf("second run for the same generation must conflict")
	}

	ok, err := repo.TransitionStatus(dbc, run.ReconID, types.RunUploaded, types.RunReconciling, map[string]interface{}{"performed_by": "a@x.com"})
	if err != nil || !ok {
		t.Fatalf("first transition: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TransitionStatus(dbc, run.ReconID, types.RunUploaded, types.RunReconciling, nil)
	if err != nil || ok {
		t.Fatalf("second transition must lose the race: ok=%v err=%v", ok, err)
	}
	if _, err := repo.TransitionStatus(dbc, run.ReconID, types.RunComplete, types.RunUploaded, nil); !types.IsCode(err, types.CodeInternal) {
		t.Fatalf("backward transition must be rejected, got %v", err)
	}

	got, err := repo.Get(dbc, run.ReconID)
	if err != nil || got.Status != types.RunReconciling || got.PerformedBy != "a@x.com" {
		t.Fatalf("Get: %+v err=%v", got, err)
	}
	byUpload, err := repo.GetByUpload(dbc, "u-1")
	if err != nil || byUpload == nil || byUpload.ReconID != older.ReconID {
		t.Fatalf("GetByUpload: %+v err=%v", byUpload, err)
	}

	list, err := repo.List(dbc, nil)
	if err != nil || len(list) != 2 || list[0].ReconID != run.ReconID {
		t.Fatalf("List should be newest first: %v err=%v", list, err)
	}
	m, err := repo.ListByUploads(dbc, []string{"u-1", "u-2", "u-3"})
	if err != nil || len(m) != 2 || m["u-2"].ReconID != run.ReconID {
		t.Fatalf("ListByUploads: %v err=%v", m, err)
	}
}

func TestReconRunRepoFailAbandoned(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	panel := testutil.SeedPanel(t, dbc.Ctx, db, "p1", types.KeyMapping{}, nil)
	repo := NewReconRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	stale := &types.ReconciliationRun{PanelID: panel.ID, PanelName: "p1", UploadID: "u-1", Status: types.RunUploaded}
	fresh := &types.ReconciliationRun{PanelID: panel.ID, PanelName: "p1", UploadID: "u-2", Status: types.RunUploaded}
	for i, r := range []*types.ReconciliationRun{stale, fresh} {
		if err := repo.Create(dbc, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
		started := now.Add(-time.Hour)
		if i == 1 {
			started = now
		}
		if ok, err := repo.TransitionStatus(dbc, r.ReconID, types.RunUploaded, types.RunReconciling, map[string]interface{}{"start_date": started}); err != nil || !ok {
			t.Fatalf("TransitionStatus: ok=%v err=%v", ok, err)
		}
	}

	n, err := repo.FailAbandoned(dbc, now.Add(-10*time.Minute), "abandoned")
	if err != nil || n != 1 {
		t.Fatalf("FailAbandoned: n=%d err=%v", n, err)
	}
	got, _ := repo.Get(dbc, stale.ReconID)
	if got.Status != types.RunFailed || got.Error != "abandoned" || got.CompletedAt == nil {
		t.Fatalf("stale run not failed: %+v", got)
	}
	got, _ = repo.Get(dbc, fresh.ReconID)
	if got.Status != types.RunReconciling {
		t.Fatalf("fresh run must keep reconciling, got %s", got.Status)
	}
}

func TestUploadRepoHashExistsSkipsFailedGenerations(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	panel := testutil.SeedPanel(t, dbc.Ctx, db, "p1", types.KeyMapping{}, nil)
	uploads := NewUploadRepo(db, testutil.Logger(t))
	runs := NewReconRunRepo(db, testutil.Logger(t))

	up := &types.Upload{PanelID: panel.ID, PanelName: "p1", Status: types.UploadSucceeded, FileHash: "h1"}
	if err := uploads.Create(dbc, up); err != nil {
		t.Fatalf("Create upload: %v", err)
	}
	run := &types.ReconciliationRun{PanelID: panel.ID, PanelName: "p1", UploadID: up.DocID, Status: types.RunUploaded}
	if err := runs.Create(dbc, run); err != nil {
		t.Fatalf("Create run: %v", err)
	}

	if dup, err := uploads.HashExists(dbc, panel.ID, "h1"); err != nil || !dup {
		t.Fatalf("live generation must count as duplicate: dup=%v err=%v", dup, err)
	}
	if dup, err := uploads.HashExists(dbc, panel.ID, "h2"); err != nil || dup {
		t.Fatalf("unknown hash: dup=%v err=%v", dup, err)
	}
	if ok, err := runs.TransitionStatus(dbc, run.ReconID, types.RunUploaded, types.RunFailed, nil); err != nil || !ok {
		t.Fatalf("TransitionStatus: ok=%v err=%v", ok, err)
	}
	if dup, err := uploads.HashExists(dbc, panel.ID, "h1"); err != nil || dup {
		t.Fatalf("failed generation must not block a retry: dup=%v err=%v", dup, err)
	}
}

func TestAuditRepoFilters(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewAuditRepo(db, testutil.Logger(t))

	base := time.Now().UTC().Add(-time.Minute)
	events := []*types.AuditEvent{
		{Action: "PANEL_UPLOAD", Actor: "a@x.com", Status: "success", CreatedAt: base},
		{Action: "PANEL_UPLOAD", Actor: "b@x.com", Status: "failed", CreatedAt: base.Add(time.Second)},
		{Action: "RECONCILIATION", Actor: "a@x.com", Status: "success", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, ev := range events {
		if err := repo.Create(dbc, ev); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, total, err := repo.List(dbc, AuditFilter{Actor: "a@x.com", Limit: 1})
	if err != nil || total != 2 || len(got) != 1 || got[0].Action != "RECONCILIATION" {
		t.Fatalf("List: got=%v total=%d err=%v", got, total, err)
	}
	counts, err := repo.CountByAction(dbc, nil)
	if err != nil || len(counts) != 3 {
		t.Fatalf("CountByAction: %v err=%v", counts, err)
	}
	if counts[0].Action != "PANEL_UPLOAD" || counts[0].Status != "failed" || counts[0].Count != 1 {
		t.Fatalf("unexpected first count row: %+v", counts[0])
	}
}

func TestAuditRepoTallyAndDeleteBefore(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewAuditRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	events := []*types.AuditEvent{
		{Action: "PANEL_UPLOAD", Actor: "a@x.com", Status: "success", CreatedAt: now.Add(-100 * 24 * time.Hour)},
		{Action: "PANEL_UPLOAD", Actor: "a@x.com", Status: "failed", CreatedAt: now.Add(-time.Hour)},
		{Action: "PANEL_UPLOAD", Actor: "b@x.com", Status: "success", CreatedAt: now.Add(-time.Minute)},
		{Action: "RECONCILIATION", Actor: "a@x.com", Status: "success", CreatedAt: now},
	}
	for _, ev := range events {
		if err := repo.Create(dbc, ev); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	byActor, err := repo.Tally(dbc, "actor", AuditFilter{Action: "PANEL_UPLOAD"})
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	want := []AuditTally{
		{Key: "a@x.com", Status: "failed", Count: 1},
		{Key: "a@x.com", Status: "success", Count: 1},
		{Key: "b@x.com", Status: "success", Count: 1},
	}
	if len(byActor) != len(want) {
		t.Fatalf("Tally = %+v", byActor)
	}
	for i := range want {
		if byActor[i] != want[i] {
			t.Fatalf("Tally[%d] = %+v, want %+v", i, byActor[i], want[i])
		}
	}
	if _, err := repo.Tally(dbc, "details", AuditFilter{}); !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("grouping by an arbitrary column must be rejected, got %v", err)
	}

	n, err := repo.DeleteBefore(dbc, now.Add(-90*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteBefore = %d, %v; want 1", n, err)
	}
	if _, total, _ := repo.List(dbc, AuditFilter{}); total != 3 {
		t.Fatalf("events left = %d, want 3", total)
	}
}
