package services

import (
	"strings"
	"testing"
	"time"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
)

func TestUploadPanelDataCreatesGeneration(t *testing.T) {
	h := newHarness(t)
	h.createPanel(t, "Okta", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})

	res := h.uploadPanel(t, "okta", "Email , Name\na@x.com,Ann\nb@y.com,Bob\n")
	if res.Upload.Status != types.UploadSucceeded || res.Upload.TotalRecords != 2 {
		t.Fatalf("unexpected upload: %+v", res.Upload)
	}
	if res.Run.Status != types.RunUploaded || res.Run.UploadID != res.Upload.DocID || res.Run.SOTType != types.SOTHRData {
		t.Fatalf("unexpected run: %+v", res.Run)
	}

	d, err := h.panels.Details(testCtx(), "OKTA")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Panel.CurrentUploadID == nil || *d.Panel.CurrentUploadID != res.Upload.DocID {
		t.Fatalf("current upload not set: %v", d.Panel.CurrentUploadID)
	}
	if got := strings.Join(d.Panel.Headers(), ","); got != "email,name" {
		t.Fatalf("panel headers = %q", got)
	}
	if len(d.Rows) != 2 || d.Rows[0].Record()["name"] != "Ann" || d.Run == nil {
		t.Fatalf("unexpected details: rows=%d run=%v", len(d.Rows), d.Run)
	}
	if n := h.auditCount(t, ActionPanelUpload, AuditSuccess); n != 1 {
		t.Fatalf("panel upload audit events = %d", n)
	}
}

func TestUploadPanelDataRejectsDuplicateFile(t *testing.T) {
	h := newHarness(t)
	h.createPanel(t, "p1", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})
	h.uploadPanel(t, "p1", "email\na@x.com\n")

	_, err := h.uploads.UploadPanelData(testCtx(), "p1", csvFile("again.csv", "email\na@x.com\n"))
	if !types.IsCode(err, types.CodeConflict) {
		t.Fatalf("expected conflict for duplicate content, got %v", err)
	}
	hist, err := h.history.UploadHistory(testCtx())
	if err != nil {
		t.Fatalf("UploadHistory: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected success and failed upload records, got %d", len(hist))
	}
	var failed int
	for _, e := range hist {
		if e.Status == types.UploadFailed {
			failed++
			if e.Current || e.ReconID != "" || e.Error == "" {
				t.Fatalf("failed upload should have no run: %+v", e)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("failed uploads = %d", failed)
	}
	if n := h.auditCount(t, ActionDuplicateUpload, AuditFailed); n != 1 {
		t.Fatalf("duplicate audit events = %d", n)
	}
}

func TestUploadPanelDataValidatesMappedColumns(t *testing.T) {
	h := newHarness(t)
	h.createPanel(t, "p1", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})

	_, err := h.uploads.UploadPanelData(testCtx(), "p1", csvFile("p1.csv", "name\nbob\n"))
	if !types.IsCode(err, types.CodeValidation) || !strings.Contains(err.Error(), "email") {
		t.Fatalf("expected validation error naming the column, got %v", err)
	}
	_, err = h.uploads.UploadPanelData(testCtx(), "p1", csvFile("p1.txt", "email\na@x.com\n"))
	if !types.IsCode(err, types.CodeUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	_, err = h.uploads.UploadPanelData(testCtx(), "p1", csvFile("p1.csv", "email\n"))
	if !types.IsCode(err, types.CodeEmptyFile) {
		t.Fatalf("expected empty file, got %v", err)
	}
	if n := h.auditCount(t, ActionFileProcessingError, AuditFailed); n != 3 {
		t.Fatalf("processing error audit events = %d", n)
	}
	keys, err := h.archive.Keys(testCtx(), ArchivePanel, "p1")
	if err != nil {
		t.Fatalf("archive keys: %v", err)
	}
	for _, k := range keys {
		if !strings.Contains(k, "/failed/") {
			t.Fatalf("rejected file archived outside failed/: %s", k)
		}
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 archived failures, got %v", keys)
	}
	if _, err := h.uploads.UploadPanelData(testCtx(), "missing", csvFile("p.csv", "email\na\n")); !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("expected not found for unknown panel, got %v", err)
	}
}

func TestUploadSupersedesNeverStartedRun(t *testing.T) {
	h := newHarness(t)
	h.createPanel(t, "p1", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})
	first := h.uploadPanel(t, "p1", "email\na@x.com\n")
	second := h.uploadPanel(t, "p1", "email\nb@y.com\n")

	dbc := dbctx.Context{Ctx: testCtx()}
	old, err := h.runRepo.Get(dbc, first.Run.ReconID)
	if err != nil || old == nil {
		t.Fatalf("old run lookup: %v", err)
	}
	if old.Status != types.RunFailed || !strings.Contains(old.Error, second.Upload.DocID) {
		t.Fatalf("old run should be superseded, got status=%s error=%q", old.Status, old.Error)
	}
	cur, err := h.runRepo.Get(dbc, second.Run.ReconID)
	if err != nil || cur == nil || cur.Status != types.RunUploaded {
		t.Fatalf("new run should be uploaded: %+v err=%v", cur, err)
	}

	// previous generation rows stay as a backup
	rows, err := h.rowRepo.ListGeneration(dbc, first.Upload.PanelID, first.Upload.DocID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("previous generation rows: %d err=%v", len(rows), err)
	}
}

func TestUploadConflictsWhileReconciling(t *testing.T) {
	h := newHarness(t)
	h.createPanel(t, "p1", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})
	up := h.uploadPanel(t, "p1", "email\na@x.com\n")

	ok, err := h.runRepo.TransitionStatus(dbctx.Context{Ctx: testCtx()}, up.Run.ReconID, types.RunUploaded, types.RunReconciling, nil)
	if err != nil || !ok {
		t.Fatalf("TransitionStatus: ok=%v err=%v", ok, err)
	}
	_, err = h.uploads.UploadPanelData(testCtx(), "p1", csvFile("p1.csv", "email\nb@y.com\n"))
	if !types.IsCode(err, types.CodeConflict) {
		t.Fatalf("expected conflict while reconciling, got %v", err)
	}
}

func TestUploadPrunesOldGenerations(t *testing.T) {
	h := newHarness(t, withRetention(2))
	h.createPanel(t, "p1", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})
	gens := []*UploadResult{
		h.uploadPanel(t, "p1", "email\ng1@x.com\n"),
		h.uploadPanel(t, "p1", "email\ng2@x.com\n"),
		h.uploadPanel(t, "p1", "email\ng3@x.com\n"),
	}

	dbc := dbctx.Context{Ctx: testCtx()}
	want := []int{0, 1, 1}
	for i, g := range gens {
		rows, err := h.rowRepo.ListGeneration(dbc, g.Upload.PanelID, g.Upload.DocID)
		if err != nil {
			t.Fatalf("ListGeneration: %v", err)
		}
		if len(rows) != want[i] {
			t.Fatalf("generation %d has %d rows, want %d", i+1, len(rows), want[i])
		}
	}

	detail, err := h.history.ReconSummary(testCtx(), gens[0].Run.ReconID)
	if err != nil {
		t.Fatalf("ReconSummary: %v", err)
	}
	if detail.PanelData == nil || len(detail.PanelData) != 0 {
		t.Fatalf("pruned generation should render empty panel_data, got %v", detail.PanelData)
	}
}

func TestUploadSameFileRetriesFailedRun(t *testing.T) {
	h := newHarness(t)
	h.uploadSOT(t, types.SOTInternalUsers, "email\na@x.com\n")
	h.uploadSOT(t, types.SOTHRData, "email,employment_status\na@x.com,Active\n")
	h.createPanel(t, "p1", types.KeyMapping{
		types.SOTInternalUsers: {"email": "email"},
		types.SOTHRData:        {"email": "work_email"},
	})
	first := h.uploadPanel(t, "p1", "email\na@x.com\n")
	if _, err := h.recon.ReconcilePanel(testCtx(), "p1"); !types.IsCode(err, types.CodeInternal) {
		t.Fatalf("expected the bad HR mapping to fail the run, got %v", err)
	}
	if _, err := h.panels.Modify(testCtx(), PanelUpdate{Name: "p1", KeyMapping: types.KeyMapping{types.SOTHRData: {"email": "email"}}}); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	retry := h.uploadPanel(t, "p1", "email\na@x.com\n")
	if retry.Upload.DocID == first.Upload.DocID || retry.Run.Status != types.RunUploaded {
		t.Fatalf("retry should open a new generation: %+v", retry.Run)
	}
	out, err := h.recon.ReconcilePanel(testCtx(), "p1")
	if err != nil {
		t.Fatalf("ReconcilePanel after retry: %v", err)
	}
	if out.Status != types.RunComplete || out.Summary.TotalPanelUsers != 1 {
		t.Fatalf("unexpected retry outcome: %+v", out)
	}

	// a live generation still blocks the same file
	if _, err := h.uploads.UploadPanelData(testCtx(), "p1", csvFile("p1.csv", "email\na@x.com\n")); !types.IsCode(err, types.CodeConflict) {
		t.Fatalf("expected conflict for a duplicate of the completed generation, got %v", err)
	}
}

func TestUploadFailsAbandonedReconciliation(t *testing.T) {
	h := newHarness(t)
	h.createPanel(t, "p1", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})
	up := h.uploadPanel(t, "p1", "email\na@x.com\n")

	dbc := dbctx.Context{Ctx: testCtx()}
	started := time.Now().UTC().Add(-2 * DefaultStaleRunAfter)
	ok, err := h.runRepo.TransitionStatus(dbc, up.Run.ReconID, types.RunUploaded, types.RunReconciling, map[string]interface{}{"start_date": started})
	if err != nil || !ok {
		t.Fatalf("TransitionStatus: ok=%v err=%v", ok, err)
	}

	next, err := h.uploads.UploadPanelData(testCtx(), "p1", csvFile("p1.csv", "email\nb@y.com\n"))
	if err != nil {
		t.Fatalf("upload after a crashed reconciliation: %v", err)
	}
	old, err := h.runRepo.Get(dbc, up.Run.ReconID)
	if err != nil || old.Status != types.RunFailed || !strings.Contains(old.Error, "abandoned") {
		t.Fatalf("abandoned run should be failed: %+v err=%v", old, err)
	}
	if next.Run.Status != types.RunUploaded {
		t.Fatalf("new run status = %s", next.Run.Status)
	}
}
