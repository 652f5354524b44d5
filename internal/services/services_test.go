package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	appdb "github.com/yungbote/reconify-backend/internal/data/db"
	"github.com/yungbote/reconify-backend/internal/data/repos"
	"github.com/yungbote/reconify-backend/internal/data/repos/testutil"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/ingest"
	engine "github.com/yungbote/reconify-backend/internal/modules/recon"
	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
	"github.com/yungbote/reconify-backend/internal/platform/gcp"
	"github.com/yungbote/reconify-backend/internal/platform/locks"
)

type harness struct {
	db      *gorm.DB
	store   gcp.ObjectStore
	locker  locks.Locker
	audit   AuditService
	archive ArchiveService
	sots    SOTService
	panels  PanelService
	uploads UploadService
	recon   ReconciliationService
	history HistoryService

	auditRepo repos.AuditRepo
	rowRepo   repos.PanelRowRepo
	runRepo   repos.ReconRunRepo
}

type harnessOption func(*UploadServiceDeps)

func withRetention(n int) harnessOption {
	return func(d *UploadServiceDeps) { d.GenerationRetention = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	store, err := gcp.NewObjectStore(context.Background(), gcp.ArchiveConfig{Mode: gcp.ArchiveModeLocal, Dir: t.TempDir()}, log)
	if err != nil {
		t.Fatalf("archive store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{db: db, store: store, locker: locks.NewLocal()}
	tx := appdb.NewTxRunner(db)
	rules := engine.DefaultRules()
	parser := ingest.NewParser(0, log)

	sotRepo := repos.NewSOTRepo(db, log)
	sotUploadRepo := repos.NewSOTUploadRepo(db, log)
	panelRepo := repos.NewPanelRepo(db, log)
	h.rowRepo = repos.NewPanelRowRepo(db, log)
	uploadRepo := repos.NewUploadRepo(db, log)
	h.runRepo = repos.NewReconRunRepo(db, log)
	recatRepo := repos.NewRecategorizationRepo(db, log)
	h.auditRepo = repos.NewAuditRepo(db, log)

	h.audit = NewAuditService(log, h.auditRepo)
	h.archive = NewArchiveService(log, store)
	h.sots = NewSOTService(log, SOTServiceDeps{
		DB: db, Tx: tx, SOTRepo: sotRepo, SOTUploadRepo: sotUploadRepo, PanelRepo: panelRepo,
		Parser: parser, Rules: rules, Audit: h.audit, Archive: h.archive, RejectDuplicateUploads: true,
	})
	h.panels = NewPanelService(log, PanelServiceDeps{
		DB: db, Tx: tx, PanelRepo: panelRepo, PanelRowRepo: h.rowRepo, UploadRepo: uploadRepo,
		RunRepo: h.runRepo, Parser: parser, Locker: h.locker, Audit: h.audit,
	})
	uploadDeps := UploadServiceDeps{
		DB: db, Tx: tx, PanelRepo: panelRepo, PanelRowRepo: h.rowRepo, UploadRepo: uploadRepo,
		RunRepo: h.runRepo, Parser: parser, Rules: rules, Locker: h.locker, Audit: h.audit,
		Archive: h.archive, RejectDuplicateUploads: true,
	}
	for _, opt := range opts {
		opt(&uploadDeps)
	}
	h.uploads = NewUploadService(log, uploadDeps)
	h.recon = NewReconciliationService(log, ReconciliationServiceDeps{
		DB: db, Tx: tx, PanelRepo: panelRepo, PanelRowRepo: h.rowRepo, UploadRepo: uploadRepo,
		RunRepo: h.runRepo, RecatRepo: recatRepo, SOTs: h.sots, Parser: parser, Rules: rules,
		Locker: h.locker, Audit: h.audit, Archive: h.archive,
	})
	h.history = NewHistoryService(db, log, panelRepo, h.rowRepo, uploadRepo, h.runRepo, recatRepo)
	return h
}

func testCtx() context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{Email: "auditor@corp.com", Name: "Auditor"})
}

func csvFile(name, body string) FileInput {
	return FileInput{Name: name, Data: []byte(body)}
}

func (h *harness) uploadSOT(t *testing.T, sot, body string) {
	t.Helper()
	if _, err := h.sots.Upload(testCtx(), sot, csvFile(sot+".csv", body)); err != nil {
		t.Fatalf("upload SOT %s: %v", sot, err)
	}
}

func (h *harness) createPanel(t *testing.T, name string, mapping types.KeyMapping) {
	t.Helper()
	if _, err := h.panels.Create(testCtx(), PanelInput{Name: name, KeyMapping: mapping}); err != nil {
		t.Fatalf("create panel %s: %v", name, err)
	}
}

func (h *harness) uploadPanel(t *testing.T, panel, body string) *UploadResult {
	t.Helper()
	res, err := h.uploads.UploadPanelData(testCtx(), panel, csvFile(panel+".csv", body))
	if err != nil {
		t.Fatalf("upload panel %s: %v", panel, err)
	}
	return res
}

// rowsByKey returns the current generation of panel keyed by the value of field.
func (h *harness) rowsByKey(t *testing.T, panel, field string) map[string]*types.PanelRow {
	t.Helper()
	d, err := h.panels.Details(testCtx(), panel)
	if err != nil {
		t.Fatalf("details %s: %v", panel, err)
	}
	out := map[string]*types.PanelRow{}
	for _, r := range d.Rows {
		out[r.Record()[field]] = r
	}
	return out
}

func (h *harness) auditCount(t *testing.T, action, status string) int64 {
	t.Helper()
	page, err := h.audit.List(context.Background(), repos.AuditFilter{Action: action, Status: status})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	return page.Total
}
