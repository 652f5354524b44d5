package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
)

func TestPanelCreateAndModify(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx()

	p, err := h.panels.Create(ctx, PanelInput{
		Name:         " Okta ",
		KeyMapping:   types.KeyMapping{"Internal Users": {"Email": "EMAIL"}, "service_users": {}},
		PanelHeaders: []string{"Email", "Login"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "Okta" || p.CreatedBy != "auditor@corp.com" {
		t.Fatalf("unexpected panel: %+v", p)
	}
	want := types.KeyMapping{types.SOTInternalUsers: {"email": "email"}, types.SOTServiceUsers: {}}
	if diff := cmp.Diff(want, p.Mapping()); diff != "" {
		t.Fatalf("mapping (-want +got):\n%s", diff)
	}

	if _, err := h.panels.Create(ctx, PanelInput{Name: "OKTA"}); !types.IsCode(err, types.CodeConflict) {
		t.Fatalf("expected conflict for duplicate name, got %v", err)
	}
	if _, err := h.panels.Create(ctx, PanelInput{Name: "x", KeyMapping: types.KeyMapping{"hr_data": {"a": "b", "c": "d"}}}); !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("expected validation error for two pairs on one SOT, got %v", err)
	}
	if _, err := h.panels.Create(ctx, PanelInput{Name: "y", KeyMapping: types.KeyMapping{"hr_data": {"badge": "id"}}, PanelHeaders: []string{"email"}}); !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("expected validation error for an unknown panel field, got %v", err)
	}

	// a second mapping for the same SOT replaces the first
	updated, err := h.panels.Modify(ctx, PanelUpdate{
		Name:       "okta",
		KeyMapping: types.KeyMapping{types.SOTInternalUsers: {"login": "user_id"}, types.SOTHRData: {"email": "work_email"}},
	})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	want = types.KeyMapping{
		types.SOTInternalUsers: {"login": "user_id"},
		types.SOTHRData:        {"email": "work_email"},
		types.SOTServiceUsers:  {},
	}
	if diff := cmp.Diff(want, updated.Mapping()); diff != "" {
		t.Fatalf("merged mapping (-want +got):\n%s", diff)
	}

	// an empty per-SOT map clears that SOT, others are kept
	updated, err = h.panels.Modify(ctx, PanelUpdate{Name: "okta", KeyMapping: types.KeyMapping{types.SOTHRData: {}}})
	if err != nil {
		t.Fatalf("Modify(clear): %v", err)
	}
	want = types.KeyMapping{types.SOTInternalUsers: {"login": "user_id"}, types.SOTServiceUsers: {}}
	if diff := cmp.Diff(want, updated.Mapping()); diff != "" {
		t.Fatalf("cleared mapping (-want +got):\n%s", diff)
	}

	if _, err := h.panels.Modify(ctx, PanelUpdate{Name: "ghost"}); !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := h.auditCount(t, ActionPanelModified, AuditSuccess); n != 2 {
		t.Fatalf("modify audit events = %d", n)
	}
}

func TestDeletedPanelHeadersNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := testCtx()
	h.createPanel(t, "p1", types.KeyMapping{types.SOTInternalUsers: {"email": "email"}})
	h.uploadPanel(t, "p1", "email\na@x.com\n")

	headers, err := h.panels.Headers(ctx, "p1")
	if err != nil || len(headers) != 1 || headers[0] != "email" {
		t.Fatalf("Headers: %v err=%v", headers, err)
	}
	if err := h.panels.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := h.panels.Headers(ctx, "p1"); !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := h.panels.Delete(ctx, "p1"); !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("expected not found for a second delete, got %v", err)
	}

	// data and history stay after the configuration is gone
	hist, err := h.history.UploadHistory(ctx)
	if err != nil || len(hist) != 1 {
		t.Fatalf("upload history after delete: %d err=%v", len(hist), err)
	}
	list, err := h.panels.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("List after delete: %v err=%v", list, err)
	}
	if _, err := h.panels.Create(ctx, PanelInput{Name: "P1"}); err != nil {
		t.Fatalf("name should be reusable after delete: %v", err)
	}
}

func TestPanelHeadersEmptyBeforeUpload(t *testing.T) {
	h := newHarness(t)
	h.createPanel(t, "p1", nil)
	headers, err := h.panels.Headers(testCtx(), "p1")
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	if headers == nil || len(headers) != 0 {
		t.Fatalf("expected empty header list, got %#v", headers)
	}
}

func TestPreviewHeaders(t *testing.T) {
	h := newHarness(t)
	got, err := h.panels.PreviewHeaders(testCtx(), csvFile("f.csv", "\ufeffEmail,,Dept\na,b,c\n"))
	if err != nil {
		t.Fatalf("PreviewHeaders: %v", err)
	}
	if diff := cmp.Diff([]string{"email", "column_2", "dept"}, got); diff != "" {
		t.Fatalf("headers (-want +got):\n%s", diff)
	}
}
