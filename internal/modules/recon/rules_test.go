package recon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	if r.CategoryFor("service_users") != "service" || r.CategoryFor("third_party_users") != "thirdparty" {
		t.Fatalf("built-in categories wrong")
	}
	if r.CategoryFor("contractors") != "contractors" {
		t.Fatalf("custom SOTs should use their own name")
	}
	if !r.NeedsHR("internal") || r.NeedsHR("service") {
		t.Fatalf("HR validation categories wrong")
	}
	if r.MatchGroup("Employee_ID") != "id" || r.MatchGroup("name") != "" {
		t.Fatalf("match groups wrong")
	}
}

func TestLoadRulesOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := "hr:\n  sot: people\n  validate_categories: [internal, contractors]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if r.HR.SOT != "people" || !r.NeedsHR("contractors") {
		t.Fatalf("override not applied: %+v", r.HR)
	}
	if len(r.HR.StatusColumns) == 0 || len(r.Recategorization.TypeColumns) != 6 {
		t.Fatalf("defaults lost: %+v", r)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("sots:\n  - name: x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRules(bad); err == nil {
		t.Fatalf("expected validation error for sot without category")
	}
}
