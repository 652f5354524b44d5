package recon

import (
	"regexp"
	"testing"
)

func TestNewReconIDFormat(t *testing.T) {
	re := regexp.MustCompile(`^RCN_[0-9a-f]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewReconID()
		if !re.MatchString(id) {
			t.Fatalf("bad recon id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Fatalf("recon ids are not random enough: %d unique", len(seen))
	}
}

func TestPanelJSONAccessors(t *testing.T) {
	p := &Panel{Name: "  Okta Prod "}
	p.SetMapping(KeyMapping{"internal_users": {"email": "email"}})
	p.SetHeaders([]string{"email", "name"})
	if _, sf, ok := p.Mapping().Pair("internal_users"); !ok || sf != "email" {
		t.Fatalf("mapping round trip failed: %s", p.KeyMapping)
	}
	if h := p.Headers(); len(h) != 2 || h[1] != "name" {
		t.Fatalf("headers round trip failed: %v", h)
	}
	if err := p.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate: %v", err)
	}
	if p.NameKey != "okta prod" {
		t.Fatalf("unexpected name key %q", p.NameKey)
	}

	var empty Panel
	if len(empty.Mapping()) != 0 || empty.Headers() != nil {
		t.Fatalf("zero panel should decode to empty values")
	}
}
