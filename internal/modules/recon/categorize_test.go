package recon

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
)

func testSOTs() []*SOTData {
	return []*SOTData{
		{Name: "internal_users", Category: "internal", Precedence: 20, Fields: []string{"email"}, Rows: []map[string]string{
			{"email": "a@x.com"}, {"email": "both@x.com"},
		}},
		{Name: "service_users", Category: "service", Precedence: 10, Fields: []string{"account"}, Rows: []map[string]string{
			{"account": "svc-build"}, {"account": "both@x.com"},
		}},
		{Name: "thirdparty_users", Category: "thirdparty", Precedence: 30, Fields: []string{"domain"}, Rows: []map[string]string{
			{"domain": "vendor.io"},
		}},
		{Name: "contractors", Category: "contractors", Precedence: 50, Fields: []string{"email"}, Rows: []map[string]string{
			{"email": "c@x.com"},
		}},
	}
}

func testMapping() types.KeyMapping {
	return types.KeyMapping{
		"internal_users":   {"email": "email"},
		"service_users":    {"email": "account"},
		"thirdparty_users": {"email": "domain"},
		"contractors":      {"email": "email"},
	}
}

func testRows() []Row {
	emails := []string{"a@x.com", "both@x.com", "svc-build", "bob@vendor.io", "c@x.com", "A@x.com", "", "nobody@x.com"}
	rows := make([]Row, len(emails))
	for i, e := range emails {
		rows[i] = Row{ID: int64(i + 1), Values: map[string]string{"email": e, "name": "n"}}
	}
	return rows
}

func TestCategorizeAssignsFirstMatchingSOT(t *testing.T) {
	res, err := Categorize(testRows(), testMapping(), testSOTs(), DefaultRules())
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	want := []Assignment{
		{RowID: 1, Status: "internal", MatchedSOT: "internal_users"},
		{RowID: 2, Status: "service", MatchedSOT: "service_users"},
		{RowID: 3, Status: "service", MatchedSOT: "service_users"},
		{RowID: 4, Status: "thirdparty", MatchedSOT: "thirdparty_users"},
		{RowID: 5, Status: "contractors", MatchedSOT: "contractors"},
		{RowID: 6, Status: "not_found"},
		{RowID: 7, Status: "unknown"},
		{RowID: 8, Status: "not_found"},
	}
	if diff := cmp.Diff(want, res.Assignments); diff != "" {
		t.Fatalf("assignments mismatch (-want +got):\n%s", diff)
	}
	wantSummary := Counts{
		"total_panel_users": 8, "internal": 1, "service": 2, "thirdparty": 1,
		"contractors": 1, "not_found": 2, "unknown": 1,
	}
	if diff := cmp.Diff(wantSummary, res.Summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestCategorizeSummaryCoversEveryRow(t *testing.T) {
	res, err := Categorize(testRows(), testMapping(), testSOTs(), DefaultRules())
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	sum := 0
	for k, v := range res.Summary {
		if k != "total_panel_users" {
			sum += v
		}
	}
	if sum != res.Summary.Total() || sum != len(testRows()) {
		t.Fatalf("category counts %d do not add up to total %d", sum, res.Summary.Total())
	}
}

func TestCategorizeIsDeterministicAndIdempotent(t *testing.T) {
	rules := DefaultRules()
	first, err := Categorize(testRows(), testMapping(), testSOTs(), rules)
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		sots := testSOTs()
		rng.Shuffle(len(sots), func(a, b int) { sots[a], sots[b] = sots[b], sots[a] })
		again, err := Categorize(testRows(), testMapping(), sots, rules)
		if err != nil {
			t.Fatalf("Categorize(shuffled): %v", err)
		}
		if diff := cmp.Diff(first.Assignments, again.Assignments); diff != "" {
			t.Fatalf("SOT input order changed the result:\n%s", diff)
		}
	}
}

func TestCategorizeRequiresMapping(t *testing.T) {
	_, err := Categorize(testRows(), types.KeyMapping{"internal_users": {}}, testSOTs(), DefaultRules())
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCategorizeWarnsOnUnusableMappings(t *testing.T) {
	mapping := types.KeyMapping{
		"internal_users": {"email": "work_email"},
		"ghost":          {"email": "email"},
	}
	res, err := Categorize(testRows(), mapping, testSOTs(), DefaultRules())
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", res.Warnings)
	}
	if res.Summary["not_found"] != 7 || res.Summary["unknown"] != 1 {
		t.Fatalf("unexpected summary %v", res.Summary)
	}
}
