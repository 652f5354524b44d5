package recon

import "testing"

func TestKeyMappingMergeRetainsOmittedSOTs(t *testing.T) {
	cur := KeyMapping{
		"internal_users": {"email": "email"},
		"service_users":  {"login": "account"},
	}
	got := cur.Merge(KeyMapping{
		"internal_users": {"mail": "email"},
		"service_users":  {},
		"hr_data":        {"email": "work_email"},
	})
	if pf, sf, ok := got.Pair("internal_users"); !ok || pf != "mail" || sf != "email" {
		t.Fatalf("internal_users not replaced: %v", got)
	}
	if _, ok := got["service_users"]; ok {
		t.Fatalf("empty per-SOT map must clear the SOT: %v", got)
	}
	if _, sf, _ := got.Pair("hr_data"); sf != "work_email" {
		t.Fatalf("hr_data not added: %v", got)
	}
	if pf, _, _ := cur.Pair("internal_users"); pf != "email" {
		t.Fatalf("merge mutated the receiver")
	}
}

func TestKeyMappingValidateRejectsMultiplePairs(t *testing.T) {
	m := KeyMapping{"internal_users": {"email": "email", "id": "employee_id"}}
	if err := m.Validate(); !IsCode(err, CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := (KeyMapping{"internal_users": {}}).Validate(); err != nil {
		t.Fatalf("empty per-SOT mapping should be accepted: %v", err)
	}
	fields := KeyMapping{"a": {"email": "x"}, "b": {"email": "y"}, "c": {"login": "z"}}.PanelFields()
	if len(fields) != 2 || fields[0] != "email" || fields[1] != "login" {
		t.Fatalf("unexpected panel fields %v", fields)
	}
}
