package recon

import (
	"fmt"
	"strings"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
)

// RecategorizePlan says which override column is matched against which panel field.
type RecategorizePlan struct {
	MatchColumn string
	TypeColumn  string
	PanelField  string
	// DomainCompare reduces panel values to their email domain before comparing.
	DomainCompare bool
}

type RecategorizeSummary struct {
	TotalPanelUsers int    `json:"total_panel_users"`
	Matched         int    `json:"matched"`
	NotFound        int    `json:"not_found"`
	Errors          int    `json:"errors"`
	SkippedEntries  int    `json:"skipped_entries"`
	MatchColumn     string `json:"match_column"`
	TypeColumn      string `json:"type_column"`
	PanelField      string `json:"panel_field"`
}

type RecategorizeResult struct {
	Assignments []FinalAssignment
	Summary     RecategorizeSummary
}

// PlanRecategorization finds the match and type columns in an override file and
// the panel field they correspond to. The panel field is a header with the same
// name, else a header in the same group (email, id, domain), else the mapped
// panel field of the highest precedence SOT.
func PlanRecategorization(overrideHeaders, panelHeaders []string, mapping types.KeyMapping, sots []*SOTData, rules *Rules) (RecategorizePlan, error) {
	var plan RecategorizePlan
	for _, mc := range rules.Recategorization.MatchColumns {
		if containsFold(overrideHeaders, mc.Column) {
			plan.MatchColumn = strings.ToLower(mc.Column)
			break
		}
	}
	for _, tc := range rules.Recategorization.TypeColumns {
		if containsFold(overrideHeaders, tc) && !strings.EqualFold(tc, plan.MatchColumn) {
			plan.TypeColumn = strings.ToLower(tc)
			break
		}
	}
	if plan.MatchColumn == "" || plan.TypeColumn == "" {
		var want []string
		for _, mc := range rules.Recategorization.MatchColumns {
			want = append(want, mc.Column)
		}
		return plan, types.Errorf(types.CodeValidation, "recategorize.plan",
			"override file needs a match column (%s) and a type column (%s)",
			strings.Join(want, ", "), strings.Join(rules.Recategorization.TypeColumns, ", "))
	}

	group := rules.MatchGroup(plan.MatchColumn)
	for _, h := range panelHeaders {
		if strings.EqualFold(h, plan.MatchColumn) {
			plan.PanelField = h
			break
		}
	}
	if plan.PanelField == "" {
		for _, h := range panelHeaders {
			if g := rules.MatchGroup(h); g != "" && g == group {
				plan.PanelField = h
				break
			}
		}
	}
	if plan.PanelField == "" {
		ordered := make([]*SOTData, len(sots))
		copy(ordered, sots)
		SortByPrecedence(ordered)
		for _, sot := range ordered {
			if pf, _, ok := mapping.Pair(sot.Name); ok {
				plan.PanelField = pf
				break
			}
		}
	}
	if names := mapping.SOTs(); plan.PanelField == "" && len(names) > 0 {
		plan.PanelField, _, _ = mapping.Pair(names[0])
	}
	if plan.PanelField == "" {
		return plan, types.Errorf(types.CodeValidation, "recategorize.plan",
			"no panel field corresponds to override column %q", plan.MatchColumn)
	}
	plan.DomainCompare = group == "domain" && rules.MatchGroup(plan.PanelField) != "domain"
	return plan, nil
}

// Recategorize overwrites final status for rows whose panel value appears in the
// override records. Rows absent from the file are untouched. Keys listed with
// conflicting types are ambiguous; their rows count as errors and keep their status.
func Recategorize(rows []Row, plan RecategorizePlan, overrides []map[string]string) *RecategorizeResult {
	res := &RecategorizeResult{Summary: RecategorizeSummary{
		TotalPanelUsers: len(rows),
		MatchColumn:     plan.MatchColumn,
		TypeColumn:      plan.TypeColumn,
		PanelField:      plan.PanelField,
	}}

	lookup := map[string]string{}
	ambiguous := map[string]bool{}
	for _, rec := range overrides {
		key := strings.TrimSpace(rec[plan.MatchColumn])
		typ := strings.TrimSpace(rec[plan.TypeColumn])
		if key == "" || typ == "" {
			res.Summary.SkippedEntries++
			continue
		}
		if prev, ok := lookup[key]; ok && prev != typ {
			ambiguous[key] = true
			continue
		}
		lookup[key] = typ
	}

	for _, row := range rows {
		v := strings.TrimSpace(row.Values[plan.PanelField])
		if plan.DomainCompare {
			v = domainOf(v)
		}
		if v == "" {
			res.Summary.Errors++
			continue
		}
		if ambiguous[v] {
			res.Summary.Errors++
			continue
		}
		typ, ok := lookup[v]
		if !ok {
			res.Summary.NotFound++
			continue
		}
		res.Summary.Matched++
		res.Assignments = append(res.Assignments, FinalAssignment{RowID: row.ID, FinalStatus: typ, HRStatus: row.HRStatus})
	}
	return res
}

func (p RecategorizePlan) String() string {
	return fmt.Sprintf("%s->%s (type %s)", p.MatchColumn, p.PanelField, p.TypeColumn)
}
