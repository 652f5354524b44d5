package recon

import (
	"strings"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
)

// FinalAssignment is the final status computed for one row.
type FinalAssignment struct {
	RowID       int64
	FinalStatus string
	HRStatus    string
}

type HRSummary struct {
	TotalPanelUsers  int            `json:"total_panel_users"`
	UsersToReconcile int            `json:"users_to_reconcile"`
	Matched          int            `json:"matched"`
	FoundActive      int            `json:"found_active"`
	FoundInactive    int            `json:"found_inactive"`
	NotFound         int            `json:"not_found"`
	Errors           int            `json:"errors"`
	InitialCounts    map[string]int `json:"initial_status_counts"`
	FinalCounts      map[string]int `json:"final_status_counts"`
}

type HRResult struct {
	Assignments []FinalAssignment
	Summary     HRSummary
}

type hrLookup struct {
	panelField string
	domain     bool
	index      fieldIndex
}

// ReconcileHR validates rows whose category needs HR confirmation against the HR
// SOT and passes every other row through with final = initial. It either returns
// a result for every row or an error; callers persist nothing on error.
func ReconcileHR(rows []Row, mapping types.KeyMapping, hr *SOTData, rules *Rules) (*HRResult, error) {
	res := &HRResult{
		Assignments: make([]FinalAssignment, 0, len(rows)),
		Summary: HRSummary{
			TotalPanelUsers: len(rows),
			InitialCounts:   map[string]int{},
			FinalCounts:     map[string]int{},
		},
	}

	_, _, direct := mapping.Pair(rules.HR.SOT)
	lookups := map[string]*hrLookup{}
	resolve := func(row Row) (*hrLookup, error) {
		key := row.MatchedSOT
		if direct {
			key = ""
		}
		if l, ok := lookups[key]; ok {
			return l, nil
		}
		l, err := hrLookupFor(row, mapping, hr, rules)
		if err != nil {
			return nil, err
		}
		lookups[key] = l
		return l, nil
	}

	for _, row := range rows {
		if row.InitialStatus == "" {
			return nil, types.Errorf(types.CodeInternal, "hr.reconcile", "row %d has not been categorized", row.ID)
		}
		res.Summary.InitialCounts[row.InitialStatus]++

		a := FinalAssignment{RowID: row.ID, FinalStatus: row.InitialStatus}
		if rules.NeedsHR(row.InitialStatus) {
			res.Summary.UsersToReconcile++
			l, err := resolve(row)
			if err != nil {
				return nil, err
			}
			v := row.Values[l.panelField]
			hrRow, hit := l.index[lookupKey(v, l.domain)]
			switch {
			case v == "":
				a.FinalStatus = types.FinalNotFoundInHR
				res.Summary.Errors++
			case hit:
				a.FinalStatus = types.FinalFound
				a.HRStatus = employmentStatus(hrRow, rules)
				res.Summary.Matched++
				if a.HRStatus == "inactive" {
					res.Summary.FoundInactive++
				} else {
					res.Summary.FoundActive++
				}
			default:
				a.FinalStatus = types.FinalNotFoundInHR
				res.Summary.NotFound++
			}
		}
		res.Summary.FinalCounts[a.FinalStatus]++
		res.Assignments = append(res.Assignments, a)
	}
	return res, nil
}

// hrLookupFor picks the panel field used to find a row in HR data: the panel's
// own HR mapping, or the mapping that categorized the row when HR has that field.
func hrLookupFor(row Row, mapping types.KeyMapping, hr *SOTData, rules *Rules) (*hrLookup, error) {
	if hr == nil || len(hr.Rows) == 0 {
		return nil, types.Errorf(types.CodeInternal, "hr.reconcile", "HR SOT %q has no data", rules.HR.SOT)
	}
	panelField, sotField, ok := mapping.Pair(hr.Name)
	if !ok && row.MatchedSOT != "" {
		pf, sf, found := mapping.Pair(row.MatchedSOT)
		if found && hr.HasField(sf) {
			panelField, sotField, ok = pf, sf, true
		}
	}
	if !ok {
		return nil, types.Errorf(types.CodeInternal, "hr.reconcile", "panel has no mapping for HR SOT %q", hr.Name)
	}
	if !hr.HasField(sotField) {
		return nil, types.Errorf(types.CodeInternal, "hr.reconcile", "HR SOT %q has no field %q", hr.Name, sotField)
	}
	return &hrLookup{
		panelField: panelField,
		domain:     rules.IsDomainField(sotField),
		index:      buildIndex(hr, sotField),
	}, nil
}

// employmentStatus reads the HR status column: "active", "inactive" or "" when HR has none.
func employmentStatus(hrRow map[string]string, rules *Rules) string {
	for _, col := range rules.HR.StatusColumns {
		raw, ok := hrRow[col]
		if !ok {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		if v == "" {
			return ""
		}
		if containsFold(rules.HR.ActiveValues, v) {
			return "active"
		}
		return "inactive"
	}
	return ""
}
