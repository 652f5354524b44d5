package recon

import (
	"fmt"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
)

// Counts is a status -> rows tally that always carries total_panel_users.
type Counts map[string]int

const totalKey = "total_panel_users"

func newCounts(total int, keys ...string) Counts {
	c := Counts{totalKey: total}
	for _, k := range keys {
		c[k] = 0
	}
	return c
}

func (c Counts) Total() int { return c[totalKey] }

// Assignment is the categorization outcome for one row. MatchedSOT is empty when nothing matched.
type Assignment struct {
	RowID      int64
	Status     string
	MatchedSOT string
}

type CategorizeResult struct {
	Assignments []Assignment
	Summary     Counts
	// Warnings lists mappings that could not be used, e.g. a SOT with no data.
	Warnings []string
}

type matcher struct {
	sot        *SOTData
	panelField string
	domain     bool
	index      fieldIndex
}

// Categorize assigns every row the category of the first SOT, in precedence
// order, whose mapped field equals the row's mapped panel value. Pure and
// deterministic: the same rows, mapping and SOT data give the same result.
func Categorize(rows []Row, mapping types.KeyMapping, sots []*SOTData, rules *Rules) (*CategorizeResult, error) {
	if len(mapping.SOTs()) == 0 {
		return nil, types.NewError(types.CodeValidation, "categorize", "panel has no SOT mappings configured", nil)
	}

	ordered := make([]*SOTData, len(sots))
	copy(ordered, sots)
	SortByPrecedence(ordered)

	res := &CategorizeResult{}
	var matchers []matcher
	mapped := map[string]bool{}
	for _, sot := range ordered {
		panelField, sotField, ok := mapping.Pair(sot.Name)
		if !ok {
			continue
		}
		mapped[sot.Name] = true
		if !sot.HasField(sotField) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("SOT %q has no field %q", sot.Name, sotField))
			continue
		}
		matchers = append(matchers, matcher{
			sot:        sot,
			panelField: panelField,
			domain:     rules.IsDomainField(sotField),
			index:      buildIndex(sot, sotField),
		})
	}
	for _, name := range mapping.SOTs() {
		if !mapped[name] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("SOT %q is mapped but has no data", name))
		}
	}

	res.Summary = newCounts(len(rows), types.StatusInternal, types.StatusService, types.StatusThirdParty, types.StatusNotFound, types.StatusUnknown)
	res.Assignments = make([]Assignment, 0, len(rows))
	for _, row := range rows {
		a := categorizeRow(row, matchers, mapping)
		res.Summary[a.Status]++
		res.Assignments = append(res.Assignments, a)
	}
	return res, nil
}

func categorizeRow(row Row, matchers []matcher, mapping types.KeyMapping) Assignment {
	for _, m := range matchers {
		v := row.Values[m.panelField]
		if v == "" {
			continue
		}
		if _, hit := m.index[lookupKey(v, m.domain)]; hit {
			return Assignment{RowID: row.ID, Status: m.sot.Category, MatchedSOT: m.sot.Name}
		}
	}
	for _, pf := range mapping.PanelFields() {
		if row.Values[pf] != "" {
			return Assignment{RowID: row.ID, Status: types.StatusNotFound}
		}
	}
	return Assignment{RowID: row.ID, Status: types.StatusUnknown}
}
