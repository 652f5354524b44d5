package recon

import (
	"sort"
	"strings"
)

// SOTData is a loaded SOT ready for matching.
type SOTData struct {
	Name       string
	Category   string
	Precedence int
	Fields     []string
	Rows       []map[string]string
}

func (s *SOTData) HasField(f string) bool {
	for _, x := range s.Fields {
		if x == f {
			return true
		}
	}
	return false
}

// Row is a panel row as seen by the engines.
type Row struct {
	ID            int64
	Values        map[string]string
	InitialStatus string
	MatchedSOT    string
	FinalStatus   string
	HRStatus      string
}

// fieldIndex maps a SOT field value to the first SOT row holding it.
type fieldIndex map[string]map[string]string

func buildIndex(sot *SOTData, field string) fieldIndex {
	idx := make(fieldIndex, len(sot.Rows))
	for _, rec := range sot.Rows {
		v := rec[field]
		if v == "" {
			continue
		}
		if _, dup := idx[v]; !dup {
			idx[v] = rec
		}
	}
	return idx
}

// SortByPrecedence orders SOTs by precedence then name, in place.
func SortByPrecedence(sots []*SOTData) {
	sort.SliceStable(sots, func(i, j int) bool {
		if sots[i].Precedence != sots[j].Precedence {
			return sots[i].Precedence < sots[j].Precedence
		}
		return sots[i].Name < sots[j].Name
	})
}

// lookupKey is the value a panel cell is matched with. Domain SOT fields compare
// against the part after the last "@".
func lookupKey(value string, domain bool) string {
	if domain {
		return domainOf(value)
	}
	return value
}

func domainOf(value string) string {
	if i := strings.LastIndex(value, "@"); i >= 0 {
		return value[i+1:]
	}
	return value
}
