package recon

import (
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// KeyMapping is sot name -> {panel field: sot field}. At most one pair per SOT.
type KeyMapping map[string]map[string]string

// Pair returns the single mapping for sot, if any.
func (m KeyMapping) Pair(sot string) (panelField, sotField string, ok bool) {
	for pf, sf := range m[sot] {
		return pf, sf, true
	}
	return "", "", false
}

// Validate enforces the one-pair-per-SOT rule and rejects blank names.
func (m KeyMapping) Validate() error {
	for sot, pairs := range m {
		if strings.TrimSpace(sot) == "" {
			return NewError(CodeValidation, "mapping.validate", "mapping contains an empty SOT name", nil)
		}
		if len(pairs) > 1 {
			return Errorf(CodeValidation, "mapping.validate", "SOT %q has %d mappings; at most one panel field may map to a SOT", sot, len(pairs))
		}
		for pf, sf := range pairs {
			if strings.TrimSpace(pf) == "" || strings.TrimSpace(sf) == "" {
				return Errorf(CodeValidation, "mapping.validate", "SOT %q has a blank panel or SOT field", sot)
			}
		}
	}
	return nil
}

// Merge applies update on top of m: provided SOTs replace, omitted SOTs are kept,
// and an empty per-SOT map clears that SOT.
func (m KeyMapping) Merge(update KeyMapping) KeyMapping {
	out := KeyMapping{}
	for sot, pairs := range m {
		out[sot] = copyPairs(pairs)
	}
	for sot, pairs := range update {
		if len(pairs) == 0 {
			delete(out, sot)
			continue
		}
		out[sot] = copyPairs(pairs)
	}
	return out
}

// Normalize trims names. Empty SOT entries are kept so Merge can clear them.
func (m KeyMapping) Normalize() KeyMapping {
	out := KeyMapping{}
	for sot, pairs := range m {
		name := strings.TrimSpace(sot)
		clean := map[string]string{}
		for pf, sf := range pairs {
			clean[strings.TrimSpace(pf)] = strings.TrimSpace(sf)
		}
		out[name] = clean
	}
	return out
}

// SOTs lists the SOT names that carry a pair, sorted.
func (m KeyMapping) SOTs() []string {
	out := make([]string, 0, len(m))
	for sot, pairs := range m {
		if len(pairs) > 0 {
			out = append(out, sot)
		}
	}
	sort.Strings(out)
	return out
}

// PanelFields lists the distinct panel fields referenced by the mapping, sorted.
func (m KeyMapping) PanelFields() []string {
	seen := map[string]struct{}{}
	for _, pairs := range m {
		for pf := range pairs {
			seen[pf] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for pf := range seen {
		out = append(out, pf)
	}
	sort.Strings(out)
	return out
}

func copyPairs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

func decodeJSON[T any](raw datatypes.JSON, out *T) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}
