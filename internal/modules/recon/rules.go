package recon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

type SOTRule struct {
	Name       string `yaml:"name"`
	Category   string `yaml:"category"`
	Precedence int    `yaml:"precedence"`
}

type MatchColumn struct {
	Column string `yaml:"column"`
	Group  string `yaml:"group"`
}

type HRRules struct {
	SOT                string   `yaml:"sot"`
	ValidateCategories []string `yaml:"validate_categories"`
	StatusColumns      []string `yaml:"status_columns"`
	ActiveValues       []string `yaml:"active_values"`
}

type RecategorizationRules struct {
	MatchColumns []MatchColumn `yaml:"match_columns"`
	TypeColumns  []string      `yaml:"type_columns"`
}

// Rules holds the configurable parts of categorization and reconciliation.
type Rules struct {
	SOTs                 []SOTRule             `yaml:"sots"`
	DefaultSOTs          []string              `yaml:"default_sots"`
	CustomPrecedenceStep int                   `yaml:"custom_precedence_step"`
	DomainFields         []string              `yaml:"domain_fields"`
	HR                   HRRules               `yaml:"hr"`
	Recategorization     RecategorizationRules `yaml:"recategorization"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r, err := parseRules(defaultRulesYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("embedded rules.yaml is invalid: %v", err))
	}
	return r
}

// LoadRules reads a YAML file on top of the defaults. An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return parseRules(raw, DefaultRules())
}

func parseRules(raw []byte, base *Rules) (*Rules, error) {
	r := &Rules{}
	if base != nil {
		*r = *base
	}
	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rules) validate() error {
	seen := map[string]bool{}
	for _, s := range r.SOTs {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Category) == "" {
			return fmt.Errorf("rules: every sot needs a name and category")
		}
		if seen[s.Name] {
			return fmt.Errorf("rules: sot %q listed twice", s.Name)
		}
		seen[s.Name] = true
	}
	if strings.TrimSpace(r.HR.SOT) == "" {
		return fmt.Errorf("rules: hr.sot is required")
	}
	if len(r.Recategorization.MatchColumns) == 0 || len(r.Recategorization.TypeColumns) == 0 {
		return fmt.Errorf("rules: recategorization match_columns and type_columns are required")
	}
	if r.CustomPrecedenceStep <= 0 {
		r.CustomPrecedenceStep = 10
	}
	return nil
}

// SOTRule returns the built-in rule for name, if any.
func (r *Rules) SOTRule(name string) (SOTRule, bool) {
	for _, s := range r.SOTs {
		if s.Name == name {
			return s, true
		}
	}
	return SOTRule{}, false
}

// CategoryFor is the label assigned to rows matching sot; custom SOTs use their own name.
func (r *Rules) CategoryFor(sot string) string {
	if rule, ok := r.SOTRule(sot); ok {
		return rule.Category
	}
	return sot
}

func (r *Rules) IsDomainField(field string) bool {
	return containsFold(r.DomainFields, field)
}

// NeedsHR reports whether rows of category are validated against HR data.
func (r *Rules) NeedsHR(category string) bool {
	for _, c := range r.HR.ValidateCategories {
		if c == category {
			return true
		}
	}
	return false
}

// MatchGroup returns the semantic group of a column name ("email", "id", ...), or "".
func (r *Rules) MatchGroup(column string) string {
	for _, mc := range r.Recategorization.MatchColumns {
		if strings.EqualFold(mc.Column, column) {
			return mc.Group
		}
	}
	return ""
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(strings.TrimSpace(x), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}
