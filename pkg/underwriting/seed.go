package underwriting

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document used to bootstrap a tenant's guidelines and
// routing rules.
type SeedFile struct {
	Guidelines   []GuidelineSeed   `yaml:"guidelines"`
	RoutingRules []RoutingRuleSeed `yaml:"routing_rules"`
}

// GuidelineSeed describes one guideline in a seed file.
type GuidelineSeed struct {
	Name           string     `yaml:"name"`
	Description    string     `yaml:"description"`
	Activate       bool       `yaml:"activate"`
	EffectiveDate  string     `yaml:"effective_date"`
	ExpirationDate string     `yaml:"expiration_date"`
	CoverageTypes  string     `yaml:"coverage_types"`
	States         string     `yaml:"states"`
	NAICSPrefixes  string     `yaml:"naics_prefixes"`
	Rules          []RuleSeed `yaml:"rules"`
}

// RuleSeed describes one rule in a seed file. Active defaults to true.
type RuleSeed struct {
	Name            string          `yaml:"name"`
	Description     string          `yaml:"description"`
	Type            RuleType        `yaml:"type"`
	Action          RuleAction      `yaml:"action"`
	Priority        int             `yaml:"priority"`
	Active          *bool           `yaml:"active"`
	ScoreAdjustment *int            `yaml:"score_adjustment"`
	PricingModifier string          `yaml:"pricing_modifier"`
	Message         string          `yaml:"message"`
	Conditions      []RuleCondition `yaml:"conditions"`
}

// RoutingRuleSeed describes one routing rule in a seed file. Active defaults to true.
type RoutingRuleSeed struct {
	Name       string             `yaml:"name"`
	Priority   int                `yaml:"priority"`
	Active     *bool              `yaml:"active"`
	AssignTo   string             `yaml:"assign_to"`
	Conditions []RoutingCondition `yaml:"conditions"`
}

// Seed holds the aggregates built from a SeedFile.
type Seed struct {
	Guidelines   []*Guideline
	RoutingRules []RoutingRule
}

// LoadSeedFile reads and builds the seed at path for tenantID.
func LoadSeedFile(path string, tenantID uuid.UUID) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data, tenantID)
}

// ParseSeed decodes a YAML seed document and validates every guideline,
// rule and condition in it.
func ParseSeed(data []byte, tenantID uuid.UUID) (*Seed, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	seed := &Seed{}
	for i, gs := range file.Guidelines {
		g, err := gs.build(tenantID)
		if err != nil {
			return nil, fmt.Errorf("guideline %d (%q): %w", i, gs.Name, err)
		}
		seed.Guidelines = append(seed.Guidelines, g)
	}

	for i, rs := range file.RoutingRules {
		r := RoutingRule{
			ID:         uuid.New(),
			TenantID:   tenantID,
			Name:       rs.Name,
			Priority:   rs.Priority,
			IsActive:   rs.Active == nil || *rs.Active,
			Conditions: rs.Conditions,
			AssignTo:   rs.AssignTo,
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("routing rule %d (%q): %w", i, rs.Name, err)
		}
		seed.RoutingRules = append(seed.RoutingRules, r)
	}

	return seed, nil
}

func (gs GuidelineSeed) build(tenantID uuid.UUID) (*Guideline, error) {
	g, err := NewGuideline(tenantID, gs.Name)
	if err != nil {
		return nil, err
	}
	g.Description = gs.Description
	g.CoverageTypes = gs.CoverageTypes
	g.States = gs.States
	g.NAICSPrefixes = gs.NAICSPrefixes

	if g.EffectiveDate, err = parseSeedDate("effective_date", gs.EffectiveDate); err != nil {
		return nil, err
	}
	if g.ExpirationDate, err = parseSeedDate("expiration_date", gs.ExpirationDate); err != nil {
		return nil, err
	}

	for j, rs := range gs.Rules {
		r, err := rs.build()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", j, rs.Name, err)
		}
		if err := g.AddRule(r); err != nil {
			return nil, err
		}
	}

	if gs.Activate {
		if err := g.Activate(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (rs RuleSeed) build() (*Rule, error) {
	params := RuleParams{
		Name:            rs.Name,
		Description:     rs.Description,
		Type:            rs.Type,
		Action:          rs.Action,
		Priority:        rs.Priority,
		ScoreAdjustment: rs.ScoreAdjustment,
		Message:         rs.Message,
		Conditions:      rs.Conditions,
	}
	if rs.PricingModifier != "" {
		m, err := decimal.NewFromString(rs.PricingModifier)
		if err != nil {
			return nil, validationError("pricing_modifier", "invalid decimal %q", rs.PricingModifier)
		}
		params.PricingModifier = &m
	}

	r, err := NewRule(params)
	if err != nil {
		return nil, err
	}
	if rs.Active != nil {
		r.IsActive = *rs.Active
	}
	return r, nil
}

func parseSeedDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, validationError(field, "expected YYYY-MM-DD, got %q", v)
	}
	return &t, nil
}
