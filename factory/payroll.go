/*
Package factory provides JSON/YAML to Go payroll configuration conversion.

PURPOSE:
  Converts a payroll configuration document into the structs the engine
  consumes: social insurance rates, the standard monthly compensation
  table, and commission rules. Payroll staff can update rates every April
  (and the standard table when the association republishes it) without a
  code change.

DOCUMENT SCHEMA:
  {
    "insurance_rates": {
      "health":       {"employee": 0.0495, "employer": 0.0495},
      "nursing_care": {"employee": 0.008,  "employer": 0.008},
      "pension":      {"employee": 0.0915, "employer": 0.0915},
      "employment":   {"employee": 0.0055, "employer": 0.009}
    },
    "standard_brackets": [
      {"grade": "1", "monthly_amount": 58000, "lower_bound": 0, "upper_bound": 62999},
      {"grade": "50", "monthly_amount": 1390000, "lower_bound": 1355000}
    ],
    "commission": {
      "legacy": {"monthly_threshold": 7, "amount_per_achievement": 1250},
      "weekly": {"weekly_threshold": 7, "amount_per_week": 1250}
    }
  }

  Rates are fractions. Yen amounts are integers. A missing upper_bound
  means the grade is open-ended. A missing commission block (or half of
  it) falls back to commission.DefaultRules.

VALIDATION:
  - rate categories must be registered (socialinsurance registers them)
  - rates must lie in [0, 1)
  - grades must be non-empty with lower_bound <= upper_bound
  - commission thresholds must be positive

SEE ALSO:
  - socialinsurance/types.go: Rates, StandardBracket
  - commission/types.go: RuleConfig
  - config/config.go: embeds the document under the "payroll" key
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
	"gopkg.in/yaml.v2"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// DocumentJSON is the JSON (and YAML) representation of payroll config.
type DocumentJSON struct {
	InsuranceRates   map[string]RatePairJSON `json:"insurance_rates,omitempty" yaml:"insurance_rates,omitempty"`
	StandardBrackets []StandardBracketJSON   `json:"standard_brackets,omitempty" yaml:"standard_brackets,omitempty"`
	Commission       *CommissionJSON         `json:"commission,omitempty" yaml:"commission,omitempty"`
}

// RatePairJSON holds the employee and employer fractions for a category.
type RatePairJSON struct {
	Employee float64 `json:"employee" yaml:"employee"`
	Employer float64 `json:"employer" yaml:"employer"`
}

// StandardBracketJSON is one grade of the standard compensation table.
type StandardBracketJSON struct {
	Grade         string `json:"grade" yaml:"grade"`
	MonthlyAmount int64  `json:"monthly_amount" yaml:"monthly_amount"`
	LowerBound    int64  `json:"lower_bound" yaml:"lower_bound"`
	UpperBound    int64  `json:"upper_bound,omitempty" yaml:"upper_bound,omitempty"` // 0 = open-ended
}

// CommissionJSON holds both variants' constants.
type CommissionJSON struct {
	Legacy *LegacyRuleJSON `json:"legacy,omitempty" yaml:"legacy,omitempty"`
	Weekly *WeeklyRuleJSON `json:"weekly,omitempty" yaml:"weekly,omitempty"`
}

type LegacyRuleJSON struct {
	MonthlyThreshold     int   `json:"monthly_threshold" yaml:"monthly_threshold"`
	AmountPerAchievement int64 `json:"amount_per_achievement" yaml:"amount_per_achievement"`
}

type WeeklyRuleJSON struct {
	WeeklyThreshold int   `json:"weekly_threshold" yaml:"weekly_threshold"`
	AmountPerWeek   int64 `json:"amount_per_week" yaml:"amount_per_week"`
}

// Document is the parsed configuration.
type Document struct {
	Rates     socialinsurance.Rates
	Standards []socialinsurance.StandardBracket
	Rules     commission.RuleConfig
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts configuration documents to Go structs.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseDocument parses a JSON string into a Document.
func (f *ConfigFactory) ParseDocument(jsonStr string) (*Document, error) {
	var dj DocumentJSON
	if err := json.Unmarshal([]byte(jsonStr), &dj); err != nil {
		return nil, fmt.Errorf("failed to parse payroll config JSON: %w", err)
	}
	return f.FromJSON(dj)
}

// ParseYAML parses a YAML document into a Document.
func (f *ConfigFactory) ParseYAML(data []byte) (*Document, error) {
	var dj DocumentJSON
	if err := yaml.Unmarshal(data, &dj); err != nil {
		return nil, fmt.Errorf("failed to parse payroll config YAML: %w", err)
	}
	return f.FromJSON(dj)
}

// FromJSON validates and converts DocumentJSON.
func (f *ConfigFactory) FromJSON(dj DocumentJSON) (*Document, error) {
	rates, err := parseRates(dj.InsuranceRates)
	if err != nil {
		return nil, err
	}
	standards, err := parseStandards(dj.StandardBrackets)
	if err != nil {
		return nil, err
	}
	rules, err := parseRules(dj.Commission)
	if err != nil {
		return nil, err
	}
	return &Document{Rates: rates, Standards: standards, Rules: rules}, nil
}

// ToJSON converts a Document back to its document form.
func (f *ConfigFactory) ToJSON(doc Document) DocumentJSON {
	dj := DocumentJSON{}

	if len(doc.Rates) > 0 {
		dj.InsuranceRates = make(map[string]RatePairJSON, len(doc.Rates))
		for id, pair := range doc.Rates {
			dj.InsuranceRates[id] = RatePairJSON{
				Employee: pair.Employee.InexactFloat64(),
				Employer: pair.Employer.InexactFloat64(),
			}
		}
	}

	for _, b := range doc.Standards {
		dj.StandardBrackets = append(dj.StandardBrackets, StandardBracketJSON{
			Grade:         b.Grade,
			MonthlyAmount: b.MonthlyAmount.IntPart(),
			LowerBound:    b.LowerBound.IntPart(),
			UpperBound:    b.UpperBound.IntPart(),
		})
	}

	dj.Commission = &CommissionJSON{
		Legacy: &LegacyRuleJSON{
			MonthlyThreshold:     doc.Rules.Legacy.MonthlyThreshold,
			AmountPerAchievement: doc.Rules.Legacy.AmountPerAchievement.IntPart(),
		},
		Weekly: &WeeklyRuleJSON{
			WeeklyThreshold: doc.Rules.Weekly.WeeklyThreshold,
			AmountPerWeek:   doc.Rules.Weekly.AmountPerWeek.IntPart(),
		},
	}
	return dj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var rateCeiling = decimal.NewFromInt(1)

func parseRates(in map[string]RatePairJSON) (socialinsurance.Rates, error) {
	rates := make(socialinsurance.Rates, len(in))
	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic first error

	for _, id := range ids {
		if generic.LookupCategory(id) == nil {
			return nil, fmt.Errorf("unknown insurance category: %s", id)
		}
		pair := socialinsurance.RatePair{
			Employee: decimal.NewFromFloat(in[id].Employee),
			Employer: decimal.NewFromFloat(in[id].Employer),
		}
		if err := checkRate(id, "employee", pair.Employee); err != nil {
			return nil, err
		}
		if err := checkRate(id, "employer", pair.Employer); err != nil {
			return nil, err
		}
		rates[id] = pair
	}
	return rates, nil
}

func checkRate(id, side string, r decimal.Decimal) error {
	if r.IsNegative() || r.GreaterThanOrEqual(rateCeiling) {
		return fmt.Errorf("%s %s rate %s outside [0, 1)", id, side, r)
	}
	return nil
}

func parseStandards(in []StandardBracketJSON) ([]socialinsurance.StandardBracket, error) {
	out := make([]socialinsurance.StandardBracket, 0, len(in))
	for i, bj := range in {
		if bj.Grade == "" {
			return nil, fmt.Errorf("standard bracket %d: grade is required", i)
		}
		if bj.MonthlyAmount <= 0 || bj.LowerBound < 0 {
			return nil, fmt.Errorf("standard bracket %s: amounts must be positive", bj.Grade)
		}
		if bj.UpperBound != 0 && bj.UpperBound < bj.LowerBound {
			return nil, fmt.Errorf("standard bracket %s: upper_bound %d below lower_bound %d",
				bj.Grade, bj.UpperBound, bj.LowerBound)
		}
		out = append(out, socialinsurance.StandardBracket{
			Grade:         bj.Grade,
			MonthlyAmount: generic.Yen(bj.MonthlyAmount),
			LowerBound:    generic.Yen(bj.LowerBound),
			UpperBound:    generic.Yen(bj.UpperBound),
		})
	}
	return out, nil
}

func parseRules(cj *CommissionJSON) (commission.RuleConfig, error) {
	rules := commission.DefaultRules()
	if cj == nil {
		return rules, nil
	}
	if cj.Legacy != nil {
		if cj.Legacy.MonthlyThreshold <= 0 {
			return rules, fmt.Errorf("legacy monthly_threshold must be positive, got %d", cj.Legacy.MonthlyThreshold)
		}
		rules.Legacy = commission.LegacyRule{
			MonthlyThreshold:     cj.Legacy.MonthlyThreshold,
			AmountPerAchievement: generic.Yen(cj.Legacy.AmountPerAchievement),
		}
	}
	if cj.Weekly != nil {
		if cj.Weekly.WeeklyThreshold <= 0 {
			return rules, fmt.Errorf("weekly_threshold must be positive, got %d", cj.Weekly.WeeklyThreshold)
		}
		rules.Weekly = commission.WeeklyRule{
			WeeklyThreshold: cj.Weekly.WeeklyThreshold,
			AmountPerWeek:   generic.Yen(cj.Weekly.AmountPerWeek),
		}
	}
	return rules, nil
}
