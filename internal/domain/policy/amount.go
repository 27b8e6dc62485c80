package policy

import (
	"strings"

	"github.com/shopspring/decimal"
)

const currencyPrefix = "AED"

// ParseAmount reads values such as "500", "AED 10,000", "-20" or "Infinity".
// An empty string parses to zero. unlimited is true only for Infinity.
func ParseAmount(raw string) (value decimal.Decimal, unlimited bool, err error) {
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, Unlimited) {
		return decimal.Zero, true, nil
	}
	s = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(s), currencyPrefix))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false, nil
	}
	value, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, ErrInvalidAmount
	}
	return value, false, nil
}

// AmountRange is a rule or flow bound in normalized form. A nil bound was
// not a number and is kept only in the draft's raw text; Unbounded marks an
// Infinity maximum.
type AmountRange struct {
	Level     int              `json:"level,omitempty"`
	Approver  string           `json:"approver,omitempty"`
	Min       *decimal.Decimal `json:"min"`
	Max       *decimal.Decimal `json:"max"`
	Unbounded bool             `json:"unbounded,omitempty"`
}

func normalizeRange(minRaw, maxRaw string) AmountRange {
	var out AmountRange
	if lower, _, err := ParseAmount(minRaw); err == nil {
		out.Min = &lower
	}
	upper, unlimited, err := ParseAmount(maxRaw)
	switch {
	case unlimited:
		out.Unbounded = true
	case err == nil && strings.TrimSpace(maxRaw) != "":
		out.Max = &upper
	}
	return out
}

// NormalizeExpensePolicy flattens every team's rules into decimal ranges.
func NormalizeExpensePolicy(p ExpensePolicy) map[string][]AmountRange {
	out := make(map[string][]AmountRange, len(p.Teams))
	for _, team := range p.Teams {
		ranges := make([]AmountRange, 0, len(team.Rules))
		for _, rule := range team.Rules {
			r := normalizeRange(rule.MinAmount, rule.MaxAmount)
			r.Level = rule.Level
			r.Approver = rule.Approver
			ranges = append(ranges, r)
		}
		out[team.TeamName] = ranges
	}
	return out
}

func NormalizeCardApprovalFlow(f CardApprovalFlow) AmountRange {
	return normalizeRange(f.MinLimit, f.MaxLimit)
}
