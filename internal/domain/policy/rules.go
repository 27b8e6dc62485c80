package policy

import (
	"fmt"
	"strings"

	"cardadmin/internal/domain/directory"
)

const defaultApprover = "Team Lead"

// NewTeamPolicy seeds a team with one rule covering 0-500 approved by the
// team's first manager.
func NewTeamPolicy(team string, members []directory.Employee, ruleID string) TeamPolicy {
	managers := Managers(members)
	approver := defaultApprover
	if len(managers) > 0 {
		approver = managers[0]
	}
	return TeamPolicy{
		TeamName: team,
		Rules: []ExpenseRule{{
			ID:        ruleID,
			Level:     1,
			Approver:  approver,
			MinAmount: "0",
			MaxAmount: "500",
		}},
		Suggestions: Suggestions(team, approver),
	}
}

// Managers returns the distinct non-empty manager names in member order.
func Managers(members []directory.Employee) []string {
	seen := make(map[string]bool)
	var out []string
	for _, emp := range members {
		name := strings.TrimSpace(emp.ManagerName)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func Suggestions(team, approver string) []string {
	out := []string{
		fmt.Sprintf("For %s team: Consider setting lower approval limits for junior members", team),
		fmt.Sprintf("Recommended: %s should approve expenses above $500", approver),
		"Suggestion: Auto-approve routine expenses under $100 for efficiency",
	}
	name := strings.ToLower(team)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(name, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has("engineering", "tech"):
		out = append(out,
			"Tech teams often need higher limits for software subscriptions and cloud services",
			"Consider separate policies for development tools and hardware purchases")
	case has("sales", "marketing"):
		out = append(out,
			"Sales teams typically require flexible policies for client entertainment",
			"Consider higher limits for travel and marketing campaign expenses")
	case has("finance", "accounting"):
		out = append(out,
			"Finance teams may need stricter controls with multiple approval levels",
			"Consider requiring additional documentation for all expenses")
	case has("hr", "people"):
		out = append(out,
			"HR teams often need policies for recruitment and training expenses",
			"Consider separate approval workflows for employee benefits and events")
	}
	return out
}

func (p *TeamPolicy) AddRule(id string) ExpenseRule {
	rule := ExpenseRule{ID: id, Level: len(p.Rules) + 1}
	p.Rules = append(p.Rules, rule)
	return rule
}

// RemoveRule drops the rule and renumbers the rest 1..n in order.
func (p *TeamPolicy) RemoveRule(id string) error {
	idx := p.ruleIndex(id)
	if idx < 0 {
		return ErrRuleNotFound
	}
	p.Rules = append(p.Rules[:idx], p.Rules[idx+1:]...)
	for i := range p.Rules {
		p.Rules[i].Level = i + 1
	}
	return nil
}

// UpdateRule applies patch without checking ranges against other levels.
func (p *TeamPolicy) UpdateRule(id string, patch RulePatch) error {
	idx := p.ruleIndex(id)
	if idx < 0 {
		return ErrRuleNotFound
	}
	rule := &p.Rules[idx]
	if patch.Approver != nil {
		rule.Approver = strings.TrimSpace(*patch.Approver)
	}
	if patch.MinAmount != nil {
		rule.MinAmount = strings.TrimSpace(*patch.MinAmount)
	}
	if patch.MaxAmount != nil {
		rule.MaxAmount = strings.TrimSpace(*patch.MaxAmount)
	}
	return nil
}

func (p *TeamPolicy) ruleIndex(id string) int {
	for i, rule := range p.Rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}

func (p *ExpensePolicy) Team(name string) (*TeamPolicy, error) {
	key := directory.NormalizeTeamName(name)
	for i := range p.Teams {
		if directory.NormalizeTeamName(p.Teams[i].TeamName) == key {
			return &p.Teams[i], nil
		}
	}
	return nil, ErrTeamNotInPolicy
}

func DefaultCardApprovalFlow(id, firstLevelID string) CardApprovalFlow {
	return CardApprovalFlow{
		ID:       id,
		MinLimit: "0",
		MaxLimit: Unlimited,
		Levels: []ApprovalLevel{{
			ID:          firstLevelID,
			Level:       1,
			Type:        ApproverAuto,
			Value:       "Auto Approve cards created by Admins",
			Description: "Auto Approve cards created by Admins",
		}},
	}
}

func (f *CardApprovalFlow) AddLevel(id string) ApprovalLevel {
	next := len(f.Levels) + 1
	level := ApprovalLevel{
		ID:          id,
		Level:       next,
		Type:        ApproverUser,
		Description: fmt.Sprintf("Level %d approval", next),
	}
	f.Levels = append(f.Levels, level)
	return level
}

func (f *CardApprovalFlow) RemoveLevel(id string) error {
	idx := f.levelIndex(id)
	if idx < 0 {
		return ErrLevelNotFound
	}
	f.Levels = append(f.Levels[:idx], f.Levels[idx+1:]...)
	for i := range f.Levels {
		f.Levels[i].Level = i + 1
	}
	return nil
}

func (f *CardApprovalFlow) UpdateLevel(id string, patch LevelPatch) error {
	idx := f.levelIndex(id)
	if idx < 0 {
		return ErrLevelNotFound
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return ErrInvalidApproverType
	}
	level := &f.Levels[idx]
	if patch.Type != nil {
		level.Type = *patch.Type
	}
	if patch.Value != nil {
		level.Value = strings.TrimSpace(*patch.Value)
	}
	if patch.Description != nil {
		level.Description = strings.TrimSpace(*patch.Description)
	}
	return nil
}

// SetLimits stores both limits as entered. The maximum may be "Infinity".
func (f *CardApprovalFlow) SetLimits(minLimit, maxLimit string) {
	f.MinLimit = strings.TrimSpace(minLimit)
	f.MaxLimit = strings.TrimSpace(maxLimit)
}

func (f *CardApprovalFlow) levelIndex(id string) int {
	for i, level := range f.Levels {
		if level.ID == id {
			return i
		}
	}
	return -1
}

func DefaultBenefitsAutomation() BenefitsAutomation {
	return BenefitsAutomation{
		Birthday: BirthdayBenefit{
			Enabled:    true,
			Amount:     "AED 200",
			ValidFor:   "30 days",
			Categories: map[string]bool{"dining": true, "shopping": false, "travel": false},
		},
		Anniversary: AnniversaryBenefit{
			Enabled:   true,
			Amount:    "AED 500 x Years",
			MinYears:  "1 year",
			MaxAmount: "AED 10,000",
		},
		HomeOffice: HomeOfficeBenefit{
			Enabled:    false,
			Budget:     "AED 3,000",
			Trigger:    "New hire (first week)",
			Categories: map[string]bool{"officeEquipment": true, "furniture": true, "technology": false},
		},
	}
}
