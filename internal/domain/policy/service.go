package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardadmin/internal/domain/directory"
)

// Service manages policy form drafts. Nothing here is persisted: submitting
// a draft logs it and drops it.
type Service struct {
	store    directory.StoreAPI
	expense  *DraftStore[ExpensePolicy]
	flows    *DraftStore[CardApprovalFlow]
	benefits *DraftStore[BenefitsAutomation]
	newID    func() string
	now      func() time.Time
}

// NewService keeps drafts for draftTTL after their last change. Zero means
// DefaultDraftTTL.
func NewService(store directory.StoreAPI, draftTTL time.Duration) *Service {
	return &Service{
		store:    store,
		expense:  NewDraftStore(cloneExpensePolicy, draftTTL),
		flows:    NewDraftStore(cloneCardApprovalFlow, draftTTL),
		benefits: NewDraftStore(cloneBenefitsAutomation, draftTTL),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// NewExpensePolicy opens a draft with one seeded policy per selected team.
// Duplicate team names collapse to the first spelling.
func (s *Service) NewExpensePolicy(ctx context.Context, teams []string) (ExpensePolicy, error) {
	var names []string
	seen := make(map[string]bool)
	for _, team := range teams {
		key := directory.NormalizeTeamName(team)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, strings.TrimSpace(team))
	}
	if len(names) == 0 {
		return ExpensePolicy{}, ErrNoTeamsSelected
	}

	now := s.now().UTC()
	draft := ExpensePolicy{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
	for _, name := range names {
		members, err := s.store.ListEmployees(ctx, directory.EmployeeFilter{Team: name})
		if err != nil {
			return ExpensePolicy{}, fmt.Errorf("load members of %s: %w", name, err)
		}
		draft.Teams = append(draft.Teams, NewTeamPolicy(name, members, s.newID()))
	}
	s.expense.Put(draft.ID, draft)
	return draft, nil
}

func (s *Service) GetExpensePolicy(id string) (ExpensePolicy, error) {
	return s.expense.Get(id)
}

func (s *Service) AddExpenseRule(id, team string) (ExpensePolicy, error) {
	ruleID := s.newID()
	return s.updateExpense(id, team, func(p *TeamPolicy) error {
		p.AddRule(ruleID)
		return nil
	})
}

func (s *Service) UpdateExpenseRule(id, team, ruleID string, patch RulePatch) (ExpensePolicy, error) {
	return s.updateExpense(id, team, func(p *TeamPolicy) error {
		return p.UpdateRule(ruleID, patch)
	})
}

func (s *Service) RemoveExpenseRule(id, team, ruleID string) (ExpensePolicy, error) {
	return s.updateExpense(id, team, func(p *TeamPolicy) error {
		return p.RemoveRule(ruleID)
	})
}

func (s *Service) updateExpense(id, team string, fn func(*TeamPolicy) error) (ExpensePolicy, error) {
	now := s.now().UTC()
	return s.expense.Update(id, func(draft *ExpensePolicy) error {
		tp, err := draft.Team(team)
		if err != nil {
			return err
		}
		if err := fn(tp); err != nil {
			return err
		}
		draft.UpdatedAt = now
		return nil
	})
}

func (s *Service) SubmitExpensePolicy(id, actor string) (Submission, error) {
	draft, err := s.expense.Take(id)
	if err != nil {
		return Submission{}, err
	}
	slog.Info("expense approval policy submitted",
		"draftId", id,
		"actor", actor,
		"teams", len(draft.Teams),
		"ranges", NormalizeExpensePolicy(draft),
	)
	return Submission{DraftID: id, Kind: "expense_policy", SubmittedAt: s.now().UTC(), Config: draft}, nil
}

func (s *Service) NewCardApprovalFlow() CardApprovalFlow {
	now := s.now().UTC()
	flow := DefaultCardApprovalFlow(s.newID(), s.newID())
	flow.CreatedAt = now
	flow.UpdatedAt = now
	s.flows.Put(flow.ID, flow)
	return flow
}

func (s *Service) GetCardApprovalFlow(id string) (CardApprovalFlow, error) {
	return s.flows.Get(id)
}

func (s *Service) SetCardApprovalLimits(id, minLimit, maxLimit string) (CardApprovalFlow, error) {
	return s.updateFlow(id, func(f *CardApprovalFlow) error {
		f.SetLimits(minLimit, maxLimit)
		return nil
	})
}

func (s *Service) AddApprovalLevel(id string) (CardApprovalFlow, error) {
	levelID := s.newID()
	return s.updateFlow(id, func(f *CardApprovalFlow) error {
		f.AddLevel(levelID)
		return nil
	})
}

func (s *Service) UpdateApprovalLevel(id, levelID string, patch LevelPatch) (CardApprovalFlow, error) {
	return s.updateFlow(id, func(f *CardApprovalFlow) error {
		return f.UpdateLevel(levelID, patch)
	})
}

func (s *Service) RemoveApprovalLevel(id, levelID string) (CardApprovalFlow, error) {
	return s.updateFlow(id, func(f *CardApprovalFlow) error {
		return f.RemoveLevel(levelID)
	})
}

func (s *Service) updateFlow(id string, fn func(*CardApprovalFlow) error) (CardApprovalFlow, error) {
	now := s.now().UTC()
	return s.flows.Update(id, func(f *CardApprovalFlow) error {
		if err := fn(f); err != nil {
			return err
		}
		f.UpdatedAt = now
		return nil
	})
}

func (s *Service) SubmitCardApprovalFlow(id, actor string) (Submission, error) {
	flow, err := s.flows.Take(id)
	if err != nil {
		return Submission{}, err
	}
	slog.Info("card approval flow submitted",
		"draftId", id,
		"actor", actor,
		"levels", len(flow.Levels),
		"limits", NormalizeCardApprovalFlow(flow),
	)
	return Submission{DraftID: id, Kind: "card_approval_flow", SubmittedAt: s.now().UTC(), Config: flow}, nil
}

// BenefitsAutomation returns the actor's draft, or the defaults when the
// actor has none.
func (s *Service) BenefitsAutomation(actor string) BenefitsAutomation {
	draft, err := s.benefits.Get(actor)
	if err != nil {
		return DefaultBenefitsAutomation()
	}
	return draft
}

func (s *Service) UpdateBenefitsAutomation(actor string, cfg BenefitsAutomation) BenefitsAutomation {
	if cfg.Birthday.Categories == nil {
		cfg.Birthday.Categories = map[string]bool{}
	}
	if cfg.HomeOffice.Categories == nil {
		cfg.HomeOffice.Categories = map[string]bool{}
	}
	cfg.UpdatedAt = s.now().UTC()
	s.benefits.Put(actor, cfg)
	return cloneBenefitsAutomation(cfg)
}

func (s *Service) SubmitBenefitsAutomation(actor string) Submission {
	cfg, err := s.benefits.Take(actor)
	if err != nil {
		cfg = DefaultBenefitsAutomation()
	}
	slog.Info("benefits automation submitted",
		"actor", actor,
		"birthday", cfg.Birthday.Enabled,
		"anniversary", cfg.Anniversary.Enabled,
		"homeOffice", cfg.HomeOffice.Enabled,
	)
	return Submission{DraftID: actor, Kind: "benefits_automation", SubmittedAt: s.now().UTC(), Config: cfg}
}
