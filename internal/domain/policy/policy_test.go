package policy

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"cardadmin/internal/domain/directory"
	"cardadmin/internal/domain/directory/directorytest"
)

func newTestService() *Service {
	store := &directorytest.Store{
		Employees: []directory.Employee{
			{ID: 1, Team: "Engineering", ManagerName: ""},
			{ID: 2, Team: "engineering", ManagerName: "Maya"},
			{ID: 3, Team: "Engineering", ManagerName: "Omar"},
			{ID: 4, Team: "Finance"},
		},
	}
	svc := NewService(store, 0)
	n := 0
	svc.newID = func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func ruleLevels(rules []ExpenseRule) []int {
	out := make([]int, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Level)
	}
	return out
}

func TestNewExpensePolicySeedsDefaults(t *testing.T) {
	svc := newTestService()

	draft, err := svc.NewExpensePolicy(context.Background(), []string{"Engineering", " engineering", "Finance", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(draft.Teams) != 2 {
		t.Fatalf("expected duplicate team to collapse, got %d teams", len(draft.Teams))
	}
	eng := draft.Teams[0].Rules[0]
	if eng.Level != 1 || eng.MinAmount != "0" || eng.MaxAmount != "500" || eng.Approver != "Maya" {
		t.Fatalf("unexpected engineering default rule %+v", eng)
	}
	if fin := draft.Teams[1].Rules[0]; fin.Approver != "Team Lead" {
		t.Fatalf("expected Team Lead fallback, got %q", fin.Approver)
	}
	if got := len(draft.Teams[0].Suggestions); got != 5 {
		t.Fatalf("expected 5 engineering suggestions, got %d", got)
	}
}

func TestNewExpensePolicyRequiresTeams(t *testing.T) {
	svc := newTestService()
	if _, err := svc.NewExpensePolicy(context.Background(), []string{" "}); !errors.Is(err, ErrNoTeamsSelected) {
		t.Fatalf("expected ErrNoTeamsSelected, got %v", err)
	}
}

func TestExpenseRulesRenumberAfterRemoval(t *testing.T) {
	svc := newTestService()
	draft, _ := svc.NewExpensePolicy(context.Background(), []string{"Finance"})

	for i := 0; i < 3; i++ {
		var err error
		draft, err = svc.AddExpenseRule(draft.ID, "finance")
		if err != nil {
			t.Fatalf("add rule: %v", err)
		}
	}
	rules := draft.Teams[0].Rules
	if got := ruleLevels(rules); len(got) != 4 || got[3] != 4 {
		t.Fatalf("expected levels 1..4, got %v", got)
	}

	draft, err := svc.RemoveExpenseRule(draft.ID, "Finance", rules[1].ID)
	if err != nil {
		t.Fatalf("remove rule: %v", err)
	}
	got := ruleLevels(draft.Teams[0].Rules)
	for i, level := range got {
		if level != i+1 {
			t.Fatalf("expected contiguous levels, got %v", got)
		}
	}
	if draft.Teams[0].Rules[1].ID != rules[2].ID {
		t.Fatal("expected remaining rules to keep their order")
	}

	if _, err := svc.RemoveExpenseRule(draft.ID, "Finance", "missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if _, err := svc.AddExpenseRule(draft.ID, "Legal"); !errors.Is(err, ErrTeamNotInPolicy) {
		t.Fatalf("expected ErrTeamNotInPolicy, got %v", err)
	}
}

func TestUpdateExpenseRuleAllowsOverlappingRanges(t *testing.T) {
	svc := newTestService()
	draft, _ := svc.NewExpensePolicy(context.Background(), []string{"Finance"})
	draft, _ = svc.AddExpenseRule(draft.ID, "Finance")
	second := draft.Teams[0].Rules[1].ID

	lower, upper, approver := "100", "AED 300", "Omar"
	draft, err := svc.UpdateExpenseRule(draft.ID, "Finance", second, RulePatch{MinAmount: &lower, MaxAmount: &upper, Approver: &approver})
	if err != nil {
		t.Fatalf("expected overlapping range to be accepted, got %v", err)
	}
	rule := draft.Teams[0].Rules[1]
	if rule.MinAmount != "100" || rule.MaxAmount != "AED 300" || rule.Approver != "Omar" {
		t.Fatalf("unexpected rule %+v", rule)
	}

	negative, text := "-5", "ask finance"
	draft, err = svc.UpdateExpenseRule(draft.ID, "Finance", second, RulePatch{MinAmount: &negative, MaxAmount: &text})
	if err != nil {
		t.Fatalf("expected free-form amounts to be accepted, got %v", err)
	}
	rule = draft.Teams[0].Rules[1]
	if rule.MinAmount != "-5" || rule.MaxAmount != "ask finance" {
		t.Fatalf("expected amounts kept as entered, got %+v", rule)
	}
	ranges := NormalizeExpensePolicy(draft)["Finance"]
	if ranges[1].Min == nil || ranges[1].Min.String() != "-5" || ranges[1].Max != nil || ranges[1].Unbounded {
		t.Fatalf("unexpected normalized range %+v", ranges[1])
	}
}

func TestSubmitExpensePolicyDiscardsDraft(t *testing.T) {
	svc := newTestService()
	draft, _ := svc.NewExpensePolicy(context.Background(), []string{"Finance"})

	sub, err := svc.SubmitExpensePolicy(draft.ID, "admin-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.DraftID != draft.ID || sub.Kind != "expense_policy" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if _, err := svc.GetExpensePolicy(draft.ID); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected draft to be discarded, got %v", err)
	}
	if _, err := svc.SubmitExpensePolicy(draft.ID, "admin-1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected second submit to fail, got %v", err)
	}
}

func TestCardApprovalFlowLevels(t *testing.T) {
	svc := newTestService()
	flow := svc.NewCardApprovalFlow()
	if flow.MaxLimit != Unlimited || flow.Levels[0].Type != ApproverAuto {
		t.Fatalf("unexpected default flow %+v", flow)
	}

	flow, _ = svc.AddApprovalLevel(flow.ID)
	flow, _ = svc.AddApprovalLevel(flow.ID)
	if flow.Levels[2].Description != "Level 3 approval" || flow.Levels[2].Type != ApproverUser {
		t.Fatalf("unexpected added level %+v", flow.Levels[2])
	}

	flow, err := svc.RemoveApprovalLevel(flow.ID, flow.Levels[0].ID)
	if err != nil {
		t.Fatalf("remove level: %v", err)
	}
	if flow.Levels[0].Level != 1 || flow.Levels[1].Level != 2 {
		t.Fatalf("expected renumbered levels, got %+v", flow.Levels)
	}

	role := ApproverRole
	value := "Finance Manager"
	flow, err = svc.UpdateApprovalLevel(flow.ID, flow.Levels[0].ID, LevelPatch{Type: &role, Value: &value})
	if err != nil {
		t.Fatalf("update level: %v", err)
	}
	if flow.Levels[0].Type != ApproverRole || flow.Levels[0].Value != value {
		t.Fatalf("unexpected level %+v", flow.Levels[0])
	}

	bogus := ApproverType("robot")
	if _, err := svc.UpdateApprovalLevel(flow.ID, flow.Levels[0].ID, LevelPatch{Type: &bogus}); !errors.Is(err, ErrInvalidApproverType) {
		t.Fatalf("expected ErrInvalidApproverType, got %v", err)
	}
	if _, err := svc.UpdateApprovalLevel(flow.ID, "nope", LevelPatch{}); !errors.Is(err, ErrLevelNotFound) {
		t.Fatalf("expected ErrLevelNotFound, got %v", err)
	}
}

func TestCardApprovalLimits(t *testing.T) {
	svc := newTestService()
	flow := svc.NewCardApprovalFlow()

	flow, err := svc.SetCardApprovalLimits(flow.ID, "1000", "AED 50,000")
	if err != nil {
		t.Fatalf("set limits: %v", err)
	}
	r := NormalizeCardApprovalFlow(flow)
	if r.Min.String() != "1000" || r.Max == nil || r.Max.String() != "50000" {
		t.Fatalf("unexpected normalized range %+v", r)
	}

	flow, err = svc.SetCardApprovalLimits(flow.ID, "0", "infinity")
	if err != nil {
		t.Fatalf("set unlimited: %v", err)
	}
	if r := NormalizeCardApprovalFlow(flow); r.Max != nil || !r.Unbounded {
		t.Fatalf("expected no upper bound, got %+v", r)
	}

	flow, err = svc.SetCardApprovalLimits(flow.ID, "5000", "100")
	if err != nil {
		t.Fatalf("expected inverted limits to be accepted, got %v", err)
	}
	if flow.MinLimit != "5000" || flow.MaxLimit != "100" {
		t.Fatalf("unexpected limits %+v", flow)
	}
}

func TestDraftStoreExpiresIdleDrafts(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	drafts := NewDraftStore(cloneCardApprovalFlow, time.Hour)
	drafts.now = func() time.Time { return now }

	drafts.Put("stale", CardApprovalFlow{ID: "stale"})
	now = now.Add(30 * time.Minute)
	drafts.Put("busy", CardApprovalFlow{ID: "busy"})

	now = now.Add(45 * time.Minute)
	if _, err := drafts.Get("stale"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected idle draft to expire, got %v", err)
	}
	if _, err := drafts.Update("busy", func(f *CardApprovalFlow) error {
		f.MinLimit = "10"
		return nil
	}); err != nil {
		t.Fatalf("expected recent draft to survive, got %v", err)
	}

	now = now.Add(59 * time.Minute)
	drafts.Put("fresh", CardApprovalFlow{ID: "fresh"})
	if got := drafts.Len(); got != 2 {
		t.Fatalf("expected busy and fresh drafts only, got %d", got)
	}

	now = now.Add(2 * time.Hour)
	drafts.Put("another", CardApprovalFlow{ID: "another"})
	if got := drafts.Len(); got != 1 {
		t.Fatalf("expected expired drafts swept on put, got %d", got)
	}
	if _, err := drafts.Take("busy"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected swept draft to be gone, got %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw       string
		want      string
		unlimited bool
		err       bool
	}{
		{"500", "500", false, false},
		{" AED 10,000 ", "10000", false, false},
		{"aed 12.50", "12.5", false, false},
		{"", "0", false, false},
		{"Infinity", "0", true, false},
		{"abc", "", false, true},
		{"-1", "-1", false, false},
	}
	for _, tc := range cases {
		got, unlimited, err := ParseAmount(tc.raw)
		if tc.err {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}
			continue
		}
		if err != nil || got.String() != tc.want || unlimited != tc.unlimited {
			t.Fatalf("%q: got %s unlimited=%v err=%v", tc.raw, got, unlimited, err)
		}
	}
}

func TestBenefitsAutomationPerActor(t *testing.T) {
	svc := newTestService()

	cfg := svc.BenefitsAutomation("a")
	if !cfg.Birthday.Enabled || cfg.Birthday.Amount != "AED 200" || cfg.HomeOffice.Enabled {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	cfg.HomeOffice.Enabled = true
	cfg.Birthday.Categories["travel"] = true
	svc.UpdateBenefitsAutomation("a", cfg)

	if other := svc.BenefitsAutomation("b"); other.HomeOffice.Enabled || other.Birthday.Categories["travel"] {
		t.Fatal("expected other actor to see defaults")
	}
	if mine := svc.BenefitsAutomation("a"); !mine.HomeOffice.Enabled || !mine.Birthday.Categories["travel"] {
		t.Fatalf("expected saved draft, got %+v", mine)
	}

	sub := svc.SubmitBenefitsAutomation("a")
	if saved := sub.Config.(BenefitsAutomation); !saved.HomeOffice.Enabled {
		t.Fatalf("expected submitted draft, got %+v", saved)
	}
	if after := svc.BenefitsAutomation("a"); after.HomeOffice.Enabled {
		t.Fatal("expected draft to be discarded after submit")
	}
}

func TestDraftStoreConcurrentUpdates(t *testing.T) {
	store := NewDraftStore(cloneCardApprovalFlow, DefaultDraftTTL)
	store.Put("f", DefaultCardApprovalFlow("f", "l0"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Update("f", func(f *CardApprovalFlow) error {
				f.AddLevel("l" + strconv.Itoa(i+1))
				return nil
			})
		}(i)
	}
	wg.Wait()

	flow, err := store.Get("f")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(flow.Levels) != 21 {
		t.Fatalf("expected 21 levels, got %d", len(flow.Levels))
	}
	for i, level := range flow.Levels {
		if level.Level != i+1 {
			t.Fatalf("expected contiguous levels, got %+v", flow.Levels)
		}
	}
}
