package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cardadmin/internal/domain/directory"
)

const DefaultConcurrency = 8

// Invalidator drops cached read models after imports change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type RunRecorder interface {
	RecordAggregation(failed bool, employees, cards int)
}

type Service struct {
	store       directory.StoreAPI
	concurrency int
	Invalidator Invalidator
	Metrics     RunRecorder
	now         func() time.Time
}

func NewService(store directory.StoreAPI, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Service{store: store, concurrency: concurrency, now: time.Now}
}

// Run loads teams and employees, nests each team's members with their cards,
// and marks every aggregated employee as imported. Team and employee load
// failures abort the run; card lookups and the write-back degrade instead.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	result, err := s.run(ctx, opts)
	if s.Metrics != nil {
		if err != nil {
			s.Metrics.RecordAggregation(true, 0, 0)
		} else {
			s.Metrics.RecordAggregation(false, result.Summary.Employees, result.Summary.Cards)
		}
	}
	return result, err
}

func (s *Service) run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{RunID: uuid.NewString(), StartedAt: s.now()}
	logger := slog.With("runId", result.RunID)

	teams, err := s.loadTeams(ctx, opts)
	if err != nil {
		logger.Warn("aggregation aborted", "step", "teams", "err", err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	employees, err := s.store.ListEmployees(ctx, directory.EmployeeFilter{})
	if err != nil {
		logger.Error("aggregation employee load failed", "err", err)
		return nil, fmt.Errorf("%w: load employees: %w", ErrBackendRead, err)
	}
	if len(employees) == 0 {
		logger.Warn("aggregation aborted", "step", "employees", "err", ErrNoEmployees)
		return nil, ErrNoEmployees
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := directory.GroupByTeam(employees)
	memberIDs := uniqueMembers(teams, groups)

	cards, degraded, err := s.enrich(ctx, logger, memberIDs)
	if err != nil {
		return nil, err
	}
	result.DegradedEmployeeIDs = degraded

	result.Teams = assemble(teams, groups, cards)
	result.ReconciledIDs = memberIDs
	result.Summary = Summary{Teams: len(teams), Employees: len(memberIDs)}
	for _, list := range cards {
		result.Summary.Cards += len(list)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.reconcile(ctx, logger, result)

	result.CompletedAt = s.now()
	logger.Info("aggregation completed",
		"teams", result.Summary.Teams,
		"employees", result.Summary.Employees,
		"cards", result.Summary.Cards,
		"newlyImported", result.NewlyImported,
		"degraded", len(result.DegradedEmployeeIDs),
	)
	return result, nil
}

func (s *Service) loadTeams(ctx context.Context, opts Options) ([]directory.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load teams: %w", ErrBackendRead, err)
	}
	teams = filterTeams(teams, opts.Teams)
	if len(teams) == 0 {
		return nil, ErrNoTeams
	}
	return teams, nil
}

func filterTeams(teams []directory.Team, names []string) []directory.Team {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if key := directory.NormalizeTeamName(name); key != "" {
			wanted[key] = true
		}
	}
	if len(wanted) == 0 {
		return teams
	}
	out := make([]directory.Team, 0, len(wanted))
	for _, team := range teams {
		if wanted[directory.NormalizeTeamName(team.Name)] {
			out = append(out, team)
		}
	}
	return out
}

// uniqueMembers walks teams in order and returns every member id once, in
// first-seen order.
func uniqueMembers(teams []directory.Team, groups map[string][]directory.Employee) []int64 {
	ids := make([]int64, 0)
	seen := make(map[int64]bool)
	for _, team := range teams {
		for _, emp := range directory.MembersOf(team, groups) {
			if seen[emp.ID] {
				continue
			}
			seen[emp.ID] = true
			ids = append(ids, emp.ID)
		}
	}
	return ids
}

// enrich fetches cards for each id with at most s.concurrency lookups in
// flight. lists[i] belongs to ids[i] whatever order the lookups finish in.
func (s *Service) enrich(ctx context.Context, logger *slog.Logger, ids []int64) (map[int64][]directory.Card, []int64, error) {
	lists := make([][]directory.Card, len(ids))
	failed := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			list, err := s.store.ListCards(gctx, directory.CardFilter{UserID: id})
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("card lookup failed, continuing without cards", "employeeId", id, "err", err)
				failed[i] = true
				list = nil
			}
			if list == nil {
				list = []directory.Card{}
			}
			lists[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	cards := make(map[int64][]directory.Card, len(ids))
	var degraded []int64
	for i, id := range ids {
		cards[id] = lists[i]
		if failed[i] {
			degraded = append(degraded, id)
		}
	}
	return cards, degraded, nil
}

func assemble(teams []directory.Team, groups map[string][]directory.Employee, cards map[int64][]directory.Card) []TeamView {
	views := make([]TeamView, 0, len(teams))
	for _, team := range teams {
		members := directory.MembersOf(team, groups)
		view := TeamView{Team: team, Employees: make([]EmployeeView, 0, len(members))}
		for _, emp := range members {
			view.Employees = append(view.Employees, EmployeeView{Employee: emp, Cards: cards[emp.ID]})
		}
		views = append(views, view)
	}
	return views
}

// reconcile is best effort: a failed write-back leaves the assembled view
// intact and is reported as a warning.
func (s *Service) reconcile(ctx context.Context, logger *slog.Logger, result *Result) {
	if len(result.ReconciledIDs) == 0 {
		return
	}
	changed, err := s.store.MarkEmployeesAdded(ctx, result.ReconciledIDs)
	if err != nil {
		logger.Warn("is_added write-back failed", "count", len(result.ReconciledIDs), "err", err)
		result.Warnings = append(result.Warnings, "import flag update failed: "+err.Error())
		return
	}
	result.NewlyImported = changed

	if changed > 0 && s.Invalidator != nil {
		if err := s.Invalidator.Invalidate(ctx); err != nil {
			logger.Warn("read model invalidation failed", "err", err)
		}
	}
}
