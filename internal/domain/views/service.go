package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"cardadmin/internal/domain/directory"
	"cardadmin/internal/platform/cache"
)

const (
	snapshotKey = "cardadmin:views:snapshot"
	DefaultTTL  = 30 * time.Second
)

var ErrSnapshotLoad = errors.New("snapshot load failed")

// Service serves every dashboard view from one cached Snapshot.
type Service struct {
	store directory.StoreAPI
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
	// generation moves on every Invalidate; a load that straddles one is
	// not written back to the cache.
	generation atomic.Uint64
}

func NewService(store directory.StoreAPI, c cache.Cache, ttl time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, cache: c, ttl: ttl, now: time.Now}
}

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := cache.GetJSON(ctx, s.cache, snapshotKey, &snap)
	if err == nil {
		return &snap, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("view cache read failed", "err", err)
	}

	gen := s.generation.Load()
	loaded, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if s.generation.Load() != gen {
		slog.Debug("view snapshot invalidated during load, not caching")
		return loaded, nil
	}
	if err := cache.SetJSON(ctx, s.cache, snapshotKey, loaded, s.ttl); err != nil {
		slog.Warn("view cache write failed", "err", err)
	}
	return loaded, nil
}

// Invalidate drops the cached snapshot so the next read reloads it.
func (s *Service) Invalidate(ctx context.Context) error {
	s.generation.Add(1)
	return s.cache.Delete(ctx, snapshotKey)
}

func (s *Service) load(ctx context.Context) (*Snapshot, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: teams: %w", ErrSnapshotLoad, err)
	}
	all, err := s.store.ListEmployees(ctx, directory.EmployeeFilter{})
	if err != nil {
		return nil, fmt.Errorf("%w: employees: %w", ErrSnapshotLoad, err)
	}

	snap := &Snapshot{
		Teams:     teams,
		Employees: []directory.Employee{},
		Cards:     map[int64][]directory.Card{},
		LoadedAt:  s.now().UTC(),
	}
	if snap.Teams == nil {
		snap.Teams = []directory.Team{}
	}
	snap.Stats.Employees = len(all)
	snap.Stats.Teams = len(teams)
	var ids []int64
	for _, emp := range all {
		if emp.UserStatus {
			snap.Stats.Active++
		}
		if !emp.IsAdded {
			continue
		}
		snap.Employees = append(snap.Employees, emp)
		ids = append(ids, emp.ID)
	}
	snap.Stats.Imported = len(snap.Employees)

	cards, err := s.store.ListCardsByUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: cards: %w", ErrSnapshotLoad, err)
	}
	for _, card := range cards {
		snap.Cards[card.UserID] = append(snap.Cards[card.UserID], card)
	}
	return snap, nil
}

func (s *Service) Directory(ctx context.Context) (Directory, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Directory{}, err
	}
	return BuildDirectory(snap), nil
}

func (s *Service) TeamBrowser(ctx context.Context) (TeamBrowser, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return TeamBrowser{}, err
	}
	return BuildTeamBrowser(snap), nil
}

func (s *Service) CardInventory(ctx context.Context) (CardInventory, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return CardInventory{}, err
	}
	return BuildCardInventory(snap), nil
}
