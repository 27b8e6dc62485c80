// Package directorytest provides an in-memory directory.StoreAPI for tests.
package directorytest

import (
	"context"
	"sync"

	"cardadmin/internal/domain/directory"
)

type Store struct {
	mu        sync.Mutex
	Teams     []directory.Team
	Employees []directory.Employee
	Cards     []directory.Card

	TeamsErr     error
	EmployeesErr error
	UpdateErr    error
	InsertErr    error
	// CardErrs fails ListCards for the given user ids.
	CardErrs map[int64]error
	// OnListCards runs before ListCards answers, inside the caller's goroutine.
	OnListCards func(ctx context.Context, userID int64)
	// OnListCardsByUsers runs before ListCardsByUsers takes the lock.
	OnListCardsByUsers func(ctx context.Context, userIDs []int64)

	Updates       [][]int64
	CardCalls     []int64
	TeamCalls     int
	EmployeeCalls int
	Transitions   int
	nextCardID    int64
}

var _ directory.StoreAPI = (*Store)(nil)

func (s *Store) ListTeams(ctx context.Context) ([]directory.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TeamCalls++
	if s.TeamsErr != nil {
		return nil, s.TeamsErr
	}
	return append([]directory.Team(nil), s.Teams...), nil
}

func (s *Store) ListEmployees(ctx context.Context, filter directory.EmployeeFilter) ([]directory.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EmployeeCalls++
	if s.EmployeesErr != nil {
		return nil, s.EmployeesErr
	}
	var out []directory.Employee
	for _, emp := range s.Employees {
		if filter.Matches(emp) {
			out = append(out, emp)
		}
	}
	return out, nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*directory.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, emp := range s.Employees {
		if emp.ID == id {
			found := emp
			return &found, nil
		}
	}
	return nil, directory.ErrEmployeeNotFound
}

func (s *Store) ListCards(ctx context.Context, filter directory.CardFilter) ([]directory.Card, error) {
	if s.OnListCards != nil {
		s.OnListCards(ctx, filter.UserID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CardCalls = append(s.CardCalls, filter.UserID)
	if err := s.CardErrs[filter.UserID]; err != nil {
		return nil, err
	}
	var out []directory.Card
	for _, card := range s.Cards {
		if card.UserID == filter.UserID {
			out = append(out, card)
		}
	}
	return out, nil
}

func (s *Store) ListCardsByUsers(ctx context.Context, userIDs []int64) ([]directory.Card, error) {
	if s.OnListCardsByUsers != nil {
		s.OnListCardsByUsers(ctx, userIDs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var out []directory.Card
	for _, card := range s.Cards {
		if wanted[card.UserID] {
			out = append(out, card)
		}
	}
	return out, nil
}

func (s *Store) MarkEmployeesAdded(ctx context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updates = append(s.Updates, append([]int64(nil), ids...))
	if s.UpdateErr != nil {
		return 0, s.UpdateErr
	}
	target := make(map[int64]bool, len(ids))
	for _, id := range ids {
		target[id] = true
	}
	var changed int64
	for i := range s.Employees {
		if target[s.Employees[i].ID] && !s.Employees[i].IsAdded {
			s.Employees[i].IsAdded = true
			changed++
		}
	}
	s.Transitions += int(changed)
	return changed, nil
}

func (s *Store) InsertCard(ctx context.Context, input directory.CardInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return 0, s.InsertErr
	}
	s.nextCardID++
	id := s.nextCardID + 1000
	s.Cards = append(s.Cards, directory.Card{
		ID:             id,
		UserID:         input.UserID,
		CardHolderName: input.CardHolderName,
		CardNickname:   input.CardNickname,
		CardNo:         input.CardNo,
		CardType:       input.CardType,
		ExpiryMM:       input.ExpiryMM,
		ExpiryYY:       input.ExpiryYY,
	})
	return id, nil
}
