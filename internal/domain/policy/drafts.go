package policy

import (
	"sync"
	"time"
)

const DefaultDraftTTL = 24 * time.Hour

type draftEntry[T any] struct {
	value   T
	touched time.Time
}

// DraftStore keeps unsaved configuration objects in memory. Values are cloned
// on the way in and out so callers never share slices with the store. A
// draft nobody touches for ttl is dropped; expired drafts are swept on Put.
type DraftStore[T any] struct {
	mu     sync.Mutex
	drafts map[string]draftEntry[T]
	clone  func(T) T
	ttl    time.Duration
	now    func() time.Time
}

func NewDraftStore[T any](clone func(T) T, ttl time.Duration) *DraftStore[T] {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftStore[T]{drafts: make(map[string]draftEntry[T]), clone: clone, ttl: ttl, now: time.Now}
}

func (s *DraftStore[T]) Put(id string, draft T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.drafts {
		if s.expired(entry, now) {
			delete(s.drafts, key)
		}
	}
	s.drafts[id] = draftEntry[T]{value: s.clone(draft), touched: now}
}

func (s *DraftStore[T]) Get(id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.lookup(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.clone(entry.value), nil
}

// Update runs fn on a copy of the draft and stores the copy only if fn
// succeeds.
func (s *DraftStore[T]) Update(id string, fn func(*T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	entry, err := s.lookup(id)
	if err != nil {
		return zero, err
	}
	working := s.clone(entry.value)
	if err := fn(&working); err != nil {
		return zero, err
	}
	s.drafts[id] = draftEntry[T]{value: working, touched: s.now()}
	return s.clone(working), nil
}

// Take removes the draft and returns it.
func (s *DraftStore[T]) Take(id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.lookup(id)
	if err != nil {
		var zero T
		return zero, err
	}
	delete(s.drafts, id)
	return entry.value, nil
}

func (s *DraftStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// lookup must be called with s.mu held.
func (s *DraftStore[T]) lookup(id string) (draftEntry[T], error) {
	entry, ok := s.drafts[id]
	if !ok {
		return draftEntry[T]{}, ErrDraftNotFound
	}
	if s.expired(entry, s.now()) {
		delete(s.drafts, id)
		return draftEntry[T]{}, ErrDraftNotFound
	}
	return entry, nil
}

func (s *DraftStore[T]) expired(entry draftEntry[T], now time.Time) bool {
	return now.Sub(entry.touched) >= s.ttl
}

func cloneExpensePolicy(p ExpensePolicy) ExpensePolicy {
	out := p
	out.Teams = make([]TeamPolicy, len(p.Teams))
	for i, team := range p.Teams {
		team.Rules = append(make([]ExpenseRule, 0, len(team.Rules)), team.Rules...)
		team.Suggestions = append(make([]string, 0, len(team.Suggestions)), team.Suggestions...)
		out.Teams[i] = team
	}
	return out
}

func cloneCardApprovalFlow(f CardApprovalFlow) CardApprovalFlow {
	out := f
	out.Levels = append(make([]ApprovalLevel, 0, len(f.Levels)), f.Levels...)
	return out
}

func cloneBenefitsAutomation(b BenefitsAutomation) BenefitsAutomation {
	out := b
	out.Birthday.Categories = cloneFlags(b.Birthday.Categories)
	out.HomeOffice.Categories = cloneFlags(b.HomeOffice.Categories)
	return out
}

func cloneFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
