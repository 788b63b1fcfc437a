package service

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// timetableProposal is a generated class timetable awaiting Save.
type timetableProposal struct {
	ID            string
	ClassID       string
	Strategy      timetable.Strategy
	Seed          *int64
	Deterministic bool
	Assignments   []timetable.Assignment
	Quotas        map[string]int
	Overflow      map[string]int
	Unfilled      int
	Conflicts     []dto.ConflictView
	Warnings      []dto.TimetableWarning
	RequestedAt   time.Time
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]timetableProposal
}

func newProposalStore(ttl time.Duration, now func() time.Time) *proposalStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &proposalStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]timetableProposal),
	}
}

// Save stores the proposal and evicts expired ones.
func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for id, item := range s.items {
		if item.RequestedAt.Before(cutoff) {
			delete(s.items, id)
		}
	}
	s.items[proposal.ID] = proposal
}

// Take removes the proposal and returns it if it has not expired. Only one
// caller can take a given id.
func (s *proposalStore) Take(id string) (timetableProposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok {
		return timetableProposal{}, false
	}
	delete(s.items, id)
	if s.now().Sub(proposal.RequestedAt) > s.ttl {
		return timetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) expiry(p timetableProposal) time.Time {
	return p.RequestedAt.Add(s.ttl)
}
