// Package jobcard keeps the node-local registry of job cards, the execution
// tokens for actionable tasks. Two-level locking discipline: a coarse lock
// guards structural add/remove/iteration, while each card's own monitor
// guards its field mutations.
package jobcard

import (
    "sync"

    "go.uber.org/zap"

    "petasos/pkg/task"
)

// Set holds job cards keyed by actionable task id.
type Set struct {
    mu    sync.Mutex
    cards map[string]*task.JobCard
}

func NewSet() *Set { return &Set{cards: make(map[string]*task.JobCard)} }

// Add registers a card. Returns false when a card for the task already exists
// (the existing token stays authoritative).
func (s *Set) Add(card *task.JobCard) bool {
    if card == nil || card.ActionableTaskID.IsZero() { return false }
    s.mu.Lock(); defer s.mu.Unlock()
    if _, exists := s.cards[card.ActionableTaskID.Local]; exists {
        return false
    }
    s.cards[card.ActionableTaskID.Local] = card
    zap.L().Debug("job card added", zap.String("task", card.ActionableTaskID.Local))
    return true
}

// Remove drops the card for a task id.
func (s *Set) Remove(id string) {
    s.mu.Lock(); delete(s.cards, id); s.mu.Unlock()
    zap.L().Debug("job card removed", zap.String("task", id))
}

// Get returns the shared card instance for a task id.
func (s *Set) Get(id string) (*task.JobCard, bool) {
    s.mu.Lock(); defer s.mu.Unlock()
    c, ok := s.cards[id]
    return c, ok
}

// All returns a snapshot slice of the current cards. The slice is safe to
// iterate without the structural lock; card fields still require each card's
// monitor.
func (s *Set) All() []*task.JobCard {
    s.mu.Lock(); defer s.mu.Unlock()
    out := make([]*task.JobCard, 0, len(s.cards))
    for _, c := range s.cards { out = append(out, c) }
    return out
}

// Count returns the number of cards held.
func (s *Set) Count() int {
    s.mu.Lock(); defer s.mu.Unlock()
    return len(s.cards)
}
