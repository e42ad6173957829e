package aggressiveness

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// WindowStore holds the recorded actions of the rolling window.
// Add must be idempotent on Action.ID.
type WindowStore interface {
	Add(ctx context.Context, a model.Action) error
	Since(ctx context.Context, t time.Time) ([]model.Action, error)
	Prune(ctx context.Context, before time.Time) error
	Reset(ctx context.Context) error
	Close() error
}

// MemoryStore implements WindowStore in process memory. Actions are kept
// ordered by OccurredAt.
type MemoryStore struct {
	mu      sync.Mutex
	actions []model.Action
	seen    map[string]struct{}
}

// NewMemoryStore creates an empty in-memory window.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// Add inserts a, keeping order. A repeated ID is ignored.
func (m *MemoryStore) Add(_ context.Context, a model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.seen[a.ID]; dup {
		return nil
	}
	m.seen[a.ID] = struct{}{}

	i := sort.Search(len(m.actions), func(i int) bool {
		return m.actions[i].OccurredAt.After(a.OccurredAt)
	})
	m.actions = append(m.actions, model.Action{})
	copy(m.actions[i+1:], m.actions[i:])
	m.actions[i] = a
	return nil
}

// Since returns a copy of every action at or after t.
func (m *MemoryStore) Since(_ context.Context, t time.Time) ([]model.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.actions), func(i int) bool {
		return !m.actions[i].OccurredAt.Before(t)
	})
	out := make([]model.Action, len(m.actions)-i)
	copy(out, m.actions[i:])
	return out, nil
}

// Prune drops actions strictly before the cutoff.
func (m *MemoryStore) Prune(_ context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.actions), func(i int) bool {
		return !m.actions[i].OccurredAt.Before(before)
	})
	for _, a := range m.actions[:i] {
		delete(m.seen, a.ID)
	}
	m.actions = append([]model.Action(nil), m.actions[i:]...)
	return nil
}

// Reset empties the window.
func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = nil
	m.seen = make(map[string]struct{})
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// actionID derives a stable identifier for actions recorded without one, so
// replays of the same action stay idempotent.
func actionID(a model.Action) string {
	return fmt.Sprintf("%s|%s|%d", a.Type, a.AccountID, a.OccurredAt.UnixNano())
}
