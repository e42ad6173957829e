package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

type memoryRow struct {
	id        uuid.UUID
	createdAt time.Time
	body      []byte
	execution []byte
}

// MemoryStore keeps the ledger in process. Entries are held serialized so
// callers can never alias stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   []*memoryRow
	byID   map[uuid.UUID]*memoryRow
	purges []model.PurgeRecord
	now    func() time.Time
}

// NewMemoryStore returns an empty in-process ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*memoryRow), now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Append(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.LedgerEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := prepare(e, s.now())
	if err != nil {
		return model.LedgerEntry{}, err
	}
	if _, dup := s.byID[e.ID]; dup {
		return model.LedgerEntry{}, fmt.Errorf("%w %s", ErrDuplicateID, e.ID)
	}
	body, err := encodeBody(e)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	row := &memoryRow{id: e.ID, createdAt: e.CreatedAt, body: body}
	s.byID[e.ID] = row

	// Keep rows ordered by (created_at, id); appends are almost always last.
	i := sort.Search(len(s.rows), func(i int) bool { return rowAfter(s.rows[i], row) })
	s.rows = append(s.rows, nil)
	copy(s.rows[i+1:], s.rows[i:])
	s.rows[i] = row

	return decodeEntry(body, nil)
}

func rowAfter(a, b *memoryRow) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.After(b.createdAt)
	}
	return a.id.String() > b.id.String()
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.LedgerEntry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.byID[id]
	if !ok {
		return model.LedgerEntry{}, ErrNotFound
	}
	return decodeEntry(row.body, row.execution)
}

func (s *MemoryStore) Query(ctx context.Context, q model.LedgerQuery) ([]model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := clampLimit(q.Limit)
	out := make([]model.LedgerEntry, 0)
	for _, row := range s.rows {
		e, err := decodeEntry(row.body, row.execution)
		if err != nil {
			return nil, err
		}
		if !q.Matches(e) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) AttachOutcome(ctx context.Context, id uuid.UUID, o model.ExecutionOutcome) (model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.LedgerEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return model.LedgerEntry{}, ErrNotFound
	}
	if row.execution != nil {
		return model.LedgerEntry{}, ErrOutcomeExists
	}
	o, err := prepareOutcome(o, s.now())
	if err != nil {
		return model.LedgerEntry{}, err
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: encode execution: %w", err)
	}
	row.execution = raw
	return decodeEntry(row.body, row.execution)
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

func (s *MemoryStore) Purge(ctx context.Context, req PurgeRequest) (model.PurgeRecord, error) {
	if err := req.Validate(); err != nil {
		return model.PurgeRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.PurgeRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now().UTC()
	kept := s.rows[:0]
	deleted := 0
	for _, row := range s.rows {
		if row.createdAt.Before(req.Cutoff) {
			delete(s.byID, row.id)
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	for i := len(kept); i < len(s.rows); i++ {
		s.rows[i] = nil
	}
	s.rows = kept

	rec, err := newPurgeRecord(req, deleted, started, s.now().UTC())
	if err != nil {
		return model.PurgeRecord{}, err
	}
	s.purges = append(s.purges, rec)
	return rec, nil
}

func (s *MemoryStore) PurgeLog(ctx context.Context) ([]model.PurgeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PurgeRecord, len(s.purges))
	copy(out, s.purges)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
