package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

const cacheTTL = time.Hour

// CachedStore is a read-through cache in front of another store. Entries are
// immutable apart from the one-time outcome, so the only invalidation is on
// AttachOutcome and Purge.
type CachedStore struct {
	Store
	c *ristretto.Cache[string, []byte]
}

// NewCachedStore wraps inner with a cache holding at most maxCostBytes of
// serialized entries.
func NewCachedStore(inner Store, maxCostBytes int64) (*CachedStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/100*10, 1000), // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: inner, c: c}, nil
}

func (s *CachedStore) put(e model.LedgerEntry) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.c.SetWithTTL(e.ID.String(), raw, int64(len(raw)), cacheTTL)
}

func (s *CachedStore) Append(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	stored, err := s.Store.Append(ctx, e)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	s.put(stored)
	return stored, nil
}

func (s *CachedStore) Get(ctx context.Context, id uuid.UUID) (model.LedgerEntry, error) {
	if raw, ok := s.c.Get(id.String()); ok {
		var e model.LedgerEntry
		if err := json.Unmarshal(raw, &e); err == nil {
			return e, nil
		}
		s.c.Del(id.String())
	}
	e, err := s.Store.Get(ctx, id)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	s.put(e)
	return e, nil
}

func (s *CachedStore) AttachOutcome(ctx context.Context, id uuid.UUID, o model.ExecutionOutcome) (model.LedgerEntry, error) {
	s.c.Del(id.String())
	e, err := s.Store.AttachOutcome(ctx, id, o)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	s.put(e)
	return e, nil
}

// Purge forwards to the wrapped store when it supports purging, then drops
// every cached entry.
func (s *CachedStore) Purge(ctx context.Context, req PurgeRequest) (model.PurgeRecord, error) {
	p, ok := s.Store.(Purger)
	if !ok {
		return model.PurgeRecord{}, errors.New("ledger: underlying store does not support purge")
	}
	rec, err := p.Purge(ctx, req)
	s.c.Clear()
	return rec, err
}

func (s *CachedStore) PurgeLog(ctx context.Context) ([]model.PurgeRecord, error) {
	p, ok := s.Store.(Purger)
	if !ok {
		return nil, errors.New("ledger: underlying store does not support purge")
	}
	return p.PurgeLog(ctx)
}

// Wait blocks until pending cache writes are visible.
func (s *CachedStore) Wait() { s.c.Wait() }

func (s *CachedStore) Close() error {
	s.c.Close()
	return s.Store.Close()
}
