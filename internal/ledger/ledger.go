// Package ledger is the append-only audit store for governed decisions.
//
// Every STANDARD+ proposal produces exactly one entry. Entries are written
// once, may later gain a single execution outcome, and are only ever removed
// by the privileged retention purge, which leaves its own audit record.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/integrity"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

var (
	// ErrNotFound is returned when a requested entry does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrOutcomeExists is returned when an execution outcome is attached to
	// an entry that already has one.
	ErrOutcomeExists = errors.New("ledger: execution outcome already recorded")

	// ErrDuplicateID is returned when an entry with the same id is already
	// stored.
	ErrDuplicateID = errors.New("ledger: duplicate entry id")
)

// Store is the append-only ledger.
type Store interface {
	// Append assigns the id, creation time and content hash, then writes the
	// entry atomically. The stored entry is returned.
	Append(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error)
	Get(ctx context.Context, id uuid.UUID) (model.LedgerEntry, error)
	// Query returns matching entries ordered by creation time.
	Query(ctx context.Context, q model.LedgerQuery) ([]model.LedgerEntry, error)
	// AttachOutcome records what happened after the verdict. It succeeds once
	// per entry.
	AttachOutcome(ctx context.Context, id uuid.UUID, o model.ExecutionOutcome) (model.LedgerEntry, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// PurgeRequest asks for every entry created before Cutoff to be removed.
type PurgeRequest struct {
	Operator string
	Reason   string
	Cutoff   time.Time
}

// Validate checks that the purge is attributable and bounded.
func (r PurgeRequest) Validate() error {
	if r.Operator == "" {
		return errors.New("ledger: purge requires an operator")
	}
	if r.Reason == "" {
		return errors.New("ledger: purge requires a reason")
	}
	if r.Cutoff.IsZero() {
		return errors.New("ledger: purge requires a cutoff")
	}
	return nil
}

// Purger is the privileged retention surface. It is deliberately separate
// from Store so ordinary callers cannot reach it.
type Purger interface {
	Purge(ctx context.Context, req PurgeRequest) (model.PurgeRecord, error)
	PurgeLog(ctx context.Context) ([]model.PurgeRecord, error)
}

// prepare fills the fields a store owns. CreatedAt is truncated to
// microseconds so the hash survives a Postgres round trip.
func prepare(e model.LedgerEntry, now time.Time) (model.LedgerEntry, error) {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return model.LedgerEntry{}, fmt.Errorf("ledger: generate id: %w", err)
		}
		e.ID = id
	}
	e.CreatedAt = now.UTC().Truncate(time.Microsecond)
	e.Execution = nil
	hash, err := integrity.ComputeEntryHash(e)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: %w", err)
	}
	e.ContentHash = hash
	return e, nil
}

// Verify reports whether the entry still matches its content hash.
func Verify(e model.LedgerEntry) (bool, error) {
	return integrity.VerifyEntryHash(e)
}

// Root is the Merkle root over the content hashes of entries, taken in
// lexical order so it does not depend on query order.
func Root(entries []model.LedgerEntry) string {
	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		hashes = append(hashes, e.ContentHash)
	}
	slices.Sort(hashes)
	return integrity.BuildMerkleRoot(hashes)
}

// prepareOutcome validates o and stamps its report time.
func prepareOutcome(o model.ExecutionOutcome, now time.Time) (model.ExecutionOutcome, error) {
	if err := o.Validate(); err != nil {
		return model.ExecutionOutcome{}, fmt.Errorf("ledger: %w", err)
	}
	if o.ReportedAt.IsZero() {
		o.ReportedAt = now
	}
	o.ReportedAt = o.ReportedAt.UTC().Truncate(time.Microsecond)
	return o, nil
}

// encodeBody serializes the immutable part of an entry.
func encodeBody(e model.LedgerEntry) ([]byte, error) {
	e.Execution = nil
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode entry: %w", err)
	}
	return raw, nil
}

// decodeEntry rebuilds an entry from its stored body and optional outcome.
func decodeEntry(body, execution []byte) (model.LedgerEntry, error) {
	var e model.LedgerEntry
	if err := json.Unmarshal(body, &e); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: decode entry: %w", err)
	}
	if len(execution) > 0 {
		var o model.ExecutionOutcome
		if err := json.Unmarshal(execution, &o); err != nil {
			return model.LedgerEntry{}, fmt.Errorf("ledger: decode execution: %w", err)
		}
		e.Execution = &o
	}
	return e, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// MaxQueryLimit caps a single Query.
const MaxQueryLimit = 10000
