package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// isRetriable treats every failure as transient except cancellation and the
// ledger's own sentinel errors, which will not change on a second attempt.
func isRetriable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOutcomeExists), errors.Is(err, ErrDuplicateID):
		return false
	default:
		return true
	}
}

// WithRetry executes fn, retrying up to maxRetries times on transient errors.
// Retries use jittered exponential backoff starting at baseDelay.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := range maxRetries + 1 {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		delay := baseDelay
		if baseDelay > 0 {
			delay += time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		baseDelay *= 2
	}
	return err
}

// AppendWithRetry appends e under WithRetry. The id is fixed before the first
// attempt, so an attempt that committed but reported an error is found on the
// next one instead of being written twice.
func AppendWithRetry(ctx context.Context, s Store, e model.LedgerEntry, maxRetries int, baseDelay time.Duration) (model.LedgerEntry, error) {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return model.LedgerEntry{}, fmt.Errorf("ledger: generate id: %w", err)
		}
		e.ID = id
	}
	var stored model.LedgerEntry
	attempts := 0
	err := WithRetry(ctx, maxRetries, baseDelay, func() error {
		attempts++
		var err error
		stored, err = s.Append(ctx, e)
		if errors.Is(err, ErrDuplicateID) && attempts > 1 {
			stored, err = committedEarlier(ctx, s, e)
		}
		return err
	})
	return stored, err
}

// committedEarlier returns the stored entry with e's id if it holds the same
// content as e.
func committedEarlier(ctx context.Context, s Store, e model.LedgerEntry) (model.LedgerEntry, error) {
	existing, err := s.Get(ctx, e.ID)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: read back %s: %w", e.ID, err)
	}
	want, err := prepare(e, existing.CreatedAt)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	if want.ContentHash != existing.ContentHash {
		return model.LedgerEntry{}, fmt.Errorf("%w %s with different content", ErrDuplicateID, e.ID)
	}
	return existing, nil
}
