package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

func newPurgeRecord(req PurgeRequest, deleted int, started, ended time.Time) (model.PurgeRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: generate purge id: %w", err)
	}
	return model.PurgeRecord{
		ID:        id,
		Operator:  req.Operator,
		Reason:    req.Reason,
		Cutoff:    req.Cutoff.UTC().Truncate(time.Microsecond),
		Deleted:   deleted,
		StartedAt: started.Truncate(time.Microsecond),
		EndedAt:   ended.Truncate(time.Microsecond),
	}, nil
}

// Retention purges entries older than a fixed number of days. When Archiver
// is set, expired entries are read from Source and archived first; a failed
// archive aborts the purge. Reason defaults to the retention window.
type Retention struct {
	Purger   Purger
	Source   Store
	Archiver Archiver
	Days     int
	Operator string
	Reason   string
	Logger   *slog.Logger
	Now      func() time.Time
}

// Cutoff returns the instant before which entries are expired.
func (r Retention) Cutoff() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().UTC().AddDate(0, 0, -r.Days)
}

// Run performs one retention pass.
func (r Retention) Run(ctx context.Context) (model.PurgeRecord, error) {
	if r.Days <= 0 {
		return model.PurgeRecord{}, fmt.Errorf("ledger: retention days must be positive, got %d", r.Days)
	}
	cutoff := r.Cutoff()
	reason := r.Reason
	if reason == "" {
		reason = fmt.Sprintf("retention: older than %d days", r.Days)
	}
	if err := (PurgeRequest{Operator: r.Operator, Reason: reason, Cutoff: cutoff}).Validate(); err != nil {
		return model.PurgeRecord{}, err
	}
	if r.Archiver != nil {
		location, err := r.archive(ctx, cutoff)
		if err != nil {
			return model.PurgeRecord{}, err
		}
		if location != "" {
			reason += "; archived to " + location
		}
	}
	rec, err := r.Purger.Purge(ctx, PurgeRequest{
		Operator: r.Operator,
		Reason:   reason,
		Cutoff:   cutoff,
	})
	if err != nil {
		return model.PurgeRecord{}, err
	}
	if r.Logger != nil {
		r.Logger.Info("ledger: retention purge complete",
			"deleted", rec.Deleted, "cutoff", rec.Cutoff, "operator", rec.Operator)
	}
	return rec, nil
}

func (r Retention) archive(ctx context.Context, cutoff time.Time) (string, error) {
	if r.Source == nil {
		return "", fmt.Errorf("ledger: retention archive needs a source store")
	}
	entries, err := Expired(ctx, r.Source, cutoff)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	location, err := r.Archiver.Archive(ctx, cutoff, entries)
	if err != nil {
		return "", fmt.Errorf("ledger: archive before purge: %w", err)
	}
	if r.Logger != nil {
		r.Logger.Info("ledger: archived expired entries", "entries", len(entries), "location", location)
	}
	return location, nil
}

// Loop runs a retention pass every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (r Retention) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && r.Logger != nil {
				r.Logger.Error("ledger: retention purge failed", "error", err)
			}
		}
	}
}
