package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

type ledgerStore interface {
	Store
	Purger
}

func entry(actor, decisionType string, level model.DecisionLevel, verdict model.Outcome) model.LedgerEntry {
	risk, impact := 0.2, 0.15
	return model.LedgerEntry{
		Proposal: model.ProposedDecision{
			Actor:           actor,
			DecisionType:    decisionType,
			Timestamp:       time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
			EstimatedRisk:   &risk,
			EstimatedImpact: &impact,
			Context: model.DecisionContext{
				AccountsAffected: 2,
				AccountIDs:       []string{"acc-1", "acc-2"},
				Extensions:       map[string]any{"campaign": "spring", "boost": 1.5},
			},
		},
		Level:         level,
		Simulation:    &model.SimulationResult{TotalRiskScore: 0.1, ShouldProceed: true, Blockers: []string{}},
		Analysis:      &model.AnalyzerOutput{Available: true, Confidence: 0.55, Source: "rules"},
		Validation:    model.ValidationResult{Status: model.StatusApproved, Approved: true, RiskScore: 0.12},
		Verdict:       verdict,
		VerdictReason: "approved: risk score 0.12",
		Stages:        []model.StageRecord{{Stage: model.StageReceived, At: time.Date(2026, 3, 1, 12, 0, 0, 1, time.UTC)}},
	}
}

// runStoreContract exercises behaviour every ledger implementation shares.
func runStoreContract(t *testing.T, open func(t *testing.T) ledgerStore) {
	t.Run("AppendAssignsIdentityAndHash", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		stored, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, stored.ID)
		assert.Equal(t, uuid.Version(7), stored.ID.Version())
		assert.False(t, stored.CreatedAt.IsZero())
		assert.Equal(t, stored.CreatedAt, stored.CreatedAt.Truncate(time.Microsecond))

		ok, err := Verify(stored)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.Get(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.ContentHash, got.ContentHash)
		ok, err = Verify(got)
		require.NoError(t, err)
		assert.True(t, ok, "hash must survive the storage round trip")

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("AppendRejectsDuplicateID", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		first, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
		require.NoError(t, err)

		again := entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved)
		again.ID = first.ID
		_, err = s.Append(ctx, again)
		require.ErrorIs(t, err, ErrDuplicateID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), uuid.New())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("QueryFilters", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		for _, e := range []model.LedgerEntry{
			entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved),
			entry("ads", "scale_accounts", model.LevelCritical, model.OutcomeRejected),
			entry("growth", "post_content", model.LevelStandard, model.OutcomeRequiresAdjustment),
		} {
			_, err := s.Append(ctx, e)
			require.NoError(t, err)
		}

		all, err := s.Query(ctx, model.LedgerQuery{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i := 1; i < len(all); i++ {
			assert.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt), "ordered by creation time")
		}

		byActor, err := s.Query(ctx, model.LedgerQuery{Actor: "ads"})
		require.NoError(t, err)
		assert.Len(t, byActor, 2)

		byType, err := s.Query(ctx, model.LedgerQuery{DecisionType: "post_content", Verdict: model.OutcomeApproved})
		require.NoError(t, err)
		assert.Len(t, byType, 1)

		byLevel, err := s.Query(ctx, model.LedgerQuery{Level: model.LevelCritical})
		require.NoError(t, err)
		require.Len(t, byLevel, 1)
		assert.Equal(t, "scale_accounts", byLevel[0].Proposal.DecisionType)

		limited, err := s.Query(ctx, model.LedgerQuery{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		future := time.Now().Add(time.Hour)
		none, err := s.Query(ctx, model.LedgerQuery{From: &future})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("AttachOutcomeOnce", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		stored, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
		require.NoError(t, err)

		updated, err := s.AttachOutcome(ctx, stored.ID, model.ExecutionOutcome{Status: model.ExecutionExecuted, Detail: "posted"})
		require.NoError(t, err)
		require.NotNil(t, updated.Execution)
		assert.Equal(t, model.ExecutionExecuted, updated.Execution.Status)
		assert.False(t, updated.Execution.ReportedAt.IsZero())
		assert.Equal(t, stored.ContentHash, updated.ContentHash)

		ok, err := Verify(updated)
		require.NoError(t, err)
		assert.True(t, ok, "attaching an outcome must not break the content hash")

		_, err = s.AttachOutcome(ctx, stored.ID, model.ExecutionOutcome{Status: model.ExecutionFailed})
		require.ErrorIs(t, err, ErrOutcomeExists)

		_, err = s.AttachOutcome(ctx, uuid.New(), model.ExecutionOutcome{Status: model.ExecutionFailed})
		require.ErrorIs(t, err, ErrNotFound)

		_, err = s.AttachOutcome(ctx, stored.ID, model.ExecutionOutcome{Status: "exploded"})
		require.Error(t, err)
	})

	t.Run("AppendOnly", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		stored, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
		require.NoError(t, err)

		// Mutating the returned value must not reach the stored entry.
		stored.Verdict = model.OutcomeRejected
		stored.Proposal.Context.AccountIDs[0] = "tampered"

		got, err := s.Get(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeApproved, got.Verdict)
		assert.Equal(t, "acc-1", got.Proposal.Context.AccountIDs[0])

		_, err = s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
		require.NoError(t, err)
		again, err := s.Get(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, got, again, "later appends leave earlier entries untouched")
	})

	t.Run("PurgeIsAudited", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		first, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
		require.NoError(t, err)

		_, err = s.Purge(ctx, PurgeRequest{Operator: "ops", Cutoff: time.Now()})
		require.Error(t, err, "a purge without a reason is refused")

		rec, err := s.Purge(ctx, PurgeRequest{Operator: "ops", Reason: "gdpr", Cutoff: first.CreatedAt.Add(time.Microsecond)})
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Deleted)
		assert.Equal(t, "ops", rec.Operator)

		_, err = s.Get(ctx, first.ID)
		require.ErrorIs(t, err, ErrNotFound)

		log, err := s.PurgeLog(ctx)
		require.NoError(t, err)
		require.Len(t, log, 1)
		assert.Equal(t, rec.ID, log[0].ID)
		assert.Equal(t, "gdpr", log[0].Reason)
		assert.Equal(t, 1, log[0].Deleted)
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 20, n)
	})
}
