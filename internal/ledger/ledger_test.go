package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ledgerStore { return NewMemoryStore() })
}

func TestSQLStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ledgerStore {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestCachedStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ledgerStore {
		s, err := NewCachedStore(NewMemoryStore(), 1<<20)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLStoreRejectsDirectRewrites(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	stored, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `UPDATE ledger_entries SET verdict = 'REJECTED' WHERE id = ?`, stored.ID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, stored.ID.String())
	require.Error(t, err)

	got, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApproved, got.Verdict)
}

func TestSQLStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	stored, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	ok, err := Verify(got)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := NewMemoryStore()
	stored, err := s.Append(context.Background(), entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
	require.NoError(t, err)

	stored.Validation.RiskScore = 0.01
	ok, err := Verify(stored)
	require.NoError(t, err)
	assert.False(t, ok)
}

type countingStore struct {
	*MemoryStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, id uuid.UUID) (model.LedgerEntry, error) {
	c.gets++
	return c.MemoryStore.Get(ctx, id)
}

func TestCachedStoreServesRepeatedReads(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	s, err := NewCachedStore(inner, 1<<20)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	stored, err := s.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
	require.NoError(t, err)
	s.Wait()

	for range 3 {
		got, err := s.Get(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.ContentHash, got.ContentHash)
	}
	assert.Zero(t, inner.gets)

	updated, err := s.AttachOutcome(ctx, stored.ID, model.ExecutionOutcome{Status: model.ExecutionSkipped})
	require.NoError(t, err)
	s.Wait()
	got, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Execution)
	assert.Equal(t, updated.Execution.Status, got.Execution.Status)
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := WithRetry(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetry(ctx, 2, time.Millisecond, func() error {
		calls++
		return errors.New("still down")
	})
	require.EqualError(t, err, "still down")
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetry(ctx, 5, time.Millisecond, func() error {
		calls++
		return ErrOutcomeExists
	})
	require.ErrorIs(t, err, ErrOutcomeExists)
	assert.Equal(t, 1, calls, "sentinel errors are not retried")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	calls = 0
	err = WithRetry(cancelled, 5, time.Second, func() error {
		calls++
		return errors.New("down")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// lostAckStore commits the first append and then reports a failure, as a
// database does when the commit acknowledgement is lost.
type lostAckStore struct {
	*MemoryStore
	appends int
}

func (s *lostAckStore) Append(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	s.appends++
	stored, err := s.MemoryStore.Append(ctx, e)
	if err == nil && s.appends == 1 {
		return model.LedgerEntry{}, errors.New("connection reset after commit")
	}
	return stored, err
}

func TestAppendWithRetryWritesOnce(t *testing.T) {
	ctx := context.Background()
	s := &lostAckStore{MemoryStore: NewMemoryStore()}

	stored, err := AppendWithRetry(ctx, s, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved), 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, s.appends)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ContentHash, stored.ContentHash)
	ok, err := Verify(got)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppendWithRetryRefusesForeignDuplicate(t *testing.T) {
	ctx := context.Background()
	s := &lostAckStore{MemoryStore: NewMemoryStore()}
	first := entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved)
	first.ID = uuid.Must(uuid.NewV7())
	_, err := s.MemoryStore.Append(ctx, first)
	require.NoError(t, err)

	other := entry("growth", "scale_accounts", model.LevelCritical, model.OutcomeRejected)
	other.ID = first.ID
	s.appends = 1
	_, err = AppendWithRetry(ctx, s, other, 3, time.Millisecond)
	require.ErrorIs(t, err, ErrDuplicateID)
	assert.Contains(t, err.Error(), "different content")
}

func TestRetention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	old := NewMemoryStore().WithClock(func() time.Time { return now.AddDate(0, 0, -100) })
	stored, err := old.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
	require.NoError(t, err)
	old.now = func() time.Time { return now.AddDate(0, 0, -10) }
	recent, err := old.Append(ctx, entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved))
	require.NoError(t, err)
	old.now = func() time.Time { return now }

	r := Retention{Purger: old, Days: 90, Operator: "retention-job", Now: func() time.Time { return now }}
	assert.Equal(t, now.AddDate(0, 0, -90), r.Cutoff())

	rec, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Deleted)
	assert.Contains(t, rec.Reason, "90 days")

	_, err = old.Get(ctx, stored.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = old.Get(ctx, recent.ID)
	require.NoError(t, err)

	_, err = Retention{Purger: old, Operator: "x"}.Run(ctx)
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	first := entry("ads", "post_content", model.LevelStandard, model.OutcomeApproved)
	first.Proposal.Chosen = "publish carousel"
	first.Proposal.Inputs = []string{"reach_report", "calendar"}
	first.Proposal.AlternativesConsidered = []string{"publish reel"}
	first.Simulation.IdentityRisk = 0.05
	first.Simulation.Blockers = []string{"a", "b"}
	first.Analysis.Observations = []string{"steady reach"}
	first.Analysis.RiskSignals = []model.RiskSignal{{Name: "shadowban", Severity: model.SeverityLow}}
	first.Validation.RulesApplied = []string{"BUDGET_DAILY_EXCEEDED", "SHADOWBAN"}
	a, err := s.Append(ctx, first)
	require.NoError(t, err)
	b := entry("ads", "scale_accounts", model.LevelCritical, model.OutcomeRejected)
	b.Simulation = nil
	b.Analysis = nil
	b.Validation.ViolatedRules = []string{"SHADOWBAN", "ACCOUNT_SAFETY"}
	b.VerdictReason = "rejected, \"quoted\""
	stored, err := s.Append(ctx, b)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []model.LedgerEntry{a, stored}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{
		"id", "created_at", "actor", "decision_type", "level", "verdict", "verdict_reason",
		"validation_status", "risk_score", "estimated_risk", "estimated_impact",
		"simulation_total_risk", "simulation_should_proceed", "aggressiveness_level", "aggressiveness_score",
		"analysis_available", "analysis_confidence", "violated_rules", "execution_status", "content_hash",
		"proposal_timestamp", "chosen", "proposal_reasoning", "proposal_confidence", "inputs", "alternatives_considered",
		"simulation_identity_risk", "simulation_pattern_repetition_score", "simulation_shadowban_probability",
		"simulation_correlation_risk", "simulation_blockers",
		"analysis_observations", "analysis_detected_patterns", "analysis_strategic_suggestions",
		"analysis_risk_signals", "analysis_recommended_adjustments", "analysis_reasoning",
		"validation_approved", "validation_reason", "required_adjustments", "rules_applied",
	}, records[0])
	for _, r := range records {
		assert.Len(t, r, len(CSVColumns))
	}

	col := func(name string) int {
		for i, c := range CSVColumns {
			if c == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	assert.Equal(t, a.ID.String(), records[1][col("id")])
	assert.Equal(t, "0.12", records[1][col("risk_score")])
	assert.Equal(t, "true", records[1][col("simulation_should_proceed")])
	assert.Equal(t, "", records[2][col("simulation_total_risk")])
	assert.Equal(t, "SHADOWBAN;ACCOUNT_SAFETY", records[2][col("violated_rules")])
	assert.Equal(t, "rejected, \"quoted\"", records[2][col("verdict_reason")])
	assert.Equal(t, stored.ContentHash, records[2][col("content_hash")])

	assert.Equal(t, "2026-03-01T12:00:00.123456789Z", records[1][col("proposal_timestamp")])
	assert.Equal(t, "publish carousel", records[1][col("chosen")])
	assert.Equal(t, "reach_report;calendar", records[1][col("inputs")])
	assert.Equal(t, "publish reel", records[1][col("alternatives_considered")])
	assert.Equal(t, "0.05", records[1][col("simulation_identity_risk")])
	assert.Equal(t, "a;b", records[1][col("simulation_blockers")])
	assert.Equal(t, "steady reach", records[1][col("analysis_observations")])
	assert.Equal(t, "shadowban:"+model.SeverityLow, records[1][col("analysis_risk_signals")])
	assert.Equal(t, "true", records[1][col("validation_approved")])
	assert.Equal(t, "BUDGET_DAILY_EXCEEDED;SHADOWBAN", records[1][col("rules_applied")])
	assert.Equal(t, "", records[2][col("analysis_reasoning")])
	assert.Equal(t, "", records[2][col("simulation_blockers")])
}
