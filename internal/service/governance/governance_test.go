package governance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/aggressiveness"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/alert"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/simulation"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/testutil"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/validator"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func f(v float64) *float64 { return &v }

type recordingSink struct {
	mu  sync.Mutex
	got []alert.Alert
}

func (r *recordingSink) Raise(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
	return nil
}

func (r *recordingSink) kinds() []alert.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alert.Kind, len(r.got))
	for i, a := range r.got {
		out[i] = a.Kind
	}
	return out
}

type harness struct {
	svc     *Service
	ledger  *ledger.MemoryStore
	monitor *aggressiveness.Monitor
	alerts  *recordingSink
}

// newHarness builds a Service over in-memory stores and the real engines.
// mutate may adjust the policy and dependencies before construction.
func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		ledger: ledger.NewMemoryStore().WithClock(clock),
		alerts: &recordingSink{},
	}
	policy := config.DefaultPolicy()
	policy.Ledger.RetryBaseDelay = time.Millisecond

	var svc *Service
	h.monitor = aggressiveness.NewMonitor(policy.Aggressiveness,
		aggressiveness.WithClock(clock),
		aggressiveness.WithLogger(testutil.TestLogger()),
		aggressiveness.WithDangerHook(func(s model.AggressivenessScore) {
			if svc != nil {
				svc.OnDanger(s)
			}
		}),
	)
	d := Deps{
		Policy:    policy,
		Simulator: simulation.New(policy.Simulation),
		Monitor:   h.monitor,
		Ledger:    h.ledger,
		Alerts:    h.alerts,
		Logger:    testutil.TestLogger(),
		Now:       clock,
	}
	if mutate != nil {
		mutate(&d)
	}
	var err error
	svc, err = New(d)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) count(t *testing.T) int {
	t.Helper()
	n, err := h.ledger.Count(context.Background())
	require.NoError(t, err)
	return n
}

func stagesOf(v model.Verdict) []model.Stage {
	out := make([]model.Stage, len(v.Stages))
	for i, s := range v.Stages {
		out[i] = s.Stage
	}
	return out
}

func postContent() model.ProposedDecision {
	return model.ProposedDecision{
		Actor:           "content-engine",
		DecisionType:    "post_content",
		Chosen:          "publish carousel",
		EstimatedRisk:   f(0.2),
		EstimatedImpact: f(0.15),
	}
}

func irregularSignals() *model.RiskSignals {
	return &model.RiskSignals{ActionIntervalsSeconds: []float64{30, 300, 45, 900, 120}}
}

type stubAnalyzer struct {
	out model.AnalyzerOutput
}

func (s stubAnalyzer) Analyze(context.Context, model.Snapshot) (model.AnalyzerOutput, error) {
	return s.out, nil
}

type slowAnalyzer struct{}

func (slowAnalyzer) Analyze(ctx context.Context, _ model.Snapshot) (model.AnalyzerOutput, error) {
	<-ctx.Done()
	return model.AnalyzerOutput{}, ctx.Err()
}

type failingSimulator struct{}

func (failingSimulator) Simulate(context.Context, model.ProposedDecision) (model.SimulationResult, error) {
	return model.SimulationResult{}, errors.New("signal backend down")
}

type failingValidator struct{}

func (failingValidator) Validate(context.Context, *model.Snapshot, *model.AnalyzerOutput) (model.ValidationResult, error) {
	return model.ValidationResult{}, errors.New("rule engine crashed")
}

type failingLedger struct {
	ledger.Store
	mu    sync.Mutex
	calls int
}

func (f *failingLedger) Append(context.Context, model.LedgerEntry) (model.LedgerEntry, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return model.LedgerEntry{}, errors.New("disk full")
}

func TestLowRiskContentIsApproved(t *testing.T) {
	h := newHarness(t, nil)

	v := h.svc.Evaluate(context.Background(), postContent())

	assert.Equal(t, model.LevelStandard, v.Level)
	assert.Equal(t, model.OutcomeApproved, v.Outcome)
	require.NotNil(t, v.Validation)
	assert.InDelta(t, 0.12, v.Validation.RiskScore, 1e-9)
	require.NotNil(t, v.DecisionID)
	assert.Equal(t, 1, h.count(t))
	assert.Equal(t, []model.Stage{
		model.StageReceived, model.StageClassified, model.StageSummarized, model.StageAnalyzed,
		model.StageValidated, model.StageLedgered, model.StageExplained, model.StageReturned,
	}, stagesOf(v))
	assert.Contains(t, v.Explanation, "APPROVED")

	stored, err := h.ledger.Get(context.Background(), *v.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApproved, stored.Verdict)
	ok, err := ledger.Verify(stored)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScaleUpUnderShadowbanIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	p := model.ProposedDecision{
		Actor:           "growth-engine",
		DecisionType:    "scale_accounts",
		EstimatedRisk:   f(0.6),
		EstimatedImpact: f(0.5),
		Context: model.DecisionContext{
			AccountsAffected: 15,
			Signals: &model.RiskSignals{
				ActionIntervalsSeconds: []float64{30, 300, 45, 900, 120},
				ReachTrend:             -0.3,
			},
		},
	}

	v := h.svc.Evaluate(context.Background(), p)

	assert.Equal(t, model.LevelCritical, v.Level)
	assert.Equal(t, model.OutcomeRejected, v.Outcome)
	assert.Contains(t, v.ViolatedRules, validator.RuleShadowban)
	require.NotNil(t, v.Simulation)
	assert.InDelta(t, 0.15, v.Simulation.ShadowbanProbability, 1e-9)
	assert.Contains(t, stagesOf(v), model.StageSimulated)
	assert.Contains(t, stagesOf(v), model.StageAggressivenessChecked)
	assert.Equal(t, 1, h.count(t))
}

func TestDailyBudgetOverrunIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	p := postContent()
	p.Context.EstimatedCost = 0.10
	p.Context.Fleet = &model.FleetSignals{
		Costs: model.CostSignals{DailySpend: 9.95, DailyBudgetLimit: 10},
	}

	v := h.svc.Evaluate(context.Background(), p)

	assert.Equal(t, model.OutcomeRejected, v.Outcome)
	assert.Contains(t, v.ViolatedRules, validator.RuleBudgetDaily)
	assert.Equal(t, 1, h.count(t))
}

func TestOverconfidentAnalysisRequiresAdjustment(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Analyzer = stubAnalyzer{out: model.AnalyzerOutput{
			Available:  true,
			Confidence: 0.99,
			Reasoning:  "certain",
			Source:     "stub",
		}}
	})
	p := model.ProposedDecision{
		Actor:           "budget-engine",
		DecisionType:    "shift_budget",
		EstimatedRisk:   f(0.1),
		EstimatedImpact: f(0.1),
		Context:         model.DecisionContext{Signals: irregularSignals()},
	}

	v := h.svc.Evaluate(context.Background(), p)

	assert.Equal(t, model.LevelCritical, v.Level)
	assert.Equal(t, model.OutcomeRequiresAdjustment, v.Outcome)
	assert.Equal(t, []string{validator.RuleConfidenceOutOfRange, validator.RuleCognitiveCoherence}, v.ViolatedRules)
	assert.NotEmpty(t, v.RequiredAdjustments)
	require.NotNil(t, v.Simulation)
	assert.True(t, v.Simulation.ShouldProceed)
}

func TestMicroDecisionIsNotLedgered(t *testing.T) {
	h := newHarness(t, nil)
	p := model.ProposedDecision{
		Actor:           "reply-engine",
		DecisionType:    "like_comment",
		EstimatedRisk:   f(0.01),
		EstimatedImpact: f(0.02),
	}

	v := h.svc.Evaluate(context.Background(), p)

	assert.Equal(t, model.LevelMicro, v.Level)
	assert.Equal(t, model.OutcomeApproved, v.Outcome)
	assert.Nil(t, v.DecisionID)
	assert.Zero(t, h.count(t))
	assert.Equal(t, []model.Stage{model.StageReceived, model.StageClassified, model.StageReturned}, stagesOf(v))
}

func TestOnVerdictSeesEveryVerdict(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []model.Outcome
	)
	h := newHarness(t, func(d *Deps) {
		d.OnVerdict = func(p model.ProposedDecision, v model.Verdict) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, v.Outcome)
		}
	})

	h.svc.Evaluate(context.Background(), postContent())
	bad := postContent()
	bad.EstimatedRisk = nil
	h.svc.Evaluate(context.Background(), bad)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.Outcome{model.OutcomeApproved, model.OutcomeRejected}, seen)
}

func TestMalformedProposalIsRejectedWithoutEntry(t *testing.T) {
	h := newHarness(t, nil)
	p := postContent()
	p.EstimatedRisk = f(1.5)

	v := h.svc.Evaluate(context.Background(), p)

	assert.Equal(t, model.OutcomeRejected, v.Outcome)
	assert.Nil(t, v.DecisionID)
	assert.Contains(t, v.Reason, "malformed proposal")
	assert.Zero(t, h.count(t))
}

func TestDangerCooldownBlocksCritical(t *testing.T) {
	h := newHarness(t, nil)
	for i := range 300 {
		h.svc.RecordAction(context.Background(), model.Action{
			ID:         fmt.Sprintf("burst-%d", i),
			Type:       "follow",
			AccountID:  "acct-1",
			OccurredAt: testNow.Add(-time.Duration(i) * time.Second),
		})
	}
	p := model.ProposedDecision{
		Actor:           "growth-engine",
		DecisionType:    "scale_accounts",
		EstimatedRisk:   f(0.1),
		EstimatedImpact: f(0.1),
		Context:         model.DecisionContext{AccountsAffected: 2, Signals: irregularSignals()},
	}

	v := h.svc.Evaluate(context.Background(), p)

	assert.Equal(t, model.OutcomeRejected, v.Outcome)
	assert.Contains(t, v.ViolatedRules, validator.RuleAggressivenessCeiling)
	assert.Contains(t, h.alerts.kinds(), alert.KindAggressivenessDanger)

	stored, err := h.ledger.Get(context.Background(), *v.DecisionID)
	require.NoError(t, err)
	require.NotNil(t, stored.Aggressiveness)
	assert.True(t, stored.Aggressiveness.ShouldBlockCritical)
	assert.Equal(t, model.AggressivenessDanger, stored.Aggressiveness.Level)
}

func TestCancelledEvaluationIsStillLedgered(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := h.svc.Evaluate(ctx, postContent())

	assert.Equal(t, model.OutcomeCancelled, v.Outcome)
	require.NotNil(t, v.DecisionID)
	stored, err := h.ledger.Get(context.Background(), *v.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCancelled, stored.Verdict)
	assert.NotContains(t, stagesOf(v), model.StageValidated)
}

func TestLedgerFailureRejectsAndAlerts(t *testing.T) {
	store := &failingLedger{Store: ledger.NewMemoryStore()}
	h := newHarness(t, func(d *Deps) { d.Ledger = store })

	v := h.svc.Evaluate(context.Background(), postContent())

	assert.Equal(t, model.OutcomeRejected, v.Outcome)
	assert.Nil(t, v.DecisionID)
	assert.Contains(t, v.Reason, "ledger unavailable")
	assert.Equal(t, config.DefaultPolicy().Ledger.Retries+1, store.calls)
	assert.Equal(t, []alert.Kind{alert.KindLedgerUnavailable}, h.alerts.kinds())

	last := v.Stages[len(v.Stages)-2]
	assert.Equal(t, model.StageLedgered, last.Stage)
	assert.True(t, last.Failed)
}

// lostAckLedger commits the first append and then reports a failure.
type lostAckLedger struct {
	*ledger.MemoryStore
	mu      sync.Mutex
	appends int
}

func (l *lostAckLedger) Append(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	l.mu.Lock()
	l.appends++
	first := l.appends == 1
	l.mu.Unlock()
	stored, err := l.MemoryStore.Append(ctx, e)
	if err == nil && first {
		return model.LedgerEntry{}, errors.New("connection reset after commit")
	}
	return stored, err
}

func TestLostCommitAckWritesOneEntry(t *testing.T) {
	store := &lostAckLedger{MemoryStore: ledger.NewMemoryStore().WithClock(clock)}
	h := newHarness(t, func(d *Deps) { d.Ledger = store })

	v := h.svc.Evaluate(context.Background(), postContent())

	assert.Equal(t, model.OutcomeApproved, v.Outcome)
	require.NotNil(t, v.DecisionID)
	assert.Equal(t, 2, store.appends)
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = store.Get(context.Background(), *v.DecisionID)
	require.NoError(t, err)
	assert.Empty(t, h.alerts.kinds())
}

type failingSignals struct{}

func (failingSignals) Signals(context.Context, model.ProposedDecision) (model.FleetSignals, error) {
	return model.FleetSignals{}, errors.New("metrics api down")
}

func TestSignalFailureCountsAsStageFailure(t *testing.T) {
	tests := []struct {
		strategy config.FallbackStrategy
		want     model.Outcome
	}{
		{config.FallbackConservative, model.OutcomeRejected},
		{config.FallbackRejectAll, model.OutcomeRejected},
		{config.FallbackPermissive, model.OutcomeApproved},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			h := newHarness(t, func(d *Deps) {
				d.Policy.FallbackStrategy = tt.strategy
				d.Signals = failingSignals{}
			})

			v := h.svc.Evaluate(context.Background(), postContent())

			assert.Equal(t, tt.want, v.Outcome)
			assert.NotEmpty(t, v.Warnings)
			if tt.want == model.OutcomeRejected {
				assert.Contains(t, v.Reason, "SIGNALS")
			}
		})
	}
}

func TestAnalyzerTimeoutFallsBackByStrategy(t *testing.T) {
	tests := []struct {
		strategy config.FallbackStrategy
		want     model.Outcome
	}{
		{config.FallbackConservative, model.OutcomeRejected},
		{config.FallbackPermissive, model.OutcomeApproved},
		{config.FallbackRejectAll, model.OutcomeRejected},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			h := newHarness(t, func(d *Deps) {
				d.Policy.FallbackStrategy = tt.strategy
				d.Policy.Timeouts.Analyzer = 20 * time.Millisecond
				d.Analyzer = slowAnalyzer{}
			})

			v := h.svc.Evaluate(context.Background(), postContent())

			assert.Equal(t, tt.want, v.Outcome)
			assert.Equal(t, []string{validator.RuleAnalysisUnavailable}, v.ViolatedRules)
			require.NotNil(t, v.DecisionID)
			stored, err := h.ledger.Get(context.Background(), *v.DecisionID)
			require.NoError(t, err)
			require.NotNil(t, stored.Analysis)
			assert.False(t, stored.Analysis.Available)
			if tt.strategy == config.FallbackPermissive {
				assert.NotEmpty(t, v.Warnings)
			}
		})
	}
}

func TestPermissiveNeverApprovesCriticalWithoutAnalysis(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Policy.FallbackStrategy = config.FallbackPermissive
		d.Policy.Timeouts.Analyzer = 20 * time.Millisecond
		d.Analyzer = slowAnalyzer{}
	})
	p := model.ProposedDecision{
		Actor:           "budget-engine",
		DecisionType:    "shift_budget",
		EstimatedRisk:   f(0.1),
		EstimatedImpact: f(0.1),
		Context:         model.DecisionContext{Signals: irregularSignals()},
	}

	v := h.svc.Evaluate(context.Background(), p)
	assert.Equal(t, model.OutcomeRequiresAdjustment, v.Outcome)
}

func TestSimulationFailureBlocksCritical(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Simulator = failingSimulator{} })
	p := model.ProposedDecision{
		Actor:           "growth-engine",
		DecisionType:    "scale_accounts",
		EstimatedRisk:   f(0.1),
		EstimatedImpact: f(0.1),
	}

	v := h.svc.Evaluate(context.Background(), p)

	assert.Equal(t, model.OutcomeRejected, v.Outcome)
	require.NotNil(t, v.Simulation)
	assert.False(t, v.Simulation.ShouldProceed)
	assert.True(t, v.Simulation.HasBlocker(model.BlockerSimulationUnavailable))
	assert.Contains(t, v.ViolatedRules, validator.RuleSimulationBlocked)
}

func TestValidatorFailureNeedsHumanReview(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Validator = failingValidator{} })

	v := h.svc.Evaluate(context.Background(), postContent())

	assert.Equal(t, model.OutcomeNeedsHumanReview, v.Outcome)
	assert.Contains(t, v.Reason, "validator unavailable")
	assert.Equal(t, []alert.Kind{alert.KindValidatorUnavailable}, h.alerts.kinds())
	require.NotNil(t, v.DecisionID)
}

func TestRecordExecutionFeedsMonitorAndTracker(t *testing.T) {
	h := newHarness(t, nil)
	p := postContent()
	p.Context.AccountIDs = []string{"acct-1", "acct-2"}
	v := h.svc.Evaluate(context.Background(), p)
	require.NotNil(t, v.DecisionID)

	stored, err := h.svc.RecordExecution(context.Background(), *v.DecisionID,
		model.ExecutionOutcome{Status: model.ExecutionExecuted, Detail: "posted"})
	require.NoError(t, err)
	require.NotNil(t, stored.Execution)
	assert.Equal(t, testNow, stored.Execution.ReportedAt)

	score, err := h.svc.Aggressiveness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, score.ActionsInWindow)

	successes, failures := h.svc.tracker.Counts()
	assert.Equal(t, 1, successes)
	assert.Zero(t, failures)

	_, err = h.svc.RecordExecution(context.Background(), *v.DecisionID,
		model.ExecutionOutcome{Status: model.ExecutionFailed})
	require.ErrorIs(t, err, ledger.ErrOutcomeExists)

	_, err = h.svc.RecordExecution(context.Background(), uuid.New(),
		model.ExecutionOutcome{Status: model.ExecutionFailed})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTrackedFailuresRaiseFailureRate(t *testing.T) {
	h := newHarness(t, nil)
	for range 3 {
		v := h.svc.Evaluate(context.Background(), postContent())
		require.NotNil(t, v.DecisionID)
		_, err := h.svc.RecordExecution(context.Background(), *v.DecisionID,
			model.ExecutionOutcome{Status: model.ExecutionFailed, Detail: "platform error"})
		require.NoError(t, err)
	}

	v := h.svc.Evaluate(context.Background(), postContent())
	assert.Contains(t, v.ViolatedRules, validator.RuleActionFailureRate)
	assert.NotEqual(t, model.OutcomeApproved, v.Outcome)
}

func TestExplainAndDailySummary(t *testing.T) {
	h := newHarness(t, nil)
	approved := h.svc.Evaluate(context.Background(), postContent())
	require.NotNil(t, approved.DecisionID)
	over := postContent()
	over.Context.EstimatedCost = 200
	rejected := h.svc.Evaluate(context.Background(), over)
	require.Equal(t, model.OutcomeRejected, rejected.Outcome)

	report, err := h.svc.Explain(context.Background(), *approved.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, *approved.DecisionID, report.DecisionID)
	assert.Equal(t, approved.Explanation, report.Text)

	_, err = h.svc.Explain(context.Background(), uuid.New())
	require.ErrorIs(t, err, ledger.ErrNotFound)

	daily, err := h.svc.DailySummary(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", daily.Day)
	assert.Equal(t, 2, daily.Total)
	assert.Equal(t, 1, daily.CountsByOutcome[model.OutcomeApproved])
	assert.Equal(t, 1, daily.CountsByOutcome[model.OutcomeRejected])
	assert.NotEmpty(t, daily.LedgerRoot)

	empty, err := h.svc.DailySummary(context.Background(), testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestConcurrentEvaluations(t *testing.T) {
	h := newHarness(t, nil)
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := h.svc.Evaluate(context.Background(), postContent())
			assert.Equal(t, model.OutcomeApproved, v.Outcome)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, h.count(t))
}

type fixedSimulator struct{ proceed bool }

func (s fixedSimulator) Simulate(context.Context, model.ProposedDecision) (model.SimulationResult, error) {
	res := model.SimulationResult{ShouldProceed: s.proceed, Blockers: []string{}}
	if !s.proceed {
		res.Blockers = []string{model.BlockerTotalRiskAboveLimit}
		res.TotalRiskScore = 0.9
	}
	return res, nil
}

type fixedValidator struct {
	status   model.ValidationStatus
	approved bool
}

func (v fixedValidator) Validate(context.Context, *model.Snapshot, *model.AnalyzerOutput) (model.ValidationResult, error) {
	return model.ValidationResult{Status: v.status, Approved: v.approved, Reason: "fixed"}, nil
}

type dangerMonitor struct{}

func (dangerMonitor) Evaluate(context.Context) (model.AggressivenessScore, error) {
	return model.AggressivenessScore{
		GlobalScore:         0.9,
		Level:               model.AggressivenessDanger,
		ShouldBlockCritical: true,
		EvaluatedAt:         testNow,
	}, nil
}

func (dangerMonitor) RecordAction(context.Context, model.Action) {}

func (dangerMonitor) History(time.Time) []model.AggressivenessScore { return nil }

func TestDangerCooldownBlocksCriticalWithAnyValidator(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Validator = fixedValidator{status: model.StatusApproved, approved: true}
	})
	for i := range 300 {
		h.svc.RecordAction(context.Background(), model.Action{
			ID:         fmt.Sprintf("burst-%d", i),
			Type:       "follow",
			AccountID:  "acct-1",
			OccurredAt: testNow.Add(-time.Duration(i) * time.Second),
		})
	}

	v := h.svc.Evaluate(context.Background(), model.ProposedDecision{
		Actor:           "growth-engine",
		DecisionType:    "scale_accounts",
		EstimatedRisk:   f(0.1),
		EstimatedImpact: f(0.1),
		Context:         model.DecisionContext{AccountsAffected: 2, Signals: irregularSignals()},
	})

	assert.Equal(t, model.LevelCritical, v.Level)
	assert.Equal(t, model.OutcomeRejected, v.Outcome)
	assert.Contains(t, v.Reason, "aggressiveness")
	require.NotNil(t, v.Simulation)
	assert.True(t, v.Simulation.ShouldProceed)
}

func TestCriticalApprovalRequiresSimulationAndValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	statuses := []any{
		model.StatusApproved, model.StatusRejected,
		model.StatusRequiresAdjustment, model.StatusNeedsHumanReview,
	}
	strategies := []any{config.FallbackConservative, config.FallbackPermissive, config.FallbackRejectAll}

	properties.Property("critical verdicts are approved only when simulation proceeds, validation approves and the fleet is not in DANGER", prop.ForAll(
		func(typ string, proceed, approved, danger bool, status model.ValidationStatus, strategy config.FallbackStrategy) bool {
			h := newHarness(t, func(d *Deps) {
				d.Simulator = fixedSimulator{proceed: proceed}
				d.Validator = fixedValidator{status: status, approved: approved}
				d.Policy.FallbackStrategy = strategy
				if danger {
					d.Monitor = dangerMonitor{}
				}
			})
			v := h.svc.Evaluate(context.Background(), model.ProposedDecision{
				Actor:           "engine",
				DecisionType:    typ,
				EstimatedRisk:   f(0.2),
				EstimatedImpact: f(0.2),
			})
			if !v.Level.IsCritical() {
				return false
			}
			if v.Outcome != model.OutcomeApproved {
				return true
			}
			return proceed && approved && !danger && status == model.StatusApproved && v.DecisionID != nil
		},
		gen.OneConstOf("scale_accounts", "shift_budget", "change_strategy", "create_accounts"),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.OneConstOf(statuses...),
		gen.OneConstOf(strategies...),
	))

	properties.TestingRun(t)
}

func TestOutcomeTrackerRing(t *testing.T) {
	tr := NewOutcomeTracker(3)
	s, f := tr.Counts()
	assert.Zero(t, s)
	assert.Zero(t, f)

	tr.Record(true)
	tr.Record(false)
	s, f = tr.Counts()
	assert.Equal(t, 1, s)
	assert.Equal(t, 1, f)

	tr.Record(false)
	tr.Record(false)
	s, f = tr.Counts()
	assert.Equal(t, 3, s, "oldest failure evicted")
	assert.Zero(t, f)
}

func TestNewRequiresLedgerAndMonitor(t *testing.T) {
	policy := config.DefaultPolicy()
	_, err := New(Deps{Policy: policy, Monitor: aggressiveness.NewMonitor(policy.Aggressiveness)})
	require.Error(t, err)
	_, err = New(Deps{Policy: policy, Ledger: ledger.NewMemoryStore()})
	require.Error(t, err)
}
