package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

func newEngine() *Engine {
	return New(config.DefaultPolicy().Simulation)
}

func withSignals(s *model.RiskSignals) model.ProposedDecision {
	return model.ProposedDecision{
		Actor:        "ads-engine",
		DecisionType: "scale_accounts",
		Context:      model.DecisionContext{AccountsAffected: 3, Signals: s},
	}
}

// calm is irregular timing, no churn, no decline, no shared infrastructure.
func calm() *model.RiskSignals {
	return &model.RiskSignals{
		ActionIntervalsSeconds: []float64{30, 400, 90, 1200, 15},
		ContentSimilarity:      0.1,
		ReachTrend:             0.05,
		EngagementTrend:        0.02,
	}
}

func TestSimulateCalmSignalsProceed(t *testing.T) {
	res, err := newEngine().Simulate(context.Background(), withSignals(calm()))
	require.NoError(t, err)

	assert.True(t, res.ShouldProceed)
	assert.Empty(t, res.Blockers)
	assert.Zero(t, res.IdentityRisk)
	assert.Zero(t, res.ShadowbanProbability)
	assert.Zero(t, res.CorrelationRisk)
	assert.Less(t, res.TotalRiskScore, 0.2)
}

func TestSimulateInsufficientData(t *testing.T) {
	e := newEngine()

	res, err := e.Simulate(context.Background(), withSignals(nil))
	require.NoError(t, err)
	assert.False(t, res.ShouldProceed)
	assert.Equal(t, []string{model.BlockerInsufficientData}, res.Blockers)

	sparse := calm()
	sparse.ActionIntervalsSeconds = []float64{60}
	res, err = e.Simulate(context.Background(), withSignals(sparse))
	require.NoError(t, err)
	assert.False(t, res.ShouldProceed)
	assert.True(t, res.HasBlocker(model.BlockerInsufficientData))
}

func TestSimulateRegularTimingRaisesPatternScore(t *testing.T) {
	e := newEngine()
	bot := calm()
	bot.ActionIntervalsSeconds = []float64{60, 60, 60, 60, 60}
	bot.ContentSimilarity = 0.9

	res, err := e.Simulate(context.Background(), withSignals(bot))
	require.NoError(t, err)
	assert.InDelta(t, 0.6+0.4*0.9, res.PatternRepetitionScore, 1e-9)

	human, err := e.Simulate(context.Background(), withSignals(calm()))
	require.NoError(t, err)
	assert.Less(t, human.PatternRepetitionScore, res.PatternRepetitionScore)
}

func TestSimulateShadowbanFromDecline(t *testing.T) {
	s := calm()
	s.ReachTrend = -0.4
	s.EngagementTrend = -0.2

	res, err := newEngine().Simulate(context.Background(), withSignals(s))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, res.ShadowbanProbability, 1e-9)
	assert.True(t, res.ShouldProceed, "below the shadowban block threshold")

	s.PlatformFlags = []string{"reduced_distribution"}
	res, err = newEngine().Simulate(context.Background(), withSignals(s))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, res.ShadowbanProbability, 1e-9)
	assert.False(t, res.ShouldProceed)
	assert.True(t, res.HasBlocker(model.BlockerShadowbanDetected))
}

func TestSimulateAccountFlaggedBlocks(t *testing.T) {
	s := calm()
	s.AccountFlagged = true
	res, err := newEngine().Simulate(context.Background(), withSignals(s))
	require.NoError(t, err)
	assert.False(t, res.ShouldProceed)
	assert.Equal(t, []string{model.BlockerAccountFlagged}, res.Blockers)
}

func TestSimulateCorrelationNeedsSharedInfrastructure(t *testing.T) {
	s := calm()
	s.BehaviorSimilarity = 0.9
	s.SharedInfrastructureAccounts = 1
	res, err := newEngine().Simulate(context.Background(), withSignals(s))
	require.NoError(t, err)
	assert.Zero(t, res.CorrelationRisk)

	s.SharedInfrastructureAccounts = 5
	res, err = newEngine().Simulate(context.Background(), withSignals(s))
	require.NoError(t, err)
	assert.InDelta(t, 0.45, res.CorrelationRisk, 1e-9)
}

func TestSimulateTotalAboveHighThresholdBlocks(t *testing.T) {
	s := &model.RiskSignals{
		FingerprintChanges:           4,
		IPChanges:                    3,
		ActionIntervalsSeconds:       []float64{10, 10, 10, 10},
		ContentSimilarity:            1,
		ReachTrend:                   -0.8,
		EngagementTrend:              -0.8,
		SharedInfrastructureAccounts: 12,
		BehaviorSimilarity:           1,
	}
	res, err := newEngine().Simulate(context.Background(), withSignals(s))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.TotalRiskScore, 0.7)
	assert.True(t, res.HasBlocker(model.BlockerTotalRiskAboveLimit))
	assert.False(t, res.ShouldProceed)
}

func TestSimulateWeightsAreConfigurable(t *testing.T) {
	policy := config.DefaultPolicy().Simulation
	policy.Weights = config.RiskWeights{Identity: 1}
	s := calm()
	s.FingerprintChanges = 1

	res, err := New(policy).Simulate(context.Background(), withSignals(s))
	require.NoError(t, err)
	assert.InDelta(t, res.IdentityRisk, res.TotalRiskScore, 1e-9)
}

func TestSimulateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine().Simulate(ctx, withSignals(calm()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCoefficientOfVariation(t *testing.T) {
	cv, ok := coefficientOfVariation([]float64{10, 10, 10})
	require.True(t, ok)
	assert.Zero(t, cv)

	_, ok = coefficientOfVariation([]float64{5})
	assert.False(t, ok)

	_, ok = coefficientOfVariation([]float64{0, 0})
	assert.False(t, ok)
}
