// Package simulation estimates pre-action risk for a proposal from the
// signals its producing engine supplies.
//
// Four sub-scores are combined into a weighted total, each in [0,1]:
//   - identity risk: recent fingerprint and network-identity churn
//   - pattern repetition: regular action timing and repeated content
//   - shadowban probability: reach and engagement decline plus platform flags
//   - correlation risk: behavioral similarity across accounts sharing infrastructure
//
// The engine never approves on missing data: without enough signals it
// returns ShouldProceed=false with the "insufficient_data" blocker.
package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// Engine is stateless apart from its policy and is safe for concurrent use.
type Engine struct {
	policy config.SimulationPolicy
	now    func() time.Time
}

// New creates an Engine.
func New(policy config.SimulationPolicy) *Engine {
	return &Engine{policy: policy, now: time.Now}
}

// Simulate computes the risk estimate for p. It only fails when ctx is done.
func (e *Engine) Simulate(ctx context.Context, p model.ProposedDecision) (model.SimulationResult, error) {
	if err := ctx.Err(); err != nil {
		return model.SimulationResult{}, fmt.Errorf("simulation: %w", err)
	}

	res := model.SimulationResult{
		Blockers:   []string{},
		Weights:    e.weights(),
		ComputedAt: e.now().UTC(),
	}

	s := p.Context.Signals
	if !e.sufficient(s) {
		res.Blockers = append(res.Blockers, model.BlockerInsufficientData)
		if s == nil {
			return res, nil
		}
	}

	res.IdentityRisk = e.identityRisk(s)
	res.PatternRepetitionScore = e.patternRepetition(s)
	res.ShadowbanProbability = e.shadowbanProbability(s)
	res.CorrelationRisk = e.correlationRisk(s)
	res.TotalRiskScore = e.total(res)

	if s.AccountFlagged {
		res.Blockers = append(res.Blockers, model.BlockerAccountFlagged)
	}
	if res.ShadowbanProbability >= e.policy.ShadowbanBlockThreshold {
		res.Blockers = append(res.Blockers, model.BlockerShadowbanDetected)
	}
	if res.TotalRiskScore >= e.policy.HighThreshold {
		res.Blockers = append(res.Blockers, model.BlockerTotalRiskAboveLimit)
	}
	res.ShouldProceed = len(res.Blockers) == 0

	if err := ctx.Err(); err != nil {
		return model.SimulationResult{}, fmt.Errorf("simulation: %w", err)
	}
	return res, nil
}

func (e *Engine) sufficient(s *model.RiskSignals) bool {
	return s != nil && len(s.ActionIntervalsSeconds) >= e.policy.MinTimingSamples
}

func (e *Engine) identityRisk(s *model.RiskSignals) float64 {
	churn := float64(s.FingerprintChanges + s.IPChanges)
	return clamp(churn / float64(e.policy.IdentityChurnLimit))
}

// patternRepetition rewards irregular timing: a low coefficient of variation
// across action intervals reads as scheduled, bot-like behavior.
func (e *Engine) patternRepetition(s *model.RiskSignals) float64 {
	regularity := 0.0
	if cv, ok := coefficientOfVariation(s.ActionIntervalsSeconds); ok {
		ceiling := e.policy.TimingCVCeiling
		if ceiling <= 0 {
			ceiling = 0.5
		}
		regularity = 1 - clamp(cv/ceiling)
	}
	return clamp(0.6*regularity + 0.4*clamp(s.ContentSimilarity))
}

func (e *Engine) shadowbanProbability(s *model.RiskSignals) float64 {
	reachDecline := clamp(-s.ReachTrend)
	engagementDecline := clamp(-s.EngagementTrend)
	flags := float64(len(s.PlatformFlags)) * e.policy.PlatformFlagWeight
	return clamp(0.5*reachDecline + 0.5*engagementDecline + flags)
}

func (e *Engine) correlationRisk(s *model.RiskSignals) float64 {
	if s.SharedInfrastructureAccounts < 2 {
		return 0
	}
	spread := clamp(float64(s.SharedInfrastructureAccounts) / float64(e.policy.CorrelationAccountCeiling))
	return clamp(clamp(s.BehaviorSimilarity) * spread)
}

func (e *Engine) total(r model.SimulationResult) float64 {
	w := e.policy.Weights
	sum := w.Sum()
	if sum <= 0 {
		return 0
	}
	t := w.Identity*r.IdentityRisk +
		w.Pattern*r.PatternRepetitionScore +
		w.Shadowban*r.ShadowbanProbability +
		w.Correlation*r.CorrelationRisk
	return clamp(t / sum)
}

func (e *Engine) weights() map[string]float64 {
	w := e.policy.Weights
	return map[string]float64{
		"identity":    w.Identity,
		"pattern":     w.Pattern,
		"shadowban":   w.Shadowban,
		"correlation": w.Correlation,
	}
}

// coefficientOfVariation returns stddev/mean of xs. It reports false when
// there are fewer than two samples or the mean is not positive.
func coefficientOfVariation(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if mean <= 0 {
		return 0, false
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(xs))) / mean, true
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
