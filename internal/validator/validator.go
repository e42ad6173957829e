// Package validator is the binding rule engine. It judges a proposal from its
// snapshot and the advisory analysis, and never proposes actions itself.
//
// Rules produce violations, each either critical or not. The outcome is
// decided by the first matching step:
//  1. any critical violation: REJECTED
//  2. risk score at or above the high threshold: REJECTED
//  3. a critical-severity risk with human review enabled: NEEDS_HUMAN_REVIEW
//  4. any other violation: REQUIRES_ADJUSTMENT
//  5. risk score at or above the medium threshold: REQUIRES_ADJUSTMENT
//  6. risk score at or above the low threshold: APPROVED with caution
//  7. otherwise APPROVED
package validator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/cognitive"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// Rule names as they appear in ViolatedRules and RulesApplied.
const (
	RuleBudgetDaily               = "BUDGET_DAILY_EXCEEDED"
	RuleBudgetMonthly             = "BUDGET_MONTHLY_EXCEEDED"
	RuleAccountFlagged            = "ACCOUNT_FLAGGED"
	RuleAccountSafety             = "ACCOUNT_SAFETY"
	RuleActionFailureRate         = "ACTION_FAILURE_RATE"
	RuleConfidenceOutOfRange      = "CONFIDENCE_OUT_OF_RANGE"
	RuleAnalysisUnavailable       = "ANALYSIS_UNAVAILABLE"
	RuleCognitiveCoherence        = "COGNITIVE_COHERENCE"
	RuleUnsupportedRecommendation = "UNSUPPORTED_RECOMMENDATION"
	RuleShadowban                 = "SHADOWBAN"
	RuleSimulationBlocked         = "SIMULATION_BLOCKED"
	RuleIdentityCorrelation       = "IDENTITY_CORRELATION"
	RulePatternRepetition         = "PATTERN_REPETITION"
	RuleAggressivenessCeiling     = "AGGRESSIVENESS_CEILING"
)

// Risk score component weights.
const (
	weightEstimated      = 0.3
	weightSimulation     = 0.3
	weightAggressiveness = 0.2
	weightAnalysis       = 0.1
	weightBudget         = 0.1
)

// Validator judges one snapshot and analysis.
type Validator interface {
	Validate(ctx context.Context, snap *model.Snapshot, analysis *model.AnalyzerOutput) (model.ValidationResult, error)
}

// Violation is one failed rule.
type Violation struct {
	Rule       string
	Critical   bool
	Adjustment string
}

// RuleValidator applies the built-in operational, cognitive and risk rules.
type RuleValidator struct {
	rules       config.ValidationPolicy
	thresholds  config.RiskThresholds
	humanReview bool
}

// New creates a RuleValidator from the governance policy.
func New(p config.Policy) *RuleValidator {
	return &RuleValidator{
		rules:       p.Validation,
		thresholds:  p.Risk,
		humanReview: p.HumanReviewForCritical,
	}
}

// Validate implements Validator. Missing inputs yield NEEDS_HUMAN_REVIEW.
func (v *RuleValidator) Validate(ctx context.Context, snap *model.Snapshot, analysis *model.AnalyzerOutput) (model.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return model.ValidationResult{}, fmt.Errorf("validator: %w", err)
	}
	if snap == nil || analysis == nil {
		return model.ValidationResult{
			Status: model.StatusNeedsHumanReview,
			Reason: "validation inputs missing",
		}, nil
	}

	violations, applied := v.Check(snap, analysis)
	score, breakdown := RiskScore(snap, analysis)
	return v.Decide(snap, analysis, violations, applied, score, breakdown), nil
}

// Check runs every built-in rule and returns the violations plus the names
// of all rules evaluated.
func (v *RuleValidator) Check(s *model.Snapshot, a *model.AnalyzerOutput) ([]Violation, []string) {
	var out []Violation
	var applied []string
	check := func(rule string, violated, critical bool, adjustment string) {
		applied = append(applied, rule)
		if violated {
			out = append(out, Violation{Rule: rule, Critical: critical, Adjustment: adjustment})
		}
	}
	sim := s.Simulation
	agg := s.Aggressiveness

	// Operational.
	check(RuleBudgetDaily, s.Costs.RemainingDaily < 0, true,
		fmt.Sprintf("keep daily spend within %.2f", s.Costs.DailyLimit))
	check(RuleBudgetMonthly, s.Costs.RemainingMonthly < 0, true,
		fmt.Sprintf("keep monthly spend within %.2f", s.Costs.MonthlyLimit))
	check(RuleAccountFlagged,
		(sim != nil && sim.HasBlocker(model.BlockerAccountFlagged)) || hasRisk(s.Risks, "account_flagged"),
		true, "exclude flagged accounts")
	check(RuleAccountSafety,
		v.rules.MaxAccountsPerAction > 0 && s.Proposal.AccountsAffected > v.rules.MaxAccountsPerAction,
		false, fmt.Sprintf("limit the action to %d accounts", v.rules.MaxAccountsPerAction))
	check(RuleActionFailureRate, s.ActionFailureRate > v.rules.FailureRateCeiling, false,
		"investigate recent action failures before continuing")

	// Cognitive.
	check(RuleAnalysisUnavailable, !a.Available, false, "retry once analysis is available")
	if a.Available {
		check(RuleConfidenceOutOfRange,
			a.Confidence < v.rules.MinConfidence || a.Confidence > v.rules.MaxConfidence, false,
			fmt.Sprintf("analysis confidence must be within [%.2f, %.2f]", v.rules.MinConfidence, v.rules.MaxConfidence))
		contradicts := (a.Confidence > v.rules.CoherenceConfidence && s.HasCriticalRisk()) ||
			(a.Confidence > v.rules.MaxConfidence && s.Proposal.Level.IsCritical()) ||
			(len(a.RiskSignals) == 0 && s.RequiresAttention)
		check(RuleCognitiveCoherence, contradicts, false, "reconcile the analysis with reported metrics")
		check(RuleUnsupportedRecommendation, len(a.RecommendedAdjustments) > 0 && !s.HasData(), false,
			"supply fleet data supporting the recommended adjustments")
	}

	// Risk.
	shadowban := (sim != nil && sim.ShadowbanProbability > 0) ||
		hasRisk(s.Risks, "shadowban") || hasRisk(a.RiskSignals, "shadowban")
	check(RuleShadowban, shadowban, true, "pause affected accounts until reach recovers")
	check(RuleSimulationBlocked, sim != nil && !sim.ShouldProceed, true,
		"resolve simulation blockers")
	check(RuleIdentityCorrelation,
		sim != nil && (sim.IdentityRisk >= v.rules.IdentityThreshold || sim.CorrelationRisk >= v.rules.CorrelationThreshold),
		false, "separate infrastructure and stabilize identities")
	check(RulePatternRepetition,
		(sim != nil && sim.PatternRepetitionScore >= v.rules.PatternThreshold) || s.RepetitionDetected,
		false, "vary action types and timing")

	ceiling := agg != nil && (agg.ShouldBlockCritical || agg.Level != model.AggressivenessSafe)
	critical := agg != nil && agg.ShouldBlockCritical && s.Proposal.Level.IsCritical()
	adjustment := "reduce fleet activity"
	if agg != nil && agg.CooldownRecommendedMinutes > 0 {
		adjustment = fmt.Sprintf("wait %d minutes for the aggressiveness cooldown", agg.CooldownRecommendedMinutes)
	}
	check(RuleAggressivenessCeiling, ceiling, critical, adjustment)

	return out, applied
}

// RiskScore is the weighted mean of the components present in the inputs.
func RiskScore(s *model.Snapshot, a *model.AnalyzerOutput) (float64, map[string]float64) {
	breakdown := map[string]float64{"estimated_risk": clamp(s.Proposal.EstimatedRisk)}
	sum := weightEstimated * breakdown["estimated_risk"]
	weights := weightEstimated

	if s.Simulation != nil {
		breakdown["simulation"] = clamp(s.Simulation.TotalRiskScore)
		sum += weightSimulation * breakdown["simulation"]
		weights += weightSimulation
	}
	if s.Aggressiveness != nil {
		breakdown["aggressiveness"] = clamp(s.Aggressiveness.GlobalScore)
		sum += weightAggressiveness * breakdown["aggressiveness"]
		weights += weightAggressiveness
	}
	if a != nil && a.Available {
		var worst float64
		for _, r := range a.RiskSignals {
			worst = math.Max(worst, cognitive.SeverityWeight(r.Severity))
		}
		breakdown["analysis"] = worst
		sum += weightAnalysis * worst
		weights += weightAnalysis
	}
	if s.Costs.DailyLimit > 0 {
		breakdown["budget"] = clamp(s.Costs.DailyUtilization)
		sum += weightBudget * breakdown["budget"]
		weights += weightBudget
	}
	return clamp(sum / weights), breakdown
}

// Decide applies the precedence order to the collected violations.
func (v *RuleValidator) Decide(s *model.Snapshot, a *model.AnalyzerOutput, violations []Violation, applied []string, score float64, breakdown map[string]float64) model.ValidationResult {
	res := model.ValidationResult{
		RiskScore:     score,
		RiskBreakdown: breakdown,
		RulesApplied:  applied,
	}
	var criticalRules, otherRules, adjustments []string
	for _, vi := range violations {
		res.ViolatedRules = append(res.ViolatedRules, vi.Rule)
		if vi.Critical {
			criticalRules = append(criticalRules, vi.Rule)
		} else {
			otherRules = append(otherRules, vi.Rule)
		}
		if vi.Adjustment != "" {
			adjustments = append(adjustments, vi.Adjustment)
		}
	}

	switch {
	case len(criticalRules) > 0:
		res.Status = model.StatusRejected
		res.Reason = "critical rule violated: " + strings.Join(criticalRules, ", ")
	case score >= v.thresholds.High:
		res.Status = model.StatusRejected
		res.Reason = fmt.Sprintf("risk score %.2f at or above high threshold %.2f", score, v.thresholds.High)
	case v.humanReview && criticalIssue(s, a):
		res.Status = model.StatusNeedsHumanReview
		res.Reason = "critical risk signal requires human review"
		res.RequiredAdjustments = adjustments
	case len(otherRules) > 0:
		res.Status = model.StatusRequiresAdjustment
		res.Reason = "rules violated: " + strings.Join(otherRules, ", ")
		res.RequiredAdjustments = adjustments
	case score >= v.thresholds.Medium:
		res.Status = model.StatusRequiresAdjustment
		res.Reason = fmt.Sprintf("risk score %.2f at or above medium threshold %.2f", score, v.thresholds.Medium)
		res.RequiredAdjustments = []string{fmt.Sprintf("reduce risk below %.2f", v.thresholds.Medium)}
	case score >= v.thresholds.Low:
		res.Status = model.StatusApproved
		res.Approved = true
		res.Caution = true
		res.Reason = fmt.Sprintf("approved with caution: risk score %.2f", score)
	default:
		res.Status = model.StatusApproved
		res.Approved = true
		res.Reason = fmt.Sprintf("approved: risk score %.2f", score)
	}
	return res
}

// criticalIssue reports a critical-severity risk in the snapshot or analysis.
func criticalIssue(s *model.Snapshot, a *model.AnalyzerOutput) bool {
	if s.HasCriticalRisk() {
		return true
	}
	for _, r := range a.RiskSignals {
		if r.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

func hasRisk(risks []model.RiskSignal, name string) bool {
	for _, r := range risks {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
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
