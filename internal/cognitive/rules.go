package cognitive

import (
	"context"
	"fmt"
	"math"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// RuleAnalyzer is the deterministic default analyzer. It reads the same
// snapshot fields the attention rules do, so every attention reason surfaces
// as a named risk signal.
type RuleAnalyzer struct {
	validation config.ValidationPolicy
}

// NewRuleAnalyzer creates a RuleAnalyzer.
func NewRuleAnalyzer(v config.ValidationPolicy) *RuleAnalyzer {
	return &RuleAnalyzer{validation: v}
}

func (a *RuleAnalyzer) Analyze(ctx context.Context, s model.Snapshot) (model.AnalyzerOutput, error) {
	if err := ctx.Err(); err != nil {
		return model.AnalyzerOutput{}, err
	}
	out := normalize(model.AnalyzerOutput{Available: true, Source: "rules"})

	signal := func(name, severity, detail string) {
		out.RiskSignals = append(out.RiskSignals, model.RiskSignal{
			Name: name, Severity: severity, Source: "rules", Detail: detail,
		})
	}

	c := s.Costs
	out.Observations = append(out.Observations,
		fmt.Sprintf("daily budget %.0f%% used after this action", c.DailyUtilization*100))
	if c.RemainingDaily < 0 {
		signal("budget_daily_exceeded", model.SeverityHigh, fmt.Sprintf("over by %.2f", -c.RemainingDaily))
		if c.ProposedCost > 0 {
			out.RecommendedAdjustments = append(out.RecommendedAdjustments,
				fmt.Sprintf("reduce cost to at most %.2f", math.Max(0, c.ProposedCost+c.RemainingDaily)))
		}
	}
	if c.RemainingMonthly < 0 {
		signal("budget_monthly_exceeded", model.SeverityHigh, fmt.Sprintf("over by %.2f", -c.RemainingMonthly))
	}

	for _, r := range s.Risks {
		if r.Severity == model.SeverityCritical {
			signal(r.Name, model.SeverityCritical, "reported by fleet")
		}
	}

	if sim := s.Simulation; sim != nil {
		out.Observations = append(out.Observations, fmt.Sprintf("simulated total risk %.2f", sim.TotalRiskScore))
		if sim.HasBlocker(model.BlockerShadowbanDetected) {
			signal("shadowban", model.SeverityCritical, fmt.Sprintf("probability %.2f", sim.ShadowbanProbability))
		} else if sim.ShadowbanProbability > 0 {
			signal("shadowban", model.SeverityMedium, fmt.Sprintf("probability %.2f", sim.ShadowbanProbability))
		}
		if !sim.ShouldProceed {
			signal("simulation_blocked", model.SeverityHigh, fmt.Sprint(sim.Blockers))
		}
		if sim.IdentityRisk >= a.validation.IdentityThreshold {
			signal("identity_churn", model.SeverityHigh, fmt.Sprintf("identity risk %.2f", sim.IdentityRisk))
			out.StrategicSuggestions = append(out.StrategicSuggestions, "stabilize fingerprints and network identity before acting")
		}
		if sim.PatternRepetitionScore >= a.validation.PatternThreshold {
			out.DetectedPatterns = append(out.DetectedPatterns, "regular action timing")
			out.RecommendedAdjustments = append(out.RecommendedAdjustments, "randomize action timing and vary content")
		}
	}

	if agg := s.Aggressiveness; agg != nil {
		out.Observations = append(out.Observations,
			fmt.Sprintf("fleet aggressiveness %s at %.2f", agg.Level, agg.GlobalScore))
		if agg.Level == model.AggressivenessDanger {
			signal("aggressiveness_danger", model.SeverityHigh, fmt.Sprintf("score %.2f", agg.GlobalScore))
			out.RecommendedAdjustments = append(out.RecommendedAdjustments,
				fmt.Sprintf("pause critical actions for %d minutes", agg.CooldownRecommendedMinutes))
		}
	}

	if s.RepetitionDetected {
		out.DetectedPatterns = append(out.DetectedPatterns,
			fmt.Sprintf("%.0f%% of recent decisions share one type", s.RepetitionScore*100))
		signal("decision_repetition", model.SeverityMedium, fmt.Sprintf("share %.2f", s.RepetitionScore))
	}
	if len(s.Anomalies) > 0 {
		signal("fleet_anomalies", model.SeverityMedium, fmt.Sprintf("%d reported", len(s.Anomalies)))
	}
	if s.ActionFailureRate > a.validation.FailureRateCeiling {
		signal("action_failures", model.SeverityMedium, fmt.Sprintf("failure rate %.2f", s.ActionFailureRate))
	}
	if max := a.validation.MaxAccountsPerAction; max > 0 && s.Proposal.AccountsAffected > max {
		out.Observations = append(out.Observations,
			fmt.Sprintf("proposal touches %d accounts, above the per-action limit of %d", s.Proposal.AccountsAffected, max))
	}

	out.Confidence = ruleConfidence(s)
	out.Reasoning = fmt.Sprintf("%d risk signals from deterministic rules over %d decisions and %d actions",
		len(out.RiskSignals), len(s.Decisions), len(s.Actions))
	return out, nil
}

// ruleConfidence grows with the amount of evidence in the snapshot and stays
// inside the validator's accepted band.
func ruleConfidence(s model.Snapshot) float64 {
	c := 0.4
	if len(s.Decisions) > 0 {
		c += 0.1
	}
	if len(s.Actions) > 0 {
		c += 0.1
	}
	if len(s.Metrics) > 0 {
		c += 0.05
	}
	if s.Simulation != nil {
		c += 0.1
	}
	if s.Aggressiveness != nil {
		c += 0.05
	}
	if s.HasCriticalRisk() {
		c = math.Min(c, 0.6)
	}
	return math.Min(c, 0.8)
}
