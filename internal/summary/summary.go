// Package summary builds the normalized snapshot of fleet state that the
// analyzer and the validator work from.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// Input is everything one supervision pass knows about.
type Input struct {
	Proposal       model.ProposedDecision
	Level          model.DecisionLevel
	Signals        model.FleetSignals
	Simulation     *model.SimulationResult
	Aggressiveness *model.AggressivenessScore

	// Outcomes reported through RecordExecution, counted on top of
	// Signals.Actions for the failure rate.
	TrackedSuccesses int
	TrackedFailures  int
}

// Generator is safe for concurrent use.
type Generator struct {
	budget             config.BudgetPolicy
	policy             config.SummaryPolicy
	failureRateCeiling float64
	now                func() time.Time
}

// New creates a Generator from the governance policy.
func New(p config.Policy) *Generator {
	return &Generator{
		budget:             p.Budget,
		policy:             p.Summary,
		failureRateCeiling: p.Validation.FailureRateCeiling,
		now:                time.Now,
	}
}

// Generate builds a snapshot. The result shares no slices or maps with in.
func (g *Generator) Generate(in Input) model.Snapshot {
	p := in.Proposal
	s := model.Snapshot{
		SupervisionID: uuid.Must(uuid.NewV7()),
		GeneratedAt:   g.now().UTC(),
		Proposal: model.ProposalSummary{
			Actor:            p.Actor,
			DecisionType:     p.DecisionType,
			Level:            in.Level,
			EstimatedRisk:    p.Risk(),
			EstimatedImpact:  p.Impact(),
			EstimatedCost:    p.Context.EstimatedCost,
			AccountsAffected: p.Context.AccountsAffected,
		},
		Decisions: append([]model.DecisionRecord(nil), in.Signals.Decisions...),
		Actions:   append([]model.ActionRecord(nil), in.Signals.Actions...),
		Risks:     append([]model.RiskSignal(nil), in.Signals.Risks...),
		Anomalies: append([]string(nil), in.Signals.Anomalies...),
	}
	if len(in.Signals.Metrics) > 0 {
		s.Metrics = make(map[string]float64, len(in.Signals.Metrics))
		for k, v := range in.Signals.Metrics {
			s.Metrics[k] = v
		}
	}
	if in.Simulation != nil {
		sim := *in.Simulation
		sim.Blockers = append([]string(nil), in.Simulation.Blockers...)
		s.Simulation = &sim
	}
	if in.Aggressiveness != nil {
		agg := *in.Aggressiveness
		s.Aggressiveness = &agg
	}

	s.Costs = g.costs(in.Signals.Costs, p.Context.EstimatedCost)
	s.ActionFailureRate = failureRate(in)
	s.RepetitionScore, s.RepetitionDetected = g.repetition(s.Decisions, p.DecisionType)
	s.AttentionReasons = g.attention(s)
	s.RequiresAttention = len(s.AttentionReasons) > 0
	s.Summary = describe(s)
	return s
}

func (g *Generator) costs(c model.CostSignals, proposed float64) model.CostSummary {
	daily := c.DailyBudgetLimit
	if daily <= 0 {
		daily = g.budget.DailyLimit
	}
	monthly := c.MonthlyBudgetLimit
	if monthly <= 0 {
		monthly = g.budget.MonthlyLimit
	}
	out := model.CostSummary{
		DailySpend:       c.DailySpend,
		DailyLimit:       daily,
		MonthlySpend:     c.MonthlySpend,
		MonthlyLimit:     monthly,
		ProposedCost:     proposed,
		RemainingDaily:   daily - (c.DailySpend + proposed),
		RemainingMonthly: monthly - (c.MonthlySpend + proposed),
	}
	if daily > 0 {
		out.DailyUtilization = (c.DailySpend + proposed) / daily
	}
	return out
}

func failureRate(in Input) float64 {
	total := in.TrackedSuccesses + in.TrackedFailures
	failed := in.TrackedFailures
	for _, a := range in.Signals.Actions {
		total++
		if !a.Success {
			failed++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

// repetition is the share of the dominant decision type among the most
// recent decisions, the proposal included.
func (g *Generator) repetition(decisions []model.DecisionRecord, proposedType string) (float64, bool) {
	recent := append([]model.DecisionRecord(nil), decisions...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Timestamp.Before(recent[j].Timestamp) })

	window := g.policy.RepetitionWindow
	if window <= 0 {
		window = 20
	}
	if len(recent) > window-1 {
		recent = recent[len(recent)-(window-1):]
	}

	counts := map[string]int{proposedType: 1}
	for _, d := range recent {
		counts[d.DecisionType]++
	}
	sample := len(recent) + 1
	top := 0
	for _, c := range counts {
		if c > top {
			top = c
		}
	}
	share := float64(top) / float64(sample)
	return share, sample >= g.policy.RepetitionMinSample && share >= g.policy.RepetitionThreshold
}

func (g *Generator) attention(s model.Snapshot) []string {
	var reasons []string
	if s.Costs.RemainingDaily < 0 {
		reasons = append(reasons, fmt.Sprintf("daily budget exceeded by %.2f", -s.Costs.RemainingDaily))
	}
	if s.Costs.RemainingMonthly < 0 {
		reasons = append(reasons, fmt.Sprintf("monthly budget exceeded by %.2f", -s.Costs.RemainingMonthly))
	}
	for _, r := range s.Risks {
		if r.Severity == model.SeverityCritical {
			reasons = append(reasons, "critical risk: "+r.Name)
		}
	}
	if s.Aggressiveness != nil && s.Aggressiveness.Level == model.AggressivenessDanger {
		reasons = append(reasons, fmt.Sprintf("fleet aggressiveness DANGER (%.2f)", s.Aggressiveness.GlobalScore))
	}
	if s.Simulation != nil && !s.Simulation.ShouldProceed {
		reasons = append(reasons, "simulation blocked: "+strings.Join(s.Simulation.Blockers, ", "))
	}
	if s.RepetitionDetected {
		reasons = append(reasons, fmt.Sprintf("repetitive decisions (%.0f%% one type)", s.RepetitionScore*100))
	}
	if len(s.Anomalies) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d anomalies reported", len(s.Anomalies)))
	}
	if s.ActionFailureRate > g.failureRateCeiling {
		reasons = append(reasons, fmt.Sprintf("action failure rate %.0f%% above %.0f%%",
			s.ActionFailureRate*100, g.failureRateCeiling*100))
	}
	return reasons
}

func describe(s model.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s proposes %s (%s, risk %.2f, impact %.2f, %d accounts, cost %.2f). ",
		s.Proposal.Actor, s.Proposal.DecisionType, s.Proposal.Level,
		s.Proposal.EstimatedRisk, s.Proposal.EstimatedImpact,
		s.Proposal.AccountsAffected, s.Proposal.EstimatedCost)
	fmt.Fprintf(&b, "Daily spend %.2f of %.2f after this action; %d recent decisions, %d recent actions, failure rate %.0f%%.",
		s.Costs.DailySpend+s.Costs.ProposedCost, s.Costs.DailyLimit,
		len(s.Decisions), len(s.Actions), s.ActionFailureRate*100)
	if s.Simulation != nil {
		fmt.Fprintf(&b, " Simulated risk %.2f.", s.Simulation.TotalRiskScore)
	}
	if s.Aggressiveness != nil {
		fmt.Fprintf(&b, " Fleet aggressiveness %s (%.2f).", s.Aggressiveness.Level, s.Aggressiveness.GlobalScore)
	}
	if s.RequiresAttention {
		fmt.Fprintf(&b, " Attention: %s.", strings.Join(s.AttentionReasons, "; "))
	}
	return b.String()
}
