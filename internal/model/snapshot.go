package model

import (
	"time"

	"github.com/google/uuid"
)

// Risk signal severities, highest first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// DecisionRecord is a recent decision supplied by the fleet.
type DecisionRecord struct {
	Actor        string        `json:"actor"`
	DecisionType string        `json:"decision_type"`
	Level        DecisionLevel `json:"level,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// ActionRecord is a recent executed action and whether it succeeded.
type ActionRecord struct {
	Type      string    `json:"type"`
	AccountID string    `json:"account_id,omitempty"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// CostSignals carries spend so far. Zero limits fall back to configured ceilings.
type CostSignals struct {
	DailySpend         float64 `json:"daily_spend"`
	DailyBudgetLimit   float64 `json:"daily_budget_limit,omitempty"`
	MonthlySpend       float64 `json:"monthly_spend"`
	MonthlyBudgetLimit float64 `json:"monthly_budget_limit,omitempty"`
}

// RiskSignal is a named risk observation with a severity.
type RiskSignal struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Source   string `json:"source,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// FleetSignals is everything the fleet reports about its recent state.
type FleetSignals struct {
	Decisions []DecisionRecord   `json:"decisions,omitempty"`
	Actions   []ActionRecord     `json:"actions,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Costs     CostSignals        `json:"costs"`
	Risks     []RiskSignal       `json:"risks,omitempty"`
	Anomalies []string           `json:"anomalies,omitempty"`
}

// ProposalSummary is the part of a proposal carried into a snapshot.
type ProposalSummary struct {
	Actor            string        `json:"actor"`
	DecisionType     string        `json:"decision_type"`
	Level            DecisionLevel `json:"level"`
	EstimatedRisk    float64       `json:"estimated_risk"`
	EstimatedImpact  float64       `json:"estimated_impact"`
	EstimatedCost    float64       `json:"estimated_cost"`
	AccountsAffected int           `json:"accounts_affected"`
}

// CostSummary is spend projected to include the proposal.
type CostSummary struct {
	DailySpend       float64 `json:"daily_spend"`
	DailyLimit       float64 `json:"daily_limit"`
	MonthlySpend     float64 `json:"monthly_spend"`
	MonthlyLimit     float64 `json:"monthly_limit"`
	ProposedCost     float64 `json:"proposed_cost"`
	RemainingDaily   float64 `json:"remaining_daily"`
	RemainingMonthly float64 `json:"remaining_monthly"`
	DailyUtilization float64 `json:"daily_utilization"`
}

// Snapshot is the normalized view of fleet state for one supervision pass.
// It is immutable once generated.
type Snapshot struct {
	SupervisionID      uuid.UUID            `json:"supervision_id"`
	GeneratedAt        time.Time            `json:"generated_at"`
	Proposal           ProposalSummary      `json:"proposal"`
	Decisions          []DecisionRecord     `json:"decisions,omitempty"`
	Actions            []ActionRecord       `json:"actions,omitempty"`
	Metrics            map[string]float64   `json:"metrics,omitempty"`
	Costs              CostSummary          `json:"costs"`
	Risks              []RiskSignal         `json:"risks,omitempty"`
	Anomalies          []string             `json:"anomalies,omitempty"`
	Simulation         *SimulationResult    `json:"simulation,omitempty"`
	Aggressiveness     *AggressivenessScore `json:"aggressiveness,omitempty"`
	ActionFailureRate  float64              `json:"action_failure_rate"`
	RepetitionScore    float64              `json:"repetition_score"`
	RepetitionDetected bool                 `json:"repetition_detected"`
	Summary            string               `json:"summary"`
	RequiresAttention  bool                 `json:"requires_attention"`
	AttentionReasons   []string             `json:"attention_reasons,omitempty"`
}

// HasData reports whether the snapshot carries any fleet observations.
func (s Snapshot) HasData() bool {
	return len(s.Decisions) > 0 || len(s.Actions) > 0 || len(s.Metrics) > 0 ||
		len(s.Risks) > 0 || len(s.Anomalies) > 0 ||
		s.Costs.DailySpend > 0 || s.Costs.MonthlySpend > 0 ||
		s.Simulation != nil || s.Aggressiveness != nil
}

// HasCriticalRisk reports whether any supplied risk signal is critical.
func (s Snapshot) HasCriticalRisk() bool {
	for _, r := range s.Risks {
		if r.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
