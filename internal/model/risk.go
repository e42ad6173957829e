package model

import "time"

// Simulation blockers.
const (
	BlockerInsufficientData      = "insufficient_data"
	BlockerAccountFlagged        = "account_already_flagged"
	BlockerShadowbanDetected     = "shadowban_detected"
	BlockerTotalRiskAboveLimit   = "total_risk_above_threshold"
	BlockerSimulationUnavailable = "simulation_unavailable"
)

// SimulationResult is the pre-action risk estimate for one proposal.
type SimulationResult struct {
	IdentityRisk           float64            `json:"identity_risk"`
	PatternRepetitionScore float64            `json:"pattern_repetition_score"`
	ShadowbanProbability   float64            `json:"shadowban_probability"`
	CorrelationRisk        float64            `json:"correlation_risk"`
	TotalRiskScore         float64            `json:"total_risk_score"`
	Blockers               []string           `json:"blockers"`
	ShouldProceed          bool               `json:"should_proceed"`
	Weights                map[string]float64 `json:"weights,omitempty"`
	ComputedAt             time.Time          `json:"computed_at"`
}

// HasBlocker reports whether the named blocker is present.
func (r SimulationResult) HasBlocker(name string) bool {
	for _, b := range r.Blockers {
		if b == name {
			return true
		}
	}
	return false
}

// AggressivenessLevel classifies fleet-wide aggressiveness.
type AggressivenessLevel string

const (
	AggressivenessSafe    AggressivenessLevel = "SAFE"
	AggressivenessWarning AggressivenessLevel = "WARNING"
	AggressivenessDanger  AggressivenessLevel = "DANGER"
)

// AggressivenessScore is one evaluation of the rolling action window.
type AggressivenessScore struct {
	GlobalScore                float64             `json:"global_score"`
	Level                      AggressivenessLevel `json:"level"`
	CooldownRecommendedMinutes int                 `json:"cooldown_recommended_minutes"`
	ShouldBlockCritical        bool                `json:"should_block_critical"`
	Velocity                   float64             `json:"velocity"`
	Uniformity                 float64             `json:"uniformity"`
	Concentration              float64             `json:"concentration"`
	ActionsInWindow            int                 `json:"actions_in_window"`
	CooldownUntil              *time.Time          `json:"cooldown_until,omitempty"`
	EvaluatedAt                time.Time           `json:"evaluated_at"`
}

// Action is one executed action recorded in the aggressiveness window.
type Action struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
