package model

import (
	"time"

	"github.com/google/uuid"
)

// AnalyzerOutput is advisory analysis of a snapshot. It is never authoritative.
type AnalyzerOutput struct {
	Observations           []string     `json:"observations"`
	DetectedPatterns       []string     `json:"detected_patterns"`
	StrategicSuggestions   []string     `json:"strategic_suggestions"`
	RiskSignals            []RiskSignal `json:"risk_signals"`
	RecommendedAdjustments []string     `json:"recommended_adjustments"`
	Confidence             float64      `json:"confidence"`
	Reasoning              string       `json:"reasoning"`
	Available              bool         `json:"available"`
	Source                 string       `json:"source,omitempty"`
}

// ValidationStatus is the binding outcome of hard validation.
type ValidationStatus string

const (
	StatusApproved           ValidationStatus = "APPROVED"
	StatusRejected           ValidationStatus = "REJECTED"
	StatusRequiresAdjustment ValidationStatus = "REQUIRES_ADJUSTMENT"
	StatusNeedsHumanReview   ValidationStatus = "NEEDS_HUMAN_REVIEW"
)

// ValidationResult is the output of the hard validator.
type ValidationResult struct {
	Approved            bool               `json:"approved"`
	Status              ValidationStatus   `json:"status"`
	Reason              string             `json:"reason"`
	RiskScore           float64            `json:"risk_score"`
	RiskBreakdown       map[string]float64 `json:"risk_breakdown,omitempty"`
	RequiredAdjustments []string           `json:"required_adjustments,omitempty"`
	ViolatedRules       []string           `json:"violated_rules,omitempty"`
	RulesApplied        []string           `json:"rules_applied,omitempty"`
	Caution             bool               `json:"caution,omitempty"`
}

// Outcome is the final verdict returned to a producing engine.
type Outcome string

const (
	OutcomeApproved           Outcome = "APPROVED"
	OutcomeRejected           Outcome = "REJECTED"
	OutcomeRequiresAdjustment Outcome = "REQUIRES_ADJUSTMENT"
	OutcomeNeedsHumanReview   Outcome = "NEEDS_HUMAN_REVIEW"
	OutcomeCancelled          Outcome = "CANCELLED"
)

// OutcomeFromStatus maps a validation status to a verdict outcome.
func OutcomeFromStatus(s ValidationStatus) Outcome {
	switch s {
	case StatusApproved:
		return OutcomeApproved
	case StatusRequiresAdjustment:
		return OutcomeRequiresAdjustment
	case StatusNeedsHumanReview:
		return OutcomeNeedsHumanReview
	default:
		return OutcomeRejected
	}
}

// Stage names a state of the per-proposal governance state machine.
type Stage string

const (
	StageReceived              Stage = "RECEIVED"
	StageClassified            Stage = "CLASSIFIED"
	StageSimulated             Stage = "SIMULATED"
	StageAggressivenessChecked Stage = "AGGRESSIVENESS_CHECKED"
	StageSummarized            Stage = "SUMMARIZED"
	StageAnalyzed              Stage = "ANALYZED"
	StageValidated             Stage = "VALIDATED"
	StageLedgered              Stage = "LEDGERED"
	StageExplained             Stage = "EXPLAINED"
	StageReturned              Stage = "RETURNED"
)

// StageRecord is one transition in the state machine trail.
type StageRecord struct {
	Stage  Stage     `json:"stage"`
	At     time.Time `json:"at"`
	Failed bool      `json:"failed,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Verdict is what Evaluate returns. DecisionID is nil when no ledger entry
// backs the verdict (MICRO auto-approvals, malformed proposals, ledger outage).
type Verdict struct {
	DecisionID          *uuid.UUID        `json:"decision_id,omitempty"`
	Outcome             Outcome           `json:"outcome"`
	Level               DecisionLevel     `json:"level,omitempty"`
	Reason              string            `json:"reason"`
	Explanation         string            `json:"explanation"`
	RequiredAdjustments []string          `json:"required_adjustments,omitempty"`
	ViolatedRules       []string          `json:"violated_rules,omitempty"`
	Warnings            []string          `json:"warnings,omitempty"`
	Stages              []StageRecord     `json:"stages,omitempty"`
	Simulation          *SimulationResult `json:"simulation,omitempty"`
	Validation          *ValidationResult `json:"validation,omitempty"`
}
