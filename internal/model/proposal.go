package model

import (
	"fmt"
	"time"
)

// Field length limits for ProposedDecision fields. They keep a single
// oversized field from bloating ledger rows and CSV exports.
const (
	MaxActorLen        = 200
	MaxDecisionTypeLen = 200
	MaxChosenLen       = 32 * 1024 // 32 KB
	MaxReasoningLen    = 64 * 1024 // 64 KB
)

// ProposedDecision is an action a producing engine wants to execute.
// It is read-only once submitted for evaluation.
type ProposedDecision struct {
	Actor                  string          `json:"actor"`
	DecisionType           string          `json:"decision_type"`
	Timestamp              time.Time       `json:"timestamp"`
	Context                DecisionContext `json:"context"`
	Inputs                 []string        `json:"inputs,omitempty"`
	AlternativesConsidered []string        `json:"alternatives_considered,omitempty"`
	Chosen                 string          `json:"chosen"`
	Reasoning              string          `json:"reasoning,omitempty"`

	// Pointers distinguish a missing estimate from an explicit zero.
	EstimatedRisk   *float64 `json:"estimated_risk"`
	EstimatedImpact *float64 `json:"estimated_impact"`
	Confidence      float64  `json:"confidence"`
}

// DecisionContext carries the typed fields governance depends on plus an
// open extension map for engine-specific extras. Fleet, when set, takes
// precedence over the configured signal source.
type DecisionContext struct {
	AccountsAffected int            `json:"accounts_affected"`
	AccountIDs       []string       `json:"account_ids,omitempty"`
	EstimatedCost    float64        `json:"estimated_cost"`
	Platform         string         `json:"platform,omitempty"`
	Signals          *RiskSignals   `json:"signals,omitempty"`
	Fleet            *FleetSignals  `json:"fleet,omitempty"`
	Extensions       map[string]any `json:"extensions,omitempty"`
}

// RiskSignals are the caller-supplied observations the risk simulation
// works from. Trends are relative changes, e.g. -0.4 for a 40% decline.
type RiskSignals struct {
	FingerprintChanges           int       `json:"fingerprint_changes"`
	IPChanges                    int       `json:"ip_changes"`
	ActionIntervalsSeconds       []float64 `json:"action_intervals_seconds,omitempty"`
	ContentSimilarity            float64   `json:"content_similarity"`
	ReachTrend                   float64   `json:"reach_trend"`
	EngagementTrend              float64   `json:"engagement_trend"`
	PlatformFlags                []string  `json:"platform_flags,omitempty"`
	AccountFlagged               bool      `json:"account_flagged"`
	SharedInfrastructureAccounts int       `json:"shared_infrastructure_accounts"`
	BehaviorSimilarity           float64   `json:"behavior_similarity"`
}

// Risk returns the estimated risk, or 0 when it is missing.
func (p ProposedDecision) Risk() float64 {
	if p.EstimatedRisk == nil {
		return 0
	}
	return *p.EstimatedRisk
}

// Impact returns the estimated impact, or 0 when it is missing.
func (p ProposedDecision) Impact() float64 {
	if p.EstimatedImpact == nil {
		return 0
	}
	return *p.EstimatedImpact
}

// ValidateProposalFields checks per-field length limits and the few
// structural requirements that do not depend on scoring.
func ValidateProposalFields(p ProposedDecision) error {
	if p.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if p.DecisionType == "" {
		return fmt.Errorf("decision_type is required")
	}
	if len(p.Actor) > MaxActorLen {
		return fmt.Errorf("actor exceeds maximum length of %d characters", MaxActorLen)
	}
	if len(p.DecisionType) > MaxDecisionTypeLen {
		return fmt.Errorf("decision_type exceeds maximum length of %d characters", MaxDecisionTypeLen)
	}
	if len(p.Chosen) > MaxChosenLen {
		return fmt.Errorf("chosen exceeds maximum length of %d bytes", MaxChosenLen)
	}
	if len(p.Reasoning) > MaxReasoningLen {
		return fmt.Errorf("reasoning exceeds maximum length of %d bytes", MaxReasoningLen)
	}
	if p.Context.AccountsAffected < 0 {
		return fmt.Errorf("context.accounts_affected must not be negative")
	}
	if p.Context.EstimatedCost < 0 {
		return fmt.Errorf("context.estimated_cost must not be negative")
	}
	return nil
}
