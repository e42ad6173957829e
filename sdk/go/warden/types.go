package warden

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the final verdict on a proposal.
type Outcome string

const (
	OutcomeApproved           Outcome = "APPROVED"
	OutcomeRequiresAdjustment Outcome = "REQUIRES_ADJUSTMENT"
	OutcomeNeedsHumanReview   Outcome = "NEEDS_HUMAN_REVIEW"
	OutcomeRejected           Outcome = "REJECTED"
	OutcomeCancelled          Outcome = "CANCELLED"
)

// ExecutionStatus is what happened after a verdict was acted on.
type ExecutionStatus string

const (
	ExecutionExecuted ExecutionStatus = "executed"
	ExecutionFailed   ExecutionStatus = "failed"
	ExecutionSkipped  ExecutionStatus = "skipped"
)

// Proposal is a decision submitted for governance. EstimatedRisk and
// EstimatedImpact are required by the server; use Float to set them.
type Proposal struct {
	Actor                  string          `json:"actor"`
	DecisionType           string          `json:"decision_type"`
	Timestamp              time.Time       `json:"timestamp,omitzero"`
	Context                DecisionContext `json:"context"`
	Inputs                 []string        `json:"inputs,omitempty"`
	AlternativesConsidered []string        `json:"alternatives_considered,omitempty"`
	Chosen                 string          `json:"chosen"`
	Reasoning              string          `json:"reasoning,omitempty"`
	EstimatedRisk          *float64        `json:"estimated_risk"`
	EstimatedImpact        *float64        `json:"estimated_impact"`
	Confidence             float64         `json:"confidence"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// DecisionContext carries the fields governance reads from a proposal.
// Fleet is passed through as-is.
type DecisionContext struct {
	AccountsAffected int            `json:"accounts_affected"`
	AccountIDs       []string       `json:"account_ids,omitempty"`
	EstimatedCost    float64        `json:"estimated_cost"`
	Platform         string         `json:"platform,omitempty"`
	Signals          *RiskSignals   `json:"signals,omitempty"`
	Fleet            map[string]any `json:"fleet,omitempty"`
	Extensions       map[string]any `json:"extensions,omitempty"`
}

// RiskSignals are observations the risk simulation works from.
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

// Verdict is the governance answer to a proposal.
type Verdict struct {
	DecisionID          *uuid.UUID  `json:"decision_id,omitempty"`
	Outcome             Outcome     `json:"outcome"`
	Level               string      `json:"level,omitempty"`
	Reason              string      `json:"reason"`
	Explanation         string      `json:"explanation"`
	RequiredAdjustments []string    `json:"required_adjustments,omitempty"`
	ViolatedRules       []string    `json:"violated_rules,omitempty"`
	Warnings            []string    `json:"warnings,omitempty"`
	Stages              []Stage     `json:"stages,omitempty"`
	Validation          *Validation `json:"validation,omitempty"`
}

// Approved reports whether the caller may act on the proposal.
func (v Verdict) Approved() bool { return v.Outcome == OutcomeApproved }

// Stage is one pipeline step the proposal passed through.
type Stage struct {
	Stage  string    `json:"stage"`
	At     time.Time `json:"at"`
	Failed bool      `json:"failed,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Validation is the hard validator's result.
type Validation struct {
	Approved      bool               `json:"approved"`
	Status        string             `json:"status"`
	Reason        string             `json:"reason"`
	RiskScore     float64            `json:"risk_score"`
	RiskBreakdown map[string]float64 `json:"risk_breakdown,omitempty"`
}

// Execution is the reported outcome of acting on a verdict.
type Execution struct {
	Status     ExecutionStatus `json:"status"`
	Detail     string          `json:"detail,omitempty"`
	ReportedAt time.Time       `json:"reported_at,omitzero"`
}

// Entry is a recorded ledger entry.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	Proposal      Proposal   `json:"proposal"`
	Level         string     `json:"level"`
	Validation    Validation `json:"validation"`
	Verdict       Outcome    `json:"verdict"`
	VerdictReason string     `json:"verdict_reason"`
	Warnings      []string   `json:"warnings,omitempty"`
	Stages        []Stage    `json:"stages,omitempty"`
	ContentHash   string     `json:"content_hash,omitempty"`
	Execution     *Execution `json:"execution,omitempty"`
}

// Explanation is the narrative for a recorded verdict.
type Explanation struct {
	DecisionID     uuid.UUID          `json:"decision_id"`
	Title          string             `json:"title"`
	Verdict        Outcome            `json:"verdict"`
	Level          string             `json:"level"`
	Confidence     float64            `json:"confidence"`
	ReasoningChain []string           `json:"reasoning_chain"`
	RiskBreakdown  map[string]float64 `json:"risk_breakdown,omitempty"`
	Text           string             `json:"text"`
}

// Aggressiveness is the fleet-wide pacing score.
type Aggressiveness struct {
	GlobalScore                float64    `json:"global_score"`
	Level                      string     `json:"level"`
	CooldownRecommendedMinutes int        `json:"cooldown_recommended_minutes"`
	ShouldBlockCritical        bool       `json:"should_block_critical"`
	ActionsInWindow            int        `json:"actions_in_window"`
	CooldownUntil              *time.Time `json:"cooldown_until,omitempty"`
	EvaluatedAt                time.Time  `json:"evaluated_at"`
}

// Action is one executed action reported to the aggressiveness window.
type Action struct {
	ID         string     `json:"id,omitempty"`
	Type       string     `json:"type"`
	AccountID  string     `json:"account_id"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// DailyReport aggregates one UTC day of verdicts.
type DailyReport struct {
	Day             string          `json:"day"`
	Total           int             `json:"total"`
	CountsByLevel   map[string]int  `json:"counts_by_level"`
	CountsByOutcome map[Outcome]int `json:"counts_by_outcome"`
	FollowUps       []string        `json:"follow_ups"`
	LedgerRoot      string          `json:"ledger_root,omitempty"`
	Text            string          `json:"text"`
}

// Health is the server health summary.
type Health struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Ledger         string `json:"ledger"`
	LedgerEntries  int    `json:"ledger_entries"`
	Aggressiveness string `json:"aggressiveness"`
	Uptime         int64  `json:"uptime_seconds"`
}

// ListFilters narrow ListDecisions. Zero values mean no filter.
type ListFilters struct {
	Actor        string
	DecisionType string
	Level        string
	Verdict      Outcome
	From         *time.Time
	To           *time.Time
	Limit        int
}

// PurgeRequest asks the server to apply retention. Operator and Reason are
// recorded in the purge log.
type PurgeRequest struct {
	Operator      string `json:"operator"`
	Reason        string `json:"reason"`
	RetentionDays *int   `json:"retention_days,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty"`
}

// PurgeResult reports what a purge removed, or would remove on a dry run.
type PurgeResult struct {
	DryRun  bool      `json:"dry_run"`
	Cutoff  time.Time `json:"cutoff"`
	Deleted int       `json:"deleted"`
}
