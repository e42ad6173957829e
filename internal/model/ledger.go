package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is the full governance trail for one STANDARD+ proposal.
// Entries are append-only; Execution is attached once, later, and is not
// covered by ContentHash.
type LedgerEntry struct {
	ID             uuid.UUID            `json:"id"`
	CreatedAt      time.Time            `json:"created_at"`
	Proposal       ProposedDecision     `json:"proposal"`
	Level          DecisionLevel        `json:"level"`
	Simulation     *SimulationResult    `json:"simulation,omitempty"`
	Aggressiveness *AggressivenessScore `json:"aggressiveness,omitempty"`
	Analysis       *AnalyzerOutput      `json:"analysis,omitempty"`
	Validation     ValidationResult     `json:"validation"`
	Verdict        Outcome              `json:"verdict"`
	VerdictReason  string               `json:"verdict_reason"`
	Warnings       []string             `json:"warnings,omitempty"`
	Stages         []StageRecord        `json:"stages,omitempty"`
	ContentHash    string               `json:"content_hash,omitempty"`
	Execution      *ExecutionOutcome    `json:"execution,omitempty"`
}

// ExecutionStatus is what happened after a verdict was acted on.
type ExecutionStatus string

const (
	ExecutionExecuted ExecutionStatus = "executed"
	ExecutionFailed   ExecutionStatus = "failed"
	ExecutionSkipped  ExecutionStatus = "skipped"
)

// ExecutionOutcome is reported back by the producing engine.
type ExecutionOutcome struct {
	Status     ExecutionStatus `json:"status"`
	Detail     string          `json:"detail,omitempty"`
	ReportedAt time.Time       `json:"reported_at"`
}

// Validate checks that the outcome status is known.
func (o ExecutionOutcome) Validate() error {
	switch o.Status {
	case ExecutionExecuted, ExecutionFailed, ExecutionSkipped:
		return nil
	default:
		return fmt.Errorf("unknown execution status %q", o.Status)
	}
}

// LedgerQuery filters ledger reads. Zero values mean "no filter".
type LedgerQuery struct {
	Actor        string
	DecisionType string
	Level        DecisionLevel
	Verdict      Outcome
	From         *time.Time
	To           *time.Time
	Limit        int
}

// Matches reports whether e satisfies every set filter.
func (q LedgerQuery) Matches(e LedgerEntry) bool {
	if q.Actor != "" && e.Proposal.Actor != q.Actor {
		return false
	}
	if q.DecisionType != "" && e.Proposal.DecisionType != q.DecisionType {
		return false
	}
	if q.Level != "" && e.Level != q.Level {
		return false
	}
	if q.Verdict != "" && e.Verdict != q.Verdict {
		return false
	}
	if q.From != nil && e.CreatedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && !e.CreatedAt.Before(*q.To) {
		return false
	}
	return true
}

// PurgeRecord is the audit row written for every retention purge.
type PurgeRecord struct {
	ID        uuid.UUID `json:"id"`
	Operator  string    `json:"operator"`
	Reason    string    `json:"reason"`
	Cutoff    time.Time `json:"cutoff"`
	Deleted   int       `json:"deleted"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// NarrativeReport is a human-readable explanation of one ledger entry.
type NarrativeReport struct {
	DecisionID     uuid.UUID          `json:"decision_id"`
	Title          string             `json:"title"`
	Verdict        Outcome            `json:"verdict"`
	Level          DecisionLevel      `json:"level"`
	Confidence     float64            `json:"confidence"`
	ReasoningChain []string           `json:"reasoning_chain"`
	RiskBreakdown  map[string]float64 `json:"risk_breakdown,omitempty"`
	Text           string             `json:"text"`
}

// SignalCount is a risk signal name with how often it appeared.
type SignalCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyReport aggregates one day of ledger entries.
type DailyReport struct {
	Day                string                `json:"day"`
	Total              int                   `json:"total"`
	CountsByLevel      map[DecisionLevel]int `json:"counts_by_level"`
	CountsByOutcome    map[Outcome]int       `json:"counts_by_outcome"`
	TopRiskSignals     []SignalCount         `json:"top_risk_signals"`
	PeakAggressiveness *AggressivenessScore  `json:"peak_aggressiveness,omitempty"`
	FollowUps          []string              `json:"follow_ups"`
	LedgerRoot         string                `json:"ledger_root,omitempty"`
	Text               string                `json:"text"`
}
