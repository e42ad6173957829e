package warden

import (
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/alert"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// Domain types, re-exported so embedders never import internal packages.
type (
	Config           = config.Config
	Policy           = config.Policy
	ProposedDecision = model.ProposedDecision
	DecisionContext  = model.DecisionContext
	RiskSignals      = model.RiskSignals
	FleetSignals     = model.FleetSignals
	Verdict          = model.Verdict
	Outcome          = model.Outcome
	DecisionLevel    = model.DecisionLevel
	LedgerEntry      = model.LedgerEntry
	LedgerQuery      = model.LedgerQuery
	ExecutionOutcome = model.ExecutionOutcome
	ExecutionStatus  = model.ExecutionStatus
	Snapshot         = model.Snapshot
	AnalyzerOutput   = model.AnalyzerOutput
	ValidationResult = model.ValidationResult
	NarrativeReport  = model.NarrativeReport
	DailyReport      = model.DailyReport
	Action           = model.Action
	Aggressiveness   = model.AggressivenessScore
	Alert            = alert.Alert
)

// Verdict outcomes.
const (
	OutcomeApproved           = model.OutcomeApproved
	OutcomeRequiresAdjustment = model.OutcomeRequiresAdjustment
	OutcomeNeedsHumanReview   = model.OutcomeNeedsHumanReview
	OutcomeRejected           = model.OutcomeRejected
	OutcomeCancelled          = model.OutcomeCancelled
)

// Execution statuses.
const (
	ExecutionExecuted = model.ExecutionExecuted
	ExecutionFailed   = model.ExecutionFailed
	ExecutionSkipped  = model.ExecutionSkipped
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Defaults() }

// LoadConfig reads configuration from the environment and the optional
// policy file.
func LoadConfig() (Config, error) { return config.Load() }
