package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// CSVColumns is the fixed export header. Columns are only ever appended.
var CSVColumns = []string{
	"id",
	"created_at",
	"actor",
	"decision_type",
	"level",
	"verdict",
	"verdict_reason",
	"validation_status",
	"risk_score",
	"estimated_risk",
	"estimated_impact",
	"simulation_total_risk",
	"simulation_should_proceed",
	"aggressiveness_level",
	"aggressiveness_score",
	"analysis_available",
	"analysis_confidence",
	"violated_rules",
	"execution_status",
	"content_hash",
	"proposal_timestamp",
	"chosen",
	"proposal_reasoning",
	"proposal_confidence",
	"inputs",
	"alternatives_considered",
	"simulation_identity_risk",
	"simulation_pattern_repetition_score",
	"simulation_shadowban_probability",
	"simulation_correlation_risk",
	"simulation_blockers",
	"analysis_observations",
	"analysis_detected_patterns",
	"analysis_strategic_suggestions",
	"analysis_risk_signals",
	"analysis_recommended_adjustments",
	"analysis_reasoning",
	"validation_approved",
	"validation_reason",
	"required_adjustments",
	"rules_applied",
}

// WriteCSV writes entries as flat rows under CSVColumns. Missing optional
// values are empty cells.
func WriteCSV(w io.Writer, entries []model.LedgerEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return fmt.Errorf("ledger: write csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(csvRow(e)); err != nil {
			return fmt.Errorf("ledger: write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("ledger: flush csv: %w", err)
	}
	return nil
}

func csvRow(e model.LedgerEntry) []string {
	num := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	opt := func(f *float64) string {
		if f == nil {
			return ""
		}
		return num(*f)
	}

	list := func(v []string) string { return strings.Join(v, ";") }

	var simTotal, simProceed, aggLevel, aggScore, anaAvail, anaConf, execStatus string
	var simIdentity, simPattern, simShadowban, simCorrelation, simBlockers string
	if e.Simulation != nil {
		simTotal = num(e.Simulation.TotalRiskScore)
		simProceed = strconv.FormatBool(e.Simulation.ShouldProceed)
		simIdentity = num(e.Simulation.IdentityRisk)
		simPattern = num(e.Simulation.PatternRepetitionScore)
		simShadowban = num(e.Simulation.ShadowbanProbability)
		simCorrelation = num(e.Simulation.CorrelationRisk)
		simBlockers = list(e.Simulation.Blockers)
	}
	if e.Aggressiveness != nil {
		aggLevel = string(e.Aggressiveness.Level)
		aggScore = num(e.Aggressiveness.GlobalScore)
	}
	var anaObs, anaPatterns, anaSuggestions, anaSignals, anaAdjustments, anaReasoning string
	if a := e.Analysis; a != nil {
		anaAvail = strconv.FormatBool(a.Available)
		anaConf = num(a.Confidence)
		anaObs = list(a.Observations)
		anaPatterns = list(a.DetectedPatterns)
		anaSuggestions = list(a.StrategicSuggestions)
		signals := make([]string, len(a.RiskSignals))
		for i, r := range a.RiskSignals {
			signals[i] = r.Name + ":" + r.Severity
		}
		anaSignals = list(signals)
		anaAdjustments = list(a.RecommendedAdjustments)
		anaReasoning = a.Reasoning
	}
	var proposedAt string
	if !e.Proposal.Timestamp.IsZero() {
		proposedAt = e.Proposal.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if e.Execution != nil {
		execStatus = string(e.Execution.Status)
	}

	return []string{
		e.ID.String(),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.Proposal.Actor,
		e.Proposal.DecisionType,
		string(e.Level),
		string(e.Verdict),
		e.VerdictReason,
		string(e.Validation.Status),
		num(e.Validation.RiskScore),
		opt(e.Proposal.EstimatedRisk),
		opt(e.Proposal.EstimatedImpact),
		simTotal,
		simProceed,
		aggLevel,
		aggScore,
		anaAvail,
		anaConf,
		list(e.Validation.ViolatedRules),
		execStatus,
		e.ContentHash,
		proposedAt,
		e.Proposal.Chosen,
		e.Proposal.Reasoning,
		num(e.Proposal.Confidence),
		list(e.Proposal.Inputs),
		list(e.Proposal.AlternativesConsidered),
		simIdentity,
		simPattern,
		simShadowban,
		simCorrelation,
		simBlockers,
		anaObs,
		anaPatterns,
		anaSuggestions,
		anaSignals,
		anaAdjustments,
		anaReasoning,
		strconv.FormatBool(e.Validation.Approved),
		e.Validation.Reason,
		list(e.Validation.RequiredAdjustments),
		list(e.Validation.RulesApplied),
	}
}
