package narrative

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/integrity"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func ledgerEntry(level model.DecisionLevel, verdict model.Outcome, at time.Time) model.LedgerEntry {
	risk, impact := 0.6, 0.5
	e := model.LedgerEntry{
		ID:        uuid.New(),
		CreatedAt: at,
		Proposal: model.ProposedDecision{
			Actor: "growth-engine", DecisionType: "scale_accounts",
			EstimatedRisk: &risk, EstimatedImpact: &impact,
		},
		Level: level,
		Simulation: &model.SimulationResult{
			TotalRiskScore: 0.41, ShadowbanProbability: 0.2,
			Blockers: []string{model.BlockerShadowbanDetected},
		},
		Aggressiveness: &model.AggressivenessScore{Level: model.AggressivenessSafe, GlobalScore: 0.2, EvaluatedAt: at},
		Analysis: &model.AnalyzerOutput{
			Available: true, Confidence: 0.6, Source: "rules",
			RiskSignals: []model.RiskSignal{{Name: "shadowban", Severity: model.SeverityCritical}},
		},
		Validation: model.ValidationResult{
			Status: model.StatusRejected, RiskScore: 0.5,
			RiskBreakdown: map[string]float64{"estimated": 0.6, "simulation": 0.41},
			ViolatedRules: []string{"SHADOWBAN", "ACCOUNT_SAFETY"},
		},
		Verdict:       verdict,
		VerdictReason: "critical rule violated: SHADOWBAN",
	}
	e.ContentHash, _ = integrity.ComputeEntryHash(e)
	return e
}

func TestExplainRejectedCritical(t *testing.T) {
	e := ledgerEntry(model.LevelCritical, model.OutcomeRejected, day.Add(9*time.Hour))
	r := Default().Explain(e)

	assert.Equal(t, e.ID, r.DecisionID)
	assert.Equal(t, model.OutcomeRejected, r.Verdict)
	assert.InDelta(t, 0.6, r.Confidence, 1e-9)
	assert.Equal(t, "CRITICAL scale_accounts by growth-engine: REJECTED", r.Title)
	require.Len(t, r.ReasoningChain, 6)
	assert.Contains(t, r.ReasoningChain[1], "blocked by shadowban_detected")
	assert.Contains(t, r.ReasoningChain[3], "shadowban (critical)")
	assert.Contains(t, r.ReasoningChain[4], "Violated: SHADOWBAN, ACCOUNT_SAFETY")
	assert.Contains(t, r.Text, "Verdict REJECTED")
	assert.Equal(t, e.Validation.RiskBreakdown, r.RiskBreakdown)

	r.RiskBreakdown["estimated"] = 0
	assert.InDelta(t, 0.6, e.Validation.RiskBreakdown["estimated"], 1e-9, "breakdown is copied")
}

func TestExplainUnavailableAnalysisAndExecution(t *testing.T) {
	e := ledgerEntry(model.LevelStandard, model.OutcomeApproved, day)
	e.Analysis = &model.AnalyzerOutput{Available: false, Reasoning: "analysis unavailable"}
	e.Warnings = []string{"approved without analysis"}
	e.Execution = &model.ExecutionOutcome{Status: model.ExecutionExecuted, Detail: "posted", ReportedAt: day.Add(time.Hour)}

	r := Default().Explain(e)
	assert.Zero(t, r.Confidence)
	assert.Contains(t, r.Text, "Analysis unavailable")
	assert.Contains(t, r.Text, "Warning: approved without analysis")
	assert.Contains(t, r.Text, "Execution reported executed at 2026-05-04T01:00:00Z: posted.")
}

func TestExplainIsDeterministic(t *testing.T) {
	e := ledgerEntry(model.LevelCritical, model.OutcomeRejected, day)
	assert.Equal(t, Default().Explain(e), Default().Explain(e))
}

func TestDailySummary(t *testing.T) {
	rejected := ledgerEntry(model.LevelCritical, model.OutcomeRejected, day.Add(2*time.Hour))
	approved := ledgerEntry(model.LevelStandard, model.OutcomeApproved, day.Add(3*time.Hour))
	approved.Analysis.RiskSignals = nil
	approved.Simulation = nil
	review := ledgerEntry(model.LevelStructural, model.OutcomeNeedsHumanReview, day.Add(4*time.Hour))
	yesterday := ledgerEntry(model.LevelStandard, model.OutcomeApproved, day.Add(-time.Hour))

	history := []model.AggressivenessScore{
		{Level: model.AggressivenessDanger, GlobalScore: 0.82, EvaluatedAt: day.Add(5 * time.Hour)},
		{Level: model.AggressivenessDanger, GlobalScore: 0.99, EvaluatedAt: day.Add(-2 * time.Hour)},
	}

	r := Default().DailySummary([]model.LedgerEntry{rejected, approved, review, yesterday}, history, day.Add(12*time.Hour))

	assert.Equal(t, "2026-05-04", r.Day)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.CountsByLevel[model.LevelCritical])
	assert.Equal(t, 1, r.CountsByLevel[model.LevelStandard])
	assert.Equal(t, 1, r.CountsByOutcome[model.OutcomeNeedsHumanReview])

	require.NotEmpty(t, r.TopRiskSignals)
	assert.Equal(t, model.SignalCount{Name: "shadowban", Count: 2}, r.TopRiskSignals[0])

	require.NotNil(t, r.PeakAggressiveness)
	assert.InDelta(t, 0.82, r.PeakAggressiveness.GlobalScore, 1e-9, "history outside the day is ignored")

	joined := strings.Join(r.FollowUps, "\n")
	assert.Contains(t, joined, "Human review pending for "+review.ID.String())
	assert.Contains(t, joined, "No execution outcome reported for "+approved.ID.String())
	assert.Contains(t, joined, "Fleet reached DANGER")

	assert.NotEmpty(t, r.LedgerRoot)
	assert.Equal(t, r.LedgerRoot, Default().DailySummary([]model.LedgerEntry{review, approved, rejected}, nil, day).LedgerRoot,
		"root does not depend on input order")
	assert.Contains(t, r.Text, "3 decisions")
}

func TestDailySummaryEmptyDay(t *testing.T) {
	r := Default().DailySummary(nil, nil, day)
	assert.Zero(t, r.Total)
	assert.Empty(t, r.LedgerRoot)
	assert.NotNil(t, r.TopRiskSignals)
	assert.NotNil(t, r.FollowUps)
	assert.Equal(t, "Governance summary for 2026-05-04: 0 decisions.", r.Text)
}

func TestLocaleFormatting(t *testing.T) {
	entries := make([]model.LedgerEntry, 0, 1200)
	for i := range 1200 {
		entries = append(entries, ledgerEntry(model.LevelStandard, model.OutcomeRejected, day.Add(time.Duration(i)*time.Second)))
	}
	en := Default().DailySummary(entries, nil, day)
	assert.Contains(t, en.Text, "1,200 decisions")

	de := New(language.German).DailySummary(entries, nil, day)
	assert.Contains(t, de.Text, "1.200 decisions")
}
