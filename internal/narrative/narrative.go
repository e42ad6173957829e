// Package narrative turns ledger entries into human-readable explanations
// and daily summaries. It only restates what the ledger already holds.
package narrative

import (
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/integrity"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

const topSignals = 5

// Generator renders reports with locale-aware number formatting.
type Generator struct {
	p *message.Printer
}

// New returns a generator for the given locale.
func New(tag language.Tag) *Generator {
	return &Generator{p: message.NewPrinter(tag)}
}

// Default returns an English generator.
func Default() *Generator { return New(language.English) }

// Explain renders the reasoning chain of one entry.
func (g *Generator) Explain(e model.LedgerEntry) model.NarrativeReport {
	title := g.p.Sprintf("%s %s by %s: %s", e.Level, clean(e.Proposal.DecisionType), clean(e.Proposal.Actor), e.Verdict)

	var chain []string
	chain = append(chain, g.p.Sprintf("Classified as %s (estimated risk %.2f, impact %.2f).",
		e.Level, e.Proposal.Risk(), e.Proposal.Impact()))

	if s := e.Simulation; s != nil {
		if s.ShouldProceed {
			chain = append(chain, g.p.Sprintf("Simulation: total risk %.2f, no blockers.", s.TotalRiskScore))
		} else {
			chain = append(chain, g.p.Sprintf("Simulation: total risk %.2f, blocked by %s.",
				s.TotalRiskScore, strings.Join(s.Blockers, ", ")))
		}
	}

	if a := e.Aggressiveness; a != nil {
		line := g.p.Sprintf("Fleet aggressiveness %s (score %.2f, %d actions in window).",
			a.Level, a.GlobalScore, a.ActionsInWindow)
		if a.ShouldBlockCritical {
			line += g.p.Sprintf(" Critical actions blocked; cooldown %d minutes.", a.CooldownRecommendedMinutes)
		}
		chain = append(chain, line)
	}

	confidence := 0.0
	if an := e.Analysis; an != nil {
		if an.Available {
			confidence = an.Confidence
			chain = append(chain, g.p.Sprintf("Analysis (%s) at confidence %.2f raised %d risk signals%s.",
				an.Source, an.Confidence, len(an.RiskSignals), signalSuffix(an.RiskSignals)))
		} else {
			chain = append(chain, "Analysis unavailable; validation ran on metrics alone.")
		}
	}

	v := e.Validation
	if v.Status != "" {
		line := g.p.Sprintf("Validation %s with risk score %.2f.", v.Status, v.RiskScore)
		if len(v.ViolatedRules) > 0 {
			line += " Violated: " + strings.Join(v.ViolatedRules, ", ") + "."
		}
		if len(v.RequiredAdjustments) > 0 {
			line += " Required: " + strings.Join(v.RequiredAdjustments, "; ") + "."
		}
		chain = append(chain, line)
	}

	chain = append(chain, g.p.Sprintf("Verdict %s: %s", e.Verdict, clean(e.VerdictReason)))
	for _, w := range e.Warnings {
		chain = append(chain, "Warning: "+clean(w))
	}
	if x := e.Execution; x != nil {
		line := g.p.Sprintf("Execution reported %s at %s.", x.Status, x.ReportedAt.UTC().Format(time.RFC3339))
		if x.Detail != "" {
			line = strings.TrimSuffix(line, ".") + ": " + clean(x.Detail) + "."
		}
		chain = append(chain, line)
	}

	return model.NarrativeReport{
		DecisionID:     e.ID,
		Title:          title,
		Verdict:        e.Verdict,
		Level:          e.Level,
		Confidence:     confidence,
		ReasoningChain: chain,
		RiskBreakdown:  copyBreakdown(v.RiskBreakdown),
		Text:           title + "\n" + strings.Join(chain, "\n"),
	}
}

func signalSuffix(signals []model.RiskSignal) string {
	if len(signals) == 0 {
		return ""
	}
	parts := make([]string, 0, len(signals))
	for _, s := range signals {
		parts = append(parts, s.Name+" ("+string(s.Severity)+")")
	}
	return ": " + strings.Join(parts, ", ")
}

// DailySummary aggregates the entries created on day (UTC). history supplies
// aggressiveness evaluations that never reached the ledger.
func (g *Generator) DailySummary(entries []model.LedgerEntry, history []model.AggressivenessScore, day time.Time) model.DailyReport {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	inDay := func(t time.Time) bool { return !t.Before(start) && t.Before(end) }

	report := model.DailyReport{
		Day:             start.Format(time.DateOnly),
		CountsByLevel:   make(map[model.DecisionLevel]int),
		CountsByOutcome: make(map[model.Outcome]int),
		TopRiskSignals:  []model.SignalCount{},
		FollowUps:       []string{},
	}

	var peak *model.AggressivenessScore
	consider := func(a *model.AggressivenessScore) {
		if a == nil || !inDay(a.EvaluatedAt) {
			return
		}
		if peak == nil || a.GlobalScore > peak.GlobalScore {
			cp := *a
			peak = &cp
		}
	}

	signals := make(map[string]int)
	var hashes []string
	for _, e := range entries {
		if !inDay(e.CreatedAt) {
			continue
		}
		report.Total++
		report.CountsByLevel[e.Level]++
		report.CountsByOutcome[e.Verdict]++
		if e.ContentHash != "" {
			hashes = append(hashes, e.ContentHash)
		}
		if e.Analysis != nil {
			for _, s := range e.Analysis.RiskSignals {
				signals[s.Name]++
			}
		}
		if e.Simulation != nil {
			for _, b := range e.Simulation.Blockers {
				signals[b]++
			}
		}
		consider(e.Aggressiveness)
		report.FollowUps = append(report.FollowUps, followUps(e)...)
	}
	for i := range history {
		consider(&history[i])
	}

	for name, n := range signals {
		report.TopRiskSignals = append(report.TopRiskSignals, model.SignalCount{Name: name, Count: n})
	}
	sort.Slice(report.TopRiskSignals, func(i, j int) bool {
		a, b := report.TopRiskSignals[i], report.TopRiskSignals[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	if len(report.TopRiskSignals) > topSignals {
		report.TopRiskSignals = report.TopRiskSignals[:topSignals]
	}

	report.PeakAggressiveness = peak
	if peak != nil && peak.Level == model.AggressivenessDanger {
		report.FollowUps = append(report.FollowUps,
			g.p.Sprintf("Fleet reached DANGER (score %.2f); review action pacing before lifting the cooldown.", peak.GlobalScore))
	}

	slices.Sort(hashes)
	report.LedgerRoot = integrity.BuildMerkleRoot(hashes)
	report.Text = g.dailyText(report)
	return report
}

func followUps(e model.LedgerEntry) []string {
	ref := e.ID.String() + " (" + clean(e.Proposal.DecisionType) + ")"
	switch e.Verdict {
	case model.OutcomeNeedsHumanReview:
		return []string{"Human review pending for " + ref + "."}
	case model.OutcomeRequiresAdjustment:
		if len(e.Validation.RequiredAdjustments) > 0 {
			return []string{"Resubmit " + ref + " after: " + strings.Join(e.Validation.RequiredAdjustments, "; ") + "."}
		}
		return []string{"Resubmit " + ref + " with adjustments."}
	case model.OutcomeApproved:
		if e.Execution == nil {
			return []string{"No execution outcome reported for " + ref + "."}
		}
		if e.Execution.Status == model.ExecutionFailed {
			return []string{"Execution failed for " + ref + "."}
		}
	}
	return nil
}

func (g *Generator) dailyText(r model.DailyReport) string {
	var b strings.Builder
	b.WriteString(g.p.Sprintf("Governance summary for %s: %d decisions.\n", r.Day, r.Total))
	if r.Total > 0 {
		var parts []string
		for _, l := range model.AllLevels() {
			if n := r.CountsByLevel[l]; n > 0 {
				parts = append(parts, g.p.Sprintf("%s %d", l, n))
			}
		}
		b.WriteString("By level: " + strings.Join(parts, ", ") + ".\n")

		parts = parts[:0]
		for _, o := range []model.Outcome{
			model.OutcomeApproved, model.OutcomeRequiresAdjustment, model.OutcomeNeedsHumanReview,
			model.OutcomeRejected, model.OutcomeCancelled,
		} {
			if n := r.CountsByOutcome[o]; n > 0 {
				parts = append(parts, g.p.Sprintf("%s %d (%.0f%%)", o, n, 100*float64(n)/float64(r.Total)))
			}
		}
		b.WriteString("By outcome: " + strings.Join(parts, ", ") + ".\n")
	}
	if len(r.TopRiskSignals) > 0 {
		parts := make([]string, 0, len(r.TopRiskSignals))
		for _, s := range r.TopRiskSignals {
			parts = append(parts, g.p.Sprintf("%s ×%d", s.Name, s.Count))
		}
		b.WriteString("Top risk signals: " + strings.Join(parts, ", ") + ".\n")
	}
	if p := r.PeakAggressiveness; p != nil {
		b.WriteString(g.p.Sprintf("Peak aggressiveness %s at %.2f.\n", p.Level, p.GlobalScore))
	}
	if n := len(r.FollowUps); n > 0 {
		b.WriteString(g.p.Sprintf("%d follow-ups.\n", n))
	}
	if r.LedgerRoot != "" {
		b.WriteString("Ledger root: " + r.LedgerRoot + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// clean normalizes caller-supplied text so reports compare byte-for-byte.
func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func copyBreakdown(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
