// Package governance runs one proposal through the full supervision state
// machine: classify, simulate, check aggressiveness, summarize, analyze,
// validate, record and explain.
//
// Both the HTTP API and the MCP server delegate here so every entry point
// gets the same verdicts and the same ledger trail.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/alert"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/classifier"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/cognitive"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/narrative"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/summary"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/telemetry"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/validator"
)

// Simulator estimates pre-action risk.
type Simulator interface {
	Simulate(ctx context.Context, p model.ProposedDecision) (model.SimulationResult, error)
}

// Monitor tracks fleet-wide aggressiveness.
type Monitor interface {
	Evaluate(ctx context.Context) (model.AggressivenessScore, error)
	RecordAction(ctx context.Context, a model.Action)
	History(since time.Time) []model.AggressivenessScore
}

// SignalSource supplies fleet signals for a proposal when the proposal does
// not carry them itself.
type SignalSource interface {
	Signals(ctx context.Context, p model.ProposedDecision) (model.FleetSignals, error)
}

// NoSignals is a SignalSource with nothing to report.
type NoSignals struct{}

func (NoSignals) Signals(context.Context, model.ProposedDecision) (model.FleetSignals, error) {
	return model.FleetSignals{}, nil
}

// Deps are the collaborators of a Service. Nil fields get defaults built
// from Policy, except Ledger and Monitor which are required.
type Deps struct {
	Policy     config.Policy
	Classifier *classifier.Classifier
	Simulator  Simulator
	Monitor    Monitor
	Summary    *summary.Generator
	Analyzer   cognitive.Analyzer
	Validator  validator.Validator
	Ledger     ledger.Store
	Narrator   *narrative.Generator
	Signals    SignalSource
	Alerts     alert.Sink
	Tracker    *OutcomeTracker
	Logger     *slog.Logger
	Now        func() time.Time

	// OnVerdict, when set, is called with every verdict before Evaluate
	// returns. It must not block.
	OnVerdict func(model.ProposedDecision, model.Verdict)
}

// Service is safe for concurrent use.
type Service struct {
	policy     config.Policy
	classifier *classifier.Classifier
	simulator  Simulator
	monitor    Monitor
	summary    *summary.Generator
	analyzer   *cognitive.Guarded
	validator  validator.Validator
	ledger     ledger.Store
	narrator   *narrative.Generator
	signals    SignalSource
	alerts     alert.Sink
	tracker    *OutcomeTracker
	logger     *slog.Logger
	now        func() time.Time
	onVerdict  func(model.ProposedDecision, model.Verdict)

	tracer        trace.Tracer
	evaluations   metric.Int64Counter
	stageFailures metric.Int64Counter
	duration      metric.Float64Histogram
}

// New creates a Service.
func New(d Deps) (*Service, error) {
	if d.Ledger == nil {
		return nil, errors.New("governance: ledger is required")
	}
	if d.Monitor == nil {
		return nil, errors.New("governance: aggressiveness monitor is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Classifier == nil {
		c, err := classifier.New(d.Policy.Classifier)
		if err != nil {
			return nil, fmt.Errorf("governance: %w", err)
		}
		d.Classifier = c
	}
	if d.Summary == nil {
		d.Summary = summary.New(d.Policy)
	}
	if d.Analyzer == nil {
		d.Analyzer = cognitive.NewRuleAnalyzer(d.Policy.Validation)
	}
	if d.Validator == nil {
		v, err := validator.FromPolicy(d.Policy)
		if err != nil {
			return nil, fmt.Errorf("governance: %w", err)
		}
		d.Validator = v
	}
	if d.Narrator == nil {
		d.Narrator = narrative.Default()
	}
	if d.Signals == nil {
		d.Signals = NoSignals{}
	}
	if d.Alerts == nil {
		d.Alerts = alert.NewLogSink(d.Logger)
	}
	if d.Tracker == nil {
		d.Tracker = NewOutcomeTracker(100)
	}
	if d.Simulator == nil {
		return nil, errors.New("governance: simulator is required")
	}

	meter := telemetry.Meter("warden/governance")
	evaluations, _ := meter.Int64Counter("warden.evaluations",
		metric.WithDescription("Proposals evaluated, by level and outcome"),
	)
	stageFailures, _ := meter.Int64Counter("warden.stage_failures",
		metric.WithDescription("Governance stages that failed and fell back"),
	)
	duration, _ := meter.Float64Histogram("warden.evaluation.duration",
		metric.WithDescription("Time to reach a verdict (ms)"),
		metric.WithUnit("ms"),
	)

	return &Service{
		policy:        d.Policy,
		classifier:    d.Classifier,
		simulator:     d.Simulator,
		monitor:       d.Monitor,
		summary:       d.Summary,
		analyzer:      cognitive.NewGuarded(d.Analyzer, d.Policy.Timeouts.Analyzer, d.Logger),
		validator:     d.Validator,
		ledger:        d.Ledger,
		narrator:      d.Narrator,
		signals:       d.Signals,
		alerts:        d.Alerts,
		tracker:       d.Tracker,
		logger:        d.Logger,
		now:           d.Now,
		onVerdict:     d.OnVerdict,
		tracer:        telemetry.Tracer("warden/governance"),
		evaluations:   evaluations,
		stageFailures: stageFailures,
		duration:      duration,
	}, nil
}

// run is the mutable state of one Evaluate call.
type run struct {
	svc      *Service
	p        model.ProposedDecision
	level    model.DecisionLevel
	steps    model.Steps
	stages   []model.StageRecord
	failed   []string
	warnings []string

	signals    model.FleetSignals
	sim        *model.SimulationResult
	agg        *model.AggressivenessScore
	analysis   *model.AnalyzerOutput
	validation model.ValidationResult

	outcome model.Outcome
	reason  string
}

func (r *run) mark(stage model.Stage, detail string) {
	r.stages = append(r.stages, model.StageRecord{Stage: stage, At: r.svc.now().UTC(), Detail: detail})
}

func (r *run) fail(ctx context.Context, stage model.Stage, err error) {
	r.stages = append(r.stages, model.StageRecord{Stage: stage, At: r.svc.now().UTC(), Failed: true, Detail: err.Error()})
	r.failed = append(r.failed, string(stage))
	r.svc.stageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
	r.svc.logger.Warn("governance: stage failed",
		"stage", stage, "decision_type", r.p.DecisionType, "level", r.level, "error", err)
}

// cancelled switches the run to CANCELLED if the caller has gone away.
func (r *run) cancelled(ctx context.Context, during model.Stage) bool {
	if ctx.Err() == nil {
		return false
	}
	r.outcome = model.OutcomeCancelled
	r.reason = fmt.Sprintf("cancelled by caller after %s", during)
	return true
}

// Evaluate returns a verdict for p. It never returns an error: every failure
// is folded into the verdict.
func (s *Service) Evaluate(ctx context.Context, p model.ProposedDecision) model.Verdict {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "governance.Evaluate", trace.WithAttributes(
		attribute.String("warden.actor", p.Actor),
		attribute.String("warden.decision_type", p.DecisionType),
	))
	defer span.End()

	r := &run{svc: s, p: p}
	r.mark(model.StageReceived, "")

	v := s.evaluate(ctx, r)

	span.SetAttributes(
		attribute.String("warden.level", string(v.Level)),
		attribute.String("warden.outcome", string(v.Outcome)),
	)
	s.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", string(v.Level)),
		attribute.String("outcome", string(v.Outcome)),
	))
	s.duration.Record(ctx, float64(s.now().Sub(start).Milliseconds()))
	s.logger.Info("governance: verdict",
		"decision_id", idString(v.DecisionID), "actor", p.Actor, "decision_type", p.DecisionType,
		"level", v.Level, "outcome", v.Outcome)
	if s.onVerdict != nil {
		s.onVerdict(p, v)
	}
	return v
}

func (s *Service) evaluate(ctx context.Context, r *run) model.Verdict {
	cls, err := s.classifier.Classify(r.p)
	if err != nil {
		r.fail(ctx, model.StageClassified, err)
		r.mark(model.StageReturned, "")
		reason := "malformed proposal: " + err.Error()
		return model.Verdict{
			Outcome:     model.OutcomeRejected,
			Reason:      reason,
			Explanation: "The proposal was rejected before classification: " + err.Error() + ". No ledger entry was written.",
			Stages:      r.stages,
		}
	}
	r.level = cls.Level
	r.steps = cls.Steps
	r.mark(model.StageClassified, string(cls.Level))

	if !r.steps.Ledger {
		r.mark(model.StageReturned, "")
		return model.Verdict{
			Outcome: model.OutcomeApproved,
			Level:   r.level,
			Reason:  "micro decision auto-approved",
			Explanation: fmt.Sprintf("MICRO %s by %s needs no governance steps and was approved without a ledger entry.",
				r.p.DecisionType, r.p.Actor),
			Stages: r.stages,
		}
	}

	if !r.cancelled(ctx, model.StageClassified) {
		s.gather(ctx, r)
	}
	if r.outcome == "" {
		s.assess(ctx, r)
	}
	if r.outcome == "" {
		s.decide(r)
	}
	return s.record(ctx, r)
}

// gather runs simulation, aggressiveness and signal collection in parallel.
// Each stage falls back on failure; none aborts the others.
func (s *Service) gather(ctx context.Context, r *run) {
	var (
		g                         errgroup.Group
		sim                       *model.SimulationResult
		agg                       *model.AggressivenessScore
		signals                   model.FleetSignals
		simErr, aggErr, signalErr error
	)

	if r.steps.Simulation {
		g.Go(func() error {
			sctx, cancel := withTimeout(ctx, s.policy.Timeouts.Simulation)
			defer cancel()
			res, err := s.simulator.Simulate(sctx, r.p)
			if err != nil {
				simErr = err
				return nil
			}
			sim = &res
			return nil
		})
	}
	if r.steps.Aggressiveness {
		g.Go(func() error {
			actx, cancel := withTimeout(ctx, s.policy.Timeouts.Aggressiveness)
			defer cancel()
			res, err := evaluateMonitor(actx, s.monitor)
			if err != nil {
				aggErr = err
				return nil
			}
			agg = &res
			return nil
		})
	}
	g.Go(func() error {
		if r.p.Context.Fleet != nil {
			signals = *r.p.Context.Fleet
			return nil
		}
		sctx, cancel := withTimeout(ctx, s.policy.Timeouts.Signals)
		defer cancel()
		res, err := s.signals.Signals(sctx, r.p)
		if err != nil {
			signalErr = err
			return nil
		}
		signals = res
		return nil
	})
	_ = g.Wait()

	if r.cancelled(ctx, model.StageClassified) {
		return
	}

	if r.steps.Simulation {
		if simErr != nil {
			r.fail(ctx, model.StageSimulated, simErr)
			sim = &model.SimulationResult{
				Blockers:   []string{model.BlockerSimulationUnavailable},
				ComputedAt: s.now().UTC(),
			}
		} else {
			r.mark(model.StageSimulated, fmt.Sprintf("total risk %.2f", sim.TotalRiskScore))
		}
		r.sim = sim
	}
	if r.steps.Aggressiveness {
		if aggErr != nil {
			r.fail(ctx, model.StageAggressivenessChecked, aggErr)
			agg = &model.AggressivenessScore{
				GlobalScore:         1,
				Level:               model.AggressivenessDanger,
				ShouldBlockCritical: true,
				EvaluatedAt:         s.now().UTC(),
			}
		} else {
			r.mark(model.StageAggressivenessChecked, string(agg.Level))
		}
		r.agg = agg
	}
	if signalErr != nil {
		r.warnings = append(r.warnings, "fleet signals unavailable: "+signalErr.Error())
		r.failed = append(r.failed, "SIGNALS")
		s.stageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "signals")))
		s.logger.Warn("governance: signals unavailable", "decision_type", r.p.DecisionType, "error", signalErr)
	}
	r.signals = signals
}

// evaluateMonitor shields the caller from a monitor that ignores ctx.
func evaluateMonitor(ctx context.Context, m Monitor) (model.AggressivenessScore, error) {
	type result struct {
		score model.AggressivenessScore
		err   error
	}
	done := make(chan result, 1)
	go func() {
		score, err := m.Evaluate(ctx)
		done <- result{score, err}
	}()
	select {
	case res := <-done:
		return res.score, res.err
	case <-ctx.Done():
		return model.AggressivenessScore{}, fmt.Errorf("aggressiveness: %w", ctx.Err())
	}
}

// assess summarizes, analyzes and validates.
func (s *Service) assess(ctx context.Context, r *run) {
	successes, failures := s.tracker.Counts()
	snap := s.summary.Generate(summary.Input{
		Proposal:         r.p,
		Level:            r.level,
		Signals:          r.signals,
		Simulation:       r.sim,
		Aggressiveness:   r.agg,
		TrackedSuccesses: successes,
		TrackedFailures:  failures,
	})
	r.mark(model.StageSummarized, "")
	if r.cancelled(ctx, model.StageSummarized) {
		return
	}

	analysis, err := s.analyzer.Analyze(ctx, snap)
	if r.cancelled(ctx, model.StageSummarized) {
		return
	}
	if err != nil {
		r.fail(ctx, model.StageAnalyzed, err)
	} else {
		r.mark(model.StageAnalyzed, analysis.Source)
	}
	r.analysis = &analysis

	vctx, cancel := withTimeout(ctx, s.policy.Timeouts.Validator)
	defer cancel()
	res, err := s.validator.Validate(vctx, &snap, &analysis)
	if r.cancelled(ctx, model.StageAnalyzed) {
		return
	}
	if err != nil {
		r.fail(ctx, model.StageValidated, err)
		res = model.ValidationResult{
			Status: model.StatusNeedsHumanReview,
			Reason: "validator unavailable: " + err.Error(),
		}
		s.raise(ctx, alert.Alert{
			Kind:     alert.KindValidatorUnavailable,
			Severity: alert.SeverityWarning,
			Message:  "validator failed; proposal sent to human review",
			Labels:   map[string]string{"decision_type": r.p.DecisionType, "level": string(r.level), "error": err.Error()},
		})
	} else {
		r.mark(model.StageValidated, string(res.Status))
	}
	r.validation = res
}

// decide turns the validation result into the final outcome, enforcing the
// approval invariants and the configured fallback strategy.
func (s *Service) decide(r *run) {
	v := r.validation
	r.outcome = model.OutcomeFromStatus(v.Status)
	r.reason = v.Reason

	if r.outcome == model.OutcomeApproved && !v.Approved {
		r.outcome = model.OutcomeNeedsHumanReview
		r.reason = "validation status and approval flag disagree"
	}

	switch s.policy.FallbackStrategy {
	case config.FallbackRejectAll:
		if len(r.failed) > 0 {
			r.outcome = model.OutcomeRejected
			r.reason = "stage failure with reject_all fallback: " + strings.Join(r.failed, ", ")
		}
	case config.FallbackConservative:
		if len(r.failed) > 0 &&
			(r.outcome == model.OutcomeApproved || r.outcome == model.OutcomeRequiresAdjustment) {
			r.outcome = model.OutcomeRejected
			r.reason = "stage failure with conservative fallback: " + strings.Join(r.failed, ", ")
		}
	case config.FallbackPermissive:
		if r.level == model.LevelStandard &&
			r.outcome == model.OutcomeRequiresAdjustment &&
			slices.Equal(v.ViolatedRules, []string{validator.RuleAnalysisUnavailable}) &&
			v.RiskScore < s.policy.Risk.Medium {
			r.outcome = model.OutcomeApproved
			r.reason = fmt.Sprintf("approved without analysis: risk score %.2f", v.RiskScore)
			r.warnings = append(r.warnings, "approved under permissive fallback while analysis was unavailable")
		}
	}

	if r.level.IsCritical() && r.outcome == model.OutcomeApproved {
		switch {
		case r.sim == nil || !r.sim.ShouldProceed:
			r.outcome = model.OutcomeRejected
			r.reason = "simulation did not clear the proposal"
		case r.agg == nil || r.agg.ShouldBlockCritical:
			r.outcome = model.OutcomeRejected
			r.reason = "fleet aggressiveness blocks critical actions"
		case !v.Approved:
			r.outcome = model.OutcomeRejected
			r.reason = "critical proposals need validator approval"
		}
	}
}

// record writes the ledger entry, then explains and returns the verdict.
// The write survives caller cancellation; if it cannot be made the verdict is
// REJECTED.
func (s *Service) record(ctx context.Context, r *run) model.Verdict {
	if r.outcome == model.OutcomeCancelled {
		r.warnings = append(r.warnings, r.reason)
	}
	entry := model.LedgerEntry{
		Proposal:       r.p,
		Level:          r.level,
		Simulation:     r.sim,
		Aggressiveness: r.agg,
		Analysis:       r.analysis,
		Validation:     r.validation,
		Verdict:        r.outcome,
		VerdictReason:  r.reason,
		Warnings:       r.warnings,
		Stages:         r.stages,
	}

	lctx, cancel := withTimeout(context.WithoutCancel(ctx), s.ledgerBudget())
	defer cancel()
	stored, err := ledger.AppendWithRetry(lctx, s.ledger, entry, s.policy.Ledger.Retries, s.policy.Ledger.RetryBaseDelay)

	v := model.Verdict{
		Level:               r.level,
		RequiredAdjustments: r.validation.RequiredAdjustments,
		ViolatedRules:       r.validation.ViolatedRules,
		Warnings:            r.warnings,
		Simulation:          r.sim,
	}
	if r.validation.Status != "" {
		val := r.validation
		v.Validation = &val
	}

	if err != nil {
		r.fail(ctx, model.StageLedgered, err)
		s.raise(ctx, alert.Alert{
			Kind:     alert.KindLedgerUnavailable,
			Severity: alert.SeverityCritical,
			Message:  "ledger append failed; verdict forced to REJECTED",
			Labels: map[string]string{
				"actor": r.p.Actor, "decision_type": r.p.DecisionType,
				"intended_outcome": string(r.outcome), "error": err.Error(),
			},
		})
		r.mark(model.StageReturned, "")
		v.Outcome = model.OutcomeRejected
		v.Reason = "ledger unavailable: decision could not be recorded"
		v.Explanation = fmt.Sprintf("%s %s by %s was rejected because the decision ledger could not record it (intended outcome %s: %s).",
			r.level, r.p.DecisionType, r.p.Actor, r.outcome, r.reason)
		v.Stages = r.stages
		return v
	}

	id := stored.ID
	r.mark(model.StageLedgered, id.String())
	report := s.narrator.Explain(stored)
	r.mark(model.StageExplained, "")
	r.mark(model.StageReturned, "")

	v.DecisionID = &id
	v.Outcome = r.outcome
	v.Reason = r.reason
	v.Explanation = report.Text
	v.Stages = r.stages
	return v
}

// ledgerBudget bounds all append attempts together.
func (s *Service) ledgerBudget() time.Duration {
	per := s.policy.Timeouts.Ledger
	if per <= 0 {
		return 0
	}
	return per * time.Duration(s.policy.Ledger.Retries+1)
}

func (s *Service) raise(ctx context.Context, a alert.Alert) {
	a = alert.Stamp(a, s.now())
	if err := s.alerts.Raise(context.WithoutCancel(ctx), a); err != nil {
		s.logger.Error("governance: raise alert failed", "kind", a.Kind, "error", err)
	}
}

// OnDanger raises an alert when the fleet enters a DANGER cooldown. It is
// meant to be registered as the monitor's danger hook.
func (s *Service) OnDanger(score model.AggressivenessScore) {
	labels := map[string]string{
		"score":            fmt.Sprintf("%.2f", score.GlobalScore),
		"cooldown_minutes": fmt.Sprintf("%d", score.CooldownRecommendedMinutes),
	}
	if score.CooldownUntil != nil {
		labels["cooldown_until"] = score.CooldownUntil.UTC().Format(time.RFC3339)
	}
	s.raise(context.Background(), alert.Alert{
		Kind:     alert.KindAggressivenessDanger,
		Severity: alert.SeverityCritical,
		Message:  "fleet aggressiveness reached DANGER; critical actions blocked",
		Labels:   labels,
	})
}

// RecordExecution attaches what happened after a verdict and feeds the
// aggressiveness window and the outcome tracker.
func (s *Service) RecordExecution(ctx context.Context, id uuid.UUID, o model.ExecutionOutcome) (model.LedgerEntry, error) {
	if o.ReportedAt.IsZero() {
		o.ReportedAt = s.now().UTC()
	}
	var stored model.LedgerEntry
	err := ledger.WithRetry(ctx, s.policy.Ledger.Retries, s.policy.Ledger.RetryBaseDelay, func() error {
		var err error
		stored, err = s.ledger.AttachOutcome(ctx, id, o)
		return err
	})
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("governance: record execution: %w", err)
	}

	switch o.Status {
	case model.ExecutionExecuted:
		s.tracker.Record(false)
		for _, a := range actionsFor(stored, o.ReportedAt) {
			s.monitor.RecordAction(ctx, a)
		}
	case model.ExecutionFailed:
		s.tracker.Record(true)
	}
	return stored, nil
}

// actionsFor expands an executed entry into one window action per affected
// account, or one for the actor when no accounts are named.
func actionsFor(e model.LedgerEntry, at time.Time) []model.Action {
	accounts := e.Proposal.Context.AccountIDs
	if len(accounts) == 0 {
		accounts = []string{e.Proposal.Actor}
	}
	out := make([]model.Action, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, model.Action{
			ID:         e.ID.String() + ":" + acct,
			Type:       e.Proposal.DecisionType,
			AccountID:  acct,
			OccurredAt: at,
		})
	}
	return out
}

// RecordAction adds an executed action that has no ledger entry, such as a
// MICRO decision, to the aggressiveness window.
func (s *Service) RecordAction(ctx context.Context, a model.Action) {
	s.monitor.RecordAction(ctx, a)
}

// Entry returns one ledger entry.
func (s *Service) Entry(ctx context.Context, id uuid.UUID) (model.LedgerEntry, error) {
	return s.ledger.Get(ctx, id)
}

// Entries queries the ledger.
func (s *Service) Entries(ctx context.Context, q model.LedgerQuery) ([]model.LedgerEntry, error) {
	return s.ledger.Query(ctx, q)
}

// Explain regenerates the narrative for a recorded decision.
func (s *Service) Explain(ctx context.Context, id uuid.UUID) (model.NarrativeReport, error) {
	e, err := s.ledger.Get(ctx, id)
	if err != nil {
		return model.NarrativeReport{}, err
	}
	return s.narrator.Explain(e), nil
}

// DailySummary aggregates the ledger entries created on day (UTC).
func (s *Service) DailySummary(ctx context.Context, day time.Time) (model.DailyReport, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	entries, err := s.ledger.Query(ctx, model.LedgerQuery{From: &start, To: &end, Limit: ledger.MaxQueryLimit})
	if err != nil {
		return model.DailyReport{}, fmt.Errorf("governance: daily summary: %w", err)
	}
	return s.narrator.DailySummary(entries, s.monitor.History(start), start), nil
}

// Aggressiveness evaluates the current window.
func (s *Service) Aggressiveness(ctx context.Context) (model.AggressivenessScore, error) {
	return s.monitor.Evaluate(ctx)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
