// Package cognitive produces advisory analysis of a fleet snapshot.
//
// Analysis is never authoritative: its output feeds the hard validator,
// which decides. Every analyzer is expected to fail: callers wrap it in
// Guarded, which bounds the call and substitutes a neutral result.
package cognitive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// UnavailableReasoning is the reasoning text of the neutral fallback result.
const UnavailableReasoning = "analysis unavailable"

// Analyzer reviews a snapshot. Implementations must not modify it.
type Analyzer interface {
	Analyze(ctx context.Context, snap model.Snapshot) (model.AnalyzerOutput, error)
}

// Unavailable returns the neutral result used when analysis fails.
func Unavailable() model.AnalyzerOutput {
	return model.AnalyzerOutput{
		Observations:           []string{},
		DetectedPatterns:       []string{},
		StrategicSuggestions:   []string{},
		RiskSignals:            []model.RiskSignal{},
		RecommendedAdjustments: []string{},
		Confidence:             0,
		Reasoning:              UnavailableReasoning,
		Available:              false,
		Source:                 "fallback",
	}
}

// Guarded bounds an Analyzer with a timeout and converts every failure into
// the neutral Unavailable result.
type Guarded struct {
	inner   Analyzer
	timeout time.Duration
	logger  *slog.Logger
}

// NewGuarded wraps inner. A non-positive timeout disables the bound.
func NewGuarded(inner Analyzer, timeout time.Duration, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{inner: inner, timeout: timeout, logger: logger}
}

type analyzeResult struct {
	out model.AnalyzerOutput
	err error
}

// Analyze always returns a usable output. The error is non-nil when the
// output is the fallback, so callers can record the stage failure.
func (g *Guarded) Analyze(ctx context.Context, snap model.Snapshot) (model.AnalyzerOutput, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan analyzeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analyzeResult{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		out, err := g.inner.Analyze(callCtx, cloneSnapshot(snap))
		done <- analyzeResult{out: out, err: err}
	}()

	var res analyzeResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = callCtx.Err()
	}

	if res.err == nil {
		res.err = checkOutput(res.out)
	}
	if res.err != nil {
		g.logger.Warn("cognitive: analysis unavailable", "error", res.err)
		return Unavailable(), fmt.Errorf("cognitive: %w", res.err)
	}
	return normalize(res.out), nil
}

func checkOutput(out model.AnalyzerOutput) error {
	if math.IsNaN(out.Confidence) || out.Confidence < 0 || out.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", out.Confidence)
	}
	if !out.Available {
		return errors.New("analyzer reported itself unavailable")
	}
	return nil
}

// normalize replaces nil slices so outputs serialize the same way everywhere.
func normalize(out model.AnalyzerOutput) model.AnalyzerOutput {
	if out.Observations == nil {
		out.Observations = []string{}
	}
	if out.DetectedPatterns == nil {
		out.DetectedPatterns = []string{}
	}
	if out.StrategicSuggestions == nil {
		out.StrategicSuggestions = []string{}
	}
	if out.RiskSignals == nil {
		out.RiskSignals = []model.RiskSignal{}
	}
	if out.RecommendedAdjustments == nil {
		out.RecommendedAdjustments = []string{}
	}
	return out
}

func cloneSnapshot(s model.Snapshot) model.Snapshot {
	c := s
	c.Decisions = append([]model.DecisionRecord(nil), s.Decisions...)
	c.Actions = append([]model.ActionRecord(nil), s.Actions...)
	c.Risks = append([]model.RiskSignal(nil), s.Risks...)
	c.Anomalies = append([]string(nil), s.Anomalies...)
	c.AttentionReasons = append([]string(nil), s.AttentionReasons...)
	if s.Metrics != nil {
		c.Metrics = make(map[string]float64, len(s.Metrics))
		for k, v := range s.Metrics {
			c.Metrics[k] = v
		}
	}
	if s.Simulation != nil {
		sim := *s.Simulation
		sim.Blockers = append([]string(nil), s.Simulation.Blockers...)
		c.Simulation = &sim
	}
	if s.Aggressiveness != nil {
		agg := *s.Aggressiveness
		c.Aggressiveness = &agg
	}
	return c
}

// SeverityWeight maps a severity to [0,1]; unknown severities weigh 0.
func SeverityWeight(severity string) float64 {
	switch severity {
	case model.SeverityCritical:
		return 1
	case model.SeverityHigh:
		return 0.75
	case model.SeverityMedium:
		return 0.5
	case model.SeverityLow:
		return 0.25
	default:
		return 0
	}
}

// FromConfig builds the analyzer selected by cfg.AnalyzerProvider.
func FromConfig(cfg config.Config) (Analyzer, error) {
	switch cfg.AnalyzerProvider {
	case "", config.AnalyzerRules:
		return NewRuleAnalyzer(cfg.Policy.Validation), nil
	case config.AnalyzerOllama:
		if cfg.AnalyzerModel == "" {
			return nil, errors.New("cognitive: ollama analyzer requires WARDEN_ANALYZER_MODEL")
		}
		return NewOllamaAnalyzer(cfg.OllamaURL, cfg.AnalyzerModel), nil
	case config.AnalyzerOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("cognitive: openai analyzer requires OPENAI_API_KEY")
		}
		return NewOpenAIAnalyzer("", cfg.OpenAIAPIKey, cfg.AnalyzerModel), nil
	default:
		return nil, fmt.Errorf("cognitive: unknown analyzer provider %q", cfg.AnalyzerProvider)
	}
}
