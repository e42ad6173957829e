// Package aggressiveness scores how aggressively the fleet as a whole is
// acting over a rolling time window.
//
// The global score combines three components in [0,1]:
//   - velocity: actions per minute against the policy's safe rate
//   - uniformity: 1 minus the normalized entropy of action types
//   - concentration: the Herfindahl index of actions across accounts
//
// Uniformity and concentration are gated by velocity so that a nearly idle
// fleet stays SAFE no matter how repetitive its few actions are. A DANGER
// evaluation starts a cooldown; critical decisions stay blocked until it
// elapses, even if the score drops in the meantime.
package aggressiveness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/telemetry"
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithStore replaces the default in-memory window.
func WithStore(s WindowStore) Option {
	return func(m *Monitor) { m.store = s }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithDangerHook registers fn to be called, outside the monitor lock, each
// time an evaluation starts a new DANGER cooldown.
func WithDangerHook(fn func(model.AggressivenessScore)) Option {
	return func(m *Monitor) { m.onDanger = fn }
}

// Snapshot is the monitor's current state for inspection endpoints.
type Snapshot struct {
	Actions       []model.Action             `json:"actions"`
	Latest        *model.AggressivenessScore `json:"latest,omitempty"`
	CooldownUntil *time.Time                 `json:"cooldown_until,omitempty"`
}

// Monitor is safe for concurrent use. Recording and evaluation are
// serialized so an evaluation always sees every action recorded before it.
type Monitor struct {
	policy   config.AggressivenessPolicy
	store    WindowStore
	logger   *slog.Logger
	now      func() time.Time
	onDanger func(model.AggressivenessScore)

	mu            sync.Mutex
	cooldownUntil time.Time
	latest        *model.AggressivenessScore
	history       []model.AggressivenessScore
}

// NewMonitor creates a Monitor.
func NewMonitor(policy config.AggressivenessPolicy, opts ...Option) *Monitor {
	m := &Monitor{
		policy: policy,
		store:  NewMemoryStore(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.registerMetrics()
	return m
}

// RecordAction adds an executed action to the window. Store failures are
// logged, never returned; the next evaluation surfaces a broken store.
func (m *Monitor) RecordAction(ctx context.Context, a model.Action) {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = m.now()
	}
	a.OccurredAt = a.OccurredAt.UTC()
	if a.ID == "" {
		a.ID = actionID(a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Add(ctx, a); err != nil {
		m.logger.Warn("aggressiveness: record action failed", "error", err, "action_type", a.Type)
		return
	}
	if err := m.store.Prune(ctx, m.now().Add(-m.policy.Window)); err != nil {
		m.logger.Warn("aggressiveness: prune window failed", "error", err)
	}
}

// Evaluate scores the current window.
func (m *Monitor) Evaluate(ctx context.Context) (model.AggressivenessScore, error) {
	score, fire, err := m.evaluate(ctx)
	if err != nil {
		return model.AggressivenessScore{}, err
	}
	if fire && m.onDanger != nil {
		m.onDanger(score)
	}
	return score, nil
}

func (m *Monitor) evaluate(ctx context.Context) (model.AggressivenessScore, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	actions, err := m.store.Since(ctx, now.Add(-m.policy.Window))
	if err != nil {
		return model.AggressivenessScore{}, false, fmt.Errorf("aggressiveness: read window: %w", err)
	}

	score := m.score(actions)
	score.EvaluatedAt = now

	fire := false
	if score.Level == model.AggressivenessDanger {
		until := now.Add(time.Duration(score.CooldownRecommendedMinutes) * time.Minute)
		fire = !now.Before(m.cooldownUntil)
		if until.After(m.cooldownUntil) {
			m.cooldownUntil = until
		}
	}
	if now.Before(m.cooldownUntil) {
		until := m.cooldownUntil
		score.ShouldBlockCritical = true
		score.CooldownUntil = &until
		if remaining := int(math.Ceil(until.Sub(now).Minutes())); remaining > score.CooldownRecommendedMinutes {
			score.CooldownRecommendedMinutes = remaining
		}
	}

	m.latest = &score
	m.history = append(m.history, score)
	if size := m.policy.HistorySize; size > 0 && len(m.history) > size {
		m.history = append([]model.AggressivenessScore(nil), m.history[len(m.history)-size:]...)
	}
	return score, fire, nil
}

// score computes the components for actions. It does not touch cooldown state.
func (m *Monitor) score(actions []model.Action) model.AggressivenessScore {
	s := model.AggressivenessScore{
		Level:           model.AggressivenessSafe,
		ActionsInWindow: len(actions),
	}
	if len(actions) == 0 {
		return s
	}

	minutes := m.policy.Window.Minutes()
	if minutes <= 0 {
		minutes = 1
	}
	safe := m.policy.SafeActionsPerMinute
	if safe <= 0 {
		safe = 1
	}
	ratio := float64(len(actions)) / minutes / safe

	types := make(map[string]int)
	accounts := make(map[string]int)
	for _, a := range actions {
		types[a.Type]++
		accounts[a.AccountID]++
	}

	s.Velocity = clamp(ratio / 2)
	s.Uniformity = 1 - normalizedEntropy(types, len(actions))
	s.Concentration = concentration(accounts, len(actions), m.policy.FleetSize)

	gate := clamp(ratio)
	s.GlobalScore = clamp(0.5*s.Velocity + 0.5*gate*(0.5*s.Uniformity+0.5*s.Concentration))

	switch {
	case s.GlobalScore >= m.policy.DangerThreshold:
		s.Level = model.AggressivenessDanger
		s.CooldownRecommendedMinutes = m.cooldownMinutes(s.GlobalScore)
	case s.GlobalScore >= m.policy.WarningThreshold:
		s.Level = model.AggressivenessWarning
	}
	return s
}

// cooldownMinutes scales from BaseCooldown at the danger threshold up to
// BaseCooldown+MaxExtraCooldown at a score of 1.
func (m *Monitor) cooldownMinutes(score float64) int {
	extra := 0.0
	if span := 1 - m.policy.DangerThreshold; span > 0 {
		extra = clamp((score - m.policy.DangerThreshold) / span)
	}
	d := m.policy.BaseCooldown + time.Duration(extra*float64(m.policy.MaxExtraCooldown))
	return int(math.Ceil(d.Minutes()))
}

// Latest returns the most recent evaluation, or nil before the first one.
func (m *Monitor) Latest() *model.AggressivenessScore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil
	}
	s := *m.latest
	return &s
}

// History returns retained evaluations at or after since, oldest first.
func (m *Monitor) History(since time.Time) []model.AggressivenessScore {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AggressivenessScore, 0, len(m.history))
	for _, s := range m.history {
		if !s.EvaluatedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot returns the actions currently in the window and the cooldown state.
func (m *Monitor) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	actions, err := m.store.Since(ctx, now.Add(-m.policy.Window))
	if err != nil {
		return Snapshot{}, fmt.Errorf("aggressiveness: read window: %w", err)
	}
	snap := Snapshot{Actions: actions}
	if m.latest != nil {
		s := *m.latest
		snap.Latest = &s
	}
	if now.Before(m.cooldownUntil) {
		until := m.cooldownUntil
		snap.CooldownUntil = &until
	}
	return snap, nil
}

// Reset clears the window, the cooldown and the history.
func (m *Monitor) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Reset(ctx); err != nil {
		return fmt.Errorf("aggressiveness: reset: %w", err)
	}
	m.cooldownUntil = time.Time{}
	m.latest = nil
	m.history = nil
	return nil
}

// Close releases the window store.
func (m *Monitor) Close() error {
	return m.store.Close()
}

func (m *Monitor) registerMetrics() {
	meter := telemetry.Meter("warden/aggressiveness")

	_, _ = meter.Float64ObservableGauge("warden.aggressiveness.score",
		metric.WithDescription("Latest global aggressiveness score"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			if s := m.Latest(); s != nil {
				o.Observe(s.GlobalScore)
			}
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("warden.aggressiveness.cooldown_active",
		metric.WithDescription("1 while a DANGER cooldown blocks critical decisions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			m.mu.Lock()
			active := m.now().Before(m.cooldownUntil)
			m.mu.Unlock()
			if active {
				o.Observe(1)
			} else {
				o.Observe(0)
			}
			return nil
		}),
	)
}

// normalizedEntropy is the Shannon entropy of counts divided by its maximum
// for the number of distinct keys. A single key yields 0.
func normalizedEntropy(counts map[string]int, total int) float64 {
	if len(counts) < 2 || total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	return clamp(h / math.Log(float64(len(counts))))
}

// concentration is the Herfindahl index of counts. With a known fleet size
// it is rescaled so a perfectly even spread over the fleet scores 0.
func concentration(counts map[string]int, total, fleet int) float64 {
	if total == 0 {
		return 0
	}
	var hhi float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		hhi += p * p
	}
	if fleet > 1 {
		floor := 1 / float64(fleet)
		return clamp((hhi - floor) / (1 - floor))
	}
	return clamp(hhi)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
