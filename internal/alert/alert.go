// Package alert raises operational alerts when governance cannot do its job
// normally: the ledger is down, the fleet entered DANGER, or a stage failed
// closed.
package alert

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Kind identifies the condition that raised an alert.
type Kind string

const (
	KindLedgerUnavailable    Kind = "ledger_unavailable"
	KindAggressivenessDanger Kind = "aggressiveness_danger"
	KindValidatorUnavailable Kind = "validator_unavailable"
)

// Severity of an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one operational event.
type Alert struct {
	Kind     Kind              `json:"kind"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	Labels   map[string]string `json:"labels,omitempty"`
	RaisedAt time.Time         `json:"raised_at"`
}

// Sink delivers alerts.
type Sink interface {
	Raise(ctx context.Context, a Alert) error
}

// LogSink writes alerts to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs every alert at warn or error level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Raise(ctx context.Context, a Alert) error {
	level := slog.LevelWarn
	if a.Severity == SeverityCritical {
		level = slog.LevelError
	}
	attrs := []any{"kind", string(a.Kind), "severity", string(a.Severity), "raised_at", a.RaisedAt}
	for k, v := range a.Labels {
		attrs = append(attrs, k, v)
	}
	s.logger.Log(ctx, level, "alert: "+a.Message, attrs...)
	return nil
}

// Multi fans an alert out to every sink. Every sink is attempted; the
// failures are joined.
type Multi []Sink

func (m Multi) Raise(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if err := s.Raise(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stamp fills RaisedAt when it is unset.
func Stamp(a Alert, now time.Time) Alert {
	if a.RaisedAt.IsZero() {
		a.RaisedAt = now.UTC()
	}
	return a
}
