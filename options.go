package warden

import (
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported: callers use the With* functions.
type resolvedOptions struct {
	logger     *slog.Logger
	version    string
	config     *Config
	analyzer   Analyzer
	validator  Validator
	signals    SignalSource
	alertSinks []AlertSink
	ledger     Ledger
	now        func() time.Time
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint, the
// MCP handshake and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithConfig uses cfg instead of loading configuration from the environment.
// The config is still validated.
func WithConfig(cfg Config) Option {
	return func(o *resolvedOptions) { o.config = &cfg }
}

// WithAnalyzer replaces the configured cognitive analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(o *resolvedOptions) { o.analyzer = a }
}

// WithValidator replaces the built-in hard validator.
func WithValidator(v Validator) Option {
	return func(o *resolvedOptions) { o.validator = v }
}

// WithSignalSource sets where fleet signals come from when a proposal does
// not carry them.
func WithSignalSource(s SignalSource) Option {
	return func(o *resolvedOptions) { o.signals = s }
}

// WithAlertSink registers an additional alert sink. Multiple sinks may be
// registered; every sink receives every alert.
func WithAlertSink(s AlertSink) Option {
	return func(o *resolvedOptions) { o.alertSinks = append(o.alertSinks, s) }
}

// WithLedger replaces the configured ledger backend. Retention and the admin
// purge routes are enabled only if the ledger also supports purging.
func WithLedger(l Ledger) Option {
	return func(o *resolvedOptions) { o.ledger = l }
}

// WithClock overrides time.Now for the aggressiveness window and verdict
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.now = now }
}
