// Package warden is a governance layer for automated decision engines.
//
// Every proposed action is classified by level, run through the checks its
// level requires (risk simulation, fleet aggressiveness, cognitive analysis,
// hard validation), recorded in a tamper-evident ledger and answered with a
// verdict. New wires the components from configuration; Run serves the
// HTTP API and the MCP endpoint.
package warden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/aggressiveness"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/alert"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/cognitive"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/mcp"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ratelimit"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/server"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/service/governance"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/simulation"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/stream"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/telemetry"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/validator"
)

// aggressivenessKey names the shared Redis window.
const aggressivenessKey = "warden:aggressiveness"

// App is a fully wired Warden instance.
type App struct {
	cfg          config.Config
	svc          *governance.Service
	srv          *server.Server
	store        ledger.Store
	purger       ledger.Purger   // nil when the ledger cannot purge
	archiver     ledger.Archiver // nil when no archive is configured
	closers      []closer        // released in reverse order on shutdown
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

type closer struct {
	name string
	fn   func() error
}

// New wires every component from configuration and options and returns a
// ready-to-run App. It connects to the configured backends but does NOT
// start any goroutines or accept HTTP connections: call Run.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	cfg, err := resolveConfig(o)
	if err != nil {
		return nil, err
	}

	logger.Info("warden starting", "version", version, "port", cfg.Port, "ledger", cfg.LedgerBackend)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a := &App{cfg: cfg, otelShutdown: otelShutdown, logger: logger, version: version}
	fail := func(err error) (*App, error) {
		a.release()
		_ = otelShutdown(context.Background())
		return nil, err
	}

	// Ledger.
	if o.ledger != nil {
		a.store = o.ledger
	} else {
		a.store, err = a.openLedger(ctx)
		if err != nil {
			return fail(err)
		}
	}
	if p, ok := a.store.(ledger.Purger); ok {
		a.purger = p
	}
	if cfg.ArchiveS3Bucket != "" {
		arch, err := ledger.NewS3Archiver(ctx, ledger.S3ArchiveConfig{
			Bucket:   cfg.ArchiveS3Bucket,
			Region:   cfg.ArchiveS3Region,
			Endpoint: cfg.ArchiveS3Endpoint,
			Prefix:   cfg.ArchiveS3Prefix,
		})
		if err != nil {
			return fail(err)
		}
		a.archiver = arch
		logger.Info("ledger: retention archive enabled", "bucket", cfg.ArchiveS3Bucket)
	}

	// Aggressiveness window: shared in Redis when configured.
	monitorOpts := []aggressiveness.Option{aggressiveness.WithLogger(logger)}
	if o.now != nil {
		monitorOpts = append(monitorOpts, aggressiveness.WithClock(o.now))
	}
	if cfg.RedisURL != "" {
		window, err := aggressiveness.NewRedisStore(ctx, cfg.RedisURL, aggressivenessKey)
		if err != nil {
			return fail(fmt.Errorf("aggressiveness: %w", err))
		}
		monitorOpts = append(monitorOpts, aggressiveness.WithStore(window))
		a.onClose("aggressiveness", window.Close)
		logger.Info("aggressiveness: shared redis window enabled")
	}

	// Alerts: always logged, also published to JetStream when configured.
	sinks := alert.Multi{alert.NewLogSink(logger)}
	if cfg.NATSURL != "" {
		natsSink, err := alert.ConnectNATS(ctx, cfg.NATSURL, cfg.AlertSubject, logger)
		if err != nil {
			return fail(fmt.Errorf("alerts: %w", err))
		}
		a.onClose("nats", natsSink.Close)
		sinks = append(sinks, natsSink)
	}
	for _, s := range o.alertSinks {
		sinks = append(sinks, s)
	}
	hub := stream.NewHub(logger)
	sinks = append(sinks, hub)
	a.onClose("stream", hub.Close)

	analyzer := o.analyzer
	if analyzer == nil {
		analyzer, err = cognitive.FromConfig(cfg)
		if err != nil {
			return fail(err)
		}
	}
	v := o.validator
	if v == nil {
		v, err = validator.FromPolicy(cfg.Policy)
		if err != nil {
			return fail(err)
		}
	}

	// The danger hook runs inside the monitor; svc is assigned before any
	// evaluation can reach it.
	var svc *governance.Service
	monitorOpts = append(monitorOpts, aggressiveness.WithDangerHook(func(s model.AggressivenessScore) {
		if svc != nil {
			svc.OnDanger(s)
		}
	}))
	monitor := aggressiveness.NewMonitor(cfg.Policy.Aggressiveness, monitorOpts...)

	svc, err = governance.New(governance.Deps{
		Policy:    cfg.Policy,
		Simulator: simulation.New(cfg.Policy.Simulation),
		Monitor:   monitor,
		Analyzer:  analyzer,
		Validator: v,
		Ledger:    a.store,
		Signals:   o.signals,
		Alerts:    sinks,
		Logger:    logger,
		Now:       o.now,
		OnVerdict: hub.Verdict,
	})
	if err != nil {
		return fail(err)
	}
	a.svc = svc

	limiter, err := a.newLimiter()
	if err != nil {
		return fail(err)
	}

	mcpSrv := mcp.New(svc, logger, version)

	a.srv = server.New(server.ServerConfig{
		Governance:          svc,
		Ledger:              a.store,
		Logger:              logger,
		Purger:              a.purger,
		Archiver:            a.archiver,
		MCPServer:           mcpSrv.MCPServer(),
		RateLimiter:         limiter,
		Stream:              hub,
		RetentionDays:       cfg.Policy.Ledger.RetentionDays,
		AdminAPIKey:         cfg.AdminAPIKey,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return a, nil
}

func resolveConfig(o resolvedOptions) (config.Config, error) {
	if o.config != nil {
		if err := o.config.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("config: %w", err)
		}
		return *o.config, nil
	}
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openLedger opens the configured backend, wrapped in the read cache when
// one is configured. The App owns and closes the result.
func (a *App) openLedger(ctx context.Context) (ledger.Store, error) {
	var (
		store ledger.Store
		err   error
	)
	switch a.cfg.LedgerBackend {
	case config.BackendMemory:
		store = ledger.NewMemoryStore()
	case config.BackendSQLite:
		store, err = ledger.OpenSQLite(ctx, a.cfg.SQLitePath)
	case config.BackendPostgres:
		store, err = ledger.OpenPostgres(ctx, a.cfg.DatabaseURL, a.logger)
	default:
		err = fmt.Errorf("unknown backend %q", a.cfg.LedgerBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	if a.cfg.LedgerCacheBytes > 0 {
		cached, err := ledger.NewCachedStore(store, a.cfg.LedgerCacheBytes)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ledger cache: %w", err)
		}
		store = cached
	}
	a.onClose("ledger", store.Close)
	return store, nil
}

// newLimiter picks the shared Redis limiter when Redis is configured and the
// in-process token bucket otherwise. A zero rate disables limiting.
func (a *App) newLimiter() (ratelimit.Limiter, error) {
	if a.cfg.RateLimitRPS <= 0 {
		return nil, nil
	}
	if a.cfg.RedisURL == "" {
		l := ratelimit.NewMemoryLimiter(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)
		a.onClose("ratelimit", l.Close)
		return l, nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	window := time.Duration(float64(a.cfg.RateLimitBurst) / a.cfg.RateLimitRPS * float64(time.Second))
	l := ratelimit.NewRedisLimiter(redis.NewClient(opts), "warden:ratelimit", a.cfg.RateLimitBurst, max(window, time.Second))
	a.onClose("ratelimit", l.Close)
	return l, nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) release() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", "component", c.name, "error", err)
		}
	}
	a.closers = nil
}

// Run starts the retention job and the HTTP server, then blocks until ctx is
// cancelled or a fatal server error occurs. On return, Shutdown has been
// called: callers should not call it separately.
func (a *App) Run(ctx context.Context) error {
	if a.purger != nil && a.cfg.RetentionInterval > 0 {
		retention := ledger.Retention{
			Purger:   a.purger,
			Source:   a.store,
			Archiver: a.archiver,
			Days:     a.cfg.Policy.Ledger.RetentionDays,
			Operator: a.cfg.RetentionOperator,
			Logger:   a.logger,
		}
		go retention.Loop(ctx, a.cfg.RetentionInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		return err
	}
	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes every backend and
// the OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("warden shutting down")

	httpCtx, cancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	a.release()
	_ = a.otelShutdown(context.Background())
	a.logger.Info("warden stopped")
	return nil
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// Evaluate governs one proposal in-process. It never returns an error: every
// failure is expressed in the verdict.
func (a *App) Evaluate(ctx context.Context, p ProposedDecision) Verdict {
	return a.svc.Evaluate(ctx, p)
}

// RecordExecution attaches the execution outcome to a recorded decision.
func (a *App) RecordExecution(ctx context.Context, id uuid.UUID, o ExecutionOutcome) (LedgerEntry, error) {
	if err := o.Validate(); err != nil {
		return LedgerEntry{}, err
	}
	return a.svc.RecordExecution(ctx, id, o)
}

// Explain returns the narrative for a recorded decision.
func (a *App) Explain(ctx context.Context, id uuid.UUID) (NarrativeReport, error) {
	return a.svc.Explain(ctx, id)
}

// Handler returns the root HTTP handler, for embedding or tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}
