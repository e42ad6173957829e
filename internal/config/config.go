// Package config loads and validates application configuration.
//
// Values are layered: built-in defaults, then an optional YAML policy file
// (WARDEN_POLICY_FILE), then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Analyzer providers.
const (
	AnalyzerRules  = "rules"
	AnalyzerOllama = "ollama"
	AnalyzerOpenAI = "openai"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	ShutdownTimeout     time.Duration
	MaxRequestBodyBytes int64

	// Ledger settings.
	LedgerBackend     string // "memory", "sqlite" or "postgres"
	DatabaseURL       string
	SQLitePath        string
	LedgerCacheBytes  int64 // 0 disables the read cache.
	RetentionInterval time.Duration
	RetentionOperator string

	// Optional S3 archive written before each retention purge. Empty bucket
	// disables archiving.
	ArchiveS3Bucket   string
	ArchiveS3Region   string
	ArchiveS3Endpoint string
	ArchiveS3Prefix   string

	// Optional shared infrastructure.
	RedisURL     string // Shared aggressiveness window; empty keeps it in-process.
	NATSURL      string // Operational alerts; empty logs alerts only.
	AlertSubject string

	// Admin key guarding the retention purge route.
	AdminAPIKey string

	// Per-client limits on /v1/evaluate and /v1/actions. RPS 0 disables.
	RateLimitRPS   float64
	RateLimitBurst int

	// Cognitive analyzer settings.
	AnalyzerProvider string
	OllamaURL        string
	AnalyzerModel    string
	OpenAIAPIKey     string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel   string
	PolicyFile string

	Policy Policy
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Port:                8080,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		ShutdownTimeout:     10 * time.Second,
		MaxRequestBodyBytes: 1 * 1024 * 1024,
		LedgerBackend:       BackendSQLite,
		SQLitePath:          "warden.db",
		LedgerCacheBytes:    32 << 20,
		RetentionInterval:   24 * time.Hour,
		RetentionOperator:   "retention-job",
		AlertSubject:        "warden.alerts",
		RateLimitRPS:        50,
		RateLimitBurst:      100,
		AnalyzerProvider:    AnalyzerRules,
		OllamaURL:           "http://localhost:11434",
		ServiceName:         "warden",
		LogLevel:            "info",
		Policy:              DefaultPolicy(),
	}
}

// Load reads configuration from defaults, the optional policy file and the
// environment, then validates it.
func Load() (Config, error) {
	cfg := Defaults()

	path := os.Getenv("WARDEN_POLICY_FILE")
	if path != "" {
		if err := loadPolicyFile(&cfg.Policy, path); err != nil {
			return Config{}, err
		}
		cfg.PolicyFile = path
	}

	if err := loadEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadPolicyFile unmarshals a YAML policy over p.
func loadPolicyFile(p *Policy, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("config: read policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("config: parse policy %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg. Every malformed value is
// reported, not just the first.
func loadEnv(cfg *Config) error {
	var errs []error
	setInt := func(dst *int, key string) {
		v, err := envInt(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	setFloat := func(dst *float64, key string) {
		v, err := envFloat(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	setBool := func(dst *bool, key string) {
		v, err := envBool(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	setDuration := func(dst *time.Duration, key string) {
		v, err := envDuration(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	setStr := func(dst *string, key string) {
		*dst = envStr(key, *dst)
	}

	setInt(&cfg.Port, "WARDEN_PORT")
	setDuration(&cfg.ReadTimeout, "WARDEN_READ_TIMEOUT")
	setDuration(&cfg.WriteTimeout, "WARDEN_WRITE_TIMEOUT")
	setDuration(&cfg.ShutdownTimeout, "WARDEN_SHUTDOWN_TIMEOUT")
	bodyBytes := int(cfg.MaxRequestBodyBytes)
	setInt(&bodyBytes, "WARDEN_MAX_REQUEST_BODY_BYTES")
	cfg.MaxRequestBodyBytes = int64(bodyBytes)

	setStr(&cfg.LedgerBackend, "WARDEN_LEDGER_BACKEND")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.SQLitePath, "WARDEN_SQLITE_PATH")
	cacheBytes := int(cfg.LedgerCacheBytes)
	setInt(&cacheBytes, "WARDEN_LEDGER_CACHE_BYTES")
	cfg.LedgerCacheBytes = int64(cacheBytes)
	setDuration(&cfg.RetentionInterval, "WARDEN_RETENTION_INTERVAL")
	setStr(&cfg.RetentionOperator, "WARDEN_RETENTION_OPERATOR")
	setStr(&cfg.ArchiveS3Bucket, "WARDEN_ARCHIVE_S3_BUCKET")
	setStr(&cfg.ArchiveS3Region, "WARDEN_ARCHIVE_S3_REGION")
	setStr(&cfg.ArchiveS3Endpoint, "WARDEN_ARCHIVE_S3_ENDPOINT")
	setStr(&cfg.ArchiveS3Prefix, "WARDEN_ARCHIVE_S3_PREFIX")

	setStr(&cfg.RedisURL, "REDIS_URL")
	setStr(&cfg.NATSURL, "NATS_URL")
	setStr(&cfg.AlertSubject, "WARDEN_ALERT_SUBJECT")
	setStr(&cfg.AdminAPIKey, "WARDEN_ADMIN_API_KEY")
	setFloat(&cfg.RateLimitRPS, "WARDEN_RATE_LIMIT_RPS")
	setInt(&cfg.RateLimitBurst, "WARDEN_RATE_LIMIT_BURST")

	setStr(&cfg.AnalyzerProvider, "WARDEN_ANALYZER_PROVIDER")
	setStr(&cfg.OllamaURL, "OLLAMA_URL")
	setStr(&cfg.AnalyzerModel, "WARDEN_ANALYZER_MODEL")
	setStr(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")

	setStr(&cfg.OTELEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTELInsecure, "WARDEN_OTEL_INSECURE")
	setStr(&cfg.ServiceName, "OTEL_SERVICE_NAME")
	setStr(&cfg.LogLevel, "WARDEN_LOG_LEVEL")

	p := &cfg.Policy
	setFloat(&p.Risk.Low, "WARDEN_RISK_LOW")
	setFloat(&p.Risk.Medium, "WARDEN_RISK_MEDIUM")
	setFloat(&p.Risk.High, "WARDEN_RISK_HIGH")
	setFloat(&p.Budget.DailyLimit, "WARDEN_BUDGET_DAILY")
	setFloat(&p.Budget.MonthlyLimit, "WARDEN_BUDGET_MONTHLY")
	setFloat(&p.Validation.PatternThreshold, "WARDEN_PATTERN_THRESHOLD")
	setFloat(&p.Validation.IdentityThreshold, "WARDEN_IDENTITY_THRESHOLD")
	setFloat(&p.Validation.CorrelationThreshold, "WARDEN_CORRELATION_THRESHOLD")
	setDuration(&p.Timeouts.Simulation, "WARDEN_TIMEOUT_SIMULATION")
	setDuration(&p.Timeouts.Aggressiveness, "WARDEN_TIMEOUT_AGGRESSIVENESS")
	setDuration(&p.Timeouts.Signals, "WARDEN_TIMEOUT_SIGNALS")
	setDuration(&p.Timeouts.Analyzer, "WARDEN_TIMEOUT_ANALYZER")
	setDuration(&p.Timeouts.Validator, "WARDEN_TIMEOUT_VALIDATOR")
	setDuration(&p.Timeouts.Ledger, "WARDEN_TIMEOUT_LEDGER")
	strategy := string(p.FallbackStrategy)
	setStr(&strategy, "WARDEN_FALLBACK_STRATEGY")
	p.FallbackStrategy = FallbackStrategy(strategy)
	setInt(&p.Ledger.RetentionDays, "WARDEN_RETENTION_DAYS")
	setBool(&p.HumanReviewForCritical, "WARDEN_HUMAN_REVIEW_CRITICAL")
	setDuration(&p.Aggressiveness.Window, "WARDEN_AGGRESSIVENESS_WINDOW")
	setInt(&p.Aggressiveness.FleetSize, "WARDEN_FLEET_SIZE")

	return errors.Join(errs...)
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	var errs []error
	switch c.LedgerBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL is required for the postgres ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown ledger backend %q", c.LedgerBackend))
	}
	if c.LedgerBackend == BackendSQLite && c.SQLitePath == "" {
		errs = append(errs, errors.New("config: WARDEN_SQLITE_PATH is required for the sqlite ledger"))
	}
	switch c.AnalyzerProvider {
	case AnalyzerRules, AnalyzerOllama:
	case AnalyzerOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("config: OPENAI_API_KEY is required for the openai analyzer"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown analyzer provider %q", c.AnalyzerProvider))
	}
	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		errs = append(errs, errors.New("config: rate limit needs a non-negative rps and a burst of at least 1"))
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, errors.New("config: WARDEN_MAX_REQUEST_BODY_BYTES must be positive"))
	}
	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks threshold ordering, weights and enumerations.
func (p Policy) Validate() error {
	var errs []error
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("config: %s must be within [0,1], got %v", name, v))
		}
	}

	r := p.Risk
	unit("risk.low", r.Low)
	unit("risk.medium", r.Medium)
	unit("risk.high", r.High)
	if r.Low > r.Medium || r.Medium > r.High {
		errs = append(errs, fmt.Errorf("config: risk thresholds must satisfy low <= medium <= high (got %v, %v, %v)", r.Low, r.Medium, r.High))
	}

	c := p.Classifier
	if c.StandardRisk > c.CriticalRisk || c.CriticalRisk > c.StructuralRisk {
		errs = append(errs, errors.New("config: classifier risk thresholds must be ascending"))
	}
	if c.StandardImpact > c.CriticalImpact || c.CriticalImpact > c.StructuralImpact {
		errs = append(errs, errors.New("config: classifier impact thresholds must be ascending"))
	}
	for typ, lvl := range c.PinnedTypes {
		if lvl.Rank() < 0 {
			errs = append(errs, fmt.Errorf("config: pinned type %q has unknown level %q", typ, lvl))
		}
	}

	w := p.Simulation.Weights
	if w.Identity < 0 || w.Pattern < 0 || w.Shadowban < 0 || w.Correlation < 0 || w.Sum() <= 0 {
		errs = append(errs, errors.New("config: simulation weights must be non-negative with a positive sum"))
	}
	unit("simulation.high_threshold", p.Simulation.HighThreshold)
	if p.Simulation.IdentityChurnLimit <= 0 || p.Simulation.CorrelationAccountCeiling <= 0 {
		errs = append(errs, errors.New("config: simulation churn and account ceilings must be positive"))
	}

	a := p.Aggressiveness
	if a.Window <= 0 {
		errs = append(errs, errors.New("config: aggressiveness.window must be positive"))
	}
	if a.SafeActionsPerMinute <= 0 {
		errs = append(errs, errors.New("config: aggressiveness.safe_actions_per_minute must be positive"))
	}
	if a.WarningThreshold >= a.DangerThreshold || a.DangerThreshold >= 1 {
		errs = append(errs, errors.New("config: aggressiveness thresholds must satisfy warning < danger < 1"))
	}

	v := p.Validation
	if v.MinConfidence >= v.MaxConfidence {
		errs = append(errs, errors.New("config: validation.min_confidence must be below max_confidence"))
	}
	for i, rule := range v.Rules {
		if rule.Name == "" || rule.Expression == "" {
			errs = append(errs, fmt.Errorf("config: validation.rules[%d] needs a name and an expression", i))
		}
	}

	if p.Budget.DailyLimit < 0 || p.Budget.MonthlyLimit < 0 {
		errs = append(errs, errors.New("config: budget limits must not be negative"))
	}

	switch p.FallbackStrategy {
	case FallbackConservative, FallbackPermissive, FallbackRejectAll:
	default:
		errs = append(errs, fmt.Errorf("config: unknown fallback strategy %q", p.FallbackStrategy))
	}
	if p.Ledger.RetentionDays <= 0 {
		errs = append(errs, errors.New("config: retention days must be positive"))
	}
	if p.Ledger.Retries < 0 {
		errs = append(errs, errors.New("config: ledger retries must not be negative"))
	}
	return errors.Join(errs...)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
