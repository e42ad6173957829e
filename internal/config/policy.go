package config

import (
	"time"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// FallbackStrategy decides what happens to a verdict when a stage fails.
type FallbackStrategy string

const (
	FallbackConservative FallbackStrategy = "conservative"
	FallbackPermissive   FallbackStrategy = "permissive"
	FallbackRejectAll    FallbackStrategy = "reject_all"
)

// Policy is the governance tuning surface. It can be supplied as YAML and
// individual values overridden from the environment.
type Policy struct {
	Classifier     ClassifierPolicy     `yaml:"classifier"`
	Simulation     SimulationPolicy     `yaml:"simulation"`
	Aggressiveness AggressivenessPolicy `yaml:"aggressiveness"`
	Summary        SummaryPolicy        `yaml:"summary"`
	Validation     ValidationPolicy     `yaml:"validation"`
	Risk           RiskThresholds       `yaml:"risk"`
	Budget         BudgetPolicy         `yaml:"budget"`
	Timeouts       StageTimeouts        `yaml:"timeouts"`
	Ledger         LedgerPolicy         `yaml:"ledger"`

	FallbackStrategy       FallbackStrategy `yaml:"fallback_strategy"`
	HumanReviewForCritical bool             `yaml:"human_review_for_critical"`
}

// ClassifierPolicy is the (risk, impact) threshold matrix plus pinned types.
type ClassifierPolicy struct {
	StructuralRisk   float64                        `yaml:"structural_risk"`
	StructuralImpact float64                        `yaml:"structural_impact"`
	CriticalRisk     float64                        `yaml:"critical_risk"`
	CriticalImpact   float64                        `yaml:"critical_impact"`
	StandardRisk     float64                        `yaml:"standard_risk"`
	StandardImpact   float64                        `yaml:"standard_impact"`
	PinnedTypes      map[string]model.DecisionLevel `yaml:"pinned_types"`
	SimulateStandard bool                           `yaml:"simulate_standard"`
	// ExtensionSchemas maps a decision type to a JSON Schema (draft 2020-12)
	// that its context.extensions must satisfy.
	ExtensionSchemas map[string]string `yaml:"extension_schemas"`
}

// RiskWeights weight the four simulation sub-scores.
type RiskWeights struct {
	Identity    float64 `yaml:"identity"`
	Pattern     float64 `yaml:"pattern"`
	Shadowban   float64 `yaml:"shadowban"`
	Correlation float64 `yaml:"correlation"`
}

// Sum returns the total weight.
func (w RiskWeights) Sum() float64 {
	return w.Identity + w.Pattern + w.Shadowban + w.Correlation
}

// SimulationPolicy tunes the risk simulation engine.
type SimulationPolicy struct {
	Weights                   RiskWeights `yaml:"weights"`
	HighThreshold             float64     `yaml:"high_threshold"`
	ShadowbanBlockThreshold   float64     `yaml:"shadowban_block_threshold"`
	IdentityChurnLimit        int         `yaml:"identity_churn_limit"`
	MinTimingSamples          int         `yaml:"min_timing_samples"`
	TimingCVCeiling           float64     `yaml:"timing_cv_ceiling"`
	CorrelationAccountCeiling int         `yaml:"correlation_account_ceiling"`
	PlatformFlagWeight        float64     `yaml:"platform_flag_weight"`
}

// AggressivenessPolicy tunes the rolling-window monitor.
type AggressivenessPolicy struct {
	Window               time.Duration `yaml:"window"`
	SafeActionsPerMinute float64       `yaml:"safe_actions_per_minute"`
	WarningThreshold     float64       `yaml:"warning_threshold"`
	DangerThreshold      float64       `yaml:"danger_threshold"`
	BaseCooldown         time.Duration `yaml:"base_cooldown"`
	MaxExtraCooldown     time.Duration `yaml:"max_extra_cooldown"`
	FleetSize            int           `yaml:"fleet_size"`
	HistorySize          int           `yaml:"history_size"`
	RedisKey             string        `yaml:"redis_key"`
}

// SummaryPolicy tunes snapshot generation.
type SummaryPolicy struct {
	RepetitionThreshold float64 `yaml:"repetition_threshold"`
	RepetitionMinSample int     `yaml:"repetition_min_sample"`
	RepetitionWindow    int     `yaml:"repetition_window"`
}

// PolicyRule is an extra validator rule written as a CEL expression over the
// snapshot. A rule that evaluates to true is a violation.
type PolicyRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Critical   bool   `yaml:"critical"`
	Adjustment string `yaml:"adjustment"`
}

// ValidationPolicy tunes the hard validator.
type ValidationPolicy struct {
	IdentityThreshold    float64      `yaml:"identity_threshold"`
	CorrelationThreshold float64      `yaml:"correlation_threshold"`
	PatternThreshold     float64      `yaml:"pattern_threshold"`
	MaxAccountsPerAction int          `yaml:"max_accounts_per_action"`
	FailureRateCeiling   float64      `yaml:"failure_rate_ceiling"`
	MinConfidence        float64      `yaml:"min_confidence"`
	MaxConfidence        float64      `yaml:"max_confidence"`
	CoherenceConfidence  float64      `yaml:"coherence_confidence"`
	Rules                []PolicyRule `yaml:"rules"`
}

// RiskThresholds are the low/medium/high cut points for validator risk scores.
type RiskThresholds struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// BudgetPolicy holds the spend ceilings used when the fleet reports none.
type BudgetPolicy struct {
	DailyLimit   float64 `yaml:"daily_limit"`
	MonthlyLimit float64 `yaml:"monthly_limit"`
}

// StageTimeouts bound each orchestrator stage.
type StageTimeouts struct {
	Simulation     time.Duration `yaml:"simulation"`
	Aggressiveness time.Duration `yaml:"aggressiveness"`
	Signals        time.Duration `yaml:"signals"`
	Analyzer       time.Duration `yaml:"analyzer"`
	Validator      time.Duration `yaml:"validator"`
	Ledger         time.Duration `yaml:"ledger"`
}

// LedgerPolicy covers ledger write retries and retention.
type LedgerPolicy struct {
	Retries        int           `yaml:"retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetentionDays  int           `yaml:"retention_days"`
}

// DefaultPolicy returns the built-in governance policy.
func DefaultPolicy() Policy {
	return Policy{
		Classifier: ClassifierPolicy{
			StructuralRisk:   0.8,
			StructuralImpact: 0.8,
			CriticalRisk:     0.5,
			CriticalImpact:   0.5,
			StandardRisk:     0.1,
			StandardImpact:   0.1,
			PinnedTypes: map[string]model.DecisionLevel{
				"scale_accounts":  model.LevelCritical,
				"shift_budget":    model.LevelCritical,
				"change_strategy": model.LevelStructural,
				"rotate_identity": model.LevelStructural,
				"create_accounts": model.LevelStructural,
			},
		},
		Simulation: SimulationPolicy{
			Weights: RiskWeights{
				Identity:    0.25,
				Pattern:     0.20,
				Shadowban:   0.35,
				Correlation: 0.20,
			},
			HighThreshold:             0.7,
			ShadowbanBlockThreshold:   0.5,
			IdentityChurnLimit:        5,
			MinTimingSamples:          3,
			TimingCVCeiling:           0.5,
			CorrelationAccountCeiling: 10,
			PlatformFlagWeight:        0.3,
		},
		Aggressiveness: AggressivenessPolicy{
			Window:               time.Hour,
			SafeActionsPerMinute: 2,
			WarningThreshold:     0.5,
			DangerThreshold:      0.75,
			BaseCooldown:         30 * time.Minute,
			MaxExtraCooldown:     90 * time.Minute,
			HistorySize:          288,
			RedisKey:             "warden:aggressiveness:window",
		},
		Summary: SummaryPolicy{
			RepetitionThreshold: 0.8,
			RepetitionMinSample: 5,
			RepetitionWindow:    20,
		},
		Validation: ValidationPolicy{
			IdentityThreshold:    0.6,
			CorrelationThreshold: 0.6,
			PatternThreshold:     0.7,
			MaxAccountsPerAction: 10,
			FailureRateCeiling:   0.2,
			MinConfidence:        0.3,
			MaxConfidence:        0.95,
			CoherenceConfidence:  0.8,
		},
		Risk: RiskThresholds{
			Low:    0.3,
			Medium: 0.5,
			High:   0.7,
		},
		Budget: BudgetPolicy{
			DailyLimit:   100,
			MonthlyLimit: 2500,
		},
		Timeouts: StageTimeouts{
			Simulation:     2 * time.Second,
			Aggressiveness: time.Second,
			Signals:        2 * time.Second,
			Analyzer:       15 * time.Second,
			Validator:      2 * time.Second,
			Ledger:         5 * time.Second,
		},
		Ledger: LedgerPolicy{
			Retries:        3,
			RetryBaseDelay: 50 * time.Millisecond,
			RetentionDays:  90,
		},
		FallbackStrategy:       FallbackConservative,
		HumanReviewForCritical: true,
	}
}
