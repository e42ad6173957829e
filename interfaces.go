package warden

import (
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/alert"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/cognitive"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/service/governance"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/validator"
)

// Analyzer reviews a snapshot of a proposal and returns observations and
// risk signals. When provided via WithAnalyzer, replaces the analyzer
// selected by WARDEN_ANALYZER_PROVIDER. Calls are bounded by the analyzer
// timeout; a failure degrades to the configured fallback strategy.
type Analyzer = cognitive.Analyzer

// Validator is the final rule check before a verdict. When provided via
// WithValidator, replaces the built-in rules plus any CEL policy rules.
type Validator = validator.Validator

// SignalSource supplies fleet-level signals for proposals that do not carry
// them. Without one, fleet signals default to zero.
type SignalSource = governance.SignalSource

// AlertSink receives operational alerts. Sinks registered via WithAlertSink
// are called in addition to the log sink and the NATS sink.
type AlertSink = alert.Sink

// Ledger is the append-only decision store. A ledger passed to WithLedger is
// used as-is: no read cache is added and the App does not close it.
type Ledger = ledger.Store
