// Package classifier maps a proposed decision to a severity level and the
// governance steps that level requires. Classification is a pure function of
// (estimated_risk, estimated_impact, decision_type).
package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// ErrInvalidProposal is returned for proposals that cannot be classified.
var ErrInvalidProposal = errors.New("invalid proposal")

// Classification is the classifier's output.
type Classification struct {
	Level       model.DecisionLevel `json:"level"`
	ScoreLevel  model.DecisionLevel `json:"score_level"`
	PinnedLevel model.DecisionLevel `json:"pinned_level,omitempty"`
	Steps       model.Steps         `json:"steps"`
}

// Classifier holds an immutable copy of the threshold matrix and pin table.
type Classifier struct {
	policy  config.ClassifierPolicy
	pinned  map[string]model.DecisionLevel
	schemas extensionSchemas
}

// New creates a Classifier. The pin table is copied so later changes to the
// caller's map cannot alter classification. It fails if an extension schema
// does not compile.
func New(policy config.ClassifierPolicy) (*Classifier, error) {
	pinned := make(map[string]model.DecisionLevel, len(policy.PinnedTypes))
	for k, v := range policy.PinnedTypes {
		pinned[k] = v
	}
	schemas, err := compileExtensionSchemas(policy.ExtensionSchemas)
	if err != nil {
		return nil, err
	}
	policy.PinnedTypes = nil
	policy.ExtensionSchemas = nil
	return &Classifier{policy: policy, pinned: pinned, schemas: schemas}, nil
}

// Classify returns the effective level for p: the maximum of the
// score-derived level and the level pinned for its decision type.
func (c *Classifier) Classify(p model.ProposedDecision) (Classification, error) {
	if err := model.ValidateProposalFields(p); err != nil {
		return Classification{}, fmt.Errorf("classifier: %w: %w", ErrInvalidProposal, err)
	}
	risk, err := checkScore("estimated_risk", p.EstimatedRisk)
	if err != nil {
		return Classification{}, err
	}
	impact, err := checkScore("estimated_impact", p.EstimatedImpact)
	if err != nil {
		return Classification{}, err
	}
	if err := c.schemas.check(p.DecisionType, p.Context.Extensions); err != nil {
		return Classification{}, err
	}

	scoreLevel := c.scoreLevel(risk, impact)
	out := Classification{Level: scoreLevel, ScoreLevel: scoreLevel}
	if pinned, ok := c.pinned[p.DecisionType]; ok {
		out.PinnedLevel = pinned
		out.Level = model.MaxLevel(scoreLevel, pinned)
	}
	out.Steps = c.StepsFor(out.Level)
	return out, nil
}

// StepsFor returns the governance steps mandatory for level.
func (c *Classifier) StepsFor(level model.DecisionLevel) model.Steps {
	switch level {
	case model.LevelMicro:
		return model.Steps{}
	case model.LevelStandard:
		return model.Steps{
			Simulation: c.policy.SimulateStandard,
			Summary:    true,
			Analysis:   true,
			Validation: true,
			Ledger:     true,
		}
	default:
		return model.Steps{
			Simulation:     true,
			Aggressiveness: true,
			Summary:        true,
			Analysis:       true,
			Validation:     true,
			Ledger:         true,
		}
	}
}

func (c *Classifier) scoreLevel(risk, impact float64) model.DecisionLevel {
	p := c.policy
	switch {
	case risk >= p.StructuralRisk || impact >= p.StructuralImpact:
		return model.LevelStructural
	case risk >= p.CriticalRisk || impact >= p.CriticalImpact:
		return model.LevelCritical
	case risk >= p.StandardRisk || impact >= p.StandardImpact:
		return model.LevelStandard
	default:
		return model.LevelMicro
	}
}

func checkScore(name string, v *float64) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("classifier: %w: %s is required", ErrInvalidProposal, name)
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return 0, fmt.Errorf("classifier: %w: %s must be within [0,1], got %v", ErrInvalidProposal, name, *v)
	}
	return *v, nil
}
