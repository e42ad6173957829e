package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

type compiledRule struct {
	config.PolicyRule
	prg cel.Program
}

// PolicyValidator adds operator-defined CEL rules on top of another
// validator. Expressions see two variables, snapshot and analysis, holding
// the JSON form of the inputs; a rule that evaluates to true is violated.
//
//	snapshot.proposal.accounts_affected > 5 && snapshot.costs.daily_utilization > 0.5
type PolicyValidator struct {
	inner Validator
	rules []compiledRule
}

// NewPolicyValidator compiles rules once. Compilation errors are returned
// here so bad policy fails at startup rather than per decision.
func NewPolicyValidator(inner Validator, rules []config.PolicyRule) (*PolicyValidator, error) {
	env, err := cel.NewEnv(
		cel.Variable("snapshot", cel.DynType),
		cel.Variable("analysis", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("validator: create CEL environment: %w", err)
	}

	pv := &PolicyValidator{inner: inner}
	for _, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("validator: compile rule %s: %w", r.Name, issues.Err())
		}
		if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("validator: rule %s must evaluate to bool, got %s", r.Name, t)
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("validator: program for rule %s: %w", r.Name, err)
		}
		pv.rules = append(pv.rules, compiledRule{PolicyRule: r, prg: prg})
	}
	return pv, nil
}

// Validate runs the inner validator, then the CEL rules. A critical policy
// violation rejects; any other violation downgrades an approval to
// REQUIRES_ADJUSTMENT. A rule that fails to evaluate is an error.
func (p *PolicyValidator) Validate(ctx context.Context, snap *model.Snapshot, analysis *model.AnalyzerOutput) (model.ValidationResult, error) {
	res, err := p.inner.Validate(ctx, snap, analysis)
	if err != nil {
		return model.ValidationResult{}, err
	}
	if snap == nil || analysis == nil || len(p.rules) == 0 {
		return res, nil
	}

	vars, err := activation(snap, analysis)
	if err != nil {
		return model.ValidationResult{}, err
	}

	var critical, other []string
	for _, r := range p.rules {
		if err := ctx.Err(); err != nil {
			return model.ValidationResult{}, fmt.Errorf("validator: %w", err)
		}
		res.RulesApplied = append(res.RulesApplied, r.Name)

		out, _, err := r.prg.Eval(vars)
		if err != nil {
			return model.ValidationResult{}, fmt.Errorf("validator: evaluate rule %s: %w", r.Name, err)
		}
		violated, ok := out.Value().(bool)
		if !ok {
			return model.ValidationResult{}, fmt.Errorf("validator: rule %s returned %T, want bool", r.Name, out.Value())
		}
		if !violated {
			continue
		}
		res.ViolatedRules = append(res.ViolatedRules, r.Name)
		if r.Adjustment != "" {
			res.RequiredAdjustments = append(res.RequiredAdjustments, r.Adjustment)
		}
		if r.Critical {
			critical = append(critical, r.Name)
		} else {
			other = append(other, r.Name)
		}
	}

	switch {
	case len(critical) > 0 && res.Status != model.StatusRejected:
		res.Status = model.StatusRejected
		res.Approved = false
		res.Caution = false
		res.Reason = "critical rule violated: " + strings.Join(critical, ", ")
	case len(other) > 0 && res.Status == model.StatusApproved:
		res.Status = model.StatusRequiresAdjustment
		res.Approved = false
		res.Caution = false
		res.Reason = "rules violated: " + strings.Join(other, ", ")
	}
	return res, nil
}

// activation converts the inputs to their JSON shape so expressions use the
// same field names as the API.
func activation(snap *model.Snapshot, analysis *model.AnalyzerOutput) (map[string]any, error) {
	toMap := func(v any) (map[string]any, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	s, err := toMap(snap)
	if err != nil {
		return nil, fmt.Errorf("validator: encode snapshot: %w", err)
	}
	a, err := toMap(analysis)
	if err != nil {
		return nil, fmt.Errorf("validator: encode analysis: %w", err)
	}
	return map[string]any{"snapshot": s, "analysis": a}, nil
}

// FromPolicy returns the built-in validator, wrapped in a PolicyValidator
// when the policy defines extra rules.
func FromPolicy(p config.Policy) (Validator, error) {
	base := New(p)
	if len(p.Validation.Rules) == 0 {
		return base, nil
	}
	return NewPolicyValidator(base, p.Validation.Rules)
}
