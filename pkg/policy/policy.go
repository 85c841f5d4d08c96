// Package policy evaluates reviewer-defined CEL rules against submitted
// saves. Rules raise named flags; they never block a save by themselves.
package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
)

// Rule is one named CEL expression over {save, baseline, timestamp}.
// The expression must evaluate to a boolean; true trips the rule.
//
// Example: large balance jumps without corroborating wins in the
// transaction log:
//
//	save.bankBalance > 1000000.0 && size(baseline.transactions) == 0
type Rule struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// Engine compiles rules once and evaluates them per submission.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	progs map[string]cel.Program
	order []string
}

// NewEngine compiles all rules. A rule that fails to compile is a
// configuration error and rejects the whole set.
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("save", cel.DynType),
		cel.Variable("baseline", cel.DynType),
		cel.Variable("timestamp", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{env: env, progs: make(map[string]cel.Program, len(rules))}
	for _, r := range rules {
		if r.Name == "" || r.Expr == "" {
			return nil, fmt.Errorf("rule needs both name and expr")
		}
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		e.progs[r.Name] = prg
		e.order = append(e.order, r.Name)
	}
	return e, nil
}

// Evaluate returns the names of tripped rules. Evaluation errors fail
// closed: a rule that cannot be evaluated against a payload counts as
// tripped, since hostile payloads should not be able to shake off rules by
// omitting fields.
func (e *Engine) Evaluate(save map[string]any, base *baseline.Baseline, timestampMillis int64) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := map[string]any{
		"save":      save,
		"baseline":  baselineInput(base),
		"timestamp": timestampMillis,
	}

	var tripped []string
	for _, name := range e.order {
		out, _, err := e.progs[name].Eval(input)
		if err != nil {
			slog.Warn("policy rule evaluation failed, failing closed", "rule", name, "error", err)
			tripped = append(tripped, name)
			continue
		}
		if b, ok := out.Value().(bool); ok && b {
			tripped = append(tripped, name)
		}
	}
	return tripped
}

func baselineInput(base *baseline.Baseline) map[string]any {
	if base == nil {
		return map[string]any{}
	}
	blob, err := json.Marshal(base)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		return map[string]any{}
	}
	if _, ok := m["transactions"]; !ok {
		m["transactions"] = []any{}
	}
	if _, ok := m["flags"]; !ok {
		m["flags"] = []any{}
	}
	return m
}
