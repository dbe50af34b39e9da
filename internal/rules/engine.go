// Package rules provides the CEL-Go based detection rule engine.
// Rules evaluate ingested transactions and emit the rule triggers that
// feed alert classification.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Rule is a deterministic detection rule. The CEL expression must
// evaluate to a boolean; a true result fires the rule.
type Rule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Reason     string `json:"reason"`
	Enabled    bool   `json:"enabled"`
}

// compiledRule holds a pre-compiled CEL program.
type compiledRule struct {
	rule    Rule
	program cel.Program
}

// VelocityGetter returns the transaction count for an entity within a
// step window. Supplied by the velocity service.
type VelocityGetter func(ctx context.Context, tenantID, entityID string, windowSteps int) (int64, error)

// Engine compiles and evaluates detection rules against transactions.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiled       map[string]*compiledRule
	velocityGetter VelocityGetter
	maxWorkers     int
}

// NewEngine creates a new detection rule engine.
func NewEngine(velocityGetter VelocityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Transaction variables exposed to CEL expressions. Balance fields
	// are deliberately absent: the provider feed is untrusted.
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("step", cel.IntType),
		cel.Variable("name_orig", cel.StringType),
		cel.Variable("name_dest", cel.StringType),
		cel.Variable("is_flagged", cel.BoolType),
		cel.Variable("is_high_value", cel.BoolType),
		cel.Variable("velocity_count", cel.IntType),
		cel.Variable("dest_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiled:       make(map[string]*compiledRule),
		velocityGetter: velocityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

func (e *Engine) compileRule(r Rule) (*compiledRule, error) {
	if r.ID == "" || r.Expression == "" {
		return nil, fmt.Errorf("rule id and expression are required")
	}

	ast, issues := e.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule %s: compile failed: %w", r.ID, issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule %s: program creation failed: %w", r.ID, err)
	}

	return &compiledRule{rule: r, program: prg}, nil
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(r Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(r)
	if err != nil {
		return err
	}

	e.compiled[r.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rs []Rule) error {
	for _, r := range rs {
		if r.Enabled {
			if err := e.LoadRule(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedRules returns the loaded rule definitions sorted by ID.
func (e *Engine) LoadedRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rs := make([]Rule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rs = append(rs, c.rule)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
	return rs
}

// VelocityWindowSteps is the step window used for velocity counts.
// One PaySim step corresponds to one hour; 24 steps cover a day.
const VelocityWindowSteps = 24

// DestHistoryWindowSteps covers a full PaySim month, so dest_count
// reflects the destination's entire simulated history.
const DestHistoryWindowSteps = 744

// Evaluate runs every loaded rule against the transaction and returns
// a trigger record per fired rule, ordered by rule ID. Rules that error
// during evaluation are skipped; detection must not fail ingestion.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.Transaction) []domain.RuleTrigger {
	e.mu.RLock()
	rs := make([]*compiledRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rs = append(rs, c)
	}
	e.mu.RUnlock()

	if len(rs) == 0 {
		return nil
	}

	// dest_count is -1 when history is unavailable; rules must treat
	// negative as unknown rather than as an empty history.
	var velocityCount int64
	destCount := int64(-1)
	if e.velocityGetter != nil {
		if count, err := e.velocityGetter(ctx, tx.TenantID, tx.NameOrig, VelocityWindowSteps); err == nil {
			velocityCount = count
		}
		if count, err := e.velocityGetter(ctx, tx.TenantID, tx.NameDest, DestHistoryWindowSteps); err == nil {
			destCount = count
		}
	}

	activation := map[string]any{
		"amount":         tx.Amount,
		"tx_type":        string(tx.Type),
		"step":           int64(tx.Step),
		"name_orig":      tx.NameOrig,
		"name_dest":      tx.NameDest,
		"is_flagged":     tx.IsFlaggedFraud,
		"is_high_value":  tx.IsHighValue(),
		"velocity_count": velocityCount,
		"dest_count":     destCount,
	}

	// Parallel evaluation with a bounded semaphore.
	fired := make([]bool, len(rs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, c := range rs {
		wg.Add(1)
		go func(idx int, c *compiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			out, _, err := c.program.Eval(activation)
			if err != nil {
				return
			}
			if b, ok := out.(types.Bool); ok && bool(b) {
				fired[idx] = true
			}
		}(i, c)
	}
	wg.Wait()

	var triggers []domain.RuleTrigger
	for i, c := range rs {
		if fired[i] {
			triggers = append(triggers, domain.RuleTrigger{
				RuleID:   c.rule.ID,
				RuleName: c.rule.Name,
				Reason:   c.rule.Reason,
			})
		}
	}

	sort.Slice(triggers, func(i, j int) bool { return triggers[i].RuleID < triggers[j].RuleID })
	return triggers
}

// Close releases engine resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledRule)
	return nil
}
