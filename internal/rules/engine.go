package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/borelli28/siembackend/internal/alerts"
	"github.com/borelli28/siembackend/internal/monitoring"
	"github.com/borelli28/siembackend/internal/normalize"
	"github.com/borelli28/siembackend/internal/utils"
)

// Engine scans an account's enabled rules against each ingested event and
// hands matches to an alerts.Sink.
type Engine struct {
	mu      sync.RWMutex
	byAcct  map[string][]Rule
	sink    alerts.Sink
	logger  *slog.Logger
	metrics *monitoring.Metrics
}

// New builds an Engine writing matches to sink. logger and metrics may be
// nil; a nil logger falls back to slog.Default().
func New(sink alerts.Sink, logger *slog.Logger, metrics *monitoring.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		byAcct:  make(map[string][]Rule),
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// LoadRules replaces the rule set for an account atomically.
func (e *Engine) LoadRules(accountID string, rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byAcct[accountID] = rules
}

// Rules returns a copy of the currently loaded rules for an account.
func (e *Engine) Rules(accountID string) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rules := e.byAcct[accountID]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Evaluate scans every enabled rule scoped to accountID against event; for
// each match it constructs an Alert, hands it to the sink, and includes it
// in the returned slice for telemetry. A rule whose matching panics or
// whose selection evaluation errors is treated as a non-match and logged;
// it never aborts evaluation of the remaining rules.
func (e *Engine) Evaluate(ctx context.Context, event normalize.NormalizedLog, accountID string) ([]alerts.Alert, error) {
	e.mu.RLock()
	rules := e.byAcct[accountID]
	e.mu.RUnlock()

	var produced []alerts.Alert
	for _, rule := range rules {
		if !rule.Enabled || rule.AccountID != accountID {
			continue
		}

		matched := e.safeMatches(rule, event)
		if e.metrics != nil {
			e.metrics.RecordRuleEvaluation(rule.ID)
		}
		if !matched {
			continue
		}

		alert := alerts.Alert{
			ID:           uuid.NewString(),
			RuleID:       rule.ID,
			AccountID:    accountID,
			Severity:     string(rule.Level),
			Message:      fmt.Sprintf("Alert triggered: %s - %s", rule.Title, rule.Description),
			Acknowledged: false,
			CreatedAt:    utils.NowUTC(),
		}

		if err := e.sink.Write(ctx, alert); err != nil {
			return produced, fmt.Errorf("rules: writing alert for rule %s: %w", rule.ID, err)
		}

		produced = append(produced, alert)
	}

	return produced, nil
}

// safeMatches recovers from a panicking condition evaluation and treats it
// as a non-match, matching the spec's "errors in rule evaluation are
// logged, never abort ingest" contract.
func (e *Engine) safeMatches(rule Rule, event normalize.NormalizedLog) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule evaluation panicked, treating as non-match",
				"rule_id", rule.ID,
				"account_id", rule.AccountID,
				"panic", r,
			)
			matched = false
		}
	}()
	return matches(rule.Detection, event)
}
