package ruleengine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alissonpelizaro/rules-system/internal/observability"
)

// RuleResolver resolves a rule's configured action ids. It is the
// executor's narrow view of the rules table.
type RuleResolver interface {
	// GetRuleActionIDs returns the action ids attached to a rule, or an
	// empty slice if the rule no longer exists.
	GetRuleActionIDs(ctx context.Context, ruleID string) ([]string, error)
}

// ActionResolver loads action definitions. Unknown ids are silently
// dropped, so a deleted action removes itself from every rule that
// referenced it.
type ActionResolver interface {
	GetActionsByIDs(ctx context.Context, ids []string) ([]RuleAction, error)
}

// ExecutorConfig bounds the executor's outbound side effects.
type ExecutorConfig struct {
	// WebhookTimeout caps one outbound HTTP call. A hung endpoint is
	// treated as that action's failure, not the dispatch's.
	WebhookTimeout time.Duration

	// FulfillmentTimeout caps one fulfillment script run.
	FulfillmentTimeout time.Duration

	// Shell is the interpreter fulfillment scripts run under.
	Shell string

	// FulfillmentDisabled turns every fulfillment action into a logged
	// failure. Deployments that cannot trust rule authors should set it.
	FulfillmentDisabled bool
}

const (
	defaultActionTimeout    = 15 * time.Second
	defaultFulfillmentShell = "/bin/sh"
)

// Executor performs the side effects of matched rules. Each action runs
// independently: one action's error, timeout, or panic never aborts its
// siblings or the enclosing rule match. Execution is best-effort with no
// retry and no at-least-once guarantee.
type Executor struct {
	logger  *slog.Logger
	rules   RuleResolver
	actions ActionResolver
	client  *http.Client
	cfg     ExecutorConfig
}

// Compile-time check that the Executor satisfies the engine's contract.
var _ ActionRunner = (*Executor)(nil)

// NewExecutor creates an Executor. Zero config fields fall back to safe
// defaults (15s timeouts, /bin/sh).
func NewExecutor(logger *slog.Logger, rules RuleResolver, actions ActionResolver, cfg ExecutorConfig) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		panic("ruleengine: rule resolver cannot be nil")
	}
	if actions == nil {
		panic("ruleengine: action resolver cannot be nil")
	}

	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = defaultActionTimeout
	}
	if cfg.FulfillmentTimeout <= 0 {
		cfg.FulfillmentTimeout = defaultActionTimeout
	}
	if cfg.Shell == "" {
		cfg.Shell = defaultFulfillmentShell
	}

	return &Executor{
		logger:  logger,
		rules:   rules,
		actions: actions,
		client:  &http.Client{Timeout: cfg.WebhookTimeout},
		cfg:     cfg,
	}
}

// ExecuteForRule resolves the rule's action ids against the store and
// executes each resolved action, returning only the ids of actions that
// completed without error. Resolution failures degrade to "no actions".
func (x *Executor) ExecuteForRule(ctx context.Context, ruleID string, ev Event) []string {
	ids, err := x.rules.GetRuleActionIDs(ctx, ruleID)
	if err != nil {
		x.logger.Error("failed to resolve rule actions",
			slog.String("rule_id", ruleID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	actions, err := x.actions.GetActionsByIDs(ctx, ids)
	if err != nil {
		x.logger.Error("failed to load action definitions",
			slog.String("rule_id", ruleID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	executed := make([]string, 0, len(actions))
	for _, action := range actions {
		if x.perform(ctx, action, ev) {
			executed = append(executed, action.ID)
		}
	}
	return executed
}

// perform dispatches one action to its handler and isolates any failure,
// including panics from a misbehaving handler.
func (x *Executor) perform(ctx context.Context, action RuleAction, ev Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("action panicked",
				slog.String("action_id", action.ID),
				slog.String("kind", string(action.Action)),
				slog.Any("panic", r),
			)
			observability.ActionsExecuted.WithLabelValues(string(action.Action), "failure").Inc()
			ok = false
		}
	}()

	var err error
	switch action.Action {
	case ActionWebhook:
		err = x.execWebhook(ctx, action, ev)
	case ActionEmail:
		err = x.execEmail(ctx, action, ev)
	case ActionFulfillment:
		err = x.execFulfillment(ctx, action, ev)
	default:
		err = fmt.Errorf("unknown action kind %q", action.Action)
	}

	if err != nil {
		x.logger.Error("action failed",
			slog.String("action_id", action.ID),
			slog.String("kind", string(action.Action)),
			slog.String("target", action.Data),
			slog.String("error", err.Error()),
		)
		observability.ActionsExecuted.WithLabelValues(string(action.Action), "failure").Inc()
		return false
	}

	observability.ActionsExecuted.WithLabelValues(string(action.Action), "success").Inc()
	return true
}
