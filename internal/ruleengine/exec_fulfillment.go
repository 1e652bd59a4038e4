package ruleengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// execFulfillment runs the script stored in the action's data against
// the event payload. The script runs in a separate shell process with a
// hard deadline, never in-process: the event data arrives as JSON on
// stdin and the entity name via RULES_EVENT_ENTITY. A script that
// outlives FulfillmentTimeout is killed and counted as a failure.
//
// The stored script is still operator-supplied code; deployments that
// cannot trust rule authors should disable this action kind entirely
// via ExecutorConfig.FulfillmentDisabled.
func (x *Executor) execFulfillment(ctx context.Context, action RuleAction, ev Event) error {
	if x.cfg.FulfillmentDisabled {
		return fmt.Errorf("fulfillment actions are disabled on this deployment")
	}

	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, x.cfg.FulfillmentTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, x.cfg.Shell, "-c", action.Data)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(), "RULES_EVENT_ENTITY="+ev.Entity)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("fulfillment script failed: %w (output: %s)",
			err, strings.TrimSpace(string(output)))
	}

	x.logger.Info("fulfillment script executed",
		slog.String("action_id", action.ID),
	)
	return nil
}
