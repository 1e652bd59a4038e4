package ruleengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// execWebhook issues an outbound HTTP POST to the URL stored in the
// action's data, with the event payload as JSON body. Success is any
// non-error status (< 400). The call is bounded by WebhookTimeout via
// both the client and the request context, so caller cancellation
// propagates to an in-flight request.
func (x *Executor) execWebhook(ctx context.Context, action RuleAction, ev Event) error {
	body, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, x.cfg.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, action.Data, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid webhook URL %q: %w", action.Data, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused by the pool.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	x.logger.Info("webhook delivered",
		slog.String("action_id", action.ID),
		slog.String("url", action.Data),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
