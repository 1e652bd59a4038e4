package ruleengine

import (
	"context"
	"log/slog"
)

// execEmail formats and hands off a notification. Real delivery is an
// external collaborator that is not wired yet, so the handler logs the
// intended recipient and body and reports success.
//
// TODO: hand off to the mail broker service once it is wired.
func (x *Executor) execEmail(_ context.Context, action RuleAction, ev Event) error {
	x.logger.Info("email notification queued",
		slog.String("action_id", action.ID),
		slog.String("recipient", action.Data),
		slog.Any("body", ev.Data),
	)
	return nil
}
