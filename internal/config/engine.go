package config

import (
	"fmt"
	"time"
)

// EngineConfig bounds the rule engine's outbound side effects.
type EngineConfig struct {
	// WebhookTimeout caps one outbound webhook call.
	WebhookTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"15s" validate:"gt=0"`

	// FulfillmentTimeout caps one fulfillment script run.
	FulfillmentTimeout time.Duration `envconfig:"FULFILLMENT_TIMEOUT" default:"15s" validate:"gt=0"`

	// FulfillmentShell is the interpreter fulfillment scripts run under.
	FulfillmentShell string `envconfig:"FULFILLMENT_SHELL" default:"/bin/sh"`

	// FulfillmentDisabled turns every fulfillment action into a logged
	// failure. Fulfillment runs operator-supplied scripts; deployments
	// that cannot trust rule authors should disable it.
	FulfillmentDisabled bool `envconfig:"FULFILLMENT_DISABLED" default:"false"`
}

// Validate performs validation on the EngineConfig.
func (c *EngineConfig) Validate() error {
	if !c.FulfillmentDisabled && c.FulfillmentShell == "" {
		return fmt.Errorf("fulfillment shell cannot be empty while fulfillment is enabled")
	}
	return nil
}
