// internal/events/publisher.go
package events

import (
	"context"
)

// Event types published by the intelligence services.
const (
	EventIntelligenceUpdated = "intelligence_updated"
	EventBotHandoff          = "bot_handoff"
)

// Sink is the fire-and-forget notifier the intelligence services
// publish to. Failures are swallowed by callers; events exist for
// observability, never correctness.
type Sink interface {
	Publish(ctx context.Context, leadID, eventType string, payload map[string]interface{}) error
}

// NopSink discards all events. Used when no event transport is configured.
type NopSink struct{}

func (NopSink) Publish(ctx context.Context, leadID, eventType string, payload map[string]interface{}) error {
	return nil
}
