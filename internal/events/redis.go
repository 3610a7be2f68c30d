// internal/events/redis.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events on a per-tenant Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to the given channel prefix.
// The full channel is "{prefix}:{locationId}" when a location is present
// in the payload, otherwise just the prefix.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = "intelligence:events"
	}
	return &RedisSink{client: client, channel: channel}
}

// Publish serializes the event envelope and publishes it.
func (s *RedisSink) Publish(ctx context.Context, leadID, eventType string, payload map[string]interface{}) error {
	envelope := map[string]interface{}{
		"leadId":    leadID,
		"eventType": eventType,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}

	channel := s.channel
	if loc, ok := payload["locationId"].(string); ok && loc != "" {
		channel = fmt.Sprintf("%s:%s", s.channel, loc)
	}

	if err := s.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", eventType, err)
	}
	return nil
}
