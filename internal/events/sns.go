// internal/events/sns.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSSink publishes events to an SNS topic, with the event type and
// lead id as message attributes for subscriber filtering.
type SNSSink struct {
	client   *sns.Client
	topicARN string
}

// NewSNSSink builds an SNS-backed sink for the given region and topic.
func NewSNSSink(ctx context.Context, region, topicARN string) (*SNSSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSSink{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

// Publish sends the event envelope to the configured topic.
func (s *SNSSink) Publish(ctx context.Context, leadID, eventType string, payload map[string]interface{}) error {
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

	message := string(data)
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &s.topicARN,
		Message:  &message,
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: strPtr("String"), StringValue: &eventType},
			"leadId":    {DataType: strPtr("String"), StringValue: &leadID},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", eventType, err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
