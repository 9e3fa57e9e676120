package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"go.uber.org/zap"
)

type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// EventType identifies the downstream event kind.
type EventType string

const (
	EventLeadCreated   EventType = "lead.created"
	EventCallCompleted EventType = "call.completed"
)

// LeadEvent is the payload published when a call is finalized. The dashboard
// and follow-up workflows consume these off the topic.
type LeadEvent struct {
	Type         EventType `json:"type"`
	LeadID       string    `json:"lead_id,omitempty"`
	CallSid      string    `json:"call_sid"`
	BusinessLine string    `json:"business_line"`
	CallerPhone  string    `json:"caller_phone,omitempty"`
	Urgency      string    `json:"urgency,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher publishes finalization events. Implemented by PubSubService and
// faked in tests.
type Publisher interface {
	PublishLeadEvent(ctx context.Context, ev LeadEvent) error
}

type PubSubService struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

func NewPubSubService(ctx context.Context, config *PubSubConfig) (*PubSubService, error) {
	if config.ProjectID == "" || config.TopicName == "" {
		return nil, fmt.Errorf("pubsub project id and topic name are required")
	}

	client, err := pubsub.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &PubSubService{
		client: client,
		topic:  client.Topic(config.TopicName),
		config: config,
	}, nil
}

// PublishLeadEvent publishes a finalization event. Failures are returned for
// logging only; callers never block call flow on them.
func (s *PubSubService) PublishLeadEvent(ctx context.Context, ev LeadEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal lead event: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":    string(ev.Type),
			"business_line": ev.BusinessLine,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish lead event: %w", err)
	}

	logger.Base().Debug("published lead event",
		zap.String("message_id", id),
		zap.String("event_type", string(ev.Type)),
		zap.String("call_sid", ev.CallSid))
	return nil
}

// Close stops the topic's publish goroutines and closes the client.
func (s *PubSubService) Close() error {
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
