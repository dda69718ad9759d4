package service

import (
	"context"
	"encoding/json"
	"fmt"

	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/pkg/logger"
	"helmet-compliance-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventSink receives lifecycle events that leave the process (NATS JetStream in production).
type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

type IPublisherService interface {
	Publish(ctx context.Context, event events.Event) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
	sink      EventSink
	logger    logger.ILogger
}

// NewPublisherService puts every event on the in-process bus. Events other than raw state
// snapshots are also forwarded to sink when one is configured.
func NewPublisherService(topicName string, pubSub *gochannel.GoChannel, sink EventSink, log logger.ILogger) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
		sink:      sink,
		logger:    log,
	}
}

func (p *publisherService) Publish(ctx context.Context, event events.Event) error {
	sessionId, _ := event.Payload()["session_id"].(string)
	payload, err := json.Marshal(dto.EventMessage{
		Type:       event.EventType(),
		SessionId:  sessionId,
		OccurredAt: event.Timestamp(),
		Data:       event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := p.pubSub.Publish(p.topicName, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}

	if p.sink != nil && event.EventType() != events.TypeSessionState {
		if err := p.sink.Publish(ctx, event); err != nil {
			p.logger.Warn("PublisherService", "Failed to forward event to sink", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}
	return nil
}
