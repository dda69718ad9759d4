// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"

	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// SessionDelivery pushes serialized events to whoever watches a session (the websocket hub).
type SessionDelivery interface {
	Send(sessionID string, data []byte)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	delivery  SessionDelivery
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	delivery SessionDelivery,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		delivery:  delivery,
		logger:    log,
	}
}

// Consume subscribes to the event topic and returns; messages are processed until ctx is done
// or the bus is closed.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	// Ack in every branch: redelivering a malformed or orphaned event cannot succeed.
	defer msg.Ack()

	var evt dto.EventMessage
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal event", map[string]interface{}{"error": err.Error()})
		return
	}
	if evt.SessionId == "" {
		cs.logger.Debug("ConsumerService", "Event without session dropped", map[string]interface{}{"type": evt.Type})
		return
	}

	data, err := json.Marshal(map[string]interface{}{
		"type": evt.Type,
		"data": evt,
	})
	if err != nil {
		cs.logger.Error("ConsumerService", "Failed to marshal delivery", map[string]interface{}{"error": err.Error()})
		return
	}
	cs.delivery.Send(evt.SessionId, data)
}
