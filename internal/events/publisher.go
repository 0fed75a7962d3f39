package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/hack4impact-upenn/odaap-f25/internal/config"
)

// WatermillPublisher writes events to a single topic of any watermill publisher
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

func NewWatermillPublisher(publisher message.Publisher, topic string, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// NewKafkaPublisher connects to the configured brokers
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*WatermillPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   cfg.Brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return NewWatermillPublisher(publisher, cfg.Topic, logger), nil
}

// NewGoChannelPublisher publishes in-process; messages without subscribers are dropped
func NewGoChannelPublisher(pubSub *gochannel.GoChannel, topic string, logger *slog.Logger) *WatermillPublisher {
	return NewWatermillPublisher(pubSub, topic, logger)
}

// NewPublisher picks Kafka when brokers are configured and an in-process channel otherwise
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) (EventPublisher, error) {
	if len(cfg.Brokers) > 0 {
		return NewKafkaPublisher(cfg, logger)
	}

	logger.Info("No Kafka brokers configured, publishing events in-process")
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return NewGoChannelPublisher(pubSub, cfg.Topic, logger), nil
}

func (p *WatermillPublisher) Publish(ctx context.Context, eventType EventType, data interface{}) error {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(eventType))
	msg.Metadata.Set("source", EventSource)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.logger.Debug("Event published", "event_id", event.ID, "event_type", eventType, "topic", p.topic)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}
