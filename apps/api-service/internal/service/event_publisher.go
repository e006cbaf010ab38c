package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
	"github.com/yehezkieldio/virtualqueue/pkg/kafka"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	"go.uber.org/zap"
)

// AuthEventPublisher defines the interface for publishing session events
type AuthEventPublisher interface {
	Publish(ctx context.Context, eventType domain.AuthEventType, userID, sessionID string, meta map[string]string) error
	Close() error
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// KafkaAuthEventPublisher implements AuthEventPublisher using Kafka
type KafkaAuthEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// NewKafkaAuthEventPublisher creates a new Kafka event publisher
func NewKafkaAuthEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaAuthEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "auth-events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "api-service"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = serviceName + "-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		OnError: func(msg *kafka.Message, err error) {
			logger.Get().Warn("failed to deliver auth event",
				zap.String("topic", msg.Topic),
				zap.String("event_type", msg.Headers["event_type"]),
				zap.Error(err),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaAuthEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// Publish enqueues an auth event
func (p *KafkaAuthEventPublisher) Publish(ctx context.Context, eventType domain.AuthEventType, userID, sessionID string, meta map[string]string) error {
	event := domain.NewAuthEvent(uuid.NewString(), eventType, userID, sessionID)
	event.IP = meta["ip"]
	event.UserAgent = meta["user_agent"]

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: map[string]string{
			"event_type":   string(eventType),
			"event_id":     event.ID,
			"source":       p.serviceName,
			"content_type": "application/json",
		},
		Timestamp: event.OccurredAt,
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *KafkaAuthEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// NoOpAuthEventPublisher drops every event
type NoOpAuthEventPublisher struct{}

func NewNoOpAuthEventPublisher() *NoOpAuthEventPublisher {
	return &NoOpAuthEventPublisher{}
}

func (p *NoOpAuthEventPublisher) Publish(context.Context, domain.AuthEventType, string, string, map[string]string) error {
	return nil
}

func (p *NoOpAuthEventPublisher) Close() error {
	return nil
}
