package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/yehezkieldio/virtualqueue/pkg/retry"
)

var ErrNoBrokers = errors.New("kafka brokers are required")

// Message is a record to be produced
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers       []string
	ClientID      string
	MaxRetries    int
	RetryInterval time.Duration
	Linger        time.Duration
	// OnError receives failures of asynchronous produce calls
	OnError func(msg *Message, err error)
}

// Producer wraps a franz-go client used only for producing
type Producer struct {
	client  *kgo.Client
	onError func(msg *Message, err error)
}

// NewProducer creates a producer and pings the cluster, retrying with backoff
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Linger == 0 {
		cfg.Linger = 10 * time.Millisecond
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(cfg.Linger),
		kgo.RecordRetries(5),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	retrier := retry.New(&retry.Config{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.RetryInterval,
		Multiplier:      2,
	})
	if _, err := retrier.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx)
	}, nil); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &Producer{client: client, onError: cfg.OnError}, nil
}

// Produce enqueues msg without waiting for the broker acknowledgement.
// The record outlives the caller's context cancellation.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if msg == nil || msg.Topic == "" {
		return errors.New("kafka message topic is required")
	}

	p.client.Produce(context.WithoutCancel(ctx), toRecord(msg), func(_ *kgo.Record, err error) {
		if err != nil && p.onError != nil {
			p.onError(msg, err)
		}
	})
	return nil
}

// ProduceSync produces msg and waits for the acknowledgement
func (p *Producer) ProduceSync(ctx context.Context, msg *Message) error {
	return p.client.ProduceSync(ctx, toRecord(msg)).FirstErr()
}

// Close flushes buffered records and closes the client
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

func toRecord(msg *Message) *kgo.Record {
	record := &kgo.Record{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record
}
