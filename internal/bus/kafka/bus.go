// Package kafka publishes events to a Kafka topic with franz-go. Records are
// keyed by customer id so one customer's events stay ordered in a partition.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"clm/internal/bus"
	"clm/internal/customer/models"
)

type Bus struct {
	client *kgo.Client
	topic  string
}

// New connects to brokers. Extra kgo options are appended after the defaults.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Bus, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Bus{client: client, topic: topic}, nil
}

func (b *Bus) Publish(ctx context.Context, event *models.Event) error {
	body, err := bus.Encode(event)
	if err != nil {
		return err
	}
	meta := bus.Metadata(event)
	headers := make([]kgo.RecordHeader, 0, len(meta))
	for k, v := range meta {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	rec := &kgo.Record{
		Topic:   b.topic,
		Key:     []byte(event.CustomerID),
		Value:   body,
		Headers: headers,
	}
	if err := b.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce %s: %w", event.EventID, err)
	}
	return nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (b *Bus) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(b.client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, b.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", b.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", b.topic, resp.Err)
	}
	return nil
}

func (b *Bus) Health(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *Bus) Close() {
	b.client.Close()
}
