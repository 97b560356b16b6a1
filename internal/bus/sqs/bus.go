// Package sqs publishes events to an SQS queue.
package sqs

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"clm/internal/bus"
	"clm/internal/customer/models"
)

// Client is the subset of the SQS API the bus needs.
type Client interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

type Bus struct {
	client   Client
	queueURL string
	fifo     bool
}

type Option func(*Bus)

// WithFIFO sets MessageGroupId to the customer id and MessageDeduplicationId to
// the event id, for FIFO queues.
func WithFIFO() Option {
	return func(b *Bus) {
		b.fifo = true
	}
}

func New(client Client, queueURL string, opts ...Option) (*Bus, error) {
	if client == nil {
		return nil, errors.New("sqs: client is required")
	}
	if queueURL == "" {
		return nil, errors.New("sqs: queue url is required")
	}
	b := &Bus{client: client, queueURL: queueURL}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bus) Publish(ctx context.Context, event *models.Event) error {
	body, err := bus.Encode(event)
	if err != nil {
		return err
	}
	attrs := make(map[string]types.MessageAttributeValue)
	for k, v := range bus.Metadata(event) {
		if v == "" {
			continue
		}
		attrs[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(b.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}
	if b.fifo {
		input.MessageGroupId = aws.String(event.CustomerID)
		input.MessageDeduplicationId = aws.String(event.EventID)
	}
	if _, err := b.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs send %s: %w", event.EventID, err)
	}
	return nil
}

func (b *Bus) Health(ctx context.Context) error {
	_, err := b.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(b.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	return err
}
