package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message is one queue message. GroupID is only sent to FIFO queues.
type Message struct {
	Body       string
	GroupID    string
	Attributes map[string]string
}

// Publisher sends messages to a single queue.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{SQS: client, QueueURL: queueURL}
}

// FIFO reports whether the queue preserves per-group ordering.
func (p *Publisher) FIFO() bool {
	return strings.HasSuffix(p.QueueURL, ".fifo")
}

// Publish sends m. Empty attribute values are dropped because SQS rejects them.
func (p *Publisher) Publish(ctx context.Context, m Message) error {
	input := &sqs.SendMessageInput{
		QueueUrl:          &p.QueueURL,
		MessageBody:       &m.Body,
		MessageAttributes: stringAttributes(m.Attributes),
	}
	if p.FIFO() && m.GroupID != "" {
		input.MessageGroupId = &m.GroupID
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message to %s: %w", p.QueueURL, err)
	}
	return nil
}

func stringAttributes(in map[string]string) map[string]sqstypes.MessageAttributeValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]sqstypes.MessageAttributeValue, len(in))
	for k, v := range in {
		if v == "" {
			continue
		}
		out[k] = sqstypes.MessageAttributeValue{
			DataType:    strPtr("String"),
			StringValue: strPtr(v),
		}
	}
	return out
}

func strPtr(s string) *string { return &s }
