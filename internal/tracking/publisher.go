package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/phishguard/internal/pkg/logger"
)

// Publisher pushes capture events onto the SQS tracking queue.
// Publishing is fire-and-forget: the capture path must stay fast even
// when the queue is slow, and a lost event shows up as a funnel gap
// rather than an error for the recipient.
type Publisher struct {
	client   *sqs.Client
	queueURL string
	log      *logger.Logger
}

// NewPublisher creates an SQS publisher for the given queue.
func NewPublisher(client *sqs.Client, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, log: logger.Component("tracking-publisher")}
}

// Publish enqueues the event asynchronously.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("marshal tracking event", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			p.log.Error("publish to SQS", "error", err, "event_type", string(evt.EventType))
		}
	}()
}
