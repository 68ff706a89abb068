package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/phishguard/internal/campaign"
)

// Deliverer is the external delivery collaborator. It consumes dispatch
// waves and is expected to eventually confirm each send back through the
// tracking event stream as a sent event. The core never waits for that
// confirmation: a sent count below the target recipient count is a
// diagnosable funnel gap, not an error.
type Deliverer interface {
	Deliver(ctx context.Context, campaignID, templateID string, wave campaign.DispatchWave) error
}

// DispatchInstruction is the wire format handed to the delivery queue.
type DispatchInstruction struct {
	CampaignID string    `json:"campaign_id"`
	TemplateID string    `json:"template_id"`
	SendAt     time.Time `json:"send_at"`
	Sequence   int       `json:"sequence"`
	Batch      int       `json:"batch"`
	Recipients []string  `json:"recipients"`
}

// SQSDeliverer hands dispatch waves to the delivery collaborator over an
// SQS queue.
type SQSDeliverer struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSDeliverer creates a deliverer writing to the given queue.
func NewSQSDeliverer(client *sqs.Client, queueURL string) *SQSDeliverer {
	return &SQSDeliverer{client: client, queueURL: queueURL}
}

// Deliver enqueues one wave.
func (d *SQSDeliverer) Deliver(ctx context.Context, campaignID, templateID string, wave campaign.DispatchWave) error {
	body, err := json.Marshal(DispatchInstruction{
		CampaignID: campaignID,
		TemplateID: templateID,
		SendAt:     wave.At,
		Sequence:   wave.Sequence,
		Batch:      wave.Batch,
		Recipients: wave.Recipients,
	})
	if err != nil {
		return err
	}
	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}
