package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/live"
	"github.com/ignite/phishguard/internal/pkg/logger"
	"github.com/ignite/phishguard/internal/tracking"
)

// EventConsumer drains the SQS tracking queue and folds each event into
// the funnel tracker and the durable event log. Processing is idempotent
// end to end: the store ignores duplicate (campaign, user, type) triples
// and the tracker's fold is first-write-wins, so SQS at-least-once
// delivery is safe.
type EventConsumer struct {
	sqsClient *sqs.Client
	queueURL  string
	store     *tracking.Store
	tracker   *funnel.Tracker

	// Optional: when set, each folded event publishes an
	// analytics_update frame for the campaign's live channel.
	redisClient *redis.Client

	// Optional: consulted before an event for an unregistered campaign
	// is classified as an orphan, so campaigns created after this
	// worker booted are registered on first sight instead of polluting
	// the orphan log.
	campaignLookup func(ctx context.Context, campaignID string) (bool, error)

	done chan struct{}
	log  *logger.Logger
}

// NewEventConsumer creates a consumer for the tracking queue.
func NewEventConsumer(sqsClient *sqs.Client, queueURL string, store *tracking.Store, tracker *funnel.Tracker) *EventConsumer {
	return &EventConsumer{
		sqsClient: sqsClient,
		queueURL:  queueURL,
		store:     store,
		tracker:   tracker,
		done:      make(chan struct{}),
		log:       logger.Component("event-consumer"),
	}
}

// SetRedisClient enables live-update publication.
func (c *EventConsumer) SetRedisClient(client *redis.Client) {
	c.redisClient = client
}

// SetCampaignLookup installs the existence check used to register
// campaigns the tracker has not seen yet.
func (c *EventConsumer) SetCampaignLookup(fn func(ctx context.Context, campaignID string) (bool, error)) {
	c.campaignLookup = fn
}

// Start begins the long-poll loop.
func (c *EventConsumer) Start(ctx context.Context) {
	c.log.Info("tracking consumer started", "queue", c.queueURL)
	go c.poll(ctx)
}

// Stop ends the loop.
func (c *EventConsumer) Stop() {
	close(c.done)
}

func (c *EventConsumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consumerErrors.Inc()
			c.log.Warn("SQS receive error", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var evt tracking.Event
			if err := json.Unmarshal([]byte(*msg.Body), &evt); err != nil {
				c.log.Warn("bad queue message", "error", err)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			if err := c.processEvent(ctx, evt); err != nil {
				consumerErrors.Inc()
				c.log.Error("process event", "event_type", string(evt.EventType), "error", err)
				continue
			}

			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *EventConsumer) deleteMessage(ctx context.Context, handle *string) {
	c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
}

func (c *EventConsumer) processEvent(ctx context.Context, evt tracking.Event) error {
	if !evt.EventType.Valid() {
		c.log.Warn("unknown event type", "event_type", string(evt.EventType))
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if err := c.store.Insert(ctx, evt); err != nil {
		return err
	}

	if c.campaignLookup != nil && !c.tracker.IsRegistered(evt.CampaignID) {
		known, err := c.campaignLookup(ctx, evt.CampaignID)
		if err != nil {
			c.log.Warn("campaign lookup failed", "campaign_id", evt.CampaignID, "error", err)
		} else if known {
			c.tracker.RegisterCampaign(evt.CampaignID)
		}
	}

	before := len(c.tracker.Orphans())
	rec := c.tracker.Apply(evt)
	if len(c.tracker.Orphans()) > before {
		orphanEvents.Inc()
	}
	eventsProcessed.WithLabelValues(string(evt.EventType)).Inc()

	if c.redisClient != nil {
		c.publishUpdate(ctx, evt, rec)
	}
	return nil
}

func (c *EventConsumer) publishUpdate(ctx context.Context, evt tracking.Event, rec funnel.Record) {
	// The raw event rides along so receiving processes can fold it into
	// their own trackers, not just re-broadcast the frame.
	msg, err := live.NewMessage(live.MsgAnalyticsUpdate, "campaign:"+evt.CampaignID, map[string]interface{}{
		"campaign_id": evt.CampaignID,
		"event_type":  string(evt.EventType),
		"event":       evt,
		"record":      rec,
	})
	if err != nil {
		return
	}
	if err := live.Publish(ctx, c.redisClient, "campaign:"+evt.CampaignID, msg); err != nil {
		c.log.Debug("live publish failed", "error", err)
	}
}
