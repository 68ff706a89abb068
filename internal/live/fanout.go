package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/phishguard/internal/pkg/logger"
)

// FanoutChannel is the Redis pub/sub channel bridging processes to the
// hub: the worker publishes analytics updates here and every server
// instance re-broadcasts to its own websocket sessions.
const FanoutChannel = "phishguard:live"

type fanoutEnvelope struct {
	Channel string  `json:"channel"`
	Message Message `json:"message"`
}

// Fanout bridges Redis pub/sub to a hub.
type Fanout struct {
	client *redis.Client
	hub    *Hub
	apply  func(channel string, msg Message)
	cancel context.CancelFunc
	log    *logger.Logger
}

// NewFanout creates a fanout bridge.
func NewFanout(client *redis.Client, hub *Hub) *Fanout {
	return &Fanout{client: client, hub: hub, log: logger.Component("live-fanout")}
}

// SetApply installs a callback invoked for each frame before it is
// re-broadcast, so the receiving process can fold analytics updates into
// its own in-memory state rather than serving data frozen at boot.
func (f *Fanout) SetApply(fn func(channel string, msg Message)) {
	f.apply = fn
}

// Start subscribes to the fanout channel and re-broadcasts frames until
// Stop is called.
func (f *Fanout) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	sub := f.client.Subscribe(ctx, FanoutChannel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var env fanoutEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					f.log.Warn("bad fanout payload", "error", err)
					continue
				}
				if f.apply != nil {
					f.apply(env.Channel, env.Message)
				}
				f.hub.Broadcast(env.Channel, env.Message)
			}
		}
	}()
}

// Stop ends the subscription.
func (f *Fanout) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

// Publish sends a frame through Redis to every hub instance.
func Publish(ctx context.Context, client *redis.Client, channel string, msg Message) error {
	raw, err := json.Marshal(fanoutEnvelope{Channel: channel, Message: msg})
	if err != nil {
		return err
	}
	return client.Publish(ctx, FanoutChannel, raw).Err()
}
