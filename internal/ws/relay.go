package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis channel events travel on.
const DefaultRelayChannel = "optik:events"

type relayMessage struct {
	ShopID uuid.UUID `json:"shop_id"`
	Event  Event     `json:"event"`
}

// Relay carries events between API instances over Redis pub/sub. Every
// instance runs one; an event published on any instance reaches the
// subscribers of every instance's hub.
type Relay struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

// NewRelay creates a Relay feeding hub.
func NewRelay(client *redis.Client, hub *Hub, channel string) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &Relay{client: client, hub: hub, channel: channel}
}

// Publish sends the event to every instance. When Redis is unreachable the
// event still reaches this instance's subscribers.
func (r *Relay) Publish(shopID uuid.UUID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.hub.log.Error().Err(err).Str("type", eventType).Msg("marshal payload")
		return
	}
	event := Event{Type: eventType, Payload: data}
	msg, err := json.Marshal(relayMessage{ShopID: shopID, Event: event})
	if err != nil {
		r.hub.log.Error().Err(err).Str("type", eventType).Msg("marshal relay message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		r.hub.log.Warn().Err(err).Str("type", eventType).Msg("relay publish failed, delivering locally")
		r.hub.BroadcastToShop(shopID, event)
	}
}

// Run forwards relayed events into the hub until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg relayMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.hub.log.Warn().Err(err).Msg("dropping malformed relay message")
				continue
			}
			r.hub.BroadcastToShop(msg.ShopID, msg.Event)
		}
	}
}
