package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/logger"
	"github.com/rs/zerolog"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// shopEvent is an internal struct for routing events to specific shops
type shopEvent struct {
	ShopID uuid.UUID
	Event  Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by shop ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *shopEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex

	// Closed when Run returns
	done chan struct{}

	log zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *shopEvent, 256),
		done:       make(chan struct{}),
		log:        logger.WithComponent("ws_hub"),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing
// every client's send channel.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for shopID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, shopID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.shopID] == nil {
				h.rooms[client.shopID] = make(map[*Client]bool)
			}
			h.rooms[client.shopID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.log.Error().Err(err).Str("type", event.Event.Type).Msg("marshal event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.ShopID] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					h.log.Warn().Str("shop_id", event.ShopID.String()).Msg("dropping slow client")
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops a client and its empty room. Caller holds mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.shopID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.shopID)
	}
}

// BroadcastToShop sends an event to all clients subscribed to a specific shop
func (h *Hub) BroadcastToShop(shopID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &shopEvent{ShopID: shopID, Event: event}:
	case <-h.done:
	}
}

// Publish marshals payload into an event for the shop's room. It is the
// service layer's entry point.
func (h *Hub) Publish(shopID uuid.UUID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("marshal payload")
		return
	}
	h.BroadcastToShop(shopID, Event{Type: eventType, Payload: data})
}
