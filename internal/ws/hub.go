package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/events"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomEvent routes an event to the subscribers of one group order
type roomEvent struct {
	GroupOrderID uuid.UUID
	Event        Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by group order ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled, closing
// every client's send channel on the way out.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for gid, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, gid)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.groupOrderID] == nil {
				h.rooms[client.groupOrderID] = make(map[*Client]bool)
			}
			h.rooms[client.groupOrderID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.GroupOrderID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client from its room. Caller holds h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.groupOrderID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.groupOrderID)
	}
}

// Broadcast sends an event to all clients watching a group order. It gives
// up when ctx is done or the hub has stopped.
func (h *Hub) Broadcast(ctx context.Context, groupOrderID uuid.UUID, event Event) error {
	select {
	case h.broadcast <- &roomEvent{GroupOrderID: groupOrderID, Event: event}:
		return nil
	case <-h.done:
		return fmt.Errorf("websocket hub stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribers returns how many clients watch a group order.
func (h *Hub) Subscribers(groupOrderID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupOrderID])
}

// Notifier forwards domain events to the hub room of their group order.
type Notifier struct {
	hub *Hub
}

var _ events.Publisher = (*Notifier)(nil)

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Publish(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	return n.hub.Broadcast(ctx, e.GroupOrderID, Event{Type: e.Type, Payload: payload})
}
