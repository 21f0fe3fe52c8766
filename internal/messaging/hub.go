// internal/messaging/hub.go
// Websocket hub: tracks connected clients per user, maintains presence
// and delivers queued notifications on reconnect.

package messaging

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Hub routes lifecycle events for websocket clients. A user may hold
// several simultaneous connections; presence clears only when the last
// one goes away.
type Hub struct {
	dispatcher *RedisDispatcher

	register   chan *Client
	unregister chan *Client
	clients    map[int64]map[*Client]bool
}

// NewHub creates the hub
func NewHub(dispatcher *RedisDispatcher) *Hub {
	return &Hub{
		dispatcher: dispatcher,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[int64]map[*Client]bool),
	}
}

// Run processes register/unregister events until the context is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			RecordClientConnected()

			if err := h.dispatcher.SetUserOnline(ctx, client.userID); err != nil {
				log.Printf("messaging: failed to mark user %d online: %v", client.userID, err)
			}

			h.deliverPending(client)

		case client := <-h.unregister:
			if conns, ok := h.clients[client.userID]; ok && conns[client] {
				delete(conns, client)
				close(client.send)
				RecordClientDisconnected()

				if len(conns) == 0 {
					delete(h.clients, client.userID)
					if err := h.dispatcher.SetUserOffline(ctx, client.userID); err != nil {
						log.Printf("messaging: failed to mark user %d offline: %v", client.userID, err)
					}
				}
			}
		}
	}
}

// deliverPending sends notifications queued while the user was offline
func (h *Hub) deliverPending(client *Client) {
	for _, notification := range h.dispatcher.FlushPending(client.userID) {
		envelope := Event{
			Event:     "pending_notification",
			Payload:   notification,
			Timestamp: time.Now(),
		}

		data, err := json.Marshal(envelope)
		if err != nil {
			log.Printf("messaging: failed to marshal pending notification: %v", err)
			continue
		}

		select {
		case client.send <- data:
		default:
			// Slow client; remaining notifications are dropped rather than
			// blocking the hub
			return
		}
	}
}
