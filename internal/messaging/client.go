// internal/messaging/client.go

package messaging

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 54 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection for a user. Events arrive from the
// Redis subscription and the hub's pending queue; the connection itself
// only carries pings from the peer.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte
	cancel context.CancelFunc
}

// ServeWS upgrades the request, subscribes the client to its user channel
// and the channels of its current conversations, and starts the pumps
func ServeWS(hub *Hub, service Service, w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("messaging: websocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
		cancel: cancel,
	}

	channels := []string{UserChannel(userID)}
	if conversations, err := service.GetConversations(r.Context(), userID); err != nil {
		log.Printf("messaging: failed to list conversations for websocket user %d: %v", userID, err)
	} else {
		for _, conv := range conversations {
			channels = append(channels, ConversationChannel(conv.ID))
		}
	}

	pubsub := hub.dispatcher.Subscribe(ctx, channels...)

	hub.register <- client

	go client.subscribePump(ctx, pubsub)
	go client.writePump()
	go client.readPump(ctx)
}

// subscribePump forwards Redis pub/sub payloads to the connection
func (c *Client) subscribePump(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case c.send <- []byte(msg.Payload):
			default:
				// Drop for a slow consumer instead of backing up the
				// subscription
			}
		}
	}
}

// readPump consumes control frames and refreshes presence on every pong
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.cancel()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.hub.dispatcher.SetUserOnline(ctx, c.userID); err != nil {
			log.Printf("messaging: presence refresh for user %d failed: %v", c.userID, err)
		}
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("messaging: websocket read error for user %d: %v", c.userID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
