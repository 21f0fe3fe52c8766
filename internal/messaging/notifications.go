// internal/messaging/notifications.go
// Real-time event dispatch over Redis pub/sub, presence tracking and the
// pending push queue for offline receivers.

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// presenceTTL bounds how long a presence key outlives its last heartbeat
const presenceTTL = 60 * time.Second

// Event is the envelope published on pub/sub channels
type Event struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// PushNotification is a notification queued for an offline user
type PushNotification struct {
	UserID    int64                  `json:"user_id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Dispatcher fans events out to connected clients and queues push
// notifications for offline users. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	PublishToConversation(ctx context.Context, convID int64, event string, payload interface{}) error
	PublishToUser(ctx context.Context, userID int64, event string, payload interface{}) error
	IsUserOnline(ctx context.Context, userID int64) bool
	SendPushNotification(ctx context.Context, userID int64, title, body string, data map[string]interface{}) error

	// FlushPending drains the queued notifications for a user, oldest first.
	// Called by the hub when the user reconnects.
	FlushPending(userID int64) []*PushNotification
}

// ConversationChannel is the pub/sub channel for a conversation's events
func ConversationChannel(convID int64) string {
	return fmt.Sprintf("conversation:%d", convID)
}

// UserChannel is the pub/sub channel for a user's direct events
func UserChannel(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// RedisDispatcher publishes events on Redis pub/sub and keeps a bounded
// in-memory queue of push notifications for offline users
type RedisDispatcher struct {
	rdb *redis.Client

	mu           sync.Mutex
	pending      map[int64][]*PushNotification
	pendingCount int
	maxPending   int
	maxAge       time.Duration
}

// NewRedisDispatcher creates a dispatcher. maxPending caps the total
// queued push notifications across all users; maxAge drops stale entries.
func NewRedisDispatcher(rdb *redis.Client, maxPending int, maxAge time.Duration) *RedisDispatcher {
	return &RedisDispatcher{
		rdb:        rdb,
		pending:    make(map[int64][]*PushNotification),
		maxPending: maxPending,
		maxAge:     maxAge,
	}
}

func (d *RedisDispatcher) publish(ctx context.Context, channel, event string, payload interface{}) error {
	envelope := Event{
		ID:        uuid.New().String(),
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return d.rdb.Publish(ctx, channel, data).Err()
}

func (d *RedisDispatcher) PublishToConversation(ctx context.Context, convID int64, event string, payload interface{}) error {
	return d.publish(ctx, ConversationChannel(convID), event, payload)
}

func (d *RedisDispatcher) PublishToUser(ctx context.Context, userID int64, event string, payload interface{}) error {
	return d.publish(ctx, UserChannel(userID), event, payload)
}

// IsUserOnline checks the presence key maintained by the websocket hub.
// Errors degrade to offline, which at worst queues a redundant push.
func (d *RedisDispatcher) IsUserOnline(ctx context.Context, userID int64) bool {
	exists, err := d.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		log.Printf("messaging: presence check for user %d failed: %v", userID, err)
		return false
	}
	return exists > 0
}

// SetUserOnline marks the user present. The hub refreshes this on every
// heartbeat so a dead connection expires on its own.
func (d *RedisDispatcher) SetUserOnline(ctx context.Context, userID int64) error {
	return d.rdb.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
}

func (d *RedisDispatcher) SetUserOffline(ctx context.Context, userID int64) error {
	return d.rdb.Del(ctx, presenceKey(userID)).Err()
}

// Subscribe opens a pub/sub subscription on the given channels
func (d *RedisDispatcher) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return d.rdb.Subscribe(ctx, channels...)
}

// SendPushNotification queues a notification for delivery on reconnect.
// One pending entry per user and conversation: a newer message replaces
// the queued one instead of piling up.
func (d *RedisDispatcher) SendPushNotification(ctx context.Context, userID int64, title, body string, data map[string]interface{}) error {
	notification := &PushNotification{
		UserID:    userID,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if convID, ok := data["conversation_id"]; ok {
		for i, queued := range d.pending[userID] {
			if queued.Data["conversation_id"] == convID {
				d.pending[userID][i] = notification
				return nil
			}
		}
	}

	if d.pendingCount >= d.maxPending {
		d.evictOldestLocked()
	}

	d.pending[userID] = append(d.pending[userID], notification)
	d.pendingCount++
	return nil
}

func (d *RedisDispatcher) FlushPending(userID int64) []*PushNotification {
	d.mu.Lock()
	defer d.mu.Unlock()

	queued := d.pending[userID]
	if len(queued) == 0 {
		return nil
	}

	delete(d.pending, userID)
	d.pendingCount -= len(queued)
	return queued
}

// evictOldestLocked drops the single oldest queued notification.
// Caller holds the lock.
func (d *RedisDispatcher) evictOldestLocked() {
	var oldestUser int64
	oldestIdx := -1
	var oldestAt time.Time

	for userID, queued := range d.pending {
		for i, n := range queued {
			if oldestIdx == -1 || n.CreatedAt.Before(oldestAt) {
				oldestUser, oldestIdx, oldestAt = userID, i, n.CreatedAt
			}
		}
	}

	if oldestIdx == -1 {
		return
	}

	queued := d.pending[oldestUser]
	d.pending[oldestUser] = append(queued[:oldestIdx], queued[oldestIdx+1:]...)
	if len(d.pending[oldestUser]) == 0 {
		delete(d.pending, oldestUser)
	}
	d.pendingCount--
}

// StartCleanup drops expired pending notifications on the given interval
// until the context is cancelled
func (d *RedisDispatcher) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cleanupExpired()
		}
	}
}

func (d *RedisDispatcher) cleanupExpired() {
	cutoff := time.Now().Add(-d.maxAge)

	d.mu.Lock()
	defer d.mu.Unlock()

	for userID, queued := range d.pending {
		kept := queued[:0]
		for _, n := range queued {
			if n.CreatedAt.After(cutoff) {
				kept = append(kept, n)
			}
		}
		d.pendingCount -= len(queued) - len(kept)
		if len(kept) == 0 {
			delete(d.pending, userID)
		} else {
			d.pending[userID] = kept
		}
	}
}
