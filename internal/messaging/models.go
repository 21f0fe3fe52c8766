// internal/messaging/models.go

package messaging

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Message types
const (
	TypeText          = "text"
	TypeLocation      = "location"
	TypeSessionInvite = "session_invite"
	TypeSessionShare  = "session_share"
	TypeSystem        = "system"
)

// ValidMessageType reports whether t is an allowed message type
func ValidMessageType(t string) bool {
	switch t {
	case TypeText, TypeLocation, TypeSessionInvite, TypeSessionShare, TypeSystem:
		return true
	}
	return false
}

// Real-time event names
const (
	EventNewMessage           = "new_message"
	EventConversationUpdated  = "conversation_updated"
	EventMessagesRead         = "messages_read"
	EventConversationRestored = "conversation_restored"
	EventNewMatch             = "new_match"
)

// Conversation is the per-match messaging channel. Visibility and unread
// state are tracked per participant; a conversation is never physically
// deleted, participants hide it instead.
type Conversation struct {
	ID                 int64      `json:"id" db:"id"`
	MatchID            int64      `json:"match_id" db:"match_id"`
	User1ID            int64      `json:"user1_id" db:"user1_id"`
	User2ID            int64      `json:"user2_id" db:"user2_id"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty" db:"last_message_preview"`
	LastMessageSender  *int64     `json:"last_message_sender,omitempty" db:"last_message_sender"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	IsBlocked          bool       `json:"is_blocked" db:"is_blocked"`
	BlockedBy          *int64     `json:"blocked_by,omitempty" db:"blocked_by"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`

	// Requester-scoped fields filled by list queries
	UnreadCount int  `json:"unread_count"`
	IsMuted     bool `json:"is_muted"`
}

// IsParticipant reports whether the user is one of the two participants
func (c *Conversation) IsParticipant(userID int64) bool {
	return userID == c.User1ID || userID == c.User2ID
}

// OtherUser returns the counterpart of the given participant
func (c *Conversation) OtherUser(userID int64) int64 {
	if userID == c.User1ID {
		return c.User2ID
	}
	return c.User1ID
}

// Participant carries the per-user conversation state: the unread counter,
// the hidden flag and the per-user settings
type Participant struct {
	ConversationID    int64 `json:"conversation_id" db:"conversation_id"`
	UserID            int64 `json:"user_id" db:"user_id"`
	UnreadCount       int   `json:"unread_count" db:"unread_count"`
	IsHidden          bool  `json:"is_hidden" db:"is_hidden"`
	IsMuted           bool  `json:"is_muted" db:"is_muted"`
	EphemeralDuration int64 `json:"ephemeral_duration" db:"ephemeral_duration"` // seconds, 0 = off
}

// Message is one message in a conversation. Content is stored encrypted;
// IV and AuthTag are present together or not at all, their absence marks
// a legacy plaintext row.
type Message struct {
	ID             int64           `json:"id" db:"id"`
	ConversationID int64           `json:"conversation_id" db:"conversation_id"`
	MatchID        int64           `json:"match_id" db:"match_id"`
	SenderID       int64           `json:"sender_id" db:"sender_id"`
	ReceiverID     int64           `json:"receiver_id" db:"receiver_id"`
	MessageType    string          `json:"message_type" db:"message_type"`
	Content        string          `json:"content" db:"content"`
	IV             string          `json:"-" db:"iv"`
	AuthTag        string          `json:"-" db:"auth_tag"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IsRead         bool            `json:"is_read" db:"is_read"`
	ReadAt         *time.Time      `json:"read_at,omitempty" db:"read_at"`
	DeletedBy      pq.Int64Array   `json:"-" db:"deleted_by"`
	FullyDeleted   bool            `json:"-" db:"fully_deleted"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// DeletedFor reports whether the user has soft-deleted this message
func (m *Message) DeletedFor(userID int64) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// VisibleTo applies the visibility invariant: participant, not in the
// soft-delete set, and not fully deleted
func (m *Message) VisibleTo(userID int64) bool {
	if userID != m.SenderID && userID != m.ReceiverID {
		return false
	}
	return !m.DeletedFor(userID) && !m.FullyDeleted
}

// SendMessageRequest is the payload for sending a message
type SendMessageRequest struct {
	ConversationID int64           `json:"conversation_id" validate:"required,gt=0"`
	Content        string          `json:"content" validate:"required"`
	MessageType    string          `json:"message_type" validate:"omitempty,oneof=text location session_invite session_share system"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// ConversationSettingsRequest updates the caller's per-user settings
type ConversationSettingsRequest struct {
	IsMuted           *bool  `json:"is_muted,omitempty"`
	EphemeralDuration *int64 `json:"ephemeral_duration,omitempty" validate:"omitempty,gte=0"`
}
