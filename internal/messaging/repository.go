// internal/messaging/repository.go

package messaging

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// Repository is the storage contract for conversations and messages.
// Counter and set mutations (unread counts, soft-delete sets) must be
// applied atomically relative to concurrent mutations of the same row.
type Repository interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetConversationByMatch(ctx context.Context, matchID int64) (*Conversation, error)
	ReactivateConversation(ctx context.Context, convID, userID int64) error
	GetUserConversations(ctx context.Context, userID int64) ([]*Conversation, error)
	GetParticipant(ctx context.Context, convID, userID int64) (*Participant, error)

	// Denormalized last-message summary + unread counter + unhide, one unit
	RecordMessage(ctx context.Context, convID, senderID, receiverID int64, preview string, at time.Time) error

	ResetUnread(ctx context.Context, convID, userID int64) error
	GetUnreadTotal(ctx context.Context, userID int64) (int, error)
	SetHidden(ctx context.Context, convID, userID int64, hidden bool) error
	SetBlocked(ctx context.Context, convID int64, blockedBy *int64) error
	UpdateParticipantSettings(ctx context.Context, convID, userID int64, muted *bool, ephemeral *int64) error

	// Messages
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id int64) (*Message, error)
	GetConversationMessages(ctx context.Context, convID, requesterID int64, limit int, before *time.Time) ([]*Message, error)
	MarkMessagesRead(ctx context.Context, convID, readerID int64, at time.Time) ([]int64, error)
	SoftDeleteMessage(ctx context.Context, messageID, userID int64) (*Message, error)
}
