// internal/messaging/service.go
// Conversation lifecycle: creation on mutual match, per-user visibility,
// unread counters, blocking and settings.

package messaging

import (
	"context"
	"errors"
	"log"
	"time"
)

var (
	ErrNotParticipant      = errors.New("not a participant in this conversation")
	ErrConversationBlocked = errors.New("conversation is blocked")
	ErrEmptyContent        = errors.New("message content is empty")
	ErrContentTooLong      = errors.New("message content is too long")
	ErrInvalidMessageType  = errors.New("invalid message type")
)

// Service exposes conversation and message operations
type Service interface {
	// Conversations
	EnsureForMatch(ctx context.Context, matchID, user1ID, user2ID, requesterID int64) (int64, error)
	GetConversations(ctx context.Context, userID int64) ([]*Conversation, error)
	GetUnreadTotal(ctx context.Context, userID int64) int
	MarkConversationRead(ctx context.Context, convID, readerID int64) (int, error)
	HideConversation(ctx context.Context, convID, userID int64) error
	UnhideConversation(ctx context.Context, convID, userID int64) error
	BlockConversation(ctx context.Context, convID, userID int64) error
	UpdateSettings(ctx context.Context, convID, userID int64, req *ConversationSettingsRequest) error

	// Messages
	SendMessage(ctx context.Context, senderID int64, req *SendMessageRequest) (*Message, error)
	GetMessages(ctx context.Context, convID, requesterID int64, limit int, before *time.Time) ([]*Message, error)
	DeleteMessage(ctx context.Context, messageID, requesterID int64) error
}

type messageService struct {
	repo       Repository
	crypto     EncryptionService
	dispatcher Dispatcher
	maxLength  int
	pageLimit  int
}

// NewService creates the messaging service
func NewService(repo Repository, crypto EncryptionService, dispatcher Dispatcher, maxLength, pageLimit int) Service {
	return &messageService{
		repo:       repo,
		crypto:     crypto,
		dispatcher: dispatcher,
		maxLength:  maxLength,
		pageLimit:  pageLimit,
	}
}

// EnsureForMatch creates the conversation for a mutual match, or
// reactivates an existing one that is inactive or hidden for the
// requester. The caller guarantees the match is mutual. Reactivation
// notifies the requester only.
func (s *messageService) EnsureForMatch(ctx context.Context, matchID, user1ID, user2ID, requesterID int64) (int64, error) {
	conv, err := s.repo.GetConversationByMatch(ctx, matchID)
	if errors.Is(err, ErrConversationNotFound) {
		conv = &Conversation{
			MatchID: matchID,
			User1ID: user1ID,
			User2ID: user2ID,
		}
		if err := s.repo.CreateConversation(ctx, conv); err != nil {
			return 0, err
		}
		return conv.ID, nil
	}
	if err != nil {
		return 0, err
	}

	participant, err := s.repo.GetParticipant(ctx, conv.ID, requesterID)
	if err != nil {
		return 0, err
	}

	if !conv.IsActive || participant.IsHidden {
		if err := s.repo.ReactivateConversation(ctx, conv.ID, requesterID); err != nil {
			return 0, err
		}

		s.dispatch(func(ctx context.Context) error {
			return s.dispatcher.PublishToUser(ctx, requesterID, EventConversationRestored, map[string]interface{}{
				"conversation_id": conv.ID,
			})
		})
	}

	return conv.ID, nil
}

func (s *messageService) GetConversations(ctx context.Context, userID int64) ([]*Conversation, error) {
	return s.repo.GetUserConversations(ctx, userID)
}

// GetUnreadTotal is best-effort: the unread badge degrades to 0 on any
// storage error instead of failing the request
func (s *messageService) GetUnreadTotal(ctx context.Context, userID int64) int {
	total, err := s.repo.GetUnreadTotal(ctx, userID)
	if err != nil {
		log.Printf("messaging: unread total for user %d failed, returning 0: %v", userID, err)
		return 0
	}
	return total
}

// MarkConversationRead flips all messages addressed to the reader and
// resets the reader's unread counter. The two are separate pieces of
// state and are always updated together here.
func (s *messageService) MarkConversationRead(ctx context.Context, convID, readerID int64) (int, error) {
	if _, err := s.authorizeParticipant(ctx, convID, readerID); err != nil {
		return 0, err
	}

	ids, err := s.repo.MarkMessagesRead(ctx, convID, readerID, time.Now())
	if err != nil {
		return 0, err
	}

	if err := s.repo.ResetUnread(ctx, convID, readerID); err != nil {
		return 0, err
	}

	if len(ids) > 0 {
		s.dispatch(func(ctx context.Context) error {
			return s.dispatcher.PublishToConversation(ctx, convID, EventMessagesRead, map[string]interface{}{
				"message_ids": ids,
				"read_by":     readerID,
			})
		})
		s.dispatch(func(ctx context.Context) error {
			return s.dispatcher.PublishToUser(ctx, readerID, EventConversationUpdated, map[string]interface{}{
				"conversation_id":  convID,
				"unread_decrement": len(ids),
			})
		})
	}

	return len(ids), nil
}

// HideConversation removes the conversation from the caller's list.
// Messages are untouched; hiding is per-participant and idempotent.
func (s *messageService) HideConversation(ctx context.Context, convID, userID int64) error {
	if _, err := s.authorizeParticipant(ctx, convID, userID); err != nil {
		return err
	}
	return s.repo.SetHidden(ctx, convID, userID, true)
}

func (s *messageService) UnhideConversation(ctx context.Context, convID, userID int64) error {
	if _, err := s.authorizeParticipant(ctx, convID, userID); err != nil {
		return err
	}
	return s.repo.SetHidden(ctx, convID, userID, false)
}

func (s *messageService) BlockConversation(ctx context.Context, convID, userID int64) error {
	if _, err := s.authorizeParticipant(ctx, convID, userID); err != nil {
		return err
	}
	return s.repo.SetBlocked(ctx, convID, &userID)
}

func (s *messageService) UpdateSettings(ctx context.Context, convID, userID int64, req *ConversationSettingsRequest) error {
	if _, err := s.authorizeParticipant(ctx, convID, userID); err != nil {
		return err
	}
	return s.repo.UpdateParticipantSettings(ctx, convID, userID, req.IsMuted, req.EphemeralDuration)
}

// authorizeParticipant loads the conversation and verifies membership
func (s *messageService) authorizeParticipant(ctx context.Context, convID, userID int64) (*Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}

	if !conv.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}

	return conv, nil
}

// dispatch runs a notification call in the background with a fresh
// context, so it outlives the originating request. Delivery is
// best-effort; failures are logged and never fail the request.
func (s *messageService) dispatch(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := fn(ctx); err != nil {
			RecordNotificationFailure()
			log.Printf("messaging: notification dispatch failed: %v", err)
		}
	}()
}
