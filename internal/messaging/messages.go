// internal/messaging/messages.go
// Message send, fetch and delete paths.

package messaging

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// previewLength caps the denormalized last-message preview stored on the
// conversation row
const previewLength = 100

// SendMessage validates, encrypts and persists a message, updates the
// conversation summary and the receiver's unread counter, then fans out
// real-time events in the background
func (s *messageService) SendMessage(ctx context.Context, senderID int64, req *SendMessageRequest) (*Message, error) {
	msgType := req.MessageType
	if msgType == "" {
		msgType = TypeText
	}
	if !ValidMessageType(msgType) {
		return nil, ErrInvalidMessageType
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, ErrContentTooLong
	}

	conv, err := s.authorizeParticipant(ctx, req.ConversationID, senderID)
	if err != nil {
		return nil, err
	}
	if conv.IsBlocked {
		return nil, ErrConversationBlocked
	}

	receiverID := conv.OtherUser(senderID)

	// Sanitizing can strip the body down to nothing (all-markup input)
	sanitized := Sanitize(content)
	if sanitized == "" {
		return nil, ErrEmptyContent
	}

	encrypted, err := s.crypto.Encrypt(sanitized)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &Message{
		ConversationID: conv.ID,
		MatchID:        conv.MatchID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		MessageType:    msgType,
		Content:        encrypted.Ciphertext,
		IV:             encrypted.IV,
		AuthTag:        encrypted.AuthTag,
		Metadata:       req.Metadata,
		CreatedAt:      now,
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	preview := previewFor(msgType, sanitized)
	if err := s.repo.RecordMessage(ctx, conv.ID, senderID, receiverID, preview, now); err != nil {
		return nil, err
	}

	RecordMessageSent(msgType)
	s.notifyNewMessage(conv, msg, preview)

	// Return the plaintext view to the sender; encryption parameters never
	// leave the storage layer
	view := *msg
	view.Content = sanitized
	view.IV = ""
	view.AuthTag = ""
	return &view, nil
}

// notifyNewMessage fans out the real-time events for a sent message and
// falls back to a push notification when the receiver is offline
func (s *messageService) notifyNewMessage(conv *Conversation, msg *Message, preview string) {
	payload := map[string]interface{}{
		"message_id":      msg.ID,
		"conversation_id": conv.ID,
		"sender_id":       msg.SenderID,
		"message_type":    msg.MessageType,
		"created_at":      msg.CreatedAt,
	}

	s.dispatch(func(ctx context.Context) error {
		return s.dispatcher.PublishToConversation(ctx, conv.ID, EventNewMessage, payload)
	})
	s.dispatch(func(ctx context.Context) error {
		return s.dispatcher.PublishToUser(ctx, msg.ReceiverID, EventConversationUpdated, map[string]interface{}{
			"conversation_id":  conv.ID,
			"unread_increment": 1,
			"preview":          preview,
		})
	})

	receiverID := msg.ReceiverID
	convID := conv.ID
	s.dispatch(func(ctx context.Context) error {
		if s.dispatcher.IsUserOnline(ctx, receiverID) {
			return nil
		}
		participant, err := s.repo.GetParticipant(ctx, convID, receiverID)
		if err != nil {
			return err
		}
		if participant.IsMuted {
			return nil
		}
		return s.dispatcher.SendPushNotification(ctx, receiverID, "New message", preview, map[string]interface{}{
			"conversation_id": convID,
		})
	})
}

// GetMessages returns the requester's visible slice of the conversation in
// chronological order. Stored ciphertext is decrypted on the way out;
// rows that fail to decrypt surface the unavailable sentinel instead of
// failing the page.
func (s *messageService) GetMessages(ctx context.Context, convID, requesterID int64, limit int, before *time.Time) ([]*Message, error) {
	if _, err := s.authorizeParticipant(ctx, convID, requesterID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.pageLimit {
		limit = s.pageLimit
	}

	messages, err := s.repo.GetConversationMessages(ctx, convID, requesterID, limit, before)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		msg.Content = s.crypto.Decrypt(&EncryptedContent{
			Ciphertext: msg.Content,
			IV:         msg.IV,
			AuthTag:    msg.AuthTag,
		})
		msg.IV = ""
		msg.AuthTag = ""
	}

	// Storage returns newest-first for the LIMIT; callers want oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// DeleteMessage soft-deletes the message for the requester. Either
// participant may delete; once both have, the row is fully deleted and
// hidden from everyone.
func (s *messageService) DeleteMessage(ctx context.Context, messageID, requesterID int64) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if requesterID != msg.SenderID && requesterID != msg.ReceiverID {
		return ErrNotParticipant
	}

	_, err = s.repo.SoftDeleteMessage(ctx, messageID, requesterID)
	return err
}

// previewFor builds the conversation list preview. Non-text payloads get a
// fixed placeholder so location data and invites never leak into the
// unencrypted summary column.
func previewFor(msgType, content string) string {
	switch msgType {
	case TypeLocation:
		return "[location]"
	case TypeSessionInvite:
		return "[session invite]"
	case TypeSessionShare:
		return "[session]"
	}

	runes := []rune(content)
	if len(runes) > previewLength {
		return string(runes[:previewLength])
	}
	return content
}
