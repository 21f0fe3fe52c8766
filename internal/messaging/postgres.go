// internal/messaging/postgres.go

package messaging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a Postgres-backed messaging repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// CreateConversation inserts the conversation and both participant rows
// in one transaction
func (r *postgresRepository) CreateConversation(ctx context.Context, conv *Conversation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO conversations (match_id, user1_id, user2_id, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, is_active, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query, conv.MatchID, conv.User1ID, conv.User2ID).
		Scan(&conv.ID, &conv.IsActive, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return err
	}

	participantQuery := `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2), ($1, $3)`

	if _, err := tx.ExecContext(ctx, participantQuery, conv.ID, conv.User1ID, conv.User2ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *postgresRepository) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	var conv Conversation
	query := `SELECT * FROM conversations WHERE id = $1`

	err := r.db.GetContext(ctx, &conv, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

func (r *postgresRepository) GetConversationByMatch(ctx context.Context, matchID int64) (*Conversation, error) {
	var conv Conversation
	query := `SELECT * FROM conversations WHERE match_id = $1`

	err := r.db.GetContext(ctx, &conv, query, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// ReactivateConversation flips the conversation active and clears the
// requesting user's hidden flag
func (r *postgresRepository) ReactivateConversation(ctx context.Context, convID, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET is_active = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`, convID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_participants
		SET is_hidden = FALSE
		WHERE conversation_id = $1 AND user_id = $2`, convID, userID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *postgresRepository) GetUserConversations(ctx context.Context, userID int64) ([]*Conversation, error) {
	query := `
		SELECT c.*, p.unread_count AS participant_unread, p.is_muted AS participant_muted
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
		WHERE c.is_active = TRUE AND p.is_hidden = FALSE
		ORDER BY c.last_message_at DESC NULLS LAST`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var conv Conversation
		row := struct {
			*Conversation
			ParticipantUnread int  `db:"participant_unread"`
			ParticipantMuted  bool `db:"participant_muted"`
		}{Conversation: &conv}

		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}

		conv.UnreadCount = row.ParticipantUnread
		conv.IsMuted = row.ParticipantMuted
		conversations = append(conversations, &conv)
	}

	return conversations, rows.Err()
}

func (r *postgresRepository) GetParticipant(ctx context.Context, convID, userID int64) (*Participant, error) {
	var p Participant
	query := `
		SELECT * FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &p, query, convID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// RecordMessage updates the denormalized last-message summary, bumps the
// receiver's unread counter with an atomic increment, and clears the
// hidden flag for both participants. A new message always un-hides the
// conversation on both sides.
func (r *postgresRepository) RecordMessage(ctx context.Context, convID, senderID, receiverID int64, preview string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_preview = $2,
		    last_message_sender = $3,
		    last_message_at = $4,
		    is_active = TRUE,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`, convID, preview, senderID, at); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_participants
		SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id = $2`, convID, receiverID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_participants
		SET is_hidden = FALSE
		WHERE conversation_id = $1 AND is_hidden = TRUE`, convID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *postgresRepository) ResetUnread(ctx context.Context, convID, userID int64) error {
	query := `
		UPDATE conversation_participants
		SET unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2`

	_, err := r.db.ExecContext(ctx, query, convID, userID)
	return err
}

// GetUnreadTotal sums the user's counters over conversations visible to
// them (active, not hidden)
func (r *postgresRepository) GetUnreadTotal(ctx context.Context, userID int64) (int, error) {
	var total int
	query := `
		SELECT COALESCE(SUM(p.unread_count), 0)
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		WHERE p.user_id = $1 AND c.is_active = TRUE AND p.is_hidden = FALSE`

	err := r.db.GetContext(ctx, &total, query, userID)
	return total, err
}

func (r *postgresRepository) SetHidden(ctx context.Context, convID, userID int64, hidden bool) error {
	query := `
		UPDATE conversation_participants
		SET is_hidden = $3
		WHERE conversation_id = $1 AND user_id = $2`

	_, err := r.db.ExecContext(ctx, query, convID, userID, hidden)
	return err
}

func (r *postgresRepository) SetBlocked(ctx context.Context, convID int64, blockedBy *int64) error {
	query := `
		UPDATE conversations
		SET is_blocked = $2, blocked_by = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, convID, blockedBy != nil, blockedBy)
	return err
}

func (r *postgresRepository) UpdateParticipantSettings(ctx context.Context, convID, userID int64, muted *bool, ephemeral *int64) error {
	query := `
		UPDATE conversation_participants
		SET is_muted = COALESCE($3, is_muted),
		    ephemeral_duration = COALESCE($4, ephemeral_duration)
		WHERE conversation_id = $1 AND user_id = $2`

	_, err := r.db.ExecContext(ctx, query, convID, userID, muted, ephemeral)
	return err
}

func (r *postgresRepository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (
			conversation_id, match_id, sender_id, receiver_id, message_type,
			content, iv, auth_tag, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	return r.db.QueryRowxContext(
		ctx, query,
		msg.ConversationID, msg.MatchID, msg.SenderID, msg.ReceiverID, msg.MessageType,
		msg.Content, msg.IV, msg.AuthTag, msg.Metadata, msg.CreatedAt,
	).Scan(&msg.ID)
}

func (r *postgresRepository) GetMessage(ctx context.Context, id int64) (*Message, error) {
	var msg Message
	query := `SELECT * FROM messages WHERE id = $1`

	err := r.db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

func (r *postgresRepository) GetConversationMessages(ctx context.Context, convID, requesterID int64, limit int, before *time.Time) ([]*Message, error) {
	query := `
		SELECT * FROM messages
		WHERE conversation_id = $1
		  AND NOT ($2 = ANY(deleted_by))
		  AND fully_deleted = FALSE`
	args := []interface{}{convID, requesterID}

	if before != nil {
		query += ` AND created_at < $3`
		args = append(args, *before)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var messages []*Message
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkMessagesRead flips unread messages addressed to the reader in one
// statement and returns the affected IDs for read-receipt events
func (r *postgresRepository) MarkMessagesRead(ctx context.Context, convID, readerID int64, at time.Time) ([]int64, error) {
	query := `
		UPDATE messages
		SET is_read = TRUE, read_at = $3
		WHERE conversation_id = $1 AND receiver_id = $2 AND is_read = FALSE
		RETURNING id`

	rows, err := r.db.QueryxContext(ctx, query, convID, readerID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// SoftDeleteMessage adds the user to the delete set and derives the
// fully_deleted flag in the same statement, so concurrent deletes from
// both participants cannot lose each other
func (r *postgresRepository) SoftDeleteMessage(ctx context.Context, messageID, userID int64) (*Message, error) {
	var msg Message
	query := `
		UPDATE messages
		SET deleted_by = CASE
		        WHEN $2 = ANY(deleted_by) THEN deleted_by
		        ELSE array_append(deleted_by, $2)
		    END,
		    fully_deleted = cardinality(CASE
		        WHEN $2 = ANY(deleted_by) THEN deleted_by
		        ELSE array_append(deleted_by, $2)
		    END) >= 2
		WHERE id = $1
		RETURNING *`

	err := r.db.QueryRowxContext(ctx, query, messageID, userID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	return &msg, nil
}
