// internal/common/database/migrate.go
// Idempotent schema setup, executed at startup

package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id          BIGINT PRIMARY KEY,
		display_name     TEXT NOT NULL DEFAULT '',
		gender           TEXT,
		birth_date       DATE,
		latitude         DOUBLE PRECISION,
		longitude        DOUBLE PRECISION,
		neighborhood     TEXT,
		city             TEXT,
		fitness_level    TEXT NOT NULL DEFAULT 'beginner',
		workout_types    TEXT[] NOT NULL DEFAULT '{}',
		availability     JSONB NOT NULL DEFAULT '{}',
		preferences      JSONB NOT NULL DEFAULT '{}',
		is_visible       BOOLEAN NOT NULL DEFAULT TRUE,
		is_verified      BOOLEAN NOT NULL DEFAULT FALSE,
		blocked_users    BIGINT[] NOT NULL DEFAULT '{}',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS matches (
		id                 BIGSERIAL PRIMARY KEY,
		user1_id           BIGINT NOT NULL,
		user2_id           BIGINT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'pending',
		score              INT NOT NULL DEFAULT 0,
		score_proximity    INT NOT NULL DEFAULT 0,
		score_workout      INT NOT NULL DEFAULT 0,
		score_fitness      INT NOT NULL DEFAULT 0,
		score_availability INT NOT NULL DEFAULT 0,
		distance_km        DOUBLE PRECISION,
		liked_by           BIGINT[] NOT NULL DEFAULT '{}',
		conversation_id    BIGINT,
		rejected_by        BIGINT,
		expires_at         TIMESTAMPTZ NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT matches_pair_order CHECK (user1_id < user2_id),
		CONSTRAINT matches_pair_unique UNIQUE (user1_id, user2_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_matches_user1 ON matches(user1_id)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_user2 ON matches(user2_id)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_expires ON matches(expires_at)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id                   BIGSERIAL PRIMARY KEY,
		match_id             BIGINT NOT NULL UNIQUE,
		user1_id             BIGINT NOT NULL,
		user2_id             BIGINT NOT NULL,
		last_message_preview TEXT,
		last_message_sender  BIGINT,
		last_message_at      TIMESTAMPTZ,
		is_active            BOOLEAN NOT NULL DEFAULT TRUE,
		is_blocked           BOOLEAN NOT NULL DEFAULT FALSE,
		blocked_by           BIGINT,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id    BIGINT NOT NULL,
		user_id            BIGINT NOT NULL,
		unread_count       INT NOT NULL DEFAULT 0,
		is_hidden          BOOLEAN NOT NULL DEFAULT FALSE,
		is_muted           BOOLEAN NOT NULL DEFAULT FALSE,
		ephemeral_duration BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (conversation_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id              BIGSERIAL PRIMARY KEY,
		conversation_id BIGINT NOT NULL,
		match_id        BIGINT NOT NULL,
		sender_id       BIGINT NOT NULL,
		receiver_id     BIGINT NOT NULL,
		message_type    TEXT NOT NULL DEFAULT 'text',
		content         TEXT NOT NULL,
		iv              TEXT NOT NULL DEFAULT '',
		auth_tag        TEXT NOT NULL DEFAULT '',
		metadata        JSONB,
		is_read         BOOLEAN NOT NULL DEFAULT FALSE,
		read_at         TIMESTAMPTZ,
		deleted_by      BIGINT[] NOT NULL DEFAULT '{}',
		fully_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, receiver_id) WHERE is_read = FALSE`,
}

// Migrate applies the schema statements in order
func Migrate(db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i, err)
		}
	}
	return nil
}
