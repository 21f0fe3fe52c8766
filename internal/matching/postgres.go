// internal/matching/postgres.go

package matching

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a Postgres-backed match repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetMatch(ctx context.Context, id int64) (*Match, error) {
	var m Match
	query := `SELECT * FROM matches WHERE id = $1`

	err := r.db.GetContext(ctx, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *postgresRepository) GetMatchByPair(ctx context.Context, userA, userB int64) (*Match, error) {
	u1, u2 := CanonicalPair(userA, userB)

	var m Match
	query := `SELECT * FROM matches WHERE user1_id = $1 AND user2_id = $2`

	err := r.db.GetContext(ctx, &m, query, u1, u2)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// MutateMatch runs the callback under a row lock so concurrent likes,
// unlikes and rejects for the same pair serialize instead of losing
// updates. Creation races are resolved by the pair uniqueness constraint
// plus one retry.
func (r *postgresRepository) MutateMatch(ctx context.Context, userA, userB int64, fn MutateFunc) (*Match, error) {
	u1, u2 := CanonicalPair(userA, userB)

	m, err := r.mutateOnce(ctx, u1, u2, fn)
	if isUniqueViolation(err) {
		// Lost an insert race; the row exists now, lock it this time
		m, err = r.mutateOnce(ctx, u1, u2, fn)
	}

	return m, err
}

func (r *postgresRepository) mutateOnce(ctx context.Context, u1, u2 int64, fn MutateFunc) (*Match, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var m Match
	exists := true
	query := `SELECT * FROM matches WHERE user1_id = $1 AND user2_id = $2 FOR UPDATE`

	err = tx.GetContext(ctx, &m, query, u1, u2)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
		m = Match{User1ID: u1, User2ID: u2, Status: StatusPending, LikedBy: pq.Int64Array{}}
	} else if err != nil {
		return nil, err
	}

	op, err := fn(&m, exists)
	if err != nil {
		return nil, err
	}

	switch op {
	case OpSave:
		if exists {
			err = r.update(ctx, tx, &m)
		} else {
			err = r.insert(ctx, tx, &m)
		}
	case OpDelete:
		if exists {
			_, err = tx.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, m.ID)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if op == OpDelete {
		return nil, nil
	}

	return &m, nil
}

func (r *postgresRepository) insert(ctx context.Context, tx *sqlx.Tx, m *Match) error {
	query := `
		INSERT INTO matches (
			user1_id, user2_id, status, score, score_proximity, score_workout,
			score_fitness, score_availability, distance_km, liked_by,
			rejected_by, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	return tx.QueryRowxContext(
		ctx, query,
		m.User1ID, m.User2ID, m.Status, m.Score, m.ScoreProximity, m.ScoreWorkout,
		m.ScoreFitness, m.ScoreAvail, m.DistanceKM, m.LikedBy,
		m.RejectedBy, m.ExpiresAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *postgresRepository) update(ctx context.Context, tx *sqlx.Tx, m *Match) error {
	query := `
		UPDATE matches
		SET status = $2, liked_by = $3, rejected_by = $4, expires_at = $5,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	return tx.QueryRowxContext(
		ctx, query,
		m.ID, m.Status, m.LikedBy, m.RejectedBy, m.ExpiresAt,
	).Scan(&m.UpdatedAt)
}

func (r *postgresRepository) SetConversationID(ctx context.Context, matchID, conversationID int64) error {
	query := `
		UPDATE matches
		SET conversation_id = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, matchID, conversationID)
	return err
}

func (r *postgresRepository) GetUserMatches(ctx context.Context, userID int64, status string) ([]*Match, error) {
	var matches []*Match

	query := `
		SELECT * FROM matches
		WHERE (user1_id = $1 OR user2_id = $1)`
	args := []interface{}{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}

	query += ` ORDER BY updated_at DESC`

	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, err
	}

	return matches, nil
}

func (r *postgresRepository) GetPairStatuses(ctx context.Context, userID int64) (map[int64]string, error) {
	query := `
		SELECT user1_id, user2_id, status FROM matches
		WHERE user1_id = $1 OR user2_id = $1`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make(map[int64]string)
	for rows.Next() {
		var u1, u2 int64
		var status string
		if err := rows.Scan(&u1, &u2, &status); err != nil {
			return nil, err
		}
		other := u1
		if u1 == userID {
			other = u2
		}
		statuses[other] = status
	}

	return statuses, rows.Err()
}

// DeleteExpired removes matches past their TTL that never went anywhere.
// Mutual matches are kept: their activity lives in the conversation.
func (r *postgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM matches
		WHERE expires_at < NOW() AND status NOT IN ($1, $2, $3)`

	result, err := r.db.ExecContext(ctx, query, StatusMutual, StatusRejected, StatusBlocked)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
