// internal/profile/postgres.go

package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a Postgres-backed profile repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	query := `SELECT * FROM profiles WHERE user_id = $1`

	err := r.db.GetContext(ctx, &p, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *postgresRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (
			user_id, display_name, gender, birth_date, latitude, longitude,
			neighborhood, city, fitness_level, workout_types, availability,
			preferences, is_visible, is_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id)
		DO UPDATE SET
			display_name  = EXCLUDED.display_name,
			gender        = EXCLUDED.gender,
			birth_date    = EXCLUDED.birth_date,
			latitude      = EXCLUDED.latitude,
			longitude     = EXCLUDED.longitude,
			neighborhood  = EXCLUDED.neighborhood,
			city          = EXCLUDED.city,
			fitness_level = EXCLUDED.fitness_level,
			workout_types = EXCLUDED.workout_types,
			availability  = EXCLUDED.availability,
			preferences   = EXCLUDED.preferences,
			is_visible    = EXCLUDED.is_visible,
			updated_at    = CURRENT_TIMESTAMP
		RETURNING created_at, updated_at`

	return r.db.QueryRowxContext(
		ctx, query,
		p.UserID, p.DisplayName, p.Gender, p.BirthDate, p.Latitude, p.Longitude,
		p.Neighborhood, p.City, p.FitnessLevel, p.WorkoutTypes, p.Availability,
		p.Preferences, p.IsVisible, p.IsVerified,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *postgresRepository) SetVisibility(ctx context.Context, userID int64, visible bool) error {
	query := `
		UPDATE profiles
		SET is_visible = $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, visible)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// AddBlockedUser appends atomically so concurrent blocks do not lose entries
func (r *postgresRepository) AddBlockedUser(ctx context.Context, userID, blockedID int64) error {
	query := `
		UPDATE profiles
		SET blocked_users = array_append(blocked_users, $2),
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND NOT ($2 = ANY(blocked_users))`

	_, err := r.db.ExecContext(ctx, query, userID, blockedID)
	return err
}

func (r *postgresRepository) RemoveBlockedUser(ctx context.Context, userID, blockedID int64) error {
	query := `
		UPDATE profiles
		SET blocked_users = array_remove(blocked_users, $2),
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1`

	_, err := r.db.ExecContext(ctx, query, userID, blockedID)
	return err
}

func (r *postgresRepository) GetVisibleProfiles(ctx context.Context, excludeUserID int64) ([]*Profile, error) {
	var profiles []*Profile
	query := `
		SELECT * FROM profiles
		WHERE is_visible = TRUE AND user_id != $1
		ORDER BY user_id`

	if err := r.db.SelectContext(ctx, &profiles, query, excludeUserID); err != nil {
		return nil, err
	}

	return profiles, nil
}
