// internal/profile/repository.go

package profile

import (
	"context"
	"errors"
)

var ErrProfileNotFound = errors.New("profile not found")

// Repository is the storage contract for profiles
type Repository interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
	SetVisibility(ctx context.Context, userID int64, visible bool) error
	AddBlockedUser(ctx context.Context, userID, blockedID int64) error
	RemoveBlockedUser(ctx context.Context, userID, blockedID int64) error
	GetVisibleProfiles(ctx context.Context, excludeUserID int64) ([]*Profile, error)
}
