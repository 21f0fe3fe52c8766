// internal/profile/service.go

package profile

import (
	"context"
	"errors"
)

var ErrCannotBlockSelf = errors.New("cannot block yourself")

// Service exposes profile operations
type Service interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*Profile, error)
	Deactivate(ctx context.Context, userID int64) error
	BlockUser(ctx context.Context, userID, blockedID int64) error
	UnblockUser(ctx context.Context, userID, blockedID int64) error
}

type service struct {
	repo Repository
}

// NewService creates a profile service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// UpdateProfile applies a partial update. A missing profile is created on
// first update so new accounts do not need a separate setup call.
func (s *service) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		p = &Profile{
			UserID:       userID,
			FitnessLevel: LevelBeginner,
			Availability: Availability{},
			IsVisible:    true,
		}
	} else if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		p.DisplayName = *req.DisplayName
	}
	if req.Gender != nil {
		p.Gender = req.Gender
	}
	if req.Latitude != nil {
		p.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		p.Longitude = req.Longitude
	}
	if req.Neighborhood != nil {
		p.Neighborhood = req.Neighborhood
	}
	if req.City != nil {
		p.City = req.City
	}
	if req.FitnessLevel != nil {
		p.FitnessLevel = *req.FitnessLevel
	}
	if req.WorkoutTypes != nil {
		p.WorkoutTypes = req.WorkoutTypes
	}
	if req.Availability != nil {
		p.Availability = *req.Availability
	}
	if req.Preferences != nil {
		p.Preferences = *req.Preferences
	}
	if req.IsVisible != nil {
		p.IsVisible = *req.IsVisible
	}

	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Deactivate hides the profile. Profiles are never deleted.
func (s *service) Deactivate(ctx context.Context, userID int64) error {
	return s.repo.SetVisibility(ctx, userID, false)
}

func (s *service) BlockUser(ctx context.Context, userID, blockedID int64) error {
	if userID == blockedID {
		return ErrCannotBlockSelf
	}
	return s.repo.AddBlockedUser(ctx, userID, blockedID)
}

func (s *service) UnblockUser(ctx context.Context, userID, blockedID int64) error {
	return s.repo.RemoveBlockedUser(ctx, userID, blockedID)
}
