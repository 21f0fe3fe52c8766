package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	profiles map[int64]*Profile
	blocked  map[int64][]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles: make(map[int64]*Profile),
		blocked:  make(map[int64][]int64),
	}
}

func (r *fakeRepo) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRepo) UpsertProfile(ctx context.Context, p *Profile) error {
	stored := *p
	r.profiles[p.UserID] = &stored
	return nil
}

func (r *fakeRepo) SetVisibility(ctx context.Context, userID int64, visible bool) error {
	if p, ok := r.profiles[userID]; ok {
		p.IsVisible = visible
	}
	return nil
}

func (r *fakeRepo) AddBlockedUser(ctx context.Context, userID, blockedID int64) error {
	r.blocked[userID] = append(r.blocked[userID], blockedID)
	return nil
}

func (r *fakeRepo) RemoveBlockedUser(ctx context.Context, userID, blockedID int64) error {
	kept := r.blocked[userID][:0]
	for _, id := range r.blocked[userID] {
		if id != blockedID {
			kept = append(kept, id)
		}
	}
	r.blocked[userID] = kept
	return nil
}

func (r *fakeRepo) GetVisibleProfiles(ctx context.Context, excludeUserID int64) ([]*Profile, error) {
	var out []*Profile
	for _, p := range r.profiles {
		if p.UserID != excludeUserID && p.IsVisible {
			out = append(out, p)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestUpdateProfileCreatesOnFirstUpdate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	p, err := svc.UpdateProfile(context.Background(), 1, &UpdateProfileRequest{
		DisplayName:  strPtr("Alex"),
		WorkoutTypes: []string{"running"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.UserID)
	assert.Equal(t, "Alex", p.DisplayName)
	assert.Equal(t, LevelBeginner, p.FitnessLevel)
	assert.True(t, p.IsVisible)

	stored, err := repo.GetProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alex", stored.DisplayName)
}

func TestUpdateProfileIsPartial(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, err := svc.UpdateProfile(context.Background(), 1, &UpdateProfileRequest{
		DisplayName:  strPtr("Alex"),
		FitnessLevel: strPtr(LevelAdvanced),
	})
	require.NoError(t, err)

	p, err := svc.UpdateProfile(context.Background(), 1, &UpdateProfileRequest{
		Neighborhood: strPtr("mitte"),
	})
	require.NoError(t, err)

	// Untouched fields survive
	assert.Equal(t, "Alex", p.DisplayName)
	assert.Equal(t, LevelAdvanced, p.FitnessLevel)
	require.NotNil(t, p.Neighborhood)
	assert.Equal(t, "mitte", *p.Neighborhood)
}

func TestDeactivateHidesProfile(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, err := svc.UpdateProfile(context.Background(), 1, &UpdateProfileRequest{DisplayName: strPtr("Alex")})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), 1))

	p, err := repo.GetProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, p.IsVisible)
}

func TestBlockUser(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	assert.ErrorIs(t, svc.BlockUser(context.Background(), 1, 1), ErrCannotBlockSelf)

	require.NoError(t, svc.BlockUser(context.Background(), 1, 2))
	assert.Contains(t, repo.blocked[1], int64(2))

	require.NoError(t, svc.UnblockUser(context.Background(), 1, 2))
	assert.NotContains(t, repo.blocked[1], int64(2))
}
