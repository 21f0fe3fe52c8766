// internal/matching/service.go
// Match state machine: like / unlike / reject / block transitions and the
// candidate suggestion query.

package matching

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/sweatmatch/sweatmatch-backend/internal/profile"
)

var (
	ErrCannotLikeSelf = errors.New("cannot like yourself")
	ErrMatchBlocked   = errors.New("match is blocked")
)

// ConversationCreator creates or reactivates the conversation backing a
// mutual match. Implemented by the messaging service.
type ConversationCreator interface {
	EnsureForMatch(ctx context.Context, matchID, user1ID, user2ID, requesterID int64) (int64, error)
}

// Notifier delivers real-time events. Calls are fire-and-forget: failures
// are logged by the implementation and never fail the originating request.
type Notifier interface {
	PublishToUser(ctx context.Context, userID int64, event string, payload interface{}) error
}

// LikeResult is returned to the caller of a like operation
type LikeResult struct {
	MatchID  int64  `json:"match_id"`
	IsMutual bool   `json:"is_mutual"`
	Status   string `json:"status"`
	Score    int    `json:"score"`
}

// Suggestion is one scored candidate from the discovery query
type Suggestion struct {
	UserID         int64          `json:"user_id"`
	DisplayName    string         `json:"display_name"`
	Score          int            `json:"score"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	DistanceKM     *float64       `json:"distance_km,omitempty"`
	ExistingStatus string         `json:"existing_status,omitempty"`
}

// Service exposes match operations
type Service interface {
	Like(ctx context.Context, matcherID, targetID int64) (*LikeResult, error)
	Unlike(ctx context.Context, matcherID, targetID int64) error
	Reject(ctx context.Context, rejecterID, targetID int64) error
	Block(ctx context.Context, blockerID, targetID int64) error
	Suggestions(ctx context.Context, requesterID int64, limit, minScore int) ([]*Suggestion, error)
	GetMatches(ctx context.Context, userID int64, status string) ([]*Match, error)
	ExpireMatches(ctx context.Context) error
}

type service struct {
	repo          Repository
	profiles      profile.Repository
	engine        ScoringEngine
	conversations ConversationCreator
	notifier      Notifier
	matchExpiry   time.Duration
}

// NewService creates the match service
func NewService(repo Repository, profiles profile.Repository, engine ScoringEngine,
	conversations ConversationCreator, notifier Notifier, matchExpiry time.Duration) Service {
	return &service{
		repo:          repo,
		profiles:      profiles,
		engine:        engine,
		conversations: conversations,
		notifier:      notifier,
		matchExpiry:   matchExpiry,
	}
}

// Like records a like from matcher to target. Creates the match on first
// like, flips to mutual when both sides have liked, and recovers from a
// rejected state (relike). Liking twice is a no-op.
func (s *service) Like(ctx context.Context, matcherID, targetID int64) (*LikeResult, error) {
	if matcherID == targetID {
		return nil, ErrCannotLikeSelf
	}

	matcherProfile, err := s.profiles.GetProfile(ctx, matcherID)
	if err != nil {
		return nil, err
	}
	targetProfile, err := s.profiles.GetProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}

	// Score from the liker's perspective; stored once at creation
	score, breakdown := s.engine.Score(matcherProfile, targetProfile)
	distance := s.engine.Distance(matcherProfile, targetProfile)

	becameMutual := false
	match, err := s.repo.MutateMatch(ctx, matcherID, targetID, func(m *Match, exists bool) (MatchOp, error) {
		if !exists {
			m.Score = score
			m.ScoreProximity = breakdown.Proximity
			m.ScoreWorkout = breakdown.WorkoutMatch
			m.ScoreFitness = breakdown.FitnessMatch
			m.ScoreAvail = breakdown.Availability
			m.DistanceKM = distance
			m.LikedBy = []int64{matcherID}
			m.Status = m.sideLikedStatus(matcherID)
			m.ExpiresAt = time.Now().Add(s.matchExpiry)
			return OpSave, nil
		}

		if m.Status == StatusBlocked {
			return OpNone, ErrMatchBlocked
		}

		// Relike: liking a rejected match clears the rejection
		wasMutual := m.Status == StatusMutual
		m.RejectedBy = nil

		if !m.HasLiked(matcherID) {
			m.LikedBy = append(m.LikedBy, matcherID)
		}

		if len(m.LikedBy) == 2 {
			m.Status = StatusMutual
			becameMutual = !wasMutual
		} else {
			m.Status = m.sideLikedStatus(m.LikedBy[0])
		}

		return OpSave, nil
	})
	if err != nil {
		return nil, err
	}

	RecordLike()
	RecordCompatibilityScore(float64(match.Score))

	// Side effects run after the transition is committed; a failure here
	// is logged and never rolls back the match state.
	if becameMutual {
		RecordMutualMatch()
		s.onMutual(ctx, match, matcherID)
	}

	return &LikeResult{
		MatchID:  match.ID,
		IsMutual: match.Status == StatusMutual,
		Status:   match.Status,
		Score:    match.Score,
	}, nil
}

// onMutual creates/reactivates the conversation and notifies both users
func (s *service) onMutual(ctx context.Context, match *Match, requesterID int64) {
	conversationID, err := s.conversations.EnsureForMatch(ctx, match.ID, match.User1ID, match.User2ID, requesterID)
	if err != nil {
		log.Printf("matching: failed to ensure conversation for match %d: %v", match.ID, err)
	} else {
		match.ConversationID = &conversationID
		if err := s.repo.SetConversationID(ctx, match.ID, conversationID); err != nil {
			log.Printf("matching: failed to link conversation %d to match %d: %v", conversationID, match.ID, err)
		}
	}

	for _, userID := range []int64{match.User1ID, match.User2ID} {
		payload := map[string]interface{}{
			"match_id": match.ID,
			"user_id":  match.OtherUser(userID),
			"score":    match.Score,
		}
		if match.ConversationID != nil {
			payload["conversation_id"] = *match.ConversationID
		}
		if err := s.notifier.PublishToUser(ctx, userID, "new_match", payload); err != nil {
			log.Printf("matching: failed to notify user %d of match %d: %v", userID, match.ID, err)
		}
	}
}

// Unlike withdraws a like. The match row is deleted when the last liker
// withdraws; a mutual match degrades to one-sided rather than being
// removed, so re-liking keeps the history.
func (s *service) Unlike(ctx context.Context, matcherID, targetID int64) error {
	_, err := s.repo.MutateMatch(ctx, matcherID, targetID, func(m *Match, exists bool) (MatchOp, error) {
		if !exists {
			return OpNone, ErrMatchNotFound
		}

		if m.Status == StatusBlocked {
			return OpNone, ErrMatchBlocked
		}

		if !m.HasLiked(matcherID) {
			return OpNone, nil
		}

		m.removeLike(matcherID)

		// A rejection is a durable record and outlives withdrawn likes;
		// only undecided rows are removed when the last like goes
		if len(m.LikedBy) == 0 {
			if m.Status == StatusRejected {
				return OpSave, nil
			}
			return OpDelete, nil
		}

		if m.Status != StatusRejected {
			m.Status = m.sideLikedStatus(m.LikedBy[0])
		}

		return OpSave, nil
	})

	return err
}

// Reject marks the pair rejected. A standalone rejected record is created
// when no match existed, so the pair is excluded from future suggestions.
func (s *service) Reject(ctx context.Context, rejecterID, targetID int64) error {
	if rejecterID == targetID {
		return ErrCannotLikeSelf
	}

	_, err := s.repo.MutateMatch(ctx, rejecterID, targetID, func(m *Match, exists bool) (MatchOp, error) {
		if exists && m.Status == StatusBlocked {
			return OpNone, ErrMatchBlocked
		}

		if !exists {
			m.ExpiresAt = time.Now().Add(s.matchExpiry)
		}

		// Rejecting withdraws the rejecter's own like; the other side's
		// like survives so a later relike goes straight back to mutual
		m.removeLike(rejecterID)
		m.Status = StatusRejected
		m.RejectedBy = &rejecterID
		return OpSave, nil
	})
	if err != nil {
		return err
	}

	RecordRejection()
	return nil
}

// Block moves the match to blocked from any state and records the target
// on the blocker's profile block list
func (s *service) Block(ctx context.Context, blockerID, targetID int64) error {
	if blockerID == targetID {
		return ErrCannotLikeSelf
	}

	_, err := s.repo.MutateMatch(ctx, blockerID, targetID, func(m *Match, exists bool) (MatchOp, error) {
		if !exists {
			m.ExpiresAt = time.Now().Add(s.matchExpiry)
		}
		m.removeLike(blockerID)
		m.Status = StatusBlocked
		return OpSave, nil
	})
	if err != nil {
		return err
	}

	if err := s.profiles.AddBlockedUser(ctx, blockerID, targetID); err != nil {
		// Match state is committed; the profile block list catches up on retry
		log.Printf("matching: failed to add user %d to block list of %d: %v", targetID, blockerID, err)
	}

	return nil
}

// Suggestions returns scored candidates for the requester, filtered by the
// requester's preferences and excluding rejected/blocked pairs.
// Ordering is by score descending; equal scores keep the candidate scan
// order of this call, which is not guaranteed stable across calls.
func (s *service) Suggestions(ctx context.Context, requesterID int64, limit, minScore int) ([]*Suggestion, error) {
	requester, err := s.profiles.GetProfile(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.profiles.GetVisibleProfiles(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	statuses, err := s.repo.GetPairStatuses(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	prefs := requester.Preferences
	suggestions := make([]*Suggestion, 0, len(candidates))

	for _, candidate := range candidates {
		if requester.HasBlocked(candidate.UserID) {
			continue
		}

		if prefs.Gender != "" {
			if candidate.Gender == nil || *candidate.Gender != prefs.Gender {
				continue
			}
		}

		if prefs.AgeMin > 0 || prefs.AgeMax > 0 {
			age := candidate.Age()
			if age == 0 {
				continue
			}
			if prefs.AgeMin > 0 && age < prefs.AgeMin {
				continue
			}
			if prefs.AgeMax > 0 && age > prefs.AgeMax {
				continue
			}
		}

		if prefs.VerifiedOnly && !candidate.IsVerified {
			continue
		}

		distance := s.engine.Distance(requester, candidate)
		if requester.HasLocation() && prefs.MaxDistanceKM > 0 &&
			distance != nil && *distance > prefs.MaxDistanceKM {
			continue
		}

		score, breakdown := s.engine.Score(requester, candidate)
		if score < minScore {
			continue
		}

		existing := statuses[candidate.UserID]
		if existing == StatusRejected || existing == StatusBlocked {
			continue
		}

		suggestions = append(suggestions, &Suggestion{
			UserID:         candidate.UserID,
			DisplayName:    candidate.DisplayName,
			Score:          score,
			Breakdown:      breakdown,
			DistanceKM:     distance,
			ExistingStatus: existing,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	return suggestions, nil
}

func (s *service) GetMatches(ctx context.Context, userID int64, status string) ([]*Match, error) {
	return s.repo.GetUserMatches(ctx, userID, status)
}

// ExpireMatches removes matches past their TTL; run by the scheduler
func (s *service) ExpireMatches(ctx context.Context) error {
	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	if deleted > 0 {
		log.Printf("matching: expired %d stale matches", deleted)
	}

	return nil
}
