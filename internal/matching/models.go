// internal/matching/models.go

package matching

import (
	"time"

	"github.com/lib/pq"
)

// Match statuses. A match always stores the pair as user1_id < user2_id,
// so the one-sided statuses name the canonical side that liked.
const (
	StatusPending    = "pending"
	StatusUser1Liked = "user1_liked"
	StatusUser2Liked = "user2_liked"
	StatusMutual     = "mutual"
	StatusRejected   = "rejected"
	StatusBlocked    = "blocked"
)

// ScoreBreakdown is the four-component compatibility breakdown.
// Components are capped at 40/25/20/15 respectively, totalling 100.
type ScoreBreakdown struct {
	Proximity    int `json:"proximity"`
	WorkoutMatch int `json:"workout_match"`
	FitnessMatch int `json:"fitness_match"`
	Availability int `json:"availability"`
}

// Total sums the breakdown components
func (b ScoreBreakdown) Total() int {
	return b.Proximity + b.WorkoutMatch + b.FitnessMatch + b.Availability
}

// Match is the record of a potential pairing between two users
type Match struct {
	ID             int64         `json:"id" db:"id"`
	User1ID        int64         `json:"user1_id" db:"user1_id"`
	User2ID        int64         `json:"user2_id" db:"user2_id"`
	Status         string        `json:"status" db:"status"`
	Score          int           `json:"score" db:"score"`
	ScoreProximity int           `json:"-" db:"score_proximity"`
	ScoreWorkout   int           `json:"-" db:"score_workout"`
	ScoreFitness   int           `json:"-" db:"score_fitness"`
	ScoreAvail     int           `json:"-" db:"score_availability"`
	DistanceKM     *float64      `json:"distance_km,omitempty" db:"distance_km"`
	LikedBy        pq.Int64Array `json:"liked_by" db:"liked_by"`
	ConversationID *int64        `json:"conversation_id,omitempty" db:"conversation_id"`
	RejectedBy     *int64        `json:"rejected_by,omitempty" db:"rejected_by"`
	ExpiresAt      time.Time     `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// Breakdown reassembles the stored component columns
func (m *Match) Breakdown() ScoreBreakdown {
	return ScoreBreakdown{
		Proximity:    m.ScoreProximity,
		WorkoutMatch: m.ScoreWorkout,
		FitnessMatch: m.ScoreFitness,
		Availability: m.ScoreAvail,
	}
}

// HasLiked reports whether the given user is in the liked-by set
func (m *Match) HasLiked(userID int64) bool {
	for _, id := range m.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// removeLike drops the user from the liked-by set
func (m *Match) removeLike(userID int64) {
	remaining := make([]int64, 0, len(m.LikedBy))
	for _, id := range m.LikedBy {
		if id != userID {
			remaining = append(remaining, id)
		}
	}
	m.LikedBy = remaining
}

// OtherUser returns the counterpart of the given participant
func (m *Match) OtherUser(userID int64) int64 {
	if userID == m.User1ID {
		return m.User2ID
	}
	return m.User1ID
}

// IsParticipant reports whether the user is one of the pair
func (m *Match) IsParticipant(userID int64) bool {
	return userID == m.User1ID || userID == m.User2ID
}

// sideLikedStatus derives the one-sided status for a single liker
func (m *Match) sideLikedStatus(likerID int64) string {
	if likerID == m.User1ID {
		return StatusUser1Liked
	}
	return StatusUser2Liked
}

// CanonicalPair orders two user IDs so each unordered pair maps to
// exactly one match row
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
