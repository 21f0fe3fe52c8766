// internal/matching/repository.go

package matching

import (
	"context"
	"errors"
)

var ErrMatchNotFound = errors.New("match not found")

// MatchOp tells the repository what to do with the match after a mutation
// callback returns
type MatchOp int

const (
	OpNone MatchOp = iota
	OpSave
	OpDelete
)

// MutateFunc is invoked with the current match row under a row lock.
// exists is false when no row is stored yet; the callback fills in the
// provided match to create one. Returning OpDelete removes the row.
type MutateFunc func(m *Match, exists bool) (MatchOp, error)

// Repository is the storage contract for matches. MutateMatch is the only
// write path for state transitions: implementations must apply the
// callback atomically with respect to concurrent mutations of the same
// pair (row lock or equivalent), never naive read-then-write.
type Repository interface {
	GetMatch(ctx context.Context, id int64) (*Match, error)
	GetMatchByPair(ctx context.Context, userA, userB int64) (*Match, error)
	MutateMatch(ctx context.Context, userA, userB int64, fn MutateFunc) (*Match, error)
	SetConversationID(ctx context.Context, matchID, conversationID int64) error
	GetUserMatches(ctx context.Context, userID int64, status string) ([]*Match, error)
	GetPairStatuses(ctx context.Context, userID int64) (map[int64]string, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
