// internal/store/store.go
//
// Persistence boundaries of the puzzle engine. One small interface per entity;
// implementations live in this package (memory) and in sqlstore (sqlite3/postgres).
//
// Every implementation must honor:
//   - at most one schedule per (date, game type), created by InsertIfAbsent only;
//   - at most one session per (user, game type, date);
//   - AppendGuessAndMaybeTransition runs read → mutate → write (+ stats) atomically.

package store

import (
	"context"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

// PoolFilter narrows the catalog to the candidates eligible as a daily target.
type PoolFilter struct {
	Kind game.Kind
	// MaxPopularityRank keeps candidates ranked 1..N. Zero disables the rule.
	MaxPopularityRank int
	// MaxWorkRank keeps studios with at least one work ranked 1..N. Zero disables the rule.
	MaxWorkRank int
	// RequireBanner keeps candidates with a banner image.
	RequireBanner bool
}

// Match reports whether c passes the filter.
func (f PoolFilter) Match(c *game.Candidate) bool {
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.MaxPopularityRank > 0 && (c.PopularityRank <= 0 || c.PopularityRank > f.MaxPopularityRank) {
		return false
	}
	if f.RequireBanner && c.BannerURL == "" {
		return false
	}
	if f.MaxWorkRank > 0 {
		ok := false
		for _, w := range c.Works {
			if w.PopularityRank > 0 && w.PopularityRank <= f.MaxWorkRank {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// CandidateRepository is read access to the catalog, plus bulk seeding.
type CandidateRepository interface {
	// ListEligible returns candidates of gameType's kind that pass filter.
	ListEligible(ctx context.Context, gameType game.Type, filter PoolFilter) ([]game.Candidate, error)
	// GetByID returns nil, nil when the candidate does not exist.
	GetByID(ctx context.Context, id string) (*game.Candidate, error)
	// Search returns candidates of kind whose name matches query, most popular first.
	Search(ctx context.Context, kind game.Kind, query string, limit int) ([]game.Candidate, error)
	// UpsertCandidates inserts or replaces catalog entries by id.
	UpsertCandidates(ctx context.Context, cs []game.Candidate) error
}

// ScheduleStore owns DailySchedule rows.
type ScheduleStore interface {
	// InsertIfAbsent stores targetID for (date, gameType) unless a row exists.
	// It returns the stored target and whether this call created it.
	InsertIfAbsent(ctx context.Context, date string, gameType game.Type, targetID string) (string, bool, error)
	// Get returns the target for (date, gameType); ok is false when none exists.
	Get(ctx context.Context, date string, gameType game.Type) (targetID string, ok bool, err error)
	// RecentTargets returns the targets of the days in [from, before).
	RecentTargets(ctx context.Context, gameType game.Type, from, before string) ([]string, error)
}

// MutateFunc changes a locked session in place. Returning an error aborts
// the transaction without writing anything.
type MutateFunc func(s *game.Session) error

// SessionStore owns GameSession (with its guesses) and GameStats.
type SessionStore interface {
	// GetSession returns nil, nil when the user has not played that day.
	GetSession(ctx context.Context, userID string, gameType game.Type, date string) (*game.Session, error)
	GetOrCreateSession(ctx context.Context, userID string, gameType game.Type, date string) (*game.Session, error)
	// AppendGuessAndMaybeTransition locks the session, applies mutate, persists
	// new guesses and the status and, when the status became terminal, upserts
	// the user's stats in the same transaction.
	AppendGuessAndMaybeTransition(ctx context.Context, sessionID string, mutate MutateFunc) (*game.Session, error)
	// GetStats returns zero stats for a user who never finished a session.
	GetStats(ctx context.Context, userID string, gameType game.Type) (*game.Stats, error)
	// ListStats returns stats ordered by wins desc, total tries asc, user id asc.
	ListStats(ctx context.Context, gameType game.Type, limit int) ([]game.Stats, error)
}

// Store bundles every boundary; both implementations satisfy it.
type Store interface {
	CandidateRepository
	ScheduleStore
	SessionStore
	Close() error
}
