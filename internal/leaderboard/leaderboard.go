// internal/leaderboard/leaderboard.go
//
// Leaderboard Aggregator: ranks users of one game type by their GameStats.
//
// Ordering:
//   - wins desc, then totalTries asc (fewer tries is better), then user id.
//   - Users with the same wins and totalTries share a rank (1, 2, 2, 4).
//
// Reads go through an optional Cache. Cache failures are logged and the
// aggregator falls back to the store; they never fail a request.

package leaderboard

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Entry is one leaderboard row.
type Entry struct {
	Rank       int        `json:"rank"`
	UserID     string     `json:"userId"`
	Wins       int        `json:"wins"`
	TotalTries int        `json:"totalTries"`
	Played     int        `json:"played"`
	LastWonAt  *time.Time `json:"lastWonAt,omitempty"`
}

// StatsLister is the slice of store.SessionStore the aggregator reads.
type StatsLister interface {
	ListStats(ctx context.Context, gameType game.Type, limit int) ([]game.Stats, error)
}

// Cache stores computed leaderboards per game type and limit.
type Cache interface {
	Get(ctx context.Context, gameType game.Type, limit int) ([]Entry, bool, error)
	Set(ctx context.Context, gameType game.Type, limit int, entries []Entry) error
	Invalidate(ctx context.Context, gameType game.Type) error
}

// Recorder receives cache lookup results (hit, miss, error).
type Recorder interface {
	RecordCacheLookup(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheLookup(string) {}

// Aggregator serves leaderboards.
type Aggregator struct {
	stats StatsLister
	cache Cache
	rec   Recorder
}

// NewAggregator wires an Aggregator. cache and rec may be nil.
func NewAggregator(stats StatsLister, cache Cache, rec Recorder) *Aggregator {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Aggregator{stats: stats, cache: cache, rec: rec}
}

// ClampLimit applies the default and the upper bound.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Leaderboard returns the top limit users of gameType.
func (a *Aggregator) Leaderboard(ctx context.Context, gameType game.Type, limit int) ([]Entry, error) {
	if gameType.MaxGuesses() == 0 {
		return nil, game.NewInvalidInputError("unknown game type: " + string(gameType))
	}
	limit = ClampLimit(limit)

	if a.cache != nil {
		entries, ok, err := a.cache.Get(ctx, gameType, limit)
		switch {
		case err != nil:
			a.rec.RecordCacheLookup("error")
			log.Warn().Err(err).Str("gameType", string(gameType)).Msg("leaderboard cache read failed")
		case ok:
			a.rec.RecordCacheLookup("hit")
			return entries, nil
		default:
			a.rec.RecordCacheLookup("miss")
		}
	}

	rows, err := a.stats.ListStats(ctx, gameType, limit)
	if err != nil {
		return nil, err
	}
	entries := Rank(rows)

	if a.cache != nil {
		if err := a.cache.Set(ctx, gameType, limit, entries); err != nil {
			log.Warn().Err(err).Str("gameType", string(gameType)).Msg("leaderboard cache write failed")
		}
	}
	return entries, nil
}

// Invalidate drops cached leaderboards of gameType. Called when a session of
// that type finishes.
func (a *Aggregator) Invalidate(ctx context.Context, gameType game.Type) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx, gameType); err != nil {
		log.Warn().Err(err).Str("gameType", string(gameType)).Msg("leaderboard cache invalidation failed")
	}
}

// Rank numbers already ordered stats with competition ranking.
func Rank(rows []game.Stats) []Entry {
	out := make([]Entry, 0, len(rows))
	for i, st := range rows {
		rank := i + 1
		if i > 0 {
			prev := rows[i-1]
			if prev.Wins == st.Wins && prev.TotalTries == st.TotalTries {
				rank = out[i-1].Rank
			}
		}
		out = append(out, Entry{
			Rank:       rank,
			UserID:     st.UserID,
			Wins:       st.Wins,
			TotalTries: st.TotalTries,
			Played:     st.Played,
			LastWonAt:  st.LastWonAt,
		})
	}
	return out
}
