// internal/daily/generator.go
//
// Schedule Generator: produces (or reuses) the target of a game type for a day.
//
// Flow for EnsureSchedule(when, gameType):
//  1. Normalize when to the canonical date key.
//  2. Existing schedule → return it unchanged.
//  3. Build the eligible pool for the game type.
//  4. Exclude targets of the trailing window; relax 7 → 3 → 0 days while the
//     exclusion empties the pool.
//  5. Pick uniformly at random (or with the keyed PickIndex when a secret salt
//     is configured) and InsertIfAbsent; a lost race returns the winner, so
//     retries never need the pick to be reproducible.
//
// The only coordination between concurrent triggers (across processes too) is
// the unique (date, game type) key behind InsertIfAbsent.

package daily

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

// ExclusionWindows is the repeat-avoidance relaxation policy, in days.
var ExclusionWindows = []int{7, 3, 0}

// Recorder receives generator events; satisfied by metrics.Collector.
type Recorder interface {
	RecordScheduleCreated(gameType string)
	RecordScheduleReused(gameType string)
	RecordPoolExhausted(gameType string)
	RecordPoolRelaxed(gameType string, window int)
}

type nopRecorder struct{}

func (nopRecorder) RecordScheduleCreated(string)  {}
func (nopRecorder) RecordScheduleReused(string)   {}
func (nopRecorder) RecordPoolExhausted(string)    {}
func (nopRecorder) RecordPoolRelaxed(string, int) {}

// Generator implements EnsureSchedule over the candidate and schedule stores.
type Generator struct {
	candidates store.CandidateRepository
	schedules  store.ScheduleStore
	calendar   Calendar
	salt       string
	filters    map[game.Type]store.PoolFilter
	types      []game.Type
	rec        Recorder
}

// Options configures a Generator.
type Options struct {
	Calendar Calendar
	Salt     string                         // secret key of PickIndex; empty picks from crypto/rand
	Filters  map[game.Type]store.PoolFilter // missing entries default to kind-only
	Types    []game.Type                    // game types handled by EnsureAll; default game.Types
	Recorder Recorder
}

// NewGenerator wires a Generator.
func NewGenerator(candidates store.CandidateRepository, schedules store.ScheduleStore, opts Options) *Generator {
	g := &Generator{
		candidates: candidates,
		schedules:  schedules,
		calendar:   opts.Calendar,
		salt:       opts.Salt,
		filters:    opts.Filters,
		types:      opts.Types,
		rec:        opts.Recorder,
	}
	if g.filters == nil {
		g.filters = map[game.Type]store.PoolFilter{}
	}
	if len(g.types) == 0 {
		g.types = game.Types
	}
	if g.rec == nil {
		g.rec = nopRecorder{}
	}
	return g
}

// Calendar exposes the canonical calendar.
func (g *Generator) Calendar() Calendar { return g.calendar }

// Types lists the game types handled by EnsureAll.
func (g *Generator) Types() []game.Type { return g.types }

// Result is the outcome of one EnsureSchedule call.
type Result struct {
	GameType game.Type `json:"gameType"`
	Date     string    `json:"date"`
	TargetID string    `json:"targetId,omitempty"`
	Created  bool      `json:"created"`
}

// EnsureSchedule returns the target of gameType on the day containing when,
// creating the schedule if none exists yet.
func (g *Generator) EnsureSchedule(ctx context.Context, when time.Time, gameType game.Type) (Result, error) {
	return g.EnsureDate(ctx, g.calendar.DateKey(when), gameType)
}

// EnsureDate is EnsureSchedule for an already normalized date key.
func (g *Generator) EnsureDate(ctx context.Context, date string, gameType game.Type) (Result, error) {
	res := Result{GameType: gameType, Date: date}
	if gameType.MaxGuesses() == 0 {
		return res, game.NewInvalidInputError("unknown game type: " + string(gameType))
	}
	logger := log.With().Str("gameType", string(gameType)).Str("date", date).Logger()

	if id, ok, err := g.schedules.Get(ctx, date, gameType); err != nil {
		return res, err
	} else if ok {
		g.rec.RecordScheduleReused(string(gameType))
		res.TargetID = id
		return res, nil
	}

	filter, ok := g.filters[gameType]
	if !ok {
		filter = store.PoolFilter{}
	}
	if filter.Kind == "" {
		filter.Kind = gameType.CandidateKind()
	}
	if gameType == game.TypeBanner {
		filter.RequireBanner = true
	}
	pool, err := g.candidates.ListEligible(ctx, gameType, filter)
	if err != nil {
		return res, err
	}
	game.SortCandidates(pool)

	var eligible []game.Candidate
	for i, window := range ExclusionWindows {
		eligible, err = g.excludeRecent(ctx, pool, date, gameType, window)
		if err != nil {
			return res, err
		}
		if len(eligible) > 0 {
			if i > 0 {
				g.rec.RecordPoolRelaxed(string(gameType), window)
				logger.Warn().Int("window", window).Int("pool", len(pool)).Msg("repeat-avoidance window relaxed")
			}
			break
		}
	}
	if len(eligible) == 0 {
		g.rec.RecordPoolExhausted(string(gameType))
		logger.Error().Msg("candidate pool exhausted")
		return res, game.NewPoolExhaustionError(gameType, date)
	}

	idx, err := g.pick(date, gameType, len(eligible))
	if err != nil {
		return res, err
	}
	pick := eligible[idx]
	id, created, err := g.schedules.InsertIfAbsent(ctx, date, gameType, pick.ID)
	if err != nil {
		return res, err
	}
	res.TargetID, res.Created = id, created
	if created {
		g.rec.RecordScheduleCreated(string(gameType))
		logger.Info().Int("eligible", len(eligible)).Msg("daily schedule created")
	} else {
		g.rec.RecordScheduleReused(string(gameType))
		logger.Info().Msg("daily schedule created concurrently; reusing")
	}
	return res, nil
}

func (g *Generator) pick(date string, gameType game.Type, n int) (int, error) {
	if g.salt != "" {
		return PickIndex(g.salt, date, string(gameType), n), nil
	}
	return RandomIndex(n)
}

// excludeRecent drops candidates scheduled in the window days before date.
func (g *Generator) excludeRecent(ctx context.Context, pool []game.Candidate, date string, gameType game.Type, window int) ([]game.Candidate, error) {
	if window <= 0 {
		return pool, nil
	}
	from, err := AddDays(date, -window)
	if err != nil {
		return nil, game.NewInvalidInputError(err.Error())
	}
	recent, err := g.schedules.RecentTargets(ctx, gameType, from, date)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return pool, nil
	}
	used := make(map[string]struct{}, len(recent))
	for _, id := range recent {
		used[id] = struct{}{}
	}
	out := make([]game.Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := used[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Outcome is one line of an EnsureAll summary.
type Outcome struct {
	Result
	Err error `json:"-"`
}

// EnsureAll runs EnsureSchedule for every configured game type. A failing type
// does not prevent the others from being scheduled.
func (g *Generator) EnsureAll(ctx context.Context, when time.Time) []Outcome {
	date := g.calendar.DateKey(when)
	out := make([]Outcome, 0, len(g.types))
	for _, gt := range g.types {
		res, err := g.EnsureDate(ctx, date, gt)
		out = append(out, Outcome{Result: res, Err: err})
	}
	return out
}
