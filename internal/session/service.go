// internal/session/service.go
//
// Session State Machine: per-user, per-game-type, per-day play.
//
// SubmitGuess flow:
//  1. Validate identity, game type, date and the guessed candidate.
//  2. Resolve the day's target; when no schedule exists yet the generator's
//     idempotent EnsureDate creates it.
//  3. Evaluate the candidate against the target (pure).
//  4. In one store transaction: reject terminal sessions, short-circuit a
//     candidate already guessed, append, transition, and on a terminal
//     transition fold the session into GameStats.
//  5. After commit: drop the cached leaderboard when the session finished.
//
// The service holds no session state; everything lives in the store.

package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/dailypuzzle/internal/catalog"
	"github.com/robalobadob/dailypuzzle/internal/daily"
	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

// Scheduler resolves the day's target; satisfied by *daily.Generator.
type Scheduler interface {
	EnsureDate(ctx context.Context, date string, gameType game.Type) (daily.Result, error)
	Calendar() daily.Calendar
}

// Invalidator drops cached leaderboards; satisfied by *leaderboard.Aggregator.
type Invalidator interface {
	Invalidate(ctx context.Context, gameType game.Type)
}

// Recorder receives guess and session events; satisfied by metrics.Collector.
type Recorder interface {
	RecordGuess(gameType, result string)
	RecordSessionFinished(gameType, status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordGuess(string, string)           {}
func (nopRecorder) RecordSessionFinished(string, string) {}

// Options configures a Service.
type Options struct {
	Hints       game.HintLadder
	Leaderboard Invalidator
	Recorder    Recorder
	Now         func() time.Time
}

// Service implements SubmitGuess, Today and Stats.
type Service struct {
	store store.Store
	sched Scheduler
	hints game.HintLadder
	board Invalidator
	rec   Recorder
	now   func() time.Time
}

// NewService wires a Service.
func NewService(st store.Store, sched Scheduler, opts Options) *Service {
	s := &Service{
		store: st,
		sched: sched,
		hints: opts.Hints,
		board: opts.Leaderboard,
		rec:   opts.Recorder,
		now:   opts.Now,
	}
	if s.hints == (game.HintLadder{}) {
		s.hints = game.DefaultHintLadder
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// errDuplicate aborts the transaction when the candidate was already guessed.
var errDuplicate = errors.New("candidate already guessed")

// GuessResult is the outcome of SubmitGuess.
type GuessResult struct {
	Session   *View      `json:"session"`
	Guess     game.Guess `json:"guess"`
	Duplicate bool       `json:"duplicate"`
}

// SubmitGuess evaluates candidateID against the target of (gameType, date)
// and records it on the user's session. An empty date means today.
func (s *Service) SubmitGuess(ctx context.Context, userID string, gameType game.Type, date, candidateID string) (*GuessResult, error) {
	date, err := s.validate(userID, gameType, date)
	if err != nil {
		return nil, err
	}
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, game.NewInvalidInputError("candidateId is required")
	}

	cand, err := s.store.GetByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, game.NewNotFoundError("candidate", candidateID)
	}
	if cand.Kind != gameType.CandidateKind() {
		return nil, game.NewInvalidInputError("candidate " + candidateID + " cannot be guessed in " + string(gameType))
	}

	target, err := s.target(ctx, gameType, date)
	if err != nil {
		return nil, err
	}
	results := game.Evaluate(gameType, cand, target)
	payload, err := game.NewPayload(gameType, cand)
	if err != nil {
		return nil, game.NewInvalidInputError(err.Error())
	}

	sess, err := s.store.GetOrCreateSession(ctx, userID, gameType, date)
	if err != nil {
		return nil, err
	}

	var (
		guess    game.Guess
		previous game.Status
	)
	now := s.now().UTC()
	updated, err := s.store.AppendGuessAndMaybeTransition(ctx, sess.ID, func(cur *game.Session) error {
		previous = cur.Status
		if cur.Status.Terminal() {
			return game.NewSessionTerminalError(gameType, cur.Status)
		}
		if g, ok := cur.Find(candidateID); ok {
			guess = *g
			return errDuplicate
		}
		g, err := cur.Apply(candidateID, payload, results, now)
		if err != nil {
			return err
		}
		guess = *g
		return nil
	})
	if errors.Is(err, errDuplicate) {
		s.rec.RecordGuess(string(gameType), "duplicate")
		cur, err := s.store.GetSession(ctx, userID, gameType, date)
		if err != nil {
			return nil, err
		}
		return &GuessResult{Session: s.view(cur, gameType, date, target), Guess: guess, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if game.Won(gameType, results) {
		s.rec.RecordGuess(string(gameType), "hit")
	} else {
		s.rec.RecordGuess(string(gameType), "miss")
	}
	if !previous.Terminal() && updated.Status.Terminal() {
		s.finished(ctx, updated)
	}
	return &GuessResult{Session: s.view(updated, gameType, date, target), Guess: guess}, nil
}

func (s *Service) finished(ctx context.Context, sess *game.Session) {
	s.rec.RecordSessionFinished(string(sess.GameType), string(sess.Status))
	if s.board != nil {
		s.board.Invalidate(ctx, sess.GameType)
	}
	log.Info().
		Str("userId", sess.UserID).
		Str("gameType", string(sess.GameType)).
		Str("date", sess.Date).
		Str("status", string(sess.Status)).
		Int("guesses", len(sess.Guesses)).
		Msg("session finished")
}

// Today returns the user's view of (gameType, date) without mutating anything.
// A user who has not played yet sees status not_started.
func (s *Service) Today(ctx context.Context, userID string, gameType game.Type, date string) (*View, error) {
	date, err := s.validate(userID, gameType, date)
	if err != nil {
		return nil, err
	}
	target, err := s.target(ctx, gameType, date)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.GetSession(ctx, userID, gameType, date)
	if err != nil {
		return nil, err
	}
	return s.view(sess, gameType, date, target), nil
}

// Image returns the upstream URL of the picture the user may currently see
// for (gameType, date). The URL identifies the target, so callers must fetch
// it server-side and never hand it to the client.
func (s *Service) Image(ctx context.Context, userID string, gameType game.Type, date string) (string, error) {
	date, err := s.validate(userID, gameType, date)
	if err != nil {
		return "", err
	}
	target, err := s.target(ctx, gameType, date)
	if err != nil {
		return "", err
	}
	sess, err := s.store.GetSession(ctx, userID, gameType, date)
	if err != nil {
		return "", err
	}
	attempts, status := 0, game.StatusNotStarted
	if sess != nil {
		attempts, status = len(sess.Guesses), sess.Status
	}
	url := s.imageURL(gameType, attempts, status, target)
	if url == "" {
		return "", game.NewNotFoundError("image", string(gameType)+" "+date)
	}
	return url, nil
}

// Stats returns the user's aggregate for gameType.
func (s *Service) Stats(ctx context.Context, userID string, gameType game.Type) (*game.Stats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, game.NewInvalidInputError("userId is required")
	}
	if gameType.MaxGuesses() == 0 {
		return nil, game.NewInvalidInputError("unknown game type: " + string(gameType))
	}
	return s.store.GetStats(ctx, userID, gameType)
}

// validate checks the common preconditions and normalizes date.
func (s *Service) validate(userID string, gameType game.Type, date string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", game.NewInvalidInputError("userId is required")
	}
	if gameType.MaxGuesses() == 0 {
		return "", game.NewInvalidInputError("unknown game type: " + string(gameType))
	}
	if date == "" {
		return s.sched.Calendar().DateKey(s.now()), nil
	}
	if _, err := daily.ParseDate(date); err != nil {
		return "", game.NewInvalidInputError(err.Error())
	}
	return date, nil
}

// target loads the day's target candidate, scheduling it on first use.
func (s *Service) target(ctx context.Context, gameType game.Type, date string) (*game.Candidate, error) {
	id, ok, err := s.store.Get(ctx, date, gameType)
	if err != nil {
		return nil, err
	}
	if !ok {
		res, err := s.sched.EnsureDate(ctx, date, gameType)
		if err != nil {
			return nil, err
		}
		id = res.TargetID
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, game.NewNotFoundError("target candidate", id)
	}
	return c, nil
}

// redactedDescription is the description hint with the answer masked.
func redactedDescription(c *game.Candidate) string {
	return catalog.Redact(c.Description, c.Name)
}
