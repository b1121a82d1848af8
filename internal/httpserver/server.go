// internal/httpserver/server.go
//
// HTTP server wiring for the daily puzzle engine.
// Responsibilities:
//   - Router + middleware (request IDs, access log, metrics, panic recovery,
//     timeouts, JSON, CORS).
//   - Public endpoints: "/", "/health", "/metrics", "/api/games",
//     leaderboards and candidate typeahead.
//   - Player endpoints (require auth): today's view, guess, stats and the
//     puzzle image, proxied so its upstream URL never reaches the client.
//   - Trigger endpoint: GET /api/cron/daily behind the shared cron secret.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Identity comes from an HS256 JWT issued elsewhere; this server only verifies it.
//   - Guess submission is rate limited per user.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/dailypuzzle/internal/daily"
	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/leaderboard"
	"github.com/robalobadob/dailypuzzle/internal/session"
)

// Sessions is the player-facing game service; satisfied by *session.Service.
type Sessions interface {
	SubmitGuess(ctx context.Context, userID string, gameType game.Type, date, candidateID string) (*session.GuessResult, error)
	Today(ctx context.Context, userID string, gameType game.Type, date string) (*session.View, error)
	Stats(ctx context.Context, userID string, gameType game.Type) (*game.Stats, error)
	Image(ctx context.Context, userID string, gameType game.Type, date string) (string, error)
}

// Scheduler runs the daily generation; satisfied by *daily.Generator.
type Scheduler interface {
	EnsureAll(ctx context.Context, when time.Time) []daily.Outcome
	Calendar() daily.Calendar
}

// Leaderboards is satisfied by *leaderboard.Aggregator.
type Leaderboards interface {
	Leaderboard(ctx context.Context, gameType game.Type, limit int) ([]leaderboard.Entry, error)
}

// Candidates backs the typeahead; satisfied by every store.
type Candidates interface {
	Search(ctx context.Context, kind game.Kind, query string, limit int) ([]game.Candidate, error)
}

// Recorder receives per-response HTTP metrics; satisfied by metrics.Collector.
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordHTTPLatency(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordHTTPStatus(int)            {}
func (nopRecorder) RecordHTTPLatency(time.Duration) {}

// Deps are the engine components served over HTTP.
type Deps struct {
	Sessions     Sessions
	Scheduler    Scheduler
	Leaderboards Leaderboards
	Candidates   Candidates
	Recorder     Recorder     // optional
	Metrics      http.Handler // optional; mounted at /metrics
	Images       *http.Client // optional; fetches puzzle images upstream
}

// Options are the HTTP-level settings.
type Options struct {
	JWTSecret        string
	CookieName       string
	CronSecret       string
	ClientOrigin     string
	RequestTimeout   time.Duration
	GuessesPerMinute int
	Now              func() time.Time
}

// Server bundles the router and its dependencies.
type Server struct {
	r       *chi.Mux
	deps    Deps
	opts    Options
	limiter *rateLimiter
}

// New constructs a Server, installs middleware, and registers routes.
func New(deps Deps, opts Options) *Server {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Images == nil {
		deps.Images = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.CookieName == "" {
		opts.CookieName = "token"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		r:       chi.NewRouter(),
		deps:    deps,
		opts:    opts,
		limiter: newRateLimiter(opts.GuessesPerMinute, 5*time.Minute),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                    // add X-Request-ID
	s.r.Use(chimw.RealIP)                       // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))        // request-scoped logger
	s.r.Use(s.accessLog)                        // one line per request + HTTP metrics
	s.r.Use(chimw.Recoverer)                    // recover from panics
	s.r.Use(chimw.Timeout(opts.RequestTimeout)) // bound handler time
	s.r.Use(jsonContentType)                    // default JSON responses
	s.r.Use(cors(opts.ClientOrigin))            // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "dailypuzzle",
			"endpoints": []string{"/health", "/api/games", "/api/games/{gameType}/*", "/api/cron/daily"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	if deps.Metrics != nil {
		s.r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	s.mountCron()
	s.mountGames()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: game.ErrCodeNotFound, Details: "no route for " + r.URL.Path})
	})

	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.r.ServeHTTP(w, r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Close stops background housekeeping.
func (s *Server) Close() { s.limiter.Stop() }
