// internal/httpserver/routes_games.go
//
// Player-facing routes, one set per game type under /api/games/{gameType}:
//   - GET  /today        → the caller's view of today's puzzle (auth)
//   - GET  /today/image  → the puzzle picture, once the caller may see it (auth)
//   - POST /guess        → submit {candidateId} (auth, rate limited)
//   - GET  /stats        → the caller's aggregate (auth)
//   - GET  /leaderboard  → ranked standings, ?limit=
//   - GET  /candidates   → typeahead over the game's candidate kind, ?q=&limit=
//
// The target's identity is never part of a response until the caller's
// session is over.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/leaderboard"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type gameInfo struct {
	GameType      game.Type `json:"gameType"`
	CandidateKind game.Kind `json:"candidateKind"`
	MaxGuesses    int       `json:"maxGuesses"`
}

type guessReq struct {
	CandidateID string `json:"candidateId"`
}

// candidateOption is a typeahead entry; it carries no hint material.
type candidateOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Year *int   `json:"year,omitempty"`
}

type leaderboardRes struct {
	GameType game.Type           `json:"gameType"`
	Entries  []leaderboard.Entry `json:"entries"`
}

func (s *Server) mountGames() {
	s.r.Get("/api/games", s.handleListGames)
	s.r.Route("/api/games/{gameType}", func(r chi.Router) {
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/candidates", s.handleCandidates)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/today", s.handleToday)
			r.Get("/today/image", s.handleTodayImage)
			r.Get("/stats", s.handleStats)
			r.With(s.limiter.middleware).Post("/guess", s.handleGuess)
		})
	})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	out := make([]gameInfo, 0, len(game.Types))
	for _, t := range game.Types {
		out = append(out, gameInfo{GameType: t, CandidateKind: t.CandidateKind(), MaxGuesses: t.MaxGuesses()})
	}
	writeJSON(w, http.StatusOK, out)
}

// gameType resolves the {gameType} path parameter, writing a 404 when unknown.
func gameType(w http.ResponseWriter, r *http.Request) (game.Type, bool) {
	slug := chi.URLParam(r, "gameType")
	t, ok := game.ParseType(slug)
	if !ok {
		writeError(w, r, game.NewNotFoundError("game type", slug))
	}
	return t, ok
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	gt, ok := gameType(w, r)
	if !ok {
		return
	}
	uid, _ := userIDFrom(r.Context())
	view, err := s.deps.Sessions.Today(r.Context(), uid, gt, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	gt, ok := gameType(w, r)
	if !ok {
		return
	}
	var req guessReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, r, game.NewInvalidInputError("body must be JSON {\"candidateId\": ...}"))
		return
	}
	uid, _ := userIDFrom(r.Context())
	res, err := s.deps.Sessions.SubmitGuess(r.Context(), uid, gt, "", req.CandidateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	gt, ok := gameType(w, r)
	if !ok {
		return
	}
	uid, _ := userIDFrom(r.Context())
	st, err := s.deps.Sessions.Stats(r.Context(), uid, gt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	gt, ok := gameType(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", leaderboard.DefaultLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.Leaderboards.Leaderboard(r.Context(), gt, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardRes{GameType: gt, Entries: entries})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	gt, ok := gameType(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	found, err := s.deps.Candidates.Search(r.Context(), gt.CandidateKind(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]candidateOption, 0, len(found))
	for _, c := range found {
		out = append(out, candidateOption{ID: c.ID, Name: c.Name, Year: c.Year})
	}
	writeJSON(w, http.StatusOK, out)
}

// intParam reads an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, game.NewInvalidInputError(name + " must be an integer")
	}
	return n, nil
}
