// internal/httpserver/routes_cron.go
//
// Trigger endpoint for the daily schedule.
//   - GET /api/cron/daily → ensure today's schedule for every game type
//
// Called by an external scheduler with "Authorization: Bearer <CRON_SECRET>".
// Generation is idempotent, so repeated or concurrent calls are harmless and
// a call after today's schedule exists reports created=false.

package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/dailypuzzle/internal/daily"
	"github.com/robalobadob/dailypuzzle/internal/game"
)

// cronResult is one game type of the trigger summary.
type cronResult struct {
	GameType game.Type `json:"gameType"`
	Created  bool      `json:"created"`
	TargetID string    `json:"targetId,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type cronResponse struct {
	Date    string       `json:"date"`
	Results []cronResult `json:"results"`
}

type cronFailure struct {
	errorBody
	Date    string       `json:"date"`
	Results []cronResult `json:"results"`
}

func (s *Server) mountCron() {
	s.r.Get("/api/cron/daily", s.handleCronDaily)
}

func (s *Server) handleCronDaily(w http.ResponseWriter, r *http.Request) {
	if s.opts.CronSecret == "" {
		writeError(w, r, game.NewConfigurationError("CRON_SECRET is not configured"))
		return
	}
	if !s.cronAuthorized(r) {
		writeError(w, r, game.NewAuthorizationError("invalid cron secret"))
		return
	}

	now := s.opts.Now()
	outcomes := s.deps.Scheduler.EnsureAll(r.Context(), now)
	resp := cronResponse{Date: s.deps.Scheduler.Calendar().DateKey(now), Results: make([]cronResult, 0, len(outcomes))}

	var failed []daily.Outcome
	for _, o := range outcomes {
		res := cronResult{GameType: o.GameType, Created: o.Created, TargetID: o.TargetID}
		if o.Err != nil {
			res.Error = errorCode(o.Err)
			failed = append(failed, o)
			hlog.FromRequest(r).Error().Err(o.Err).Str("gameType", string(o.GameType)).Msg("daily generation failed")
		}
		resp.Results = append(resp.Results, res)
	}

	if len(failed) > 0 {
		code := errorCode(failed[0].Err)
		details := make([]string, 0, len(failed))
		for _, o := range failed {
			details = append(details, string(o.GameType)+": "+o.Err.Error())
		}
		writeJSON(w, http.StatusInternalServerError, cronFailure{
			errorBody: errorBody{Error: code, Details: strings.Join(details, "; ")},
			Date:      resp.Date,
			Results:   resp.Results,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cronAuthorized(r *http.Request) bool {
	a := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return false
	}
	got := strings.TrimSpace(a[7:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.CronSecret)) == 1
}

func errorCode(err error) string {
	if code := game.CodeOf(err); code != "" {
		return code
	}
	return "INTERNAL"
}
