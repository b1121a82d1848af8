package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/robalobadob/dailypuzzle/internal/daily"
	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/leaderboard"
	"github.com/robalobadob/dailypuzzle/internal/metrics"
	"github.com/robalobadob/dailypuzzle/internal/session"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

const (
	testSecret = "test-jwt-secret"
	cronSecret = "cron-s3cret"
	today      = "2026-03-01"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func catalog() []game.Candidate {
	cs := []game.Candidate{
		{ID: "a1", Kind: game.KindAnime, Name: "Frieren", Year: intp(2023), PopularityRank: 3,
			Description: "Frieren travels on.", BannerURL: "https://img.example/a1-banner.jpg"},
		{ID: "a2", Kind: game.KindAnime, Name: "Fullmetal Alchemist", Year: intp(2009), PopularityRank: 1},
		{ID: "a3", Kind: game.KindAnime, Name: "Re:Zero", Year: intp(2016), PopularityRank: 2},
	}
	for i := 1; i <= 7; i++ {
		cs = append(cs, game.Candidate{
			ID: fmt.Sprintf("s%d", i), Kind: game.KindStudio, Name: fmt.Sprintf("Studio %d", i),
			Works: []game.Work{{ID: "a2", PopularityRank: 1}},
		})
	}
	return cs
}

type harness struct {
	srv *Server
	st  store.Store
	reg *prometheus.Registry
}

func newHarness(t *testing.T, cs []game.Candidate, opts Options) *harness {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.UpsertCandidates(ctx, cs); err != nil {
		t.Fatal(err)
	}
	cal, err := daily.NewCalendar("UTC")
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)
	gen := daily.NewGenerator(st, st, daily.Options{Calendar: cal, Salt: "test", Recorder: m})
	board := leaderboard.NewAggregator(st, nil, m)
	svc := session.NewService(st, gen, session.Options{
		Leaderboard: board,
		Recorder:    m,
		Now:         func() time.Time { return fixedNow },
	})

	opts.JWTSecret = testSecret
	opts.Now = func() time.Time { return fixedNow }
	srv := New(Deps{
		Sessions:     svc,
		Scheduler:    gen,
		Leaderboards: board,
		Candidates:   st,
		Recorder:     m,
		Metrics:      metrics.Handler(reg),
	}, opts)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, st: st, reg: reg}
}

func (h *harness) schedule(t *testing.T, gt game.Type, id string) {
	t.Helper()
	if _, _, err := h.st.InsertIfAbsent(context.Background(), today, gt, id); err != nil {
		t.Fatal(err)
	}
}

func token(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func userToken(t *testing.T, user string) string {
	return token(t, testSecret, jwt.MapClaims{"sub": user, "exp": time.Now().Add(time.Hour).Unix()})
}

func (h *harness) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func respErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorBody
	decode(t, w, &e)
	if e.Details == "" {
		t.Errorf("error body without details: %s", w.Body.String())
	}
	return e.Error
}

func TestCronDaily(t *testing.T) {
	h := newHarness(t, catalog(), Options{CronSecret: cronSecret})

	tests := []struct {
		name   string
		bearer string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, game.ErrCodeAuthorization},
		{"wrong secret", "nope", http.StatusUnauthorized, game.ErrCodeAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodGet, "/api/cron/daily", tt.bearer, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if got := respErrorCode(t, w); got != tt.code {
				t.Errorf("error = %q, want %q", got, tt.code)
			}
		})
	}

	w := h.do(http.MethodGet, "/api/cron/daily", cronSecret, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var first cronResponse
	decode(t, w, &first)
	if first.Date != today || len(first.Results) != len(game.Types) {
		t.Fatalf("summary = %+v", first)
	}
	for _, r := range first.Results {
		if !r.Created || r.TargetID == "" {
			t.Errorf("%s: %+v, want a created schedule", r.GameType, r)
		}
	}

	w = h.do(http.MethodGet, "/api/cron/daily", cronSecret, "")
	var second cronResponse
	decode(t, w, &second)
	for i, r := range second.Results {
		if r.Created || r.TargetID != first.Results[i].TargetID {
			t.Errorf("%s: repeated trigger = %+v, want a no-op with the same target", r.GameType, r)
		}
	}
}

func TestCronDaily_Unconfigured(t *testing.T) {
	h := newHarness(t, catalog(), Options{})
	w := h.do(http.MethodGet, "/api/cron/daily", "anything", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := respErrorCode(t, w); got != game.ErrCodeConfiguration {
		t.Errorf("error = %q, want CONFIGURATION", got)
	}
}

func TestCronDaily_PoolExhausted(t *testing.T) {
	// No studios: the studio game cannot be scheduled, the others still are.
	h := newHarness(t, catalog()[:3], Options{CronSecret: cronSecret})
	w := h.do(http.MethodGet, "/api/cron/daily", cronSecret, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body cronFailure
	decode(t, w, &body)
	if body.Error != game.ErrCodePoolExhausted || !strings.Contains(body.Details, "studio") {
		t.Errorf("failure = %+v", body.errorBody)
	}
	if _, ok, _ := h.st.Get(context.Background(), today, game.TypeAnime); !ok {
		t.Error("anime should be scheduled despite the studio failure")
	}
	if _, ok, _ := h.st.Get(context.Background(), today, game.TypeStudio); ok {
		t.Error("no studio schedule may be written")
	}
}

func TestAuth(t *testing.T) {
	h := newHarness(t, catalog(), Options{})
	h.schedule(t, game.TypeAnime, "a1")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		bearer string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"other secret", token(t, "other", jwt.MapClaims{"sub": "u1"}), http.StatusUnauthorized},
		{"alg none", unsigned, http.StatusUnauthorized},
		{"expired", token(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"no subject", token(t, testSecret, jwt.MapClaims{"name": "u1"}), http.StatusUnauthorized},
		{"sub claim", userToken(t, "u1"), http.StatusOK},
		{"legacy id claim", token(t, testSecret, jwt.MapClaims{"id": "u1"}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodGet, "/api/games/anime/today", tt.bearer, "")
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/games/anime/today", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: userToken(t, "u1")})
		w := httptest.NewRecorder()
		h.srv.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestGuessFlow(t *testing.T) {
	h := newHarness(t, catalog(), Options{})
	h.schedule(t, game.TypeAnime, "a1")
	tok := userToken(t, "u1")

	w := h.do(http.MethodGet, "/api/games/anime/today", tok, "")
	var view session.View
	decode(t, w, &view)
	if view.Status != game.StatusNotStarted || view.MaxGuesses != 16 || view.Target != nil {
		t.Fatalf("today = %+v", view)
	}

	w = h.do(http.MethodPost, "/api/games/anime/guess", tok, `{"candidateId":"a3"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("guess status = %d, body %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), `"a1"`) {
		t.Error("in-progress response leaks the target id")
	}
	var res session.GuessResult
	decode(t, w, &res)
	if res.Duplicate || res.Session.Attempts != 1 || res.Session.Status != game.StatusInProgress {
		t.Fatalf("guess = %+v", res)
	}

	w = h.do(http.MethodPost, "/api/games/anime/guess", tok, `{"candidateId":"a3"}`)
	decode(t, w, &res)
	if !res.Duplicate || res.Session.Attempts != 1 {
		t.Errorf("duplicate guess = %+v", res)
	}

	w = h.do(http.MethodPost, "/api/games/anime/guess", tok, `{"candidateId":"a1"}`)
	decode(t, w, &res)
	if res.Session.Status != game.StatusWon || res.Session.Target == nil || res.Session.Target.ID != "a1" {
		t.Fatalf("winning guess = %+v", res.Session)
	}

	w = h.do(http.MethodPost, "/api/games/anime/guess", tok, `{"candidateId":"a2"}`)
	if w.Code != http.StatusConflict || respErrorCode(t, w) != game.ErrCodeSessionTerminal {
		t.Errorf("guess after win: %d %s", w.Code, w.Body.String())
	}

	w = h.do(http.MethodGet, "/api/games/anime/stats", tok, "")
	var st game.Stats
	decode(t, w, &st)
	if st.Wins != 1 || st.TotalTries != 2 || st.Played != 1 {
		t.Errorf("stats = %+v", st)
	}

	w = h.do(http.MethodGet, "/api/games/anime/leaderboard?limit=5", "", "")
	var lb leaderboardRes
	decode(t, w, &lb)
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u1" || lb.Entries[0].Rank != 1 {
		t.Errorf("leaderboard = %+v", lb)
	}
}

func TestGuessErrors(t *testing.T) {
	h := newHarness(t, catalog(), Options{})
	h.schedule(t, game.TypeAnime, "a1")
	tok := userToken(t, "u1")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad json", "/api/games/anime/guess", `{candidateId`, http.StatusBadRequest, game.ErrCodeInvalidInput},
		{"empty candidate", "/api/games/anime/guess", `{}`, http.StatusBadRequest, game.ErrCodeInvalidInput},
		{"unknown candidate", "/api/games/anime/guess", `{"candidateId":"zz"}`, http.StatusNotFound, game.ErrCodeNotFound},
		{"wrong kind", "/api/games/anime/guess", `{"candidateId":"s1"}`, http.StatusBadRequest, game.ErrCodeInvalidInput},
		{"unknown game type", "/api/games/chess/guess", `{"candidateId":"a2"}`, http.StatusNotFound, game.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodPost, tt.path, tok, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if got := respErrorCode(t, w); got != tt.code {
				t.Errorf("error = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestGuessRateLimit(t *testing.T) {
	h := newHarness(t, catalog(), Options{GuessesPerMinute: 2})
	h.schedule(t, game.TypeStudio, "s1")
	tok := userToken(t, "u1")

	for i, id := range []string{"s2", "s3"} {
		if w := h.do(http.MethodPost, "/api/games/studio/guess", tok, `{"candidateId":"`+id+`"}`); w.Code != http.StatusOK {
			t.Fatalf("guess %d: status = %d", i, w.Code)
		}
	}
	w := h.do(http.MethodPost, "/api/games/studio/guess", tok, `{"candidateId":"s4"}`)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("status = %d, Retry-After = %q", w.Code, w.Header().Get("Retry-After"))
	}
	if w := h.do(http.MethodPost, "/api/games/studio/guess", userToken(t, "u2"), `{"candidateId":"s4"}`); w.Code != http.StatusOK {
		t.Errorf("another user is limited separately, got %d", w.Code)
	}
}

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t, catalog(), Options{})

	w := h.do(http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("/health = %d", w.Code)
	}

	w = h.do(http.MethodGet, "/api/games", "", "")
	var games []gameInfo
	decode(t, w, &games)
	if len(games) != 3 || games[1].GameType != game.TypeStudio || games[1].MaxGuesses != 5 {
		t.Errorf("games = %+v", games)
	}

	w = h.do(http.MethodGet, "/api/games/anime/candidates?q=full", "", "")
	var opts []candidateOption
	decode(t, w, &opts)
	if len(opts) != 1 || opts[0].ID != "a2" {
		t.Errorf("candidates = %+v", opts)
	}
	if strings.Contains(w.Body.String(), "description") {
		t.Error("typeahead must not carry hint material")
	}

	w = h.do(http.MethodGet, "/api/games/anime/leaderboard?limit=ten", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", w.Code)
	}

	w = h.do(http.MethodGet, "/nowhere", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", w.Code)
	}

	w = h.do(http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "puzzle_http_status_total") {
		t.Errorf("/metrics = %d, missing http metrics", w.Code)
	}
}

func TestStatusOf(t *testing.T) {
	tests := map[string]int{
		game.ErrCodeConfiguration:   http.StatusInternalServerError,
		game.ErrCodeAuthorization:   http.StatusUnauthorized,
		game.ErrCodePoolExhausted:   http.StatusServiceUnavailable,
		game.ErrCodeSessionTerminal: http.StatusConflict,
		game.ErrCodeAttemptLimit:    http.StatusConflict,
		game.ErrCodeStorage:         http.StatusServiceUnavailable,
		game.ErrCodeNotFound:        http.StatusNotFound,
		game.ErrCodeInvalidInput:    http.StatusBadRequest,
		"":                          http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := statusOf(code); got != want {
			t.Errorf("statusOf(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestTodayImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/banner/a1.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
		case "/banner/broken.png":
			http.Error(w, "gone", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	cs := catalog()
	cs[0].BannerURL = upstream.URL + "/banner/a1.png"
	cs[1].BannerURL = upstream.URL + "/banner/broken.png"
	h := newHarness(t, cs, Options{})
	h.schedule(t, game.TypeBanner, "a1")
	h.schedule(t, game.TypeAnime, "a1")
	tok := userToken(t, "u1")

	w := h.do(http.MethodGet, "/api/games/banner/today", tok, "")
	if strings.Contains(w.Body.String(), upstream.URL) || strings.Contains(w.Body.String(), `"a1"`) {
		t.Fatalf("today view exposes the target: %s", w.Body.String())
	}
	var view session.View
	decode(t, w, &view)
	if !view.HasImage {
		t.Errorf("banner view = %+v, want hasImage", view)
	}

	w = h.do(http.MethodGet, "/api/games/banner/today/image", tok, "")
	if w.Code != http.StatusOK || w.Body.String() != string(png) {
		t.Fatalf("image = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if loc := w.Header().Get("Location"); loc != "" {
		t.Errorf("image response redirects to %q", loc)
	}

	if w := h.do(http.MethodGet, "/api/games/banner/today/image", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous image = %d", w.Code)
	}
	w = h.do(http.MethodGet, "/api/games/anime/today/image", tok, "")
	if w.Code != http.StatusNotFound || respErrorCode(t, w) != game.ErrCodeNotFound {
		t.Errorf("locked anime image = %d %s", w.Code, w.Body.String())
	}

	h2 := newHarness(t, cs, Options{})
	h2.schedule(t, game.TypeBanner, "a2")
	w = h2.do(http.MethodGet, "/api/games/banner/today/image", tok, "")
	if w.Code != http.StatusBadGateway || respErrorCode(t, w) != "IMAGE_UNAVAILABLE" {
		t.Errorf("broken upstream = %d %s", w.Code, w.Body.String())
	}
}
