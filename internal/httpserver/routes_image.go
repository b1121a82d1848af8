// internal/httpserver/routes_image.go
//
// Puzzle image proxy.
//   - GET /api/games/{gameType}/today/image → the bytes of the picture the
//     caller has unlocked
//
// Catalog image URLs name their candidate, so the server fetches them itself
// and streams the body back. The upstream URL appears in no response header.

package httpserver

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
)

const maxImageBytes = 10 << 20

func (s *Server) handleTodayImage(w http.ResponseWriter, r *http.Request) {
	gt, ok := gameType(w, r)
	if !ok {
		return
	}
	uid, _ := userIDFrom(r.Context())
	url, err := s.deps.Sessions.Image(r.Context(), uid, gt, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("gameType", string(gt)).Msg("bad image url")
		imageUnavailable(w)
		return
	}
	resp, err := s.deps.Images.Do(req)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("gameType", string(gt)).Msg("image fetch failed")
		imageUnavailable(w)
		return
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	mt, _, _ := mime.ParseMediaType(ct)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(mt, "image/") {
		hlog.FromRequest(r).Warn().Int("upstreamStatus", resp.StatusCode).Str("contentType", ct).Msg("image fetch rejected")
		imageUnavailable(w)
		return
	}

	w.Header().Set("Content-Type", mt)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("image stream interrupted")
	}
}

func imageUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadGateway, errorBody{Error: "IMAGE_UNAVAILABLE", Details: "puzzle image could not be fetched"})
}
