package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

// ctxUserKey is the context key type for the authenticated user id.
type ctxUserKey struct{}

func userIDFrom(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxUserKey{}).(string)
	return id, id != ""
}

// bearerOrCookie extracts the token from the Authorization header, falling
// back to the auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// requireAuth enforces a valid HS256 JWT and injects its subject into the
// request context. Tokens are issued by the identity service; "sub" is
// preferred, "id" is accepted for older tokens.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := s.bearerOrCookie(r)
		if tokenStr == "" {
			writeError(w, r, game.NewAuthorizationError("missing token"))
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.opts.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			writeError(w, r, game.NewAuthorizationError("invalid token"))
			return
		}
		id, _ := claims["sub"].(string)
		if id == "" {
			id, _ = claims["id"].(string)
		}
		if id == "" {
			writeError(w, r, game.NewAuthorizationError("token has no subject"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
