package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zhouzirui/chat-app/backend/pkg/utils"
)

type contextKey struct{}

// TokenParser resolves a bearer token to a username.
type TokenParser interface {
	ParseToken(raw string) (string, error)
}

// RequireBearer rejects requests without a valid bearer token and stores the username in the context.
func RequireBearer(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			username, err := tokens.ParseToken(raw)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUsername attaches the authenticated username to ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKey{}, username)
}

// Username returns the authenticated username stored by RequireBearer.
func Username(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(contextKey{}).(string)
	return username, ok && username != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	utils.RespondError(w, http.StatusUnauthorized, "Could not validate credentials")
}
