package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/service"
)

// TokenParser verifies signed tokens.
type TokenParser interface {
	ParseFor(token string, purpose model.TokenPurpose) (model.JWTData, error)
}

// UserAuthenticator resolves the user behind verified token data.
type UserAuthenticator interface {
	AuthenticateUser(ctx context.Context, data model.JWTData) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger     *slog.Logger
	Tokens     TokenParser
	Users      UserAuthenticator
	CookieName string
}

// Auth returns a middleware that requires an access token.
// The token is read from the session cookie or an "Authorization: Bearer"
// header; the resolved user is stored in the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r, cfg.CookieName)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeAuthError(w)
				return
			}

			data, err := cfg.Tokens.ParseFor(token, model.PurposeAccess)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "invalid_token")
				writeAuthError(w)
				return
			}

			user, err := cfg.Users.AuthenticateUser(r.Context(), data)
			if errors.Is(err, service.ErrUserNotFound) {
				logAuthFailure(cfg.Logger, r, "unknown_user")
				writeAuthError(w)
				return
			}
			if err != nil {
				cfg.Logger.Error("authentication lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken prefers the Authorization header over the session cookie.
func extractToken(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing credentials")
}
