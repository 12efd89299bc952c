package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/handler/dto"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/service"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name     string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	// Lifespan is both the cookie expiry and the access token TTL.
	Lifespan time.Duration
}

// AuthHandler handles registration, sessions and email verification.
type AuthHandler struct {
	users  *service.UserService
	tokens *auth.TokenManager
	cookie CookieConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users *service.UserService, tokens *auth.TokenManager, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		cookie: cookie,
		logger: logger,
		now:    time.Now,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := model.ValidateRegistration(req.Email, req.Username, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	user, err := h.users.RegisterUser(r.Context(), service.RegisterUserInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// Login handles POST /api/v1/auth/login.
// Unknown users and wrong passwords get the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "login and password are required")
		return
	}

	user, err := h.users.LoginUser(r.Context(), req.Login, req.Password)
	if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidPassword) {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid login or password")
		return
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	token, err := h.tokens.IssueFor(user.ID, model.PurposeAccess, h.cookie.Lifespan)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, h.now().Add(h.cookie.Lifespan), int(h.cookie.Lifespan.Seconds())))
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", time.Unix(0, 0), -1))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// VerifyEmail handles GET /api/v1/auth/verify-email?token=.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TOKEN", "token query parameter is required")
		return
	}

	data, err := h.tokens.ParseFor(token, model.PurposeEmailVerification)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	user, err := h.users.VerifyUserEmail(r.Context(), data)
	if errors.Is(err, service.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired")
		return
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: h.cookie.HTTPOnly,
		SameSite: h.cookie.SameSite,
	}
}
