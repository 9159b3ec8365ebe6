package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/bookkeeper/internal/logging"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	"github.com/dmitrijs2005/bookkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserService is the session and profile logic behind UsersHandler.
// *services.UserService satisfies it.
type UserService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.PublicUser, error)
	UpdateUser(ctx context.Context, actorID, id, name, email string) (*models.User, error)
	DeleteUser(ctx context.Context, actorID, id string) error
}

type UsersHandler struct {
	users   UserService
	cookies CookieConfig
	metrics *Metrics
	logger  logging.Logger
}

func NewUsersHandler(users UserService, cookies CookieConfig, metrics *Metrics, logger logging.Logger) *UsersHandler {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UsersHandler{users: users, cookies: cookies, metrics: metrics, logger: logger.With("module", "http_users")}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateUserRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// MountRoutes registers the /api/users routes. authn guards the
// protected ones.
func (h *UsersHandler) MountRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	h.MountSessionRoutes(r, authn)

	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Put("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
	})
}

// MountSessionRoutes registers token, logout and sessions, which are also
// reachable directly under /api.
func (h *UsersHandler) MountSessionRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Post("/token", h.refresh)
	r.Post("/logout", h.logout)
	r.With(authn).Get("/sessions", h.sessions)
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusCreated, "User registered successfully", user.Public())
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.AuthEvent("login", "failure")
		h.logger.Debug(r.Context(), "login rejected", "err", err)
		writeError(w, err)
		return
	}
	h.metrics.AuthEvent("login", "success")

	h.cookies.setRefreshCookie(w, pair.RefreshToken)
	sendResponse(w, http.StatusOK, "Login successful", pair)
}

// refresh takes the token from the refresh-token header, falling back to
// the cookie. Every failure except a store outage is a 403.
func (h *UsersHandler) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromHeader(r)
	if token == "" {
		token = refreshTokenFromCookie(r)
	}
	if token == "" {
		h.metrics.AuthEvent("refresh", "missing")
		sendResponse(w, http.StatusForbidden, "Refresh token missing", nil)
		return
	}

	pair, err := h.users.Refresh(r.Context(), token)
	if err != nil {
		h.metrics.AuthEvent("refresh", "failure")
		if status, msg := statusFor(err); status == http.StatusInternalServerError {
			sendResponse(w, status, msg, nil)
			return
		}
		sendResponse(w, http.StatusForbidden, "Invalid or expired refresh token", nil)
		return
	}
	h.metrics.AuthEvent("refresh", "success")

	h.cookies.setRefreshCookie(w, pair.RefreshToken)
	sendResponse(w, http.StatusOK, "New tokens issued", pair)
}

// logout takes the token from the cookie, falling back to the header.
func (h *UsersHandler) logout(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromCookie(r)
	if token == "" {
		token = refreshTokenFromHeader(r)
	}
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.users.Logout(r.Context(), token); err != nil {
		h.logger.Error(r.Context(), "logout failed", "err", err)
		sendResponse(w, http.StatusInternalServerError, "Logout failed", nil)
		return
	}
	h.metrics.AuthEvent("logout", "success")

	h.cookies.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) sessions(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	list, err := h.users.ListSessions(r.Context(), claims.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "Active sessions fetched", list)
}

func (h *UsersHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "Users fetched", list)
}

func (h *UsersHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendResponse(w, http.StatusNotFound, "User not found", nil)
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "User fetched", user.Public())
}

func (h *UsersHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendResponse(w, http.StatusNotFound, "User not found", nil)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	user, err := h.users.UpdateUser(r.Context(), claims.ID, id, req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "User updated", user.Public())
}

func (h *UsersHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendResponse(w, http.StatusNotFound, "User not found", nil)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	if err := h.users.DeleteUser(r.Context(), claims.ID, id); err != nil {
		writeError(w, err)
		return
	}
	h.cookies.clearRefreshCookie(w)
	sendResponse(w, http.StatusOK, "User deleted", map[string]int{"deleted": 1})
}

// pathID returns the {id} URL parameter when it is a well-formed UUID.
func pathID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

var _ UserService = (*services.UserService)(nil)
