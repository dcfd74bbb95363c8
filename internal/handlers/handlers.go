package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"spendtrack/internal/auth"
	"spendtrack/internal/config"
	"spendtrack/internal/expenses"
	"spendtrack/internal/models"
	"spendtrack/internal/storage"
	"spendtrack/internal/users"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Context key type to avoid collisions.
type contextKey string

// UserContextKey is the context key for the authenticated user.
const UserContextKey contextKey = "user"

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db          *storage.DB
	users       *users.Service
	expenses    *expenses.Service
	jwtSecret   []byte
	google      *oauth2.Config
	frontendURL string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, cfg *config.Config) *Handlers {
	return &Handlers{
		db:        db,
		users:     users.NewService(db),
		expenses:  expenses.NewService(db),
		jwtSecret: []byte(cfg.JWTSecret),
		google: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"profile", "email"},
			Endpoint:     google.Endpoint,
		},
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps handlers to require a bearer token. The user is
// re-resolved from the store on every request, so tokens for deleted
// accounts stop working before they expire.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeMessage(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		userID, err := auth.ParseToken(token, h.jwtSecret)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := h.db.GetUserByID(userID)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeServiceError maps service errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic failure.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *expenses.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, users.ErrMissingFields):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, expenses.ErrNotOwner):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, expenses.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, users.ErrUserExists):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *Handlers) issueToken(w http.ResponseWriter, status int, user *models.User) {
	token, err := auth.GenerateToken(user.ID, h.jwtSecret, auth.TokenDuration)
	if err != nil {
		log.Printf("Failed to sign token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: user})
}

// Signup registers a password-based account and returns a bearer token.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.SignUp(req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.issueToken(w, http.StatusCreated, user)
}

// Login authenticates with email and password and returns a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Login(req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.issueToken(w, http.StatusOK, user)
}
