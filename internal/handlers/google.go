package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"net/url"

	"spendtrack/internal/auth"
)

const stateCookieName = "oauth_state"

// googleUserInfo is the subset of the userinfo response we consume.
type googleUserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (h *Handlers) loginRedirect(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(reason), http.StatusFound)
}

// GoogleLogin starts the Google OAuth flow. The state nonce is kept in a
// short-lived cookie and checked on callback.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google.ClientID == "" {
		writeMessage(w, http.StatusServiceUnavailable, "google login is not configured")
		return
	}

	state, err := randomState()
	if err != nil {
		log.Printf("Failed to generate oauth state: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback finishes the OAuth flow: it verifies the state nonce,
// exchanges the code, resolves or provisions the account, and hands the
// browser back to the frontend with a token in the query string.
func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.loginRedirect(w, r, "invalid_state")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		h.loginRedirect(w, r, "auth_failed")
		return
	}

	token, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		log.Printf("Google code exchange failed: %v", err)
		h.loginRedirect(w, r, "auth_failed")
		return
	}

	resp, err := h.google.Client(r.Context(), token).Get(userInfoURL)
	if err != nil {
		log.Printf("Google userinfo request failed: %v", err)
		h.loginRedirect(w, r, "auth_failed")
		return
	}
	defer resp.Body.Close()

	var info googleUserInfo
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&info) != nil {
		h.loginRedirect(w, r, "auth_failed")
		return
	}

	user, err := h.users.LoginWithGoogle(info.ID, info.Email, info.Name)
	if err != nil {
		log.Printf("Google login failed: %v", err)
		h.loginRedirect(w, r, "auth_failed")
		return
	}

	jwt, err := auth.GenerateToken(user.ID, h.jwtSecret, auth.TokenDuration)
	if err != nil {
		log.Printf("Failed to sign token: %v", err)
		h.loginRedirect(w, r, "token_failed")
		return
	}

	http.Redirect(w, r, h.frontendURL+"/dashboard?token="+url.QueryEscape(jwt), http.StatusFound)
}
