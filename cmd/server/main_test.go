package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"spendtrack/internal/config"
	"spendtrack/internal/handlers"
	"spendtrack/internal/models"
	"spendtrack/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *http.ServeMux {
	t.Helper()

	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		JWTSecret:   "test-secret",
		FrontendURL: "http://localhost:3000",
	}
	return setupRouter(handlers.NewHandlers(db, cfg))
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func signup(t *testing.T, mux *http.ServeMux, username, email, password string) authResponse {
	t.Helper()

	w := doRequest(t, mux, "POST", "/signup", "", map[string]string{
		"username": username, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, w.Code, "signup failed: %s", w.Body.String())

	var resp authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.User.ID)
	return resp
}

func TestAuthEndpoints(t *testing.T) {
	mux := newTestRouter(t)

	created := signup(t, mux, "alice", "a@x.com", "secret")

	// Duplicate signup conflicts
	w := doRequest(t, mux, "POST", "/signup", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Login with the same password returns a token for the same user
	w = doRequest(t, mux, "POST", "/login", "", map[string]string{
		"email": "a@x.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var login authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, created.User.ID, login.User.ID)

	// Wrong password is rejected
	w = doRequest(t, mux, "POST", "/login", "", map[string]string{
		"email": "a@x.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpenseEndpointsRequireToken(t *testing.T) {
	mux := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/expenses"},
		{"POST", "/expenses"},
		{"PUT", "/expenses/some-id"},
		{"DELETE", "/expenses/some-id"},
		{"GET", "/expenses/stats"},
	}
	for _, tt := range tests {
		w := doRequest(t, mux, tt.method, tt.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s without token", tt.method, tt.path)

		w = doRequest(t, mux, tt.method, tt.path, "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s with garbage token", tt.method, tt.path)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	mux := newTestRouter(t)

	alice := signup(t, mux, "alice", "a@x.com", "secret")
	bob := signup(t, mux, "bob", "b@x.com", "hunter2")

	// Alice records a coffee
	w := doRequest(t, mux, "POST", "/expenses", alice.Token, map[string]any{
		"title": "Coffee", "amount": 4.5, "category": "Food", "date": "2024-01-05",
	})
	require.Equal(t, http.StatusCreated, w.Code, "create failed: %s", w.Body.String())

	var coffee models.Expense
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &coffee))
	assert.NotEmpty(t, coffee.ID)
	assert.Equal(t, alice.User.ID, coffee.UserID)
	assert.True(t, coffee.Amount.Equal(decimal.RequireFromString("4.5")))

	// Alice sees exactly that one record
	w = doRequest(t, mux, "GET", "/expenses", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Expense
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Coffee", list[0].Title)

	// Bob sees nothing
	w = doRequest(t, mux, "GET", "/expenses", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bobList []models.Expense
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bobList))
	assert.Empty(t, bobList)

	// Bob may not touch alice's expense
	w = doRequest(t, mux, "DELETE", "/expenses/"+coffee.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doRequest(t, mux, "PUT", "/expenses/"+coffee.ID, bob.Token, map[string]any{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Partial update: only the amount changes
	w = doRequest(t, mux, "PUT", "/expenses/"+coffee.ID, alice.Token, map[string]any{"amount": 75})
	require.Equal(t, http.StatusOK, w.Code, "update failed: %s", w.Body.String())
	var updated models.Expense
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("75")))
	assert.Equal(t, "Coffee", updated.Title)
	assert.Equal(t, "Food", updated.Category)

	// Monthly stats cover the updated amount
	w = doRequest(t, mux, "GET", "/expenses/stats?year=2024&month=1", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Total      decimal.Decimal `json:"total"`
		Categories []struct {
			Category string `json:"category"`
			Count    int    `json:"count"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.True(t, stats.Total.Equal(decimal.RequireFromString("75")))
	require.Len(t, stats.Categories, 1)
	assert.Equal(t, "Food", stats.Categories[0].Category)

	// Unknown expense id is NotFound, distinct from the ownership failure
	w = doRequest(t, mux, "DELETE", "/expenses/missing", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Alice deletes her expense; the second delete is NotFound
	w = doRequest(t, mux, "DELETE", "/expenses/"+coffee.ID, alice.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, mux, "DELETE", "/expenses/"+coffee.ID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Her list is empty again
	w = doRequest(t, mux, "GET", "/expenses", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestCreateExpense_Validation(t *testing.T) {
	mux := newTestRouter(t)
	alice := signup(t, mux, "alice", "a@x.com", "secret")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"amount": 4.5, "category": "Food", "date": "2024-01-05"}},
		{"missing amount", map[string]any{"title": "Coffee", "category": "Food", "date": "2024-01-05"}},
		{"missing category", map[string]any{"title": "Coffee", "amount": 4.5, "date": "2024-01-05"}},
		{"missing date", map[string]any{"title": "Coffee", "amount": 4.5, "category": "Food"}},
		{"bad date", map[string]any{"title": "Coffee", "amount": 4.5, "category": "Food", "date": "05/01/2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, mux, "POST", "/expenses", alice.Token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["message"])
		})
	}
}

func TestGoogleLoginUnconfigured(t *testing.T) {
	mux := newTestRouter(t)

	w := doRequest(t, mux, "GET", "/auth/google", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
