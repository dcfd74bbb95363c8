// Package users implements account registration and authentication on top
// of the storage layer.
package users

import (
	"errors"
	"fmt"
	"strings"

	"spendtrack/internal/auth"
	"spendtrack/internal/models"
	"spendtrack/internal/storage"
)

var (
	// ErrUserExists is returned when the username, email or google id is
	// already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned on any login failure. It never
	// distinguishes unknown email from wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMissingFields is returned when a signup field is absent.
	ErrMissingFields = errors.New("username, email and password are required")
)

// Service implements signup, login and Google account provisioning.
type Service struct {
	db *storage.DB
}

// NewService creates a users service backed by db.
func NewService(db *storage.DB) *Service {
	return &Service{db: db}
}

// SignUp registers a new password-based account.
func (s *Service) SignUp(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.db.CreateUser(&models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a password-based account by email.
func (s *Service) Login(email, password string) (*models.User, error) {
	user, err := s.db.GetUserByEmail(strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Google-only accounts have no password hash and cannot log in here.
	if user.PasswordHash == "" || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// LoginWithGoogle resolves a Google identity to an account, provisioning one
// on first sight. A previously-seen google id always wins; an email collision
// with an existing non-Google account is a conflict.
func (s *Service) LoginWithGoogle(googleID, email, name string) (*models.User, error) {
	if googleID == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.db.GetUserByGoogleID(googleID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err = s.db.CreateUser(&models.User{
		Username: name,
		Email:    email,
		GoogleID: googleID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	return user, nil
}
