// Package auth provides bearer-token authentication for the API: a token
// service backed by the user store and an echo middleware that resolves
// the per-request principal.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
)

// ErrInvalidCredentials is returned for unknown users and bad passwords
// alike, so login failures don't leak which usernames exist.
var ErrInvalidCredentials = errors.Newf("invalid credentials").
	Component("auth").
	Category(errors.CategoryAuth).
	Build()

// Principal identifies the authenticated caller of one request. It is
// passed explicitly to store calls; there is no ambient session state.
type Principal struct {
	UserID   uint
	Username string
}

// Service issues and validates bearer tokens.
type Service interface {
	Login(username, password string) (token string, principal *Principal, err error)
	Validate(token string) (*Principal, bool)
	Revoke(token string)
}

// TokenService implements Service with server-side tokens held in an
// expiring in-memory cache.
type TokenService struct {
	ds     datastore.Interface
	tokens *gocache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewTokenService creates a token service with the given token lifetime.
func NewTokenService(ds datastore.Interface, ttl time.Duration, logger *slog.Logger) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default().With("service", "auth")
	}
	return &TokenService{
		ds:     ds,
		tokens: gocache.New(ttl, 10*time.Minute),
		ttl:    ttl,
		logger: logger,
	}
}

// Login verifies the credentials and issues a fresh bearer token.
func (s *TokenService) Login(username, password string) (string, *Principal, error) {
	user, err := s.ds.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, datastore.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", nil, err
	}

	principal := &Principal{UserID: user.ID, Username: user.Username}
	s.tokens.Set(token, principal, gocache.DefaultExpiration)
	s.logger.Info("user logged in", "username", username)
	return token, principal, nil
}

// Validate resolves a bearer token to its principal.
func (s *TokenService) Validate(token string) (*Principal, bool) {
	value, found := s.tokens.Get(token)
	if !found {
		return nil, false
	}
	return value.(*Principal), true
}

// Revoke invalidates a token immediately.
func (s *TokenService) Revoke(token string) {
	s.tokens.Delete(token)
}

// generateToken returns a 256-bit random hex token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New(err).
			Component("auth").
			Category(errors.CategoryAuth).
			Context("operation", "generate_token").
			Build()
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword hashes a password for storage, used when seeding users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New(err).
			Component("auth").
			Category(errors.CategoryAuth).
			Context("operation", "hash_password").
			Build()
	}
	return string(hash), nil
}
