package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ledger/internal/core"
	"ledger/internal/log"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEmailTaken         = errors.New("email already exists")
)

type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, name string) (core.User, error)
	UserByEmail(ctx context.Context, email string) (core.User, string, error)
	CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	SessionUser(ctx context.Context, token string, now time.Time) (core.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Session is an opaque bearer token and its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AuthService struct {
	store  UserStore
	clock  Clock
	ttl    time.Duration
	cost   int
	logger *log.Logger
}

func NewAuthService(store UserStore, clock Clock, ttl time.Duration) *AuthService {
	if clock == nil {
		clock = SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		store:  store,
		clock:  clock,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		logger: log.WithComponent(log.ComponentAuth),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates the user and opens a first session.
func (s *AuthService) Signup(ctx context.Context, email, password, name string) (core.User, Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, Session{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.store.CreateUser(ctx, normalizeEmail(email), string(hash), strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.User{}, Session{}, ErrEmailTaken
		}
		return core.User{}, Session{}, err
	}

	sess, err := s.openSession(ctx, u.ID)
	if err != nil {
		return core.User{}, Session{}, err
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, u.ID)
	return u, sess, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, Session, error) {
	u, hash, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, Session{}, ErrInvalidCredentials
		}
		return core.User{}, Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return core.User{}, Session{}, ErrInvalidCredentials
	}

	sess, err := s.openSession(ctx, u.ID)
	if err != nil {
		return core.User{}, Session{}, err
	}
	return u, sess, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, ErrUnauthorized
	}
	u, err := s.store.SessionUser(ctx, token, s.clock.Now())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, ErrUnauthorized
		}
		return core.User{}, err
	}
	return u, nil
}

// PurgeExpired drops sessions that are past their expiry.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.clock.Now())
}

func (s *AuthService) openSession(ctx context.Context, userID string) (Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("generate session token: %w", err)
	}
	sess := Session{
		Token:     hex.EncodeToString(buf),
		ExpiresAt: s.clock.Now().Add(s.ttl).UTC(),
	}
	if err := s.store.CreateSession(ctx, sess.Token, userID, sess.ExpiresAt); err != nil {
		return Session{}, err
	}
	return sess, nil
}
