// Package session issues and verifies player sessions. A session row lives in
// the sessions repository and the player holds a signed token naming it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/server/auth"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/repositories/sessions"
)

// DefaultTTL is how long a session stays valid after login.
const DefaultTTL = 14 * 24 * time.Hour

// Handle is what a successful login hands back to the player.
type Handle struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

type Manager struct {
	repo   sessions.Repository
	secret []byte
	ttl    time.Duration
	newID  func() string
}

func NewManager(repo sessions.Repository, secret []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		repo:   repo,
		secret: secret,
		ttl:    ttl,
		newID:  func() string { return uuid.NewString() },
	}
}

// Start records a new session for the user, replacing any previous one.
// repo is the repository to write through, normally bound to the login
// transaction; nil uses the manager's own.
func (m *Manager) Start(ctx context.Context, repo sessions.Repository, userID, empireID int64, now time.Time) (*Handle, error) {
	if repo == nil {
		repo = m.repo
	}
	s := models.Session{
		ID:        m.newID(),
		UserID:    userID,
		EmpireID:  empireID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	token, err := auth.GenerateToken(s.ID, userID, empireID, m.secret, s.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	if err := repo.Upsert(ctx, s); err != nil {
		return nil, err
	}
	return &Handle{ID: s.ID, Token: token, ExpiresAt: s.ExpiresAt}, nil
}

// Authenticate resolves a token to its live session.
func (m *Manager) Authenticate(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	claims, err := auth.ParseToken(token, m.secret, now)
	if err != nil {
		return nil, err
	}
	s, err := m.repo.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !now.Before(s.ExpiresAt) {
		return nil, common.ErrTokenExpired
	}
	return s, nil
}

func (m *Manager) Destroy(ctx context.Context, id string) error {
	return m.repo.Delete(ctx, id)
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Current returns the session attached to ctx, if any.
func Current(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*models.Session)
	return s, ok && s != nil
}
