package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"openmarket/backend/internal/security"
	"openmarket/backend/internal/session/domain"
	"openmarket/backend/internal/session/repository"
)

// Sentinel errors for the session registry; callers map them to their own taxonomy.
var (
	// ErrInvalidRefreshToken covers unknown, expired, and terminal tokens alike,
	// so callers cannot distinguish a guessed token from a stale one.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrRefreshTokenReuse is returned when a rotated or revoked token is
	// presented again. By the time it is returned the whole lineage has been
	// revoked.
	ErrRefreshTokenReuse = errors.New("refresh token reuse detected; lineage revoked")
)

// Repo is the minimal session repository needed by the registry.
type Repo interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Rotate(ctx context.Context, currentID string, successor *domain.Session) error
	MarkExpired(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	RevokeLineage(ctx context.Context, rootID string) error
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Issued is a freshly minted refresh token together with its session record.
// Token is the plaintext value handed to the client; it is never stored.
type Issued struct {
	Token   string
	Session *domain.Session
}

// Registry manages the lifecycle of opaque refresh tokens: issuing, one-time
// rotation, reuse detection with lineage revocation, and expiry.
type Registry struct {
	repo       Repo
	refreshTTL time.Duration
	now        func() time.Time
}

// NewRegistry returns a Registry issuing tokens valid for refreshTTL.
func NewRegistry(repo Repo, refreshTTL time.Duration) *Registry {
	return &Registry{
		repo:       repo,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the registry's time source. Intended for tests.
func (g *Registry) WithClock(now func() time.Time) *Registry {
	g.now = now
	return g
}

// Issue creates a new session lineage for userID and returns the plaintext
// refresh token. The new session is its own lineage root.
func (g *Registry) Issue(ctx context.Context, userID string) (*Issued, error) {
	token, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := g.now().UTC()
	id := uuid.New().String()
	sess := &domain.Session{
		ID:        id,
		UserID:    userID,
		RootID:    id,
		TokenHash: security.HashRefreshToken(token),
		Status:    domain.StatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.refreshTTL),
	}
	if err := g.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &Issued{Token: token, Session: sess}, nil
}

// Rotate exchanges the presented token for a successor in the same lineage.
// The presented token transitions Active→Rotated exactly once; a second
// presentation is treated as reuse and revokes the entire lineage. Expiry
// takes precedence over reuse: a token past its lifetime is rejected as
// invalid without touching the rest of the lineage.
func (g *Registry) Rotate(ctx context.Context, token string) (*Issued, error) {
	sess, err := g.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	// Expiry is checked before the status branch: a token past its own
	// lifetime is merely stale, never reuse, so replaying it must not
	// cascade onto a live successor.
	if sess.ExpiredBy(g.now().UTC()) {
		if err := g.repo.MarkExpired(ctx, sess.ID); err != nil && !errors.Is(err, repository.ErrNotActive) {
			return nil, err
		}
		return nil, ErrInvalidRefreshToken
	}

	switch sess.Status {
	case domain.StatusActive:
		// fall through to rotation below
	case domain.StatusRotated, domain.StatusRevoked:
		if err := g.repo.RevokeLineage(ctx, sess.RootID); err != nil {
			return nil, err
		}
		return nil, ErrRefreshTokenReuse
	default:
		return nil, ErrInvalidRefreshToken
	}

	newToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := g.now().UTC()
	successor := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    sess.UserID,
		RootID:    sess.RootID,
		TokenHash: security.HashRefreshToken(newToken),
		Status:    domain.StatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.refreshTTL),
	}
	if err := g.repo.Rotate(ctx, sess.ID, successor); err != nil {
		if errors.Is(err, repository.ErrNotActive) {
			// Lost the race to a concurrent rotation of the same token.
			// The winner already rotated it, so this presentation is reuse.
			if err := g.repo.RevokeLineage(ctx, sess.RootID); err != nil {
				return nil, err
			}
			return nil, ErrRefreshTokenReuse
		}
		return nil, err
	}
	return &Issued{Token: newToken, Session: successor}, nil
}

// Find resolves the presented token to its Active session. Expired sessions
// are marked Expired and rejected; terminal sessions are rejected without the
// reuse side effects of Rotate.
func (g *Registry) Find(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := g.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, ErrInvalidRefreshToken
	}
	if sess.ExpiredBy(g.now().UTC()) {
		if err := g.repo.MarkExpired(ctx, sess.ID); err != nil && !errors.Is(err, repository.ErrNotActive) {
			return nil, err
		}
		return nil, ErrInvalidRefreshToken
	}
	return sess, nil
}

// Revoke marks the session for the presented token as Revoked. The operation
// is idempotent: tokens that are unknown or already terminal return
// ErrInvalidRefreshToken without side effects.
func (g *Registry) Revoke(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := g.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := g.repo.Revoke(ctx, sess.ID); err != nil {
		return nil, err
	}
	sess.Status = domain.StatusRevoked
	return sess, nil
}

// RevokeAllForUser revokes every active session belonging to userID.
func (g *Registry) RevokeAllForUser(ctx context.Context, userID string) error {
	return g.repo.RevokeAllByUser(ctx, userID)
}

// Purge deletes terminal sessions that expired more than grace ago and
// returns the number removed.
func (g *Registry) Purge(ctx context.Context, grace time.Duration) (int64, error) {
	return g.repo.PurgeTerminalBefore(ctx, g.now().UTC().Add(-grace))
}

func (g *Registry) lookup(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := g.repo.GetByTokenHash(ctx, security.HashRefreshToken(token))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidRefreshToken
	}
	if !security.RefreshTokenHashEqual(token, sess.TokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	return sess, nil
}
