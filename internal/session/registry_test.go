package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"openmarket/backend/internal/session/domain"
	"openmarket/backend/internal/session/repository"
)

type memSessionRepo struct {
	mu         sync.Mutex
	byID       map[string]*domain.Session
	byHash     map[string]*domain.Session
	rotateHook func()
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		byID:   map[string]*domain.Session{},
		byHash: map[string]*domain.Session{},
	}
}

func (r *memSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byID[cp.ID] = &cp
	r.byHash[cp.TokenHash] = &cp
	return nil
}

func (r *memSessionRepo) Rotate(ctx context.Context, currentID string, successor *domain.Session) error {
	if r.rotateHook != nil {
		r.rotateHook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[currentID]
	if !ok || cur.Status != domain.StatusActive {
		return repository.ErrNotActive
	}
	cur.Status = domain.StatusRotated
	cur.SuccessorID = &successor.ID
	cp := *successor
	r.byID[cp.ID] = &cp
	r.byHash[cp.TokenHash] = &cp
	return nil
}

func (r *memSessionRepo) MarkExpired(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.Status != domain.StatusActive {
		return repository.ErrNotActive
	}
	s.Status = domain.StatusExpired
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok && s.Status == domain.StatusActive {
		s.Status = domain.StatusRevoked
	}
	return nil
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.UserID == userID && s.Status == domain.StatusActive {
			s.Status = domain.StatusRevoked
		}
	}
	return nil
}

func (r *memSessionRepo) RevokeLineage(ctx context.Context, rootID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.RootID == rootID && s.Status != domain.StatusRevoked && s.Status != domain.StatusExpired {
			s.Status = domain.StatusRevoked
		}
	}
	return nil
}

func (r *memSessionRepo) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.Status != domain.StatusActive && s.ExpiresAt.Before(cutoff) {
			delete(r.byID, id)
			delete(r.byHash, s.TokenHash)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) get(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func TestRegistryIssueAndFind(t *testing.T) {
	repo := newMemSessionRepo()
	reg := NewRegistry(repo, time.Hour)
	ctx := context.Background()

	issued, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Token == "" {
		t.Fatal("expected plaintext token")
	}
	if issued.Session.RootID != issued.Session.ID {
		t.Fatalf("new lineage root = %q, want own id %q", issued.Session.RootID, issued.Session.ID)
	}
	if issued.Session.TokenHash == issued.Token {
		t.Fatal("stored hash must not equal plaintext token")
	}

	found, err := reg.Find(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.ID != issued.Session.ID {
		t.Fatalf("Find returned session %q, want %q", found.ID, issued.Session.ID)
	}

	if _, err := reg.Find(ctx, "no-such-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("unknown token: got %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRegistryRotateOnce(t *testing.T) {
	repo := newMemSessionRepo()
	reg := NewRegistry(repo, time.Hour)
	ctx := context.Background()

	first, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := reg.Rotate(ctx, first.Token)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if second.Token == first.Token {
		t.Fatal("rotation must issue a distinct token")
	}
	if second.Session.RootID != first.Session.RootID {
		t.Fatalf("successor root = %q, want %q", second.Session.RootID, first.Session.RootID)
	}

	old := repo.get(first.Session.ID)
	if old.Status != domain.StatusRotated {
		t.Fatalf("predecessor status = %q, want rotated", old.Status)
	}
	if old.SuccessorID == nil || *old.SuccessorID != second.Session.ID {
		t.Fatal("predecessor must record its successor")
	}

	// The old token no longer resolves.
	if _, err := reg.Find(ctx, first.Token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("rotated token Find: got %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRegistryReuseRevokesLineage(t *testing.T) {
	repo := newMemSessionRepo()
	reg := NewRegistry(repo, time.Hour)
	ctx := context.Background()

	first, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := reg.Rotate(ctx, first.Token)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	third, err := reg.Rotate(ctx, second.Token)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	// An unrelated lineage for the same user must survive the cascade.
	other, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := reg.Rotate(ctx, first.Token); !errors.Is(err, ErrRefreshTokenReuse) {
		t.Fatalf("reuse: got %v, want ErrRefreshTokenReuse", err)
	}

	if got := repo.get(third.Session.ID).Status; got != domain.StatusRevoked {
		t.Fatalf("lineage tip status = %q, want revoked", got)
	}
	if got := repo.get(second.Session.ID).Status; got != domain.StatusRotated {
		t.Fatalf("already-rotated link status = %q, want rotated", got)
	}
	if got := repo.get(other.Session.ID).Status; got != domain.StatusActive {
		t.Fatalf("unrelated lineage status = %q, want active", got)
	}

	if _, err := reg.Find(ctx, third.Token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("revoked tip Find: got %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRegistryRotateRaceLoserDetectsReuse(t *testing.T) {
	repo := newMemSessionRepo()
	reg := NewRegistry(repo, time.Hour)
	ctx := context.Background()

	first, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Rotate the token underneath the caller after it resolved the session
	// but before its conditional update runs.
	raced := false
	repo.rotateHook = func() {
		if raced {
			return
		}
		raced = true
		repo.mu.Lock()
		repo.byID[first.Session.ID].Status = domain.StatusRotated
		repo.mu.Unlock()
	}

	_, err = reg.Rotate(ctx, first.Token)
	if !errors.Is(err, ErrRefreshTokenReuse) {
		t.Fatalf("race loser: got %v, want ErrRefreshTokenReuse", err)
	}
}

func TestRegistryExpiredTokenRejectedLazily(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(repo, time.Hour).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	issued, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Just before expiry the token still works.
	clock = clock.Add(time.Hour - time.Second)
	if _, err := reg.Find(ctx, issued.Token); err != nil {
		t.Fatalf("Find before expiry: %v", err)
	}

	// Expiry is inclusive.
	clock = clock.Add(time.Second)
	if _, err := reg.Rotate(ctx, issued.Token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expired token: got %v, want ErrInvalidRefreshToken", err)
	}
	if got := repo.get(issued.Session.ID).Status; got != domain.StatusExpired {
		t.Fatalf("status after lazy expiry = %q, want expired", got)
	}

	// Presenting an expired token again is not reuse.
	if _, err := reg.Rotate(ctx, issued.Token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expired token again: got %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRegistryStaleRotatedTokenIsInvalidNotReuse(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(repo, time.Hour).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	first, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clock = clock.Add(30 * time.Minute)
	second, err := reg.Rotate(ctx, first.Token)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	// The predecessor's own lifetime has elapsed; the successor is still live.
	clock = clock.Add(45 * time.Minute)

	if _, err := reg.Rotate(ctx, first.Token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("stale rotated token: got %v, want ErrInvalidRefreshToken", err)
	}
	if got := repo.get(second.Session.ID).Status; got != domain.StatusActive {
		t.Fatalf("live successor after stale replay = %q, want active", got)
	}
	if got := repo.get(first.Session.ID).Status; got != domain.StatusRotated {
		t.Fatalf("stale predecessor = %q, want rotated", got)
	}

	// The successor still rotates normally afterwards.
	if _, err := reg.Rotate(ctx, second.Token); err != nil {
		t.Fatalf("successor Rotate after stale replay: %v", err)
	}
}

func TestRegistryRevoke(t *testing.T) {
	repo := newMemSessionRepo()
	reg := NewRegistry(repo, time.Hour)
	ctx := context.Background()

	issued, err := reg.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sess, err := reg.Revoke(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if sess.Status != domain.StatusRevoked {
		t.Fatalf("status = %q, want revoked", sess.Status)
	}

	// Revoking again is rejected without touching the lineage.
	if _, err := reg.Revoke(ctx, issued.Token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("double revoke: got %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRegistryRevokeAllForUser(t *testing.T) {
	repo := newMemSessionRepo()
	reg := NewRegistry(repo, time.Hour)
	ctx := context.Background()

	a, _ := reg.Issue(ctx, "user-1")
	b, _ := reg.Issue(ctx, "user-1")
	c, _ := reg.Issue(ctx, "user-2")

	if err := reg.RevokeAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if got := repo.get(a.Session.ID).Status; got != domain.StatusRevoked {
		t.Fatalf("session a status = %q, want revoked", got)
	}
	if got := repo.get(b.Session.ID).Status; got != domain.StatusRevoked {
		t.Fatalf("session b status = %q, want revoked", got)
	}
	if got := repo.get(c.Session.ID).Status; got != domain.StatusActive {
		t.Fatalf("other user's session status = %q, want active", got)
	}
}

func TestRegistryPurge(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(repo, time.Hour).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	stale, _ := reg.Issue(ctx, "user-1")
	if _, err := reg.Revoke(ctx, stale.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	live, _ := reg.Issue(ctx, "user-1")

	clock = clock.Add(48 * time.Hour)
	n, err := reg.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d sessions, want 1", n)
	}
	if repo.get(stale.Session.ID) != nil {
		t.Fatal("terminal session should have been purged")
	}
	if repo.get(live.Session.ID) == nil {
		t.Fatal("active session must survive purge")
	}
}
