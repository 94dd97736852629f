package repository

import (
	"context"
	"errors"
	"time"

	"openmarket/backend/internal/session/domain"
)

// ErrNotActive is returned by Rotate and MarkExpired when the conditional
// status update matched no row, i.e. the session was no longer Active at
// write time. Of two concurrent rotations of the same token, exactly one
// observes this error.
var ErrNotActive = errors.New("session is not active")

// Repository defines persistence for refresh sessions. Status transitions are
// enforced here, at the store, so they hold across concurrent processes.
type Repository interface {
	// GetByTokenHash returns the session whose token hash matches, or nil if
	// none. It returns an error only for database failures, not missing rows.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)

	Create(ctx context.Context, s *domain.Session) error

	// Rotate atomically transitions the session currentID from Active to
	// Rotated, records successor.ID as its successor, and inserts successor
	// as a new Active session, all in one transaction. The status update is
	// conditional on the stored status still being Active; if it is not,
	// nothing is written and ErrNotActive is returned.
	Rotate(ctx context.Context, currentID string, successor *domain.Session) error

	// MarkExpired transitions the session from Active to Expired. Returns
	// ErrNotActive if the session was already terminal.
	MarkExpired(ctx context.Context, id string) error

	// Revoke sets the session's status to Revoked. Idempotent: a session that
	// is already terminal is left untouched and no error is returned.
	Revoke(ctx context.Context, id string) error

	// RevokeAllByUser revokes every non-terminal session belonging to userID.
	RevokeAllByUser(ctx context.Context, userID string) error

	// RevokeLineage revokes every session in the lineage rooted at rootID
	// that is not already Revoked or Expired.
	RevokeLineage(ctx context.Context, rootID string) error

	// PurgeTerminalBefore deletes terminal sessions whose expiry is older than
	// cutoff. Returns the number of rows removed. Housekeeping only; never on
	// the request path.
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
