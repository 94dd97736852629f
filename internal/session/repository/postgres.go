package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"openmarket/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, root_id, token_hash, status, successor_id, issued_at, expires_at`

// GetByTokenHash returns the session whose token hash matches, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM refresh_sessions WHERE token_hash = $1`, tokenHash)
	return scanSession(row)
}

// Create persists the session. The session must have ID and RootID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (id, user_id, root_id, token_hash, status, successor_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.RootID, s.TokenHash, string(s.Status), s.SuccessorID, s.IssuedAt, s.ExpiresAt,
	)
	return err
}

// Rotate performs the one-time Active→Rotated transition for currentID and
// inserts successor, in a single transaction. The UPDATE is conditional on
// status = 'active'; when it affects no row the transaction is rolled back
// and ErrNotActive is returned, so a concurrent rotation of the same token
// cannot also succeed.
func (r *PostgresRepository) Rotate(ctx context.Context, currentID string, successor *domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET status = $3, successor_id = $2
		WHERE id = $1 AND status = $4`,
		currentID, successor.ID, string(domain.StatusRotated), string(domain.StatusActive),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotActive
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_sessions (id, user_id, root_id, token_hash, status, successor_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		successor.ID, successor.UserID, successor.RootID, successor.TokenHash,
		string(successor.Status), successor.SuccessorID, successor.IssuedAt, successor.ExpiresAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// MarkExpired transitions the session from Active to Expired. Returns
// ErrNotActive if the session was not Active.
func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET status = $2 WHERE id = $1 AND status = $3`,
		id, string(domain.StatusExpired), string(domain.StatusActive),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotActive
	}
	return nil
}

// Revoke marks the session as revoked. No-op when the session is already
// terminal or does not exist.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET status = $2 WHERE id = $1 AND status = $3`,
		id, string(domain.StatusRevoked), string(domain.StatusActive),
	)
	return err
}

// RevokeAllByUser revokes every active session belonging to userID.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET status = $2 WHERE user_id = $1 AND status = $3`,
		userID, string(domain.StatusRevoked), string(domain.StatusActive),
	)
	return err
}

// RevokeLineage revokes every session in the lineage rooted at rootID that is
// not already Revoked or Expired.
func (r *PostgresRepository) RevokeLineage(ctx context.Context, rootID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET status = $2
		WHERE root_id = $1 AND status NOT IN ($3, $4)`,
		rootID, string(domain.StatusRevoked), string(domain.StatusRevoked), string(domain.StatusExpired),
	)
	return err
}

// PurgeTerminalBefore deletes terminal sessions whose expiry is older than cutoff.
func (r *PostgresRepository) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_sessions
		WHERE status <> $2 AND expires_at < $1`,
		cutoff, string(domain.StatusActive),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	var status string
	var successor sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.RootID, &s.TokenHash, &status, &successor, &s.IssuedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = domain.Status(status)
	if successor.Valid {
		s.SuccessorID = &successor.String
	}
	return &s, nil
}
