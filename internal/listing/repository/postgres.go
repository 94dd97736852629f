package repository

import (
	"context"
	"database/sql"
	"errors"

	"openmarket/backend/internal/listing/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a listing repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const listingColumns = `id, seller_id, category_id, title, description, price_cents, currency, status, created_at, updated_at`

// GetByID returns the listing for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// List returns active listings, newest first, optionally filtered by category.
func (r *PostgresRepository) List(ctx context.Context, categoryID string, limit, offset int32) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = 'active'`
	args := []any{}
	if categoryID != "" {
		query += ` AND category_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, categoryID, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Create persists the listing. The listing must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, l *domain.Listing) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listings (id, seller_id, category_id, title, description, price_cents, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.SellerID, l.CategoryID, l.Title, l.Description, l.PriceCents,
		l.Currency, string(l.Status), l.CreatedAt, l.UpdatedAt,
	)
	return err
}

// Update persists the mutable fields of the listing.
func (r *PostgresRepository) Update(ctx context.Context, l *domain.Listing) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET category_id = $2, title = $3, description = $4, price_cents = $5,
		    currency = $6, status = $7, updated_at = $8
		WHERE id = $1`,
		l.ID, l.CategoryID, l.Title, l.Description, l.PriceCents,
		l.Currency, string(l.Status), l.UpdatedAt,
	)
	return err
}

func scanListing(scan func(...any) error) (*domain.Listing, error) {
	var l domain.Listing
	var status string
	err := scan(&l.ID, &l.SellerID, &l.CategoryID, &l.Title, &l.Description,
		&l.PriceCents, &l.Currency, &status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = domain.ListingStatus(status)
	return &l, nil
}
