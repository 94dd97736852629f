package repository

import (
	"context"

	"openmarket/backend/internal/listing/domain"
)

// Repository defines persistence for listings.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	List(ctx context.Context, categoryID string, limit, offset int32) ([]*domain.Listing, error)
	Create(ctx context.Context, l *domain.Listing) error
	Update(ctx context.Context, l *domain.Listing) error
}
