package repository

import (
	"context"
	"errors"

	"openmarket/backend/internal/category/domain"
)

// ErrDuplicateSlug is returned by Create when the slug is already taken.
var ErrDuplicateSlug = errors.New("category slug already exists")

// Repository defines persistence for categories.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	Create(ctx context.Context, c *domain.Category) error
}
