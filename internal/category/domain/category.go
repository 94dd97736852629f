package domain

import (
	"errors"
	"time"
)

// Category is a marketplace listing category.
type Category struct {
	ID        string
	Name      string
	Slug      string // unique, URL-safe
	CreatedAt time.Time
}

// Validate validates the category for persistence.
func (c *Category) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Slug == "" {
		return errors.New("slug is required")
	}
	return nil
}
