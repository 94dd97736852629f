package domain

import (
	"errors"
	"time"
)

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusRemoved ListingStatus = "removed"
)

// Listing is a marketplace item offered by a seller.
type Listing struct {
	ID          string
	SellerID    string
	CategoryID  string
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	Status      ListingStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate validates the listing for persistence.
func (l *Listing) Validate() error {
	if l.SellerID == "" {
		return errors.New("seller is required")
	}
	if l.CategoryID == "" {
		return errors.New("category is required")
	}
	if l.Title == "" {
		return errors.New("title is required")
	}
	if l.PriceCents < 0 {
		return errors.New("price must not be negative")
	}
	if l.Currency == "" {
		l.Currency = "USD"
	}
	if l.Status == "" {
		l.Status = ListingStatusActive
	}
	return nil
}
