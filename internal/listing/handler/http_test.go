package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	categorydomain "openmarket/backend/internal/category/domain"
	"openmarket/backend/internal/listing/domain"
	"openmarket/backend/internal/server/middleware"
)

type memCategoryRepo struct {
	mu         sync.Mutex
	categories map[string]*categorydomain.Category
}

func newMemCategoryRepo(ids ...string) *memCategoryRepo {
	r := &memCategoryRepo{categories: make(map[string]*categorydomain.Category)}
	for _, id := range ids {
		r.categories[id] = &categorydomain.Category{ID: id, Name: id, Slug: id, CreatedAt: time.Now().UTC()}
	}
	return r
}

func (r *memCategoryRepo) GetByID(ctx context.Context, id string) (*categorydomain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCategoryRepo) GetBySlug(ctx context.Context, slug string) (*categorydomain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCategoryRepo) List(ctx context.Context) ([]*categorydomain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*categorydomain.Category
	for _, c := range r.categories {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memCategoryRepo) Create(ctx context.Context, c *categorydomain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.categories[c.ID] = &cp
	return nil
}

type memListingRepo struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
}

func newMemListingRepo() *memListingRepo {
	return &memListingRepo{listings: make(map[string]*domain.Listing)}
}

func (r *memListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *memListingRepo) List(ctx context.Context, categoryID string, limit, offset int32) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Listing
	for _, l := range r.listings {
		if l.Status != domain.ListingStatusActive {
			continue
		}
		if categoryID != "" && l.CategoryID != categoryID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.listings[l.ID] = &cp
	return nil
}

func (r *memListingRepo) Update(ctx context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.listings[l.ID] = &cp
	return nil
}

// identityAs injects an authenticated identity the way the token middleware
// would after verifying an access token.
func identityAs(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), userID, role)))
		})
	}
}

func newListingRouter(repo *memListingRepo, userID, role string) http.Handler {
	h := NewListingHandler(repo, newMemCategoryRepo("cat-1", "cat-2"))
	r := chi.NewRouter()
	h.Mount(r)
	r.Group(func(r chi.Router) {
		if userID != "" {
			r.Use(identityAs(userID, role))
		}
		h.MountProtected(r)
	})
	return r
}

func doListingJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedListing(t *testing.T, repo *memListingRepo, sellerID string) *domain.Listing {
	t.Helper()
	now := time.Now().UTC()
	l := &domain.Listing{
		ID:         "listing-1",
		SellerID:   sellerID,
		CategoryID: "cat-1",
		Title:      "Walnut desk",
		PriceCents: 25000,
		Currency:   "USD",
		Status:     domain.ListingStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return l
}

func TestCreateAndGetListing(t *testing.T) {
	repo := newMemListingRepo()
	router := newListingRouter(repo, "seller-1", "user")

	rec := doListingJSON(t, router, http.MethodPost, "/listings", map[string]any{
		"categoryId": "cat-1", "title": "Walnut desk", "priceCents": 25000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created listingView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SellerID != "seller-1" {
		t.Errorf("sellerId = %q, want seller-1", created.SellerID)
	}
	if created.Currency != "USD" {
		t.Errorf("currency = %q, want default USD", created.Currency)
	}

	rec = doListingJSON(t, router, http.MethodGet, "/listings/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestListingValidation(t *testing.T) {
	repo := newMemListingRepo()
	router := newListingRouter(repo, "seller-1", "user")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"categoryId": "cat-1", "priceCents": 100}},
		{"missing category", map[string]any{"title": "Desk", "priceCents": 100}},
		{"negative price", map[string]any{"categoryId": "cat-1", "title": "Desk", "priceCents": -1}},
		{"unknown category", map[string]any{"categoryId": "cat-9", "title": "Desk", "priceCents": 100}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doListingJSON(t, router, http.MethodPost, "/listings", c.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListingOwnerOnlyWrites(t *testing.T) {
	repo := newMemListingRepo()
	seedListing(t, repo, "seller-1")

	other := newListingRouter(repo, "seller-2", "user")
	rec := doListingJSON(t, other, http.MethodPut, "/listings/listing-1", map[string]any{"title": "Hijacked"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner update status = %d, want 403", rec.Code)
	}

	admin := newListingRouter(repo, "admin-1", "admin")
	rec = doListingJSON(t, admin, http.MethodPut, "/listings/listing-1", map[string]any{"title": "Moderated title"})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin update status = %d, body %s", rec.Code, rec.Body.String())
	}

	owner := newListingRouter(repo, "seller-1", "user")
	rec = doListingJSON(t, owner, http.MethodPut, "/listings/listing-1", map[string]any{"status": "sold"})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner update status = %d", rec.Code)
	}
	var updated listingView
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if updated.Status != "sold" {
		t.Errorf("status = %q, want sold", updated.Status)
	}
}

func TestDeleteListingSoftRemoves(t *testing.T) {
	repo := newMemListingRepo()
	seedListing(t, repo, "seller-1")
	router := newListingRouter(repo, "seller-1", "user")

	rec := doListingJSON(t, router, http.MethodDelete, "/listings/listing-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doListingJSON(t, router, http.MethodGet, "/listings/listing-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}

	stored, err := repo.GetByID(context.Background(), "listing-1")
	if err != nil {
		t.Fatalf("repo GetByID: %v", err)
	}
	if stored == nil || stored.Status != domain.ListingStatusRemoved {
		t.Errorf("stored status = %v, want removed row kept", stored)
	}
}

func TestListListingsFiltersByCategory(t *testing.T) {
	repo := newMemListingRepo()
	now := time.Now().UTC()
	for _, l := range []*domain.Listing{
		{ID: "l1", SellerID: "s1", CategoryID: "cat-1", Title: "Desk", PriceCents: 100, Currency: "USD", Status: domain.ListingStatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "l2", SellerID: "s1", CategoryID: "cat-2", Title: "Lamp", PriceCents: 100, Currency: "USD", Status: domain.ListingStatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "l3", SellerID: "s1", CategoryID: "cat-1", Title: "Chair", PriceCents: 100, Currency: "USD", Status: domain.ListingStatusRemoved, CreatedAt: now, UpdatedAt: now},
	} {
		if err := repo.Create(context.Background(), l); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	router := newListingRouter(repo, "", "")

	rec := doListingJSON(t, router, http.MethodGet, "/listings?category=cat-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var body struct {
		Listings []listingView `json:"listings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(body.Listings) != 1 || body.Listings[0].ID != "l1" {
		t.Errorf("listings = %+v, want only l1", body.Listings)
	}
}

func TestProtectedListingRoutesRequireIdentity(t *testing.T) {
	repo := newMemListingRepo()
	seedListing(t, repo, "seller-1")
	router := newListingRouter(repo, "", "")

	rec := doListingJSON(t, router, http.MethodPost, "/listings", map[string]any{
		"categoryId": "cat-1", "title": "Desk", "priceCents": 100,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("create without identity status = %d, want 401", rec.Code)
	}

	rec = doListingJSON(t, router, http.MethodDelete, "/listings/listing-1", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("delete without identity status = %d, want 401", rec.Code)
	}
}
