// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the admin user (admin@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	categorydomain "openmarket/backend/internal/category/domain"
	categoryrepo "openmarket/backend/internal/category/repository"
	"openmarket/backend/internal/config"
	"openmarket/backend/internal/db"
	"openmarket/backend/internal/security"
	userdomain "openmarket/backend/internal/user/domain"
	userrepo "openmarket/backend/internal/user/repository"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Adm1nPassw0rd!"
)

var seedCategories = []struct{ name, slug string }{
	{"Electronics", "electronics"},
	{"Furniture", "furniture"},
	{"Books", "books"},
	{"Clothing", "clothing"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(database)

	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", adminEmail)
		return
	}

	hashed, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(adminPassword))
	if err != nil {
		log.Fatalf("seed: hash: %v", err)
	}
	now := time.Now().UTC()
	admin := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        adminEmail,
		PasswordHash: hashed,
		Name:         "Admin",
		Role:         userdomain.RoleAdmin,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("seed: create admin: %v", err)
	}
	log.Printf("seed: created admin user %s", adminEmail)

	categories := categoryrepo.NewPostgresRepository(database)
	for _, c := range seedCategories {
		err := categories.Create(ctx, &categorydomain.Category{
			ID:        uuid.New().String(),
			Name:      c.name,
			Slug:      c.slug,
			CreatedAt: now,
		})
		if err != nil {
			log.Fatalf("seed: create category %s: %v", c.slug, err)
		}
	}
	log.Printf("seed: created %d categories", len(seedCategories))
}
