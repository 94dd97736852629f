// worker deletes terminal refresh sessions past their retention grace on a
// fixed interval, keeping the refresh_sessions table from growing unbounded.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openmarket/backend/internal/config"
	"openmarket/backend/internal/db"
	"openmarket/backend/internal/session"
	sessionrepo "openmarket/backend/internal/session/repository"
)

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

	registry := session.NewRegistry(sessionrepo.NewPostgresRepository(database), cfg.RefreshTTL())
	interval := cfg.PurgeIntervalDuration()
	grace := cfg.PurgeGraceDuration()

	log.Printf("session purge worker running every %s (grace %s)", interval, grace)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	purge := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := registry.Purge(ctx, grace)
		if err != nil {
			log.Printf("purge: %v", err)
			return
		}
		if n > 0 {
			log.Printf("purge: removed %d terminal sessions", n)
		}
	}

	purge()
	for {
		select {
		case <-ticker.C:
			purge()
		case <-quit:
			log.Println("session purge worker stopped")
			return
		}
	}
}
