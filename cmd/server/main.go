package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auditlog "openmarket/backend/internal/audit"
	audithandler "openmarket/backend/internal/audit/handler"
	auditrepo "openmarket/backend/internal/audit/repository"
	authhandler "openmarket/backend/internal/auth/handler"
	authservice "openmarket/backend/internal/auth/service"
	categoryhandler "openmarket/backend/internal/category/handler"
	categoryrepo "openmarket/backend/internal/category/repository"
	"openmarket/backend/internal/config"
	"openmarket/backend/internal/db"
	listinghandler "openmarket/backend/internal/listing/handler"
	listingrepo "openmarket/backend/internal/listing/repository"
	"openmarket/backend/internal/security"
	"openmarket/backend/internal/server"
	"openmarket/backend/internal/server/middleware"
	"openmarket/backend/internal/session"
	sessionrepo "openmarket/backend/internal/session/repository"
	telemetryotel "openmarket/backend/internal/telemetry/otel"
	userhandler "openmarket/backend/internal/user/handler"
	userrepo "openmarket/backend/internal/user/repository"
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

	privPEM, err := security.LoadPEM(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pubPEM, err := security.LoadPEM(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	signer, err := security.ParsePrivateKey(string(privPEM))
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	verifyKey, err := security.ParsePublicKey(string(pubPEM))
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	alg := security.KeyAlg(verifyKey)
	if alg == "" {
		log.Fatal("jwt public key: unsupported key type")
	}
	tokens := security.NewTokenProvider(signer, verifyKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	log.Printf("access tokens signed with %s, ttl %s", alg, cfg.AccessTTL())

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "openmarket-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	registry := session.NewRegistry(sessionrepo.NewPostgresRepository(database), cfg.RefreshTTL())
	auditStore := auditrepo.NewPostgresRepository(database)
	categoryStore := categoryrepo.NewPostgresRepository(database)
	auditLogger := auditlog.NewLogger(auditStore, middleware.GetClientIP)
	users := userrepo.NewPostgresRepository(database)
	authSvc := authservice.NewAuthService(
		users,
		registry,
		security.NewHasher(cfg.BcryptCost),
		tokens,
		auditLogger,
		cfg.StoreTimeoutDuration(),
	)

	router := server.NewRouter(server.Deps{
		Tokens:     tokens,
		Auth:       authhandler.NewAuthHandler(authSvc),
		Categories: categoryhandler.NewCategoryHandler(categoryStore),
		Listings:   listinghandler.NewListingHandler(listingrepo.NewPostgresRepository(database), categoryStore),
		Users:      userhandler.NewUserHandler(users),
		Audit:      audithandler.NewAuditHandler(auditStore),
		Meter:      providers.MeterProvider.Meter("openmarket.http"),
		Emitter:    telemetryotel.NewEventEmitter(providers.LoggerProvider),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
