package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/valorwell/clinician-portal/internal/api"
	appauth "github.com/valorwell/clinician-portal/internal/auth"
	"github.com/valorwell/clinician-portal/internal/config"
	"github.com/valorwell/clinician-portal/internal/crypto"
	httpserver "github.com/valorwell/clinician-portal/internal/http"
	"github.com/valorwell/clinician-portal/internal/nylas"
	"github.com/valorwell/clinician-portal/internal/scheduler"
	"github.com/valorwell/clinician-portal/internal/store"
	appsync "github.com/valorwell/clinician-portal/internal/sync"
)

func main() {
	log.Println("Starting clinician portal server...")

	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatalf("failed to initialize token encryption: %v", err)
	}

	stor := store.New(pool, encryptor)

	authService, err := appauth.NewService(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	engine := appsync.NewEngine(stor, nylas.NewClient(cfg))
	apiHandler := api.NewHandler(cfg, stor, engine)

	r := httpserver.NewRouter(cfg, stor, authService, apiHandler)

	if cfg.Sync.Schedule != "" {
		sched := scheduler.New(engine, stor.Connections, cfg.Sync.LookbackDays, cfg.Sync.LookaheadDays)
		if err := sched.Start(cfg.Sync.Schedule); err != nil {
			log.Fatalf("failed to start background sync: %v", err)
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
