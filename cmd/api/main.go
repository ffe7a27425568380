package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursegate.dev/internal/access"
	"coursegate.dev/internal/config"
	"coursegate.dev/internal/httpapi"
	"coursegate.dev/internal/obs"
	"coursegate.dev/internal/sales"
	"coursegate.dev/internal/store/pg"
	"coursegate.dev/internal/stream"
	"coursegate.dev/internal/verify"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Attempt log is optional; without a DSN decisions stay in the logs only.
	var (
		store    *pg.Store
		attempts httpapi.AttemptStore
		probe    httpapi.ReadyProbe
	)
	if cfg.PostgresDSN != "" {
		store, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("ensure schema: %v", err)
		}
		cancel()
		attempts = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	}

	client := sales.New(sales.Config{
		ClientID:     cfg.Sales.ClientID,
		ClientSecret: cfg.Sales.ClientSecret,
		AccountID:    cfg.Sales.AccountID,
		TokenURL:     cfg.Sales.TokenURL,
		BaseURL:      cfg.Sales.BaseURL,
		Timeout:      cfg.Sales.Timeout,
	})
	verifier := verify.New(client)

	issuer, err := access.NewTokenIssuer(cfg.Gate.TokenSecret, cfg.Gate.TokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	api := httpapi.New(probe, version, verifier, issuer,
		httpapi.Gate{PasswordHash: cfg.Gate.PasswordHash, AdminToken: cfg.Gate.AdminToken},
		attempts, stream.New(), cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	log.Printf("Starting coursegate-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
