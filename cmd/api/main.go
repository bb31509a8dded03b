package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/internal/accounts"
	"papertrade/internal/admin"
	"papertrade/internal/auth"
	"papertrade/internal/config"
	"papertrade/internal/db"
	"papertrade/internal/events"
	"papertrade/internal/health"
	"papertrade/internal/httpserver"
	"papertrade/internal/ledger"
	"papertrade/internal/logger"

	"go.uber.org/zap"
)

func main() {
	startedAt := time.Now()
	configDir := flag.String("config", "", "directory holding an optional config.yml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		// The logger depends on config, so report on stderr.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DBDSN); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		log.Info("database schema up to date")
	}

	store := accounts.NewPostgresStore(pool)
	bus := events.NewBus()

	accountSvc := accounts.NewService(store, log.Named("accounts"))
	ledgerSvc := ledger.NewService(store, bus, log.Named("ledger"))
	adminSvc := admin.NewService(store, bus, admin.Defaults{
		Capital: cfg.DefaultCapital,
		Avatar:  cfg.DefaultAvatar,
	}, log.Named("admin"))
	google := auth.NewGoogleClient(cfg.GoogleUserInfoURL, 10*time.Second)
	authSvc := auth.NewService(store, google, auth.Options{
		Issuer:        cfg.JWTIssuer,
		Secret:        []byte(cfg.JWTSecret),
		TTL:           cfg.JWTTTL,
		GoogleTTL:     cfg.GoogleJWTTTL,
		AllowedEmails: cfg.GoogleAllowedEmails,
	}, log.Named("auth"))

	limiter := httpserver.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	go limiter.Run(ctx)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:     auth.NewHandler(authSvc, log),
		AccountsHandler: accounts.NewHandler(accountSvc, log),
		LedgerHandler:   ledger.NewHandler(ledgerSvc, log),
		AdminHandler:    admin.NewHandler(adminSvc, log),
		HealthHandler:   health.NewHandler(pool, startedAt, log.Named("health")),
		AuthService:     authSvc,
		Store:           store,
		RateLimiter:     limiter,
		WSHandler:       httpserver.NewWSHandler(bus, authSvc, accountSvc, cfg.WebSocketOrigin, log.Named("ws")),
		Logger:          log,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}
