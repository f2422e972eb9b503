package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/routecore/platform/internal/api"
	"github.com/routecore/platform/internal/audit"
	"github.com/routecore/platform/internal/config"
	"github.com/routecore/platform/internal/invite"
	"github.com/routecore/platform/internal/logging"
	"github.com/routecore/platform/internal/login"
	"github.com/routecore/platform/internal/notify"
	"github.com/routecore/platform/internal/optimizer"
	"github.com/routecore/platform/internal/ratelimit"
	"github.com/routecore/platform/internal/refresh"
	"github.com/routecore/platform/internal/security"
	"github.com/routecore/platform/internal/storage"
	"github.com/routecore/platform/internal/tokens"
	"golang.org/x/time/rate"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Logger isn't configured yet; this is the one place a bare
		// stderr write is appropriate.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.Setup(cfg.Env, "api")
	log.Info("application_startup", "env", cfg.Env)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.Env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	}

	ctx := context.Background()
	pool, err := storage.NewPool(ctx, storage.PoolConfig{
		DSN:               cfg.DatabaseURL,
		MaxConns:          cfg.DBPoolMax,
		IdleTimeout:       cfg.DBPoolIdleTimeout,
		ConnectionTimeout: cfg.DBPoolConnectionTimeout,
	})
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	if err := storage.EnsureRLSRole(ctx, pool); err != nil {
		log.Error("rls_role_bootstrap_failed", "error", err)
		os.Exit(1)
	}

	hasher := security.NewBcryptHasherWithCost(cfg.BcryptCost)
	tokenProvider := tokens.NewProvider(cfg.JWTSecret, cfg.JWTExpiration)
	refreshSvc := refresh.NewService(hasher, time.Duration(cfg.RefreshTokenExpirationDays)*24*time.Hour)
	loginSvc := login.NewService(pool, hasher, tokenProvider, refreshSvc)

	var mailer notify.EmailSender = notify.NewDevMailer(log)
	inviteSvc := invite.NewService(pool, hasher)

	auditLogger := audit.NewDBLogger(pool, log)

	optimizerClient := optimizer.NewClient(cfg.VroomURL, cfg.OSRMURL)

	authLimiter := ratelimit.NewIPLimiter(rate.Limit(5), 10)

	sameSite := http.SameSiteLaxMode
	switch cfg.CookieSameSite {
	case "none":
		sameSite = http.SameSiteNoneMode
	case "strict":
		sameSite = http.SameSiteStrictMode
	}
	cookies := api.CookieConfig{
		Domain:          cfg.CookieDomain,
		SameSite:        sameSite,
		Secure:          cfg.Env == "production",
		AccessTokenTTL:  cfg.JWTExpiration,
		RefreshTokenTTL: time.Duration(cfg.RefreshTokenExpirationDays) * 24 * time.Hour,
	}

	server := api.NewServer(api.Deps{
		Pool:        pool,
		Tokens:      tokenProvider,
		Login:       loginSvc,
		Refresh:     refreshSvc,
		Invite:      inviteSvc,
		Optimizer:   optimizerClient,
		Audit:       auditLogger,
		Mailer:      mailer,
		Cookies:     cookies,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			_ = srv.Close()
		}
		log.Info("server_shutdown_complete")
	}
}
