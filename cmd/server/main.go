package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/config"
	"github.com/location-tracker/app/internal/database"
	"github.com/location-tracker/app/internal/handlers"
	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with an error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.InitDB(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	users := database.NewUserStore(db)
	locations := database.NewLocationStore(db)

	admin, created, err := database.EnsureAdmin(ctx, users, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return err
	}
	if created {
		logging.Info().Str("email", admin.Email).Msg("Created administrator account")
		if cfg.UsesDefaultAdminPassword() {
			logging.Warn().Str("email", admin.Email).Msg("Administrator uses the default password; set ADMIN_PASSWORD")
		}
	}

	factory, err := auth.NewSessionStoreFactory(cfg.Session)
	if err != nil {
		return err
	}
	defer func() {
		if err := factory.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	authService := auth.NewService(users, factory.CreateStore(), cfg.Session.TTL)
	authMiddleware := auth.NewMiddleware(authService, cfg.Session)

	templates, err := handlers.LoadTemplates(authMiddleware.Flash())
	if err != nil {
		return err
	}

	h := handlers.New(users, locations, authService, authMiddleware, templates, db)
	router := handlers.NewRouter(h, handlers.RouterConfig{
		LoginRateLimit:    cfg.Security.LoginRateLimit,
		LoginRateWindow:   cfg.Security.LoginRateWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
		CookieSecure:      cfg.Session.CookieSecure,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(supervisor.NewSessionJanitor(authService, cfg.Session.CleanupInterval))

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Str("session_store", cfg.Session.Store).
		Msg("Server starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("Server stopped")
	return nil
}
