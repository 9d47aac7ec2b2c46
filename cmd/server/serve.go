package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/urfave/cli/v3"

	"github.com/ayush/bookshelf/backend/internal/auth"
	"github.com/ayush/bookshelf/backend/internal/books"
	"github.com/ayush/bookshelf/backend/internal/config"
	"github.com/ayush/bookshelf/backend/internal/logging"
	"github.com/ayush/bookshelf/backend/internal/middleware"
	"github.com/ayush/bookshelf/backend/internal/shelf"
)

const (
	sweepInterval = 5 * time.Minute
	stateIdleTTL  = 30 * time.Minute
)

func setup(cmd *cli.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(os.Stderr, cfg.LogLevel), nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	db, closeDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema up to date", "driver", cfg.DatabaseDriver)
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	authSvc := auth.NewService(d.db, d.names, auth.NewSessionStore(d.rdb), cfg.SessionSecret)

	registry := shelf.NewRegistry(shelf.Options{StayOnFailedDelete: cfg.StayOnFailedDelete}, logger.With("component", "shelf"))
	go registry.RunSweeper(ctx, sweepInterval, stateIdleTTL)

	client := &shelf.Client{
		Books:  d.db,
		Names:  d.names,
		Covers: d.covers,
		Auth:   authSvc,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router(cfg, logger, authSvc, registry, client, d.db),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("backend listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func router(cfg *config.Config, logger *log.Logger, authSvc *auth.Service, registry *shelf.Registry, client *shelf.Client, reader books.BookReader) http.Handler {
	authHandler := auth.NewHandler(authSvc, registry, logger.With("component", "auth"))
	booksHandler := books.NewHandler(reader, logger.With("component", "books"))

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(1, 5))
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
	})

	loadState := middleware.LoadUserState(registry, client)

	r.With(middleware.RequireAuth(authSvc), loadState).Post("/logout", authHandler.Logout)

	r.Route("/private", func(r chi.Router) {
		r.Use(middleware.RequireAuth(authSvc))
		r.Use(loadState)
		booksHandler.Routes(r)
	})

	return r
}
