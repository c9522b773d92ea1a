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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"project-polaris/backend/internal/auth"
	"project-polaris/backend/internal/blob"
	"project-polaris/backend/internal/completion"
	"project-polaris/backend/internal/config"
	"project-polaris/backend/internal/database"
	"project-polaris/backend/internal/filetree"
	"project-polaris/backend/internal/handlers"
	"project-polaris/backend/internal/store"
	"project-polaris/backend/internal/ws"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not open store: %v", err)
	}
	defer st.Close()

	blobs, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Could not open blob store: %v", err)
	}

	tree := filetree.NewService(st, blobs)
	hub := ws.NewHub(tree, cfg.SaveDebounce)
	tree.SetNotifier(hub)

	opts := []handlers.Option{handlers.WithMaxUpload(cfg.MaxUploadBytes)}
	if cfg.CompletionUpstreamURL != "" {
		opts = append(opts, handlers.WithCompleter(completion.NewClient(cfg.CompletionUpstreamURL, cfg.CompletionTimeout)))
	} else {
		log.Println("COMPLETION_UPSTREAM_URL not set, suggestions disabled")
	}
	api := handlers.NewAPI(tree, blobs, hub, auth.NewVerifier(cfg.JWTSecret), opts...)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	api.Register(r)

	srv := &http.Server{
		Addr:              cfg.ServiceAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("Starting server on %s", cfg.ServiceAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped with error: %s", err)
	}
	log.Println("Server stopped")
}

// openStore connects to PostgreSQL when dsn is set and falls back to memory otherwise.
func openStore(ctx context.Context, dsn string) (store.Store, error) {
	if dsn == "" {
		log.Println("DATABASE_URL not set, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return store.NewPostgresStore(pool), nil
}
