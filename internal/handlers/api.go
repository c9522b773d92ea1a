package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"project-polaris/backend/internal/blob"
	"project-polaris/backend/internal/completion"
	"project-polaris/backend/internal/filetree"
	"project-polaris/backend/internal/middleware"
	"project-polaris/backend/internal/ws"
)

// BlobStore holds the bytes of binary files.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}

type Completer interface {
	Complete(ctx context.Context, p completion.Payload) (string, error)
}

// API serves the project and file tree endpoints.
type API struct {
	tree      *filetree.Service
	blobs     BlobStore
	hub       *ws.Hub
	resolver  middleware.PrincipalResolver
	completer Completer
	maxUpload int64
}

type Option func(*API)

// WithCompleter enables the suggestion proxy.
func WithCompleter(c Completer) Option {
	return func(a *API) { a.completer = c }
}

func WithMaxUpload(n int64) Option {
	return func(a *API) { a.maxUpload = n }
}

func NewAPI(tree *filetree.Service, blobs BlobStore, hub *ws.Hub, resolver middleware.PrincipalResolver, opts ...Option) *API {
	a := &API{
		tree:      tree,
		blobs:     blobs,
		hub:       hub,
		resolver:  resolver,
		maxUpload: 10 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, filetree.ErrUnauthenticated):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, filetree.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, filetree.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, filetree.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, filetree.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("[API] Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func urlUUID(r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	return id, err == nil
}

// optionalUUID parses s, treating an empty string as absent.
func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
