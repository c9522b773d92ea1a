// Package store holds the persistence contract the file tree engine runs on: an ordered
// key-value collection of projects and nodes with by-project and by-parent range queries,
// executed inside transactions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"project-polaris/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// ProjectPatch updates the non-nil fields of a project. UpdatedAt is always written.
type ProjectPatch struct {
	Name      *string
	UpdatedAt time.Time
}

// NodePatch updates the non-nil fields of a node. UpdatedAt is always written.
type NodePatch struct {
	Name      *string
	Content   *string
	UpdatedAt time.Time
}

// Tx is the view of the store inside one transaction. Reads observe the transaction's own
// writes. Lookups of missing rows return ErrNotFound.
type Tx interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error)
	InsertProject(ctx context.Context, p *models.Project) error
	PatchProject(ctx context.Context, id uuid.UUID, patch ProjectPatch) error
	DeleteProject(ctx context.Context, id uuid.UUID) error

	GetNode(ctx context.Context, id uuid.UUID) (*models.FileNode, error)
	ListNodes(ctx context.Context, projectID uuid.UUID) ([]*models.FileNode, error)
	ListChildren(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) ([]*models.FileNode, error)
	// InsertNode returns ErrDuplicate when a node of the same type and name already
	// exists in the node's scope.
	InsertNode(ctx context.Context, n *models.FileNode) error
	PatchNode(ctx context.Context, id uuid.UUID, patch NodePatch) error
	DeleteNode(ctx context.Context, id uuid.UUID) error
	// StorageRefs lists the nodes, across all projects, holding the blob handle.
	StorageRefs(ctx context.Context, handle string) ([]uuid.UUID, error)

	// LockScope serializes writers of one sibling set until the transaction ends.
	LockScope(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) error
}

// Store runs fn atomically: either every write fn made is kept or none is.
type Store interface {
	Tx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
