package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"project-polaris/backend/internal/models"
)

// InMemoryStore is an in-memory implementation of the Store interface.
// Transactions are fully serialized; a failed transaction leaves no trace.
type InMemoryStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
	nodes    map[uuid.UUID]*models.FileNode
}

// NewInMemoryStore creates a new thread-safe, in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		projects: make(map[uuid.UUID]*models.Project),
		nodes:    make(map[uuid.UUID]*models.FileNode),
	}
}

func (s *InMemoryStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stored values are never mutated in place, so copying the maps is enough
	// to get a private working set.
	tx := &memTx{
		projects: make(map[uuid.UUID]*models.Project, len(s.projects)),
		nodes:    make(map[uuid.UUID]*models.FileNode, len(s.nodes)),
	}
	for k, v := range s.projects {
		tx.projects[k] = v
	}
	for k, v := range s.nodes {
		tx.nodes[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	s.projects = tx.projects
	s.nodes = tx.nodes
	return nil
}

func (s *InMemoryStore) Close() {}

type memTx struct {
	projects map[uuid.UUID]*models.Project
	nodes    map[uuid.UUID]*models.FileNode
}

func (t *memTx) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := t.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (t *memTx) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range t.projects {
		if p.OwnerID == ownerID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (t *memTx) InsertProject(ctx context.Context, p *models.Project) error {
	if _, ok := t.projects[p.ID]; ok {
		return ErrDuplicate
	}
	c := *p
	t.projects[p.ID] = &c
	return nil
}

func (t *memTx) PatchProject(ctx context.Context, id uuid.UUID, patch ProjectPatch) error {
	p, ok := t.projects[id]
	if !ok {
		return ErrNotFound
	}
	c := *p
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	c.UpdatedAt = patch.UpdatedAt
	t.projects[id] = &c
	return nil
}

func (t *memTx) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.projects[id]; !ok {
		return ErrNotFound
	}
	delete(t.projects, id)
	return nil
}

func (t *memTx) GetNode(ctx context.Context, id uuid.UUID) (*models.FileNode, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n.Clone(), nil
}

func (t *memTx) ListNodes(ctx context.Context, projectID uuid.UUID) ([]*models.FileNode, error) {
	var out []*models.FileNode
	for _, n := range t.nodes {
		if n.ProjectID == projectID {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (t *memTx) ListChildren(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) ([]*models.FileNode, error) {
	var out []*models.FileNode
	for _, n := range t.nodes {
		if n.SameScope(projectID, parentID) {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (t *memTx) InsertNode(ctx context.Context, n *models.FileNode) error {
	if _, ok := t.nodes[n.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := t.projects[n.ProjectID]; !ok {
		return ErrNotFound
	}
	if n.ParentID != nil {
		if _, ok := t.nodes[*n.ParentID]; !ok {
			return ErrNotFound
		}
	}
	for _, other := range t.nodes {
		if other.SameScope(n.ProjectID, n.ParentID) && other.Type == n.Type && other.Name == n.Name {
			return ErrDuplicate
		}
	}
	t.nodes[n.ID] = n.Clone()
	return nil
}

func (t *memTx) PatchNode(ctx context.Context, id uuid.UUID, patch NodePatch) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNotFound
	}
	c := n.Clone()
	if patch.Name != nil {
		for _, other := range t.nodes {
			if other.ID != id && other.SameScope(c.ProjectID, c.ParentID) && other.Type == c.Type && other.Name == *patch.Name {
				return ErrDuplicate
			}
		}
		c.Name = *patch.Name
	}
	if patch.Content != nil {
		s := *patch.Content
		c.Content = &s
	}
	c.UpdatedAt = patch.UpdatedAt
	t.nodes[id] = c
	return nil
}

func (t *memTx) DeleteNode(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.nodes[id]; !ok {
		return ErrNotFound
	}
	delete(t.nodes, id)
	return nil
}

func (t *memTx) StorageRefs(ctx context.Context, handle string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, n := range t.nodes {
		if n.StorageID != nil && *n.StorageID == handle {
			ids = append(ids, n.ID)
		}
	}
	return ids, nil
}

// LockScope is a no-op: the whole transaction already holds the store lock.
func (t *memTx) LockScope(ctx context.Context, projectID uuid.UUID, parentID *uuid.UUID) error {
	return nil
}
