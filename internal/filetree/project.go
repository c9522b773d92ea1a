package filetree

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"project-polaris/backend/internal/models"
	"project-polaris/backend/internal/store"
)

// CreateProject creates an empty project owned by principal.
func (s *Service) CreateProject(ctx context.Context, principal uuid.UUID, name string) (*models.Project, error) {
	if principal == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalid("project name is required")
	}
	now := s.now()
	project := &models.Project{
		ID:        uuid.New(),
		OwnerID:   principal,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		return fromStore("project", tx.InsertProject(ctx, project))
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns the principal's projects, most recently updated first.
func (s *Service) ListProjects(ctx context.Context, principal uuid.UUID) ([]*models.Project, error) {
	if principal == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	var projects []*models.Project
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		projects, err = tx.ListProjects(ctx, principal)
		return fromStore("projects", err)
	})
	return projects, err
}

func (s *Service) GetProject(ctx context.Context, principal, projectID uuid.UUID) (*models.Project, error) {
	var project *models.Project
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		project, err = authorize(ctx, tx, principal, projectID)
		return err
	})
	return project, err
}

func (s *Service) RenameProject(ctx context.Context, principal, projectID uuid.UUID, name string) (*models.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid("project name is required")
	}
	var project *models.Project
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		project, err = authorize(ctx, tx, principal, projectID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.PatchProject(ctx, projectID, store.ProjectPatch{Name: &name, UpdatedAt: now}); err != nil {
			return fromStore("project", err)
		}
		project.Name = name
		project.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.Notify(Event{Type: EventProjectRenamed, ProjectID: projectID})
	return project, nil
}

// DeleteProject removes every node through the cascading delete, releasing blobs, and then
// the project itself.
func (s *Service) DeleteProject(ctx context.Context, principal, projectID uuid.UUID) error {
	removed := 0
	var handles []string
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		removed, handles = 0, nil
		if _, err := authorize(ctx, tx, principal, projectID); err != nil {
			return err
		}
		roots, err := tx.ListChildren(ctx, projectID, nil)
		if err != nil {
			return fromStore("files", err)
		}
		for _, root := range roots {
			n, released, err := s.deleteSubtree(ctx, tx, root.ID)
			if err != nil {
				return err
			}
			removed += n
			handles = append(handles, released...)
		}
		return fromStore("project", tx.DeleteProject(ctx, projectID))
	})
	if err != nil {
		return err
	}
	s.releaseBlobs(ctx, handles)
	log.Printf("[Tree] Deleted project %s with %d node(s)", projectID, removed)
	s.notify.Notify(Event{Type: EventProjectDeleted, ProjectID: projectID})
	return nil
}
