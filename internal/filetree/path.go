package filetree

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"project-polaris/backend/internal/models"
	"project-polaris/backend/internal/store"
)

// GetPath returns the breadcrumb from the root down to id, inclusive. Every step re-reads
// the node; if one disappears mid-walk the prefix gathered so far is returned.
func (s *Service) GetPath(ctx context.Context, principal, id uuid.UUID) ([]models.PathSegment, error) {
	var path []models.PathSegment
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		target, err := authorizeNode(ctx, tx, principal, id)
		if err != nil {
			return err
		}

		seen := make(map[uuid.UUID]bool)
		next := &target.ID
		for next != nil && !seen[*next] {
			node, err := tx.GetNode(ctx, *next)
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			if err != nil {
				return fromStore("file", err)
			}
			if node.ProjectID != target.ProjectID {
				break
			}
			seen[node.ID] = true
			path = append(path, models.PathSegment{ID: node.ID, Name: node.Name})
			next = node.ParentID
		}
		reverse(path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return path, nil
}

// Paths resolves the path of every node in the project from a single load. The result for
// each node equals what GetPath returns for it.
func (s *Service) Paths(ctx context.Context, principal, projectID uuid.UUID) (map[uuid.UUID][]models.PathSegment, error) {
	nodes, err := s.ListByProject(ctx, principal, projectID)
	if err != nil {
		return nil, err
	}
	return ResolvePaths(nodes), nil
}

// ResolvePaths computes root-to-node paths in memory.
func ResolvePaths(nodes []*models.FileNode) map[uuid.UUID][]models.PathSegment {
	byID := make(map[uuid.UUID]*models.FileNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	out := make(map[uuid.UUID][]models.PathSegment, len(nodes))
	for _, n := range nodes {
		var path []models.PathSegment
		seen := make(map[uuid.UUID]bool)
		for cur := n; cur != nil && !seen[cur.ID]; {
			seen[cur.ID] = true
			path = append(path, models.PathSegment{ID: cur.ID, Name: cur.Name})
			if cur.ParentID == nil {
				break
			}
			cur = byID[*cur.ParentID]
		}
		reverse(path)
		out[n.ID] = path
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
