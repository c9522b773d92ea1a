package filetree

import (
	"context"

	"github.com/google/uuid"

	"project-polaris/backend/internal/models"
)

// Tree returns the project as nested root nodes with every level in listing order.
func (s *Service) Tree(ctx context.Context, principal, projectID uuid.UUID) ([]*models.FileNode, error) {
	nodes, err := s.ListByProject(ctx, principal, projectID)
	if err != nil {
		return nil, err
	}
	return BuildTree(nodes), nil
}

// BuildTree links nodes to their parents through Children. Nodes whose parent is not in
// the set are dropped.
func BuildTree(nodes []*models.FileNode) []*models.FileNode {
	byID := make(map[uuid.UUID]*models.FileNode, len(nodes))
	for _, n := range nodes {
		n.Children = nil
		byID[n.ID] = n
	}

	var roots []*models.FileNode
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if parent, ok := byID[*n.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}

	SortNodes(roots)
	for _, n := range nodes {
		if len(n.Children) > 0 {
			SortNodes(n.Children)
		}
	}
	return roots
}
