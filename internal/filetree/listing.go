package filetree

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"project-polaris/backend/internal/models"
	"project-polaris/backend/internal/store"
)

// ListChildren returns the direct children of parentID (root when nil), folders first and
// each group in collation order of name.
func (s *Service) ListChildren(ctx context.Context, principal, projectID uuid.UUID, parentID *uuid.UUID) ([]*models.FileNode, error) {
	var children []*models.FileNode
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if _, err := authorize(ctx, tx, principal, projectID); err != nil {
			return err
		}
		var err error
		children, err = tx.ListChildren(ctx, projectID, parentID)
		return fromStore("files", err)
	})
	if err != nil {
		return nil, err
	}
	SortNodes(children)
	return children, nil
}

// SortNodes orders nodes for display: folders before files, then by name using the root
// locale collation. Names that collate equal fall back to byte order so the result is stable.
func SortNodes(nodes []*models.FileNode) {
	// A Collator keeps internal buffers and must not be shared between goroutines.
	c := collate.New(language.Und)
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r < 0
		}
		return a.Name < b.Name
	})
}
