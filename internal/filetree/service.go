// Package filetree is the project file tree engine: a project-scoped namespace of files and
// folders with ownership checks, sibling name uniqueness, ordered listings, breadcrumb paths
// and cascading deletion.
package filetree

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"project-polaris/backend/internal/models"
	"project-polaris/backend/internal/store"
)

// BlobReleaser frees a binary file's bytes. Releasing a missing handle is not an error.
type BlobReleaser interface {
	Delete(ctx context.Context, handle string) error
}

type Service struct {
	store  store.Store
	blobs  BlobReleaser
	notify Notifier
	now    func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// WithClock overrides the timestamp source for updatedAt fields.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, blobs BlobReleaser, opts ...Option) *Service {
	if st == nil {
		panic("store is required")
	}
	if blobs == nil {
		panic("blob releaser is required")
	}
	s := &Service{
		store:  st,
		blobs:  blobs,
		notify: nopNotifier{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNotifier swaps the event sink. It must be called before the service is shared.
func (s *Service) SetNotifier(n Notifier) {
	s.notify = n
}

// authorize loads the project and asserts the principal owns it.
func authorize(ctx context.Context, tx store.Tx, principal, projectID uuid.UUID) (*models.Project, error) {
	if principal == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	project, err := tx.GetProject(ctx, projectID)
	if err != nil {
		return nil, fromStore("project", err)
	}
	if !project.OwnedBy(principal) {
		return nil, ErrUnauthorized
	}
	return project, nil
}

// authorizeNode loads a node and asserts the principal owns its project.
func authorizeNode(ctx context.Context, tx store.Tx, principal, id uuid.UUID) (*models.FileNode, error) {
	if principal == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	node, err := tx.GetNode(ctx, id)
	if err != nil {
		return nil, fromStore("file", err)
	}
	if _, err := authorize(ctx, tx, principal, node.ProjectID); err != nil {
		return nil, err
	}
	return node, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name is required")
	}
	if strings.ContainsRune(name, '/') {
		return invalid("name %q may not contain '/'", name)
	}
	if name == "." || name == ".." {
		return invalid("name %q is reserved", name)
	}
	return nil
}

// checkParent asserts parentID, when set, is a folder of the same project.
func checkParent(ctx context.Context, tx store.Tx, projectID uuid.UUID, parentID *uuid.UUID) error {
	if parentID == nil {
		return nil
	}
	parent, err := tx.GetNode(ctx, *parentID)
	if err != nil {
		return fromStore("parent folder", err)
	}
	if parent.ProjectID != projectID {
		return invalid("parent %s belongs to another project", parentID)
	}
	if !parent.IsFolder() {
		return invalid("parent %s is a file, not a folder", parentID)
	}
	return nil
}

func conflict(typ models.NodeType, name string) error {
	return fmt.Errorf("%w: a %s named %q already exists", ErrConflict, typ, name)
}

func (s *Service) touchProject(ctx context.Context, tx store.Tx, projectID uuid.UUID, at time.Time) error {
	return fromStore("project", tx.PatchProject(ctx, projectID, store.ProjectPatch{UpdatedAt: at}))
}

// ListByProject returns every node of the project, unordered.
func (s *Service) ListByProject(ctx context.Context, principal, projectID uuid.UUID) ([]*models.FileNode, error) {
	var nodes []*models.FileNode
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if _, err := authorize(ctx, tx, principal, projectID); err != nil {
			return err
		}
		var err error
		nodes, err = tx.ListNodes(ctx, projectID)
		return fromStore("files", err)
	})
	return nodes, err
}

func (s *Service) Get(ctx context.Context, principal, id uuid.UUID) (*models.FileNode, error) {
	var node *models.FileNode
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		node, err = authorizeNode(ctx, tx, principal, id)
		return err
	})
	return node, err
}

// CreateFile inserts a text file. Only another file of the same name conflicts; a folder
// of that name may coexist.
func (s *Service) CreateFile(ctx context.Context, principal, projectID uuid.UUID, parentID *uuid.UUID, name, content string) (*models.FileNode, error) {
	return s.create(ctx, principal, models.NewFile(projectID, parentID, name, content, s.now()))
}

// CreateBinaryFile inserts a file whose bytes are already in the blob store under handle.
func (s *Service) CreateBinaryFile(ctx context.Context, principal, projectID uuid.UUID, parentID *uuid.UUID, name, handle string) (*models.FileNode, error) {
	if handle == "" {
		return nil, invalid("storage handle is required")
	}
	return s.create(ctx, principal, models.NewBinaryFile(projectID, parentID, name, handle, s.now()))
}

// CreateFolder inserts a folder. Only another folder of the same name conflicts.
func (s *Service) CreateFolder(ctx context.Context, principal, projectID uuid.UUID, parentID *uuid.UUID, name string) (*models.FileNode, error) {
	return s.create(ctx, principal, models.NewFolder(projectID, parentID, name, s.now()))
}

func (s *Service) create(ctx context.Context, principal uuid.UUID, node *models.FileNode) (*models.FileNode, error) {
	if err := validateName(node.Name); err != nil {
		return nil, err
	}
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if _, err := authorize(ctx, tx, principal, node.ProjectID); err != nil {
			return err
		}
		if err := checkParent(ctx, tx, node.ProjectID, node.ParentID); err != nil {
			return err
		}
		if err := tx.LockScope(ctx, node.ProjectID, node.ParentID); err != nil {
			return err
		}
		siblings, err := tx.ListChildren(ctx, node.ProjectID, node.ParentID)
		if err != nil {
			return fromStore("siblings", err)
		}
		for _, sib := range siblings {
			if sib.Type == node.Type && sib.Name == node.Name {
				return conflict(node.Type, node.Name)
			}
		}
		if err := tx.InsertNode(ctx, node); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return conflict(node.Type, node.Name)
			}
			return fromStore(string(node.Type), err)
		}
		return s.touchProject(ctx, tx, node.ProjectID, node.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	ev := EventFileCreated
	if node.IsFolder() {
		ev = EventFolderCreated
	}
	s.notify.Notify(Event{Type: ev, ProjectID: node.ProjectID, NodeID: node.ID, Node: node.Clone()})
	return node, nil
}

// Rename changes a node's name. Unlike creation, any sibling holding newName conflicts,
// whatever its type.
func (s *Service) Rename(ctx context.Context, principal, id uuid.UUID, newName string) (*models.FileNode, error) {
	if err := validateName(newName); err != nil {
		return nil, err
	}
	var node *models.FileNode
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		node, err = authorizeNode(ctx, tx, principal, id)
		if err != nil {
			return err
		}
		if err := tx.LockScope(ctx, node.ProjectID, node.ParentID); err != nil {
			return err
		}
		siblings, err := tx.ListChildren(ctx, node.ProjectID, node.ParentID)
		if err != nil {
			return fromStore("siblings", err)
		}
		for _, sib := range siblings {
			if sib.ID != node.ID && sib.Name == newName {
				return conflict(sib.Type, newName)
			}
		}

		now := s.now()
		if err := tx.PatchNode(ctx, id, store.NodePatch{Name: &newName, UpdatedAt: now}); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return conflict(node.Type, newName)
			}
			return fromStore(string(node.Type), err)
		}
		node.Name = newName
		node.UpdatedAt = now
		return s.touchProject(ctx, tx, node.ProjectID, now)
	})
	if err != nil {
		return nil, err
	}
	s.notify.Notify(Event{Type: EventFileRenamed, ProjectID: node.ProjectID, NodeID: node.ID, Node: node.Clone()})
	return node, nil
}

// UpdateContent replaces a text file's content.
func (s *Service) UpdateContent(ctx context.Context, principal, id uuid.UUID, content string) (*models.FileNode, error) {
	var node *models.FileNode
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		node, err = authorizeNode(ctx, tx, principal, id)
		if err != nil {
			return err
		}
		if node.IsFolder() {
			return invalid("%q is a folder and has no content", node.Name)
		}
		if node.IsBinary() {
			return invalid("%q is a binary file", node.Name)
		}

		now := s.now()
		if err := tx.PatchNode(ctx, id, store.NodePatch{Content: &content, UpdatedAt: now}); err != nil {
			return fromStore("file", err)
		}
		node.Content = &content
		node.UpdatedAt = now
		return s.touchProject(ctx, tx, node.ProjectID, now)
	})
	if err != nil {
		return nil, err
	}
	s.notify.Notify(Event{Type: EventFileUpdated, ProjectID: node.ProjectID, NodeID: node.ID})
	return node, nil
}

// Delete removes a node and, for folders, everything beneath it. Children always go
// before their parent. Nodes that vanish mid-walk are skipped. Blobs are released only
// after the records are gone for good.
func (s *Service) Delete(ctx context.Context, principal, id uuid.UUID) error {
	var node *models.FileNode
	var removed int
	var handles []string
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		node, err = authorizeNode(ctx, tx, principal, id)
		if err != nil {
			return err
		}
		removed, handles, err = s.deleteSubtree(ctx, tx, node.ID)
		if err != nil {
			return err
		}
		return s.touchProject(ctx, tx, node.ProjectID, s.now())
	})
	if err != nil {
		return err
	}
	s.releaseBlobs(ctx, handles)
	log.Printf("[Tree] Deleted %s %q and %d node(s) in project %s", node.Type, node.Name, removed, node.ProjectID)
	s.notify.Notify(Event{Type: EventFileDeleted, ProjectID: node.ProjectID, NodeID: node.ID})
	return nil
}

type deleteFrame struct {
	id       uuid.UUID
	node     *models.FileNode
	expanded bool
}

// deleteSubtree walks the subtree rooted at rootID post-order with an explicit stack. It
// returns how many records it removed and the blob handles nothing references any more.
func (s *Service) deleteSubtree(ctx context.Context, tx store.Tx, rootID uuid.UUID) (int, []string, error) {
	removed := 0
	var handles []string
	stack := []deleteFrame{{id: rootID}}
	for len(stack) > 0 {
		top := len(stack) - 1
		if !stack[top].expanded {
			node, err := tx.GetNode(ctx, stack[top].id)
			if errors.Is(err, store.ErrNotFound) {
				stack = stack[:top]
				continue
			}
			if err != nil {
				return removed, nil, fromStore("file", err)
			}
			stack[top].node = node
			stack[top].expanded = true
			if node.IsFolder() {
				children, err := tx.ListChildren(ctx, node.ProjectID, &node.ID)
				if err != nil {
					return removed, nil, fromStore("children", err)
				}
				for _, c := range children {
					stack = append(stack, deleteFrame{id: c.ID})
				}
			}
			continue
		}

		node := stack[top].node
		stack = stack[:top]
		if node.StorageID != nil {
			last, err := lastReference(ctx, tx, node)
			if err != nil {
				return removed, nil, err
			}
			if last {
				handles = append(handles, *node.StorageID)
			}
		}
		if err := tx.DeleteNode(ctx, node.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return removed, nil, fromStore("file", err)
		}
		removed++
	}
	return removed, handles, nil
}

// lastReference reports whether node is the only record still holding its blob handle.
func lastReference(ctx context.Context, tx store.Tx, node *models.FileNode) (bool, error) {
	refs, err := tx.StorageRefs(ctx, *node.StorageID)
	if err != nil {
		return false, fromStore("storage refs", err)
	}
	for _, ref := range refs {
		if ref != node.ID {
			return false, nil
		}
	}
	return true, nil
}

// releaseBlobs frees handles whose records have been committed as deleted. A failure
// is logged and leaves the blob orphaned.
func (s *Service) releaseBlobs(ctx context.Context, handles []string) {
	for _, h := range handles {
		if err := s.blobs.Delete(ctx, h); err != nil {
			log.Printf("[Tree] Failed to release blob %s: %v", h, err)
		}
	}
}

// DiscardBlob frees handle if no node references it. Callers use it to clean up an
// upload whose file record could not be created.
func (s *Service) DiscardBlob(ctx context.Context, handle string) error {
	return s.store.Tx(ctx, func(tx store.Tx) error {
		refs, err := tx.StorageRefs(ctx, handle)
		if err != nil {
			return fromStore("storage refs", err)
		}
		if len(refs) > 0 {
			return nil
		}
		return s.blobs.Delete(ctx, handle)
	})
}
