package models

import (
	"time"

	"github.com/google/uuid"
)

// NodeType tags a FileNode as a file or a folder. Every branch on a node goes through it.
type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

func (t NodeType) Valid() bool {
	return t == NodeFile || t == NodeFolder
}

// FileNode represents a file or a folder in the project structure.
// Content and StorageID are only ever set on files.
type FileNode struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"projectId"`
	ParentID  *uuid.UUID `json:"parentId"` // nil for root-level nodes
	Type      NodeType   `json:"type"`
	Name      string     `json:"name"`
	Content   *string    `json:"content,omitempty"`
	StorageID *string    `json:"storageId,omitempty"` // blob handle; when set Content is not authoritative
	UpdatedAt time.Time  `json:"updatedAt"`
	// Populated only when a project is rendered as a nested tree.
	Children []*FileNode `json:"children,omitempty"`
}

// NewFile builds a text file node.
func NewFile(projectID uuid.UUID, parentID *uuid.UUID, name, content string, now time.Time) *FileNode {
	return &FileNode{
		ID:        uuid.New(),
		ProjectID: projectID,
		ParentID:  parentID,
		Type:      NodeFile,
		Name:      name,
		Content:   &content,
		UpdatedAt: now,
	}
}

// NewBinaryFile builds a file node whose bytes live in the blob store under handle.
func NewBinaryFile(projectID uuid.UUID, parentID *uuid.UUID, name, handle string, now time.Time) *FileNode {
	n := NewFile(projectID, parentID, name, "", now)
	n.StorageID = &handle
	return n
}

// NewFolder builds a folder node. Folders carry neither content nor a storage handle.
func NewFolder(projectID uuid.UUID, parentID *uuid.UUID, name string, now time.Time) *FileNode {
	return &FileNode{
		ID:        uuid.New(),
		ProjectID: projectID,
		ParentID:  parentID,
		Type:      NodeFolder,
		Name:      name,
		UpdatedAt: now,
	}
}

func (n *FileNode) IsFolder() bool {
	return n.Type == NodeFolder
}

// IsBinary reports whether the file's bytes are held by the blob store.
func (n *FileNode) IsBinary() bool {
	return n.Type == NodeFile && n.StorageID != nil
}

// SameScope reports whether both nodes are siblings under the same parent of the same project.
func (n *FileNode) SameScope(projectID uuid.UUID, parentID *uuid.UUID) bool {
	return n.ProjectID == projectID && SameParent(n.ParentID, parentID)
}

// SameParent compares two optional parent references; nil means root.
func SameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Clone returns a copy that shares no pointers with n. Children are not copied.
func (n *FileNode) Clone() *FileNode {
	c := *n
	c.Children = nil
	if n.ParentID != nil {
		p := *n.ParentID
		c.ParentID = &p
	}
	if n.Content != nil {
		s := *n.Content
		c.Content = &s
	}
	if n.StorageID != nil {
		s := *n.StorageID
		c.StorageID = &s
	}
	return &c
}

// PathSegment is one breadcrumb entry of a node's path.
type PathSegment struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
