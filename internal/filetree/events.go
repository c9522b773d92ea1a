package filetree

import (
	"github.com/google/uuid"

	"project-polaris/backend/internal/models"
)

// Event types published after a mutation commits.
const (
	EventFileCreated    = "file_created"
	EventFolderCreated  = "folder_created"
	EventFileRenamed    = "file_renamed"
	EventFileUpdated    = "file_updated"
	EventFileDeleted    = "file_deleted"
	EventProjectRenamed = "project_renamed"
	EventProjectDeleted = "project_deleted"
)

type Event struct {
	Type      string           `json:"type"`
	ProjectID uuid.UUID        `json:"projectId"`
	NodeID    uuid.UUID        `json:"nodeId,omitempty"`
	Node      *models.FileNode `json:"node,omitempty"`
}

// Notifier receives committed tree changes. Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
