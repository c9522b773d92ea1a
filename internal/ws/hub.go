package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"project-polaris/backend/internal/editor"
	"project-polaris/backend/internal/filetree"
	"project-polaris/backend/internal/models"
)

const (
	TypePresenceUpdate     = "presence_update"
	TypeRequestFileContent = "request_file_content"
	TypeEditorUpdate       = "editor_update"
	TypeEditorClosed       = "editor_closed"
	TypeError              = "error"

	saveTimeout = 10 * time.Second
)

type WsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Message struct {
	ProjectID string
	Data      []byte
	Sender    *Client
}

type UserPresence struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type filePayload struct {
	FileID  string `json:"fileId"`
	Content string `json:"content"`
}

// FileContents loads and persists text file content on behalf of a principal.
type FileContents interface {
	Get(ctx context.Context, principal, id uuid.UUID) (*models.FileNode, error)
	UpdateContent(ctx context.Context, principal, id uuid.UUID, content string) (*models.FileNode, error)
}

// ProjectState holds the live editor contents of a project and their pending saves.
type ProjectState struct {
	EditorContents map[string]string
	savers         map[string]*editor.AutoSaver
}

type Hub struct {
	Clients       map[string]map[*Client]bool // projectID -> clients
	Broadcast     chan *Message
	Register      chan *Client
	Unregister    chan *Client
	ProjectStates map[string]*ProjectState

	events    chan filetree.Event
	files     FileContents
	saveAfter time.Duration
	done      chan struct{}
}

func NewHub(files FileContents, saveAfter time.Duration) *Hub {
	return &Hub{
		Broadcast:     make(chan *Message),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		Clients:       make(map[string]map[*Client]bool),
		ProjectStates: make(map[string]*ProjectState),
		events:        make(chan filetree.Event, 256),
		files:         files,
		saveAfter:     saveAfter,
		done:          make(chan struct{}),
	}
}

// Notify queues a committed tree change for broadcast. It never blocks; events are
// dropped when the queue is full.
func (h *Hub) Notify(ev filetree.Event) {
	select {
	case h.events <- ev:
	default:
		log.Printf("[Hub] Event queue full, dropping %s for project %s", ev.Type, ev.ProjectID)
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) broadcastPresence(projectID string) {
	if clientsInRoom, ok := h.Clients[projectID]; ok {
		var presenceInfo []UserPresence
		for client := range clientsInRoom {
			presenceInfo = append(presenceInfo, UserPresence{
				UserID:   client.UserID.String(),
				Username: client.Username,
			})
		}
		payloadBytes, _ := json.Marshal(map[string]interface{}{"users": presenceInfo})
		jsonMessage, _ := json.Marshal(WsMessage{Type: TypePresenceUpdate, Payload: payloadBytes})
		for client := range clientsInRoom {
			select {
			case client.Send <- jsonMessage:
			default:
			}
		}
	}
}

// Run owns all hub state until ctx is canceled, then flushes every pending save.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for projectID := range h.ProjectStates {
				h.flushProject(projectID)
			}
			for projectID, room := range h.Clients {
				for client := range room {
					close(client.Send)
				}
				delete(h.Clients, projectID)
			}
			log.Println("[Hub] Stopped")
			return

		case client := <-h.Register:
			if _, ok := h.Clients[client.ProjectID]; !ok {
				h.Clients[client.ProjectID] = make(map[*Client]bool)
			}
			h.Clients[client.ProjectID][client] = true
			log.Printf("[Hub] Client %s registered to project %s", client.Username, client.ProjectID)
			h.broadcastPresence(client.ProjectID)

		case client := <-h.Unregister:
			if room, ok := h.Clients[client.ProjectID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.Send)
					log.Printf("[Hub] Client %s left project %s", client.Username, client.ProjectID)
				}
				if len(room) == 0 {
					delete(h.Clients, client.ProjectID)
					h.flushProject(client.ProjectID)
					delete(h.ProjectStates, client.ProjectID)
				} else {
					h.broadcastPresence(client.ProjectID)
				}
			}

		case ev := <-h.events:
			h.handleEvent(ev)

		case message := <-h.Broadcast:
			h.handleMessage(message)
		}
	}
}

func (h *Hub) handleMessage(message *Message) {
	var msg WsMessage
	if err := json.Unmarshal(message.Data, &msg); err != nil {
		log.Printf("[Hub] Error unmarshalling message: %v", err)
		return
	}
	projectState := h.state(message.ProjectID)

	var payload filePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[Hub] Error unmarshalling %s payload: %v", msg.Type, err)
		return
	}
	fileID, err := uuid.Parse(payload.FileID)
	if err != nil {
		h.sendError(message.Sender, payload.FileID, "invalid file id")
		return
	}

	switch msg.Type {
	case TypeRequestFileContent:
		content, ok := projectState.EditorContents[payload.FileID]
		if !ok {
			// Nobody has touched this file since the room opened; the store is authoritative.
			node, ok := h.editableFile(message, fileID)
			if !ok {
				return
			}
			if node.Content != nil {
				content = *node.Content
			}
			projectState.EditorContents[payload.FileID] = content
		}
		responsePayload, _ := json.Marshal(filePayload{FileID: payload.FileID, Content: content})
		jsonMsg, _ := json.Marshal(WsMessage{Type: TypeEditorUpdate, Payload: responsePayload})
		select {
		case message.Sender.Send <- jsonMsg:
		default:
		}

	case TypeEditorUpdate:
		if _, ok := projectState.savers[payload.FileID]; !ok {
			if _, ok := h.editableFile(message, fileID); !ok {
				return
			}
		}
		projectState.EditorContents[payload.FileID] = payload.Content
		h.saver(projectState, message.Sender.UserID, fileID).Schedule(payload.Content)
		h.broadcast(message.ProjectID, message.Data, message.Sender)

	case TypeEditorClosed:
		if saver, ok := projectState.savers[payload.FileID]; ok {
			if err := saver.Flush(); err != nil {
				log.Printf("[Hub] Failed to save file %s on close: %v", fileID, err)
			}
		}

	default:
		log.Printf("[Hub] Ignoring unknown message type %q", msg.Type)
	}
}

func (h *Hub) handleEvent(ev filetree.Event) {
	projectID := ev.ProjectID.String()
	if st, ok := h.ProjectStates[projectID]; ok {
		fileID := ev.NodeID.String()
		switch ev.Type {
		case filetree.EventFileUpdated:
			// Drop the cached copy unless a newer edit is still waiting to be saved.
			if saver, ok := st.savers[fileID]; !ok || !saver.Pending() {
				delete(st.EditorContents, fileID)
			}
		case filetree.EventFileDeleted:
			if saver, ok := st.savers[fileID]; ok {
				saver.Cancel()
				delete(st.savers, fileID)
			}
			delete(st.EditorContents, fileID)
		case filetree.EventProjectDeleted:
			for _, saver := range st.savers {
				saver.Cancel()
			}
			delete(h.ProjectStates, projectID)
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Hub] Error marshalling %s event: %v", ev.Type, err)
		return
	}
	data, _ := json.Marshal(WsMessage{Type: ev.Type, Payload: payload})
	h.broadcast(projectID, data, nil)
}

// broadcast sends data to every client in the project except sender. Clients that
// cannot keep up are dropped.
func (h *Hub) broadcast(projectID string, data []byte, sender *Client) {
	room, ok := h.Clients[projectID]
	if !ok {
		return
	}
	for client := range room {
		if client == sender {
			continue
		}
		select {
		case client.Send <- data:
		default:
			close(client.Send)
			delete(room, client)
		}
	}
}

// editableFile loads fileID for the sender and checks it is a text file of the room's
// project. The sender gets an error message otherwise.
func (h *Hub) editableFile(message *Message, fileID uuid.UUID) (*models.FileNode, bool) {
	node, err := h.files.Get(context.Background(), message.Sender.UserID, fileID)
	if err != nil {
		log.Printf("[Hub] Failed to load file %s: %v", fileID, err)
		h.sendError(message.Sender, fileID.String(), "file content could not be loaded")
		return nil, false
	}
	if node.ProjectID.String() != message.ProjectID || node.IsFolder() || node.IsBinary() {
		h.sendError(message.Sender, fileID.String(), "not an editable file in this project")
		return nil, false
	}
	return node, true
}

func (h *Hub) sendError(c *Client, fileID, text string) {
	payload, _ := json.Marshal(map[string]string{"fileId": fileID, "message": text})
	data, _ := json.Marshal(WsMessage{Type: TypeError, Payload: payload})
	select {
	case c.Send <- data:
	default:
	}
}

func (h *Hub) state(projectID string) *ProjectState {
	st, ok := h.ProjectStates[projectID]
	if !ok {
		st = &ProjectState{
			EditorContents: make(map[string]string),
			savers:         make(map[string]*editor.AutoSaver),
		}
		h.ProjectStates[projectID] = st
	}
	return st
}

func (h *Hub) saver(st *ProjectState, principal, fileID uuid.UUID) *editor.AutoSaver {
	key := fileID.String()
	if saver, ok := st.savers[key]; ok {
		return saver
	}
	saver := editor.NewAutoSaver(h.saveAfter, func(content string) error {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		_, err := h.files.UpdateContent(ctx, principal, fileID, content)
		return err
	})
	st.savers[key] = saver
	return saver
}

func (h *Hub) flushProject(projectID string) {
	st, ok := h.ProjectStates[projectID]
	if !ok {
		return
	}
	for fileID, saver := range st.savers {
		if err := saver.Flush(); err != nil {
			log.Printf("[Hub] Failed to save file %s: %v", fileID, err)
		}
	}
}
