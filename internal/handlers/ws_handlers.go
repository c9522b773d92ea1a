package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"project-polaris/backend/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs joins the caller to a project's realtime room. Browsers cannot set headers
// on websocket requests, so the token travels in the auth_token query parameter.
func (a *API) ServeWs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid Project ID format", http.StatusBadRequest)
		return
	}

	tokenStr := r.URL.Query().Get("auth_token")
	if tokenStr == "" {
		http.Error(w, "Missing auth_token query parameter", http.StatusUnauthorized)
		return
	}
	principal, username, err := a.resolver.Identify(tokenStr)
	if err != nil {
		http.Error(w, "Invalid auth token", http.StatusUnauthorized)
		return
	}
	if _, err := a.tree.GetProject(r.Context(), principal, projectID); err != nil {
		log.Printf("WebSocket connection denied for user %s in project %s: %v", principal, projectID, err)
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Failed to upgrade WebSocket connection:", err)
		return
	}

	if username == "" {
		username = principal.String()
	}
	client := &ws.Client{
		Hub:       a.hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		ProjectID: projectID.String(),
		UserID:    principal,
		Username:  username,
	}
	select {
	case a.hub.Register <- client:
	case <-a.hub.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
