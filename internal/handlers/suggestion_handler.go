package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"project-polaris/backend/internal/completion"
)

// Suggest forwards an editor context window to the completion backend. Upstream
// failures come back as an empty suggestion.
func (a *API) Suggest(w http.ResponseWriter, r *http.Request) {
	if a.completer == nil {
		http.Error(w, "Suggestions are not configured", http.StatusServiceUnavailable)
		return
	}
	var req completion.Payload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	suggestion, err := a.completer.Complete(r.Context(), req)
	if err != nil {
		if r.Context().Err() != nil {
			// The editor moved on and dropped the request.
			return
		}
		log.Printf("[API] Completion failed for %s: %v", req.FileName, err)
		suggestion = ""
	}
	writeJSON(w, http.StatusOK, completion.Response{Suggestion: suggestion})
}
