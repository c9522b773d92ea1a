package handlers

import (
	"encoding/json"
	"net/http"

	"project-polaris/backend/internal/middleware"
)

// CreateProject handles the creation of a new project.
func (a *API) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	project, err := a.tree.CreateProject(r.Context(), middleware.PrincipalFrom(r.Context()), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetUserProjects lists the caller's projects, most recently updated first.
func (a *API) GetUserProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.tree.ListProjects(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *API) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}
	project, err := a.tree.GetProject(r.Context(), middleware.PrincipalFrom(r.Context()), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// --- RENAME PROJECT ---
func (a *API) RenameProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	project, err := a.tree.RenameProject(r.Context(), middleware.PrincipalFrom(r.Context()), projectID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// --- DELETE PROJECT ---
// Files are removed through the cascading delete so their blobs are released.
func (a *API) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}
	if err := a.tree.DeleteProject(r.Context(), middleware.PrincipalFrom(r.Context()), projectID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
