package handlers

import (
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"project-polaris/backend/internal/middleware"
	"project-polaris/backend/internal/models"
)

// GetFiles returns every node of a project as a flat, unordered list.
func (a *API) GetFiles(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}
	nodes, err := a.tree.ListByProject(r.Context(), middleware.PrincipalFrom(r.Context()), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []*models.FileNode{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

// GetFileTree handles fetching all files and folders for a project and structuring them as a tree.
func (a *API) GetFileTree(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}
	tree, err := a.tree.Tree(r.Context(), middleware.PrincipalFrom(r.Context()), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tree == nil {
		tree = []*models.FileNode{}
	}
	writeJSON(w, http.StatusOK, tree)
}

// GetChildren lists one folder (or the root when parentId is omitted), folders first.
func (a *API) GetChildren(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}
	parentID, err := optionalUUID(r.URL.Query().Get("parentId"))
	if err != nil {
		http.Error(w, "Invalid parent ID", http.StatusBadRequest)
		return
	}
	children, err := a.tree.ListChildren(r.Context(), middleware.PrincipalFrom(r.Context()), projectID, parentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if children == nil {
		children = []*models.FileNode{}
	}
	writeJSON(w, http.StatusOK, children)
}

// CreateFileNode handles creating a new file or folder.
func (a *API) CreateFileNode(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	var req struct {
		ParentID string          `json:"parentId"` // empty for root
		Type     models.NodeType `json:"type"`
		Name     string          `json:"name"`
		Content  string          `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	parentID, err := optionalUUID(req.ParentID)
	if err != nil {
		http.Error(w, "Invalid parent ID", http.StatusBadRequest)
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	var node *models.FileNode
	switch req.Type {
	case models.NodeFile:
		node, err = a.tree.CreateFile(r.Context(), principal, projectID, parentID, req.Name, req.Content)
	case models.NodeFolder:
		node, err = a.tree.CreateFolder(r.Context(), principal, projectID, parentID, req.Name)
	default:
		http.Error(w, `Type must be "file" or "folder"`, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// UploadFile stores a multipart "file" part as a binary file. The form may carry
// "parentId" and a "name" overriding the uploaded filename.
func (a *API) UploadFile(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(r, "projectId")
	if !ok {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}
	principal := middleware.PrincipalFrom(r.Context())
	// Fail fast before reading the body.
	if _, err := a.tree.GetProject(r.Context(), principal, projectID); err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "Invalid or oversized upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	part, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file part", http.StatusBadRequest)
		return
	}
	defer part.Close()

	parentID, err := optionalUUID(r.FormValue("parentId"))
	if err != nil {
		http.Error(w, "Invalid parent ID", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = filepath.Base(header.Filename)
	}

	handle, err := a.blobs.Put(r.Context(), part)
	if err != nil {
		writeError(w, err)
		return
	}
	node, err := a.tree.CreateBinaryFile(r.Context(), principal, projectID, parentID, name, handle)
	if err != nil {
		if derr := a.tree.DiscardBlob(r.Context(), handle); derr != nil {
			log.Printf("[API] Failed to discard blob %s: %v", handle, derr)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (a *API) GetFileNode(w http.ResponseWriter, r *http.Request) {
	fileID, ok := urlUUID(r, "fileId")
	if !ok {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}
	node, err := a.tree.Get(r.Context(), middleware.PrincipalFrom(r.Context()), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// GetFilePath returns the breadcrumb from the root to the node.
func (a *API) GetFilePath(w http.ResponseWriter, r *http.Request) {
	fileID, ok := urlUUID(r, "fileId")
	if !ok {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}
	path, err := a.tree.GetPath(r.Context(), middleware.PrincipalFrom(r.Context()), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

// DownloadBlob streams a binary file's bytes.
func (a *API) DownloadBlob(w http.ResponseWriter, r *http.Request) {
	fileID, ok := urlUUID(r, "fileId")
	if !ok {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}
	node, err := a.tree.Get(r.Context(), middleware.PrincipalFrom(r.Context()), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !node.IsBinary() {
		http.Error(w, "File has no binary content", http.StatusBadRequest)
		return
	}
	rc, err := a.blobs.Open(r.Context(), *node.StorageID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(node.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": node.Name}))
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("[API] Failed to stream blob for %s: %v", fileID, err)
	}
}

// RenameFileNode handles renaming a file or folder.
func (a *API) RenameFileNode(w http.ResponseWriter, r *http.Request) {
	fileID, ok := urlUUID(r, "fileId")
	if !ok {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}
	var req struct {
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	node, err := a.tree.Rename(r.Context(), middleware.PrincipalFrom(r.Context()), fileID, req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (a *API) SaveFileContent(w http.ResponseWriter, r *http.Request) {
	fileID, ok := urlUUID(r, "fileId")
	if !ok {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := a.tree.UpdateContent(r.Context(), middleware.PrincipalFrom(r.Context()), fileID, req.Content); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteFileNode handles deleting a file or folder (and its children recursively).
func (a *API) DeleteFileNode(w http.ResponseWriter, r *http.Request) {
	fileID, ok := urlUUID(r, "fileId")
	if !ok {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}
	if err := a.tree.Delete(r.Context(), middleware.PrincipalFrom(r.Context()), fileID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
