package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"project-polaris/backend/internal/auth"
	"project-polaris/backend/internal/blob"
	"project-polaris/backend/internal/completion"
	"project-polaris/backend/internal/filetree"
	"project-polaris/backend/internal/models"
	"project-polaris/backend/internal/store"
	"project-polaris/backend/internal/ws"
)

type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Complete(ctx context.Context, p completion.Payload) (string, error) {
	return s.text, s.err
}

type testServer struct {
	srv      *httptest.Server
	verifier *auth.Verifier
	blobs    *blob.FSStore
	owner    uuid.UUID
	token    string
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	tree := filetree.NewService(store.NewInMemoryStore(), blobs)
	hub := ws.NewHub(tree, time.Hour)
	tree.SetNotifier(hub)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	verifier := auth.NewVerifier("test-secret")
	owner := uuid.New()
	token, err := verifier.Issue(owner, "ada")
	require.NoError(t, err)

	r := chi.NewRouter()
	NewAPI(tree, blobs, hub, verifier, opts...).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return &testServer{srv: srv, verifier: verifier, blobs: blobs, owner: owner, token: token}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) createProject(t *testing.T) *models.Project {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/projects", s.token, map[string]string{"name": "demo"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[*models.Project](t, resp)
}

func (s *testServer) createNode(t *testing.T, projectID uuid.UUID, body map[string]string) *models.FileNode {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/project/"+projectID.String()+"/files", s.token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[*models.FileNode](t, resp)
}

func TestAPI_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/projects", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ProjectLifecycle(t *testing.T) {
	s := newTestServer(t)
	p := s.createProject(t)
	base := "/api/v1/project/" + p.ID.String()

	resp := s.do(t, http.MethodGet, "/api/v1/projects", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[[]*models.Project](t, resp), 1)

	resp = s.do(t, http.MethodPut, base+"/rename", s.token, map[string]string{"name": "renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "renamed", decode[*models.Project](t, resp).Name)

	// Someone else's token is forbidden.
	stranger, err := s.verifier.Issue(uuid.New(), "eve")
	require.NoError(t, err)
	resp = s.do(t, http.MethodGet, base, stranger, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, base, s.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodGet, base, s.token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_FileTreeOperations(t *testing.T) {
	s := newTestServer(t)
	p := s.createProject(t)
	base := "/api/v1/project/" + p.ID.String()

	src := s.createNode(t, p.ID, map[string]string{"type": "folder", "name": "src"})
	main := s.createNode(t, p.ID, map[string]string{"type": "file", "name": "main.go", "parentId": src.ID.String(), "content": "package main"})
	s.createNode(t, p.ID, map[string]string{"type": "file", "name": "README.md"})
	s.createNode(t, p.ID, map[string]string{"type": "folder", "name": "docs"})

	// Duplicate file name in the same scope conflicts; a folder of the same name does not.
	resp := s.do(t, http.MethodPost, base+"/files", s.token, map[string]string{"type": "file", "name": "README.md"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	s.createNode(t, p.ID, map[string]string{"type": "folder", "name": "README.md"})

	resp = s.do(t, http.MethodPost, base+"/files", s.token, map[string]string{"type": "symlink", "name": "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, base+"/children", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []string
	for _, n := range decode[[]*models.FileNode](t, resp) {
		got = append(got, n.Name)
	}
	require.Equal(t, []string{"docs", "README.md", "src", "README.md"}, got)

	resp = s.do(t, http.MethodGet, base+"/children?parentId="+src.ID.String(), s.token, nil)
	require.Len(t, decode[[]*models.FileNode](t, resp), 1)

	resp = s.do(t, http.MethodGet, base+"/files", s.token, nil)
	require.Len(t, decode[[]*models.FileNode](t, resp), 5)

	resp = s.do(t, http.MethodGet, base+"/tree", s.token, nil)
	tree := decode[[]*models.FileNode](t, resp)
	require.Len(t, tree, 4)
	require.Equal(t, "src", tree[2].Name)
	require.Len(t, tree[2].Children, 1)

	resp = s.do(t, http.MethodGet, "/api/v1/file/"+main.ID.String()+"/path", s.token, nil)
	require.Equal(t, []models.PathSegment{{ID: src.ID, Name: "src"}, {ID: main.ID, Name: "main.go"}},
		decode[[]models.PathSegment](t, resp))

	resp = s.do(t, http.MethodPut, "/api/v1/file/"+main.ID.String()+"/content", s.token, map[string]string{"content": "package app"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/v1/file/"+main.ID.String(), s.token, nil)
	require.Equal(t, "package app", *decode[*models.FileNode](t, resp).Content)

	// Renaming onto a sibling of any type conflicts.
	resp = s.do(t, http.MethodPut, "/api/v1/file/"+src.ID.String()+"/rename", s.token, map[string]string{"newName": "docs"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = s.do(t, http.MethodPut, "/api/v1/file/"+src.ID.String()+"/rename", s.token, map[string]string{"newName": "cmd"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/v1/file/"+src.ID.String(), s.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/v1/file/"+main.ID.String(), s.token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/file/not-a-uuid", s.token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UploadAndDownload(t *testing.T) {
	s := newTestServer(t)
	p := s.createProject(t)

	upload := func(name string, data []byte) *http.Response {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/v1/project/"+p.ID.String()+"/files/upload", &body)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+s.token)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	png := []byte("\x89PNG fake image bytes")
	resp := upload("logo.png", png)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	node := decode[*models.FileNode](t, resp)
	require.True(t, node.IsBinary())
	require.Equal(t, blob.Sum(png), *node.StorageID)

	resp = s.do(t, http.MethodGet, "/api/v1/file/"+node.ID.String()+"/blob", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, png, got)

	// Binary files cannot be edited as text.
	resp = s.do(t, http.MethodPut, "/api/v1/file/"+node.ID.String()+"/content", s.token, map[string]string{"content": "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A conflicting upload keeps the existing file's bytes.
	resp = upload("logo.png", png)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	rc, err := s.blobs.Open(context.Background(), *node.StorageID)
	require.NoError(t, err)
	rc.Close()

	// Deleting the file releases its blob.
	resp = s.do(t, http.MethodDelete, "/api/v1/file/"+node.ID.String(), s.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, err = s.blobs.Open(context.Background(), *node.StorageID)
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestAPI_Suggest(t *testing.T) {
	payload := completion.Payload{FileName: "main.go", Code: "fmt.", LineNumber: 1}

	s := newTestServer(t)
	resp := s.do(t, http.MethodPost, "/api/v1/suggestion", s.token, payload)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s = newTestServer(t, WithCompleter(stubCompleter{text: "Println()"}))
	resp = s.do(t, http.MethodPost, "/api/v1/suggestion", s.token, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Println()", decode[completion.Response](t, resp).Suggestion)

	s = newTestServer(t, WithCompleter(stubCompleter{err: errors.New("upstream down")}))
	resp = s.do(t, http.MethodPost, "/api/v1/suggestion", s.token, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, decode[completion.Response](t, resp).Suggestion)
}

func TestAPI_WebsocketReceivesTreeEvents(t *testing.T) {
	s := newTestServer(t)
	p := s.createProject(t)
	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/" + p.ID.String()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	stranger, err := s.verifier.Issue(uuid.New(), "eve")
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?auth_token="+stranger, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?auth_token="+s.token, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg ws.WsMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, ws.TypePresenceUpdate, msg.Type)
	var presence struct {
		Users []ws.UserPresence `json:"users"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &presence))
	require.Equal(t, []ws.UserPresence{{UserID: s.owner.String(), Username: "ada"}}, presence.Users)

	s.createNode(t, p.ID, map[string]string{"type": "file", "name": "main.go"})
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, filetree.EventFileCreated, msg.Type)
}
