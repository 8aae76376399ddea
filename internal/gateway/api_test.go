package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/soyeahso/workbench/internal/composer"
	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/soyeahso/workbench/internal/mcpservers"
	"github.com/soyeahso/workbench/internal/store"
	"github.com/soyeahso/workbench/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawEnvelope keeps data undecoded so tests can pick the shape.
type rawEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e rawEnvelope) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, v))
}

func (e *testEnv) request(t *testing.T, method, path, contentType string, body io.Reader) (*http.Response, rawEnvelope) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env rawEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

// do sends an authenticated JSON request.
func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, rawEnvelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	return e.request(t, method, path, "application/json", r)
}

func (e *testEnv) upload(t *testing.T, folder, filename, content string) (*http.Response, rawEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("folder_path", folder))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return e.request(t, http.MethodPost, "/api/upload", mw.FormDataContentType(), &buf)
}

func TestAPI_RequiresBearer(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/modes")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	env.token = "wrong"
	resp, body := env.do(t, http.MethodGet, "/api/modes", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_mismatch", body.Error)

	env.token = testToken
	resp, body = env.do(t, http.MethodGet, "/api/modes", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}

func TestAPI_OpenWithoutSecret(t *testing.T) {
	t.Setenv("WORKBENCH_GATEWAY_TOKEN", "")
	t.Setenv("WORKBENCH_GATEWAY_PASSWORD", "")
	env := newTestEnv(t, func(c *config.Config) { c.Gateway.Auth.Token = "" })
	env.token = ""

	resp, body := env.do(t, http.MethodGet, "/api/modes", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}

func TestAPI_Modes(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/modes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Modes   []domain.ModeInfo `json:"modes"`
		Default domain.AgentMode  `json:"default"`
	}
	body.decode(t, &data)
	require.Len(t, data.Modes, 4)
	assert.Equal(t, domain.ModeSimple, data.Default)
	assert.Equal(t, domain.ModeWorkflow, data.Modes[3].Mode)
	assert.True(t, data.Modes[3].RequiresFolder)
}

func TestAPI_DocumentLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/documents", documentRequest{Path: "plans/q1.md", Content: "# Q1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)

	resp, _ = env.do(t, http.MethodPost, "/api/documents", documentRequest{Path: "plans/q1.md", Content: "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/documents/plans/q1.md", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var f domain.File
	body.decode(t, &f)
	assert.Equal(t, "# Q1", f.Content)
	assert.Equal(t, "plans", f.Folder)

	resp, _ = env.do(t, http.MethodPut, "/api/documents/plans/q1.md", documentRequest{Content: "# Q1 v2"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/documents/plans/q2.md", documentRequest{Content: "# Q2"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/documents", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tree documentsResponse
	body.decode(t, &tree)
	assert.Equal(t, 2, tree.TotalFiles)
	require.Len(t, tree.Files, 1)
	assert.Equal(t, "plans", tree.Files[0].Path)

	resp, body = env.do(t, http.MethodGet, "/api/documents?filter=q2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body.decode(t, &tree)
	assert.Equal(t, 1, tree.TotalFiles)

	resp, _ = env.do(t, http.MethodPost, "/api/documents/move", moveRequest{Source: "plans/q2.md", Destination: "archive/q2.md"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/documents/plans/q1.md", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/documents/plans/q1.md?confirm=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/documents/plans/q1.md", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_DocumentErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/documents", documentRequest{Path: "../escape.md"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/documents", documentRequest{Path: "notes.txt"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.request(t, http.MethodPost, "/api/documents", "application/json", bytes.NewBufferString("{"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, body.Success)

	resp, _ = env.do(t, http.MethodGet, "/api/documents?max_depth=deep", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_PatchDocument(t *testing.T) {
	env := newTestEnv(t)
	changed := make(chan any, 4)
	env.hooks.On(hooks.EventWorkspaceChanged, "test", func(_ context.Context, p hooks.Payload) error {
		changed <- p.Data["paths"]
		return nil
	})

	_, err := env.ws.Write(context.Background(), "plans/todo.md", "# Todo\n\n## Objective\n")
	require.NoError(t, err)

	diff := "--- a/plans/todo.md\n+++ b/plans/todo.md\n@@ -1,3 +1,4 @@\n # Todo\n+**Patched**\n\n ## Objective\n"
	resp, body := env.do(t, http.MethodPatch, "/api/documents/plans/todo.md", patchRequest{Diff: diff, Message: "add banner"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	var res workspace.PatchResult
	body.decode(t, &res)
	assert.Equal(t, "plans/todo.md", res.Path)
	assert.Equal(t, 1, res.Hunks)

	f, err := env.ws.Read(context.Background(), "plans/todo.md")
	require.NoError(t, err)
	assert.Equal(t, "# Todo\n**Patched**\n\n## Objective\n", f.Content)
	assert.Equal(t, []string{"plans/todo.md"}, <-changed)

	resp, body = env.do(t, http.MethodPatch, "/api/documents/plans/todo.md", patchRequest{Diff: "@@ -1 +1 @@\n-nothing here\n+x\n"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body.Error, "patch does not apply")

	resp, _ = env.do(t, http.MethodPatch, "/api/documents/plans/todo.md", patchRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPatch, "/api/documents/plans/missing.md", patchRequest{Diff: diff})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_VersionHistory(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/documents", documentRequest{Path: "plans/q1.md", Content: "v1\n"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPut, "/api/documents/plans/q1.md", documentRequest{Content: "v2\n"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPatch, "/api/documents/plans/q1.md", patchRequest{Diff: "@@ -1 +1 @@\n-v2\n+v3\n"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	type history struct {
		Path     string               `json:"filepath"`
		Versions []domain.FileVersion `json:"versions"`
		Total    int                  `json:"total"`
	}
	resp, body := env.do(t, http.MethodGet, "/api/versions/plans/q1.md", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	var h history
	body.decode(t, &h)
	assert.Equal(t, "plans/q1.md", h.Path)
	require.Equal(t, 3, h.Total)
	assert.Equal(t, []string{"v3\n", "v2\n", "v1\n"}, []string{h.Versions[0].Content, h.Versions[1].Content, h.Versions[2].Content})
	assert.Equal(t, "patch", h.Versions[0].Message)
	assert.Equal(t, "create", h.Versions[2].Message)

	first := h.Versions[2].ID
	resp, body = env.do(t, http.MethodPost, "/api/restore/plans/q1.md", restoreRequest{VersionID: first})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	f, err := env.ws.Read(context.Background(), "plans/q1.md")
	require.NoError(t, err)
	assert.Equal(t, "v1\n", f.Content)

	resp, body = env.do(t, http.MethodGet, "/api/versions/plans/q1.md?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body.decode(t, &h)
	require.Len(t, h.Versions, 1)
	assert.Equal(t, "v1\n", h.Versions[0].Content)
	assert.True(t, strings.HasPrefix(h.Versions[0].Message, "restore "))

	// A version only restores onto its own file.
	resp, _ = env.do(t, http.MethodPost, "/api/restore/plans/other.md", restoreRequest{VersionID: first})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/restore/plans/q1.md", restoreRequest{VersionID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/restore/plans/q1.md", restoreRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// History follows a move, and a deleted file can be restored.
	resp, _ = env.do(t, http.MethodPost, "/api/documents/move", moveRequest{Source: "plans/q1.md", Destination: "archive/q1.md"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/documents/archive/q1.md?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/versions/archive/q1.md", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body.decode(t, &h)
	require.Equal(t, 4, h.Total)

	resp, body = env.do(t, http.MethodPost, "/api/restore/archive/q1.md", restoreRequest{VersionID: h.Versions[1].ID})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	var restored struct {
		Created bool `json:"created"`
	}
	body.decode(t, &restored)
	assert.True(t, restored.Created)
	f, err = env.ws.Read(context.Background(), "archive/q1.md")
	require.NoError(t, err)
	assert.Equal(t, "v3\n", f.Content)
}

func TestAPI_Folders(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/folders", folderRequest{Path: "projects/alpha"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/folders", folderRequest{Path: "projects/beta"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/documents", documentRequest{Path: "projects/alpha/a.md", Content: "a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/folders?q=alp", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var suggestions struct {
		Folders []struct {
			Path string `json:"path"`
		} `json:"folders"`
	}
	body.decode(t, &suggestions)
	require.NotEmpty(t, suggestions.Folders)
	assert.Equal(t, "projects/alpha", suggestions.Folders[0].Path)

	resp, body = env.do(t, http.MethodDelete, "/api/folder-files/projects/alpha?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cleared struct {
		Deleted []string `json:"deleted_files"`
	}
	body.decode(t, &cleared)
	assert.Equal(t, []string{"projects/alpha/a.md"}, cleared.Deleted)

	resp, _ = env.do(t, http.MethodDelete, "/api/folders/projects/beta", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/folders/projects/beta?confirm=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/folders/projects/beta?confirm=true", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_FolderNamedFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, p := range []string{"files/sub/keep.md", "sub/important.md", "files/other.md"} {
		_, err := env.ws.Write(ctx, p, "x")
		require.NoError(t, err)
	}

	resp, body := env.do(t, http.MethodDelete, "/api/folders/files/sub?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)

	_, err := env.ws.Read(ctx, "files/sub/keep.md")
	assert.ErrorIs(t, err, workspace.ErrNotFound)
	_, err = env.ws.Read(ctx, "sub/important.md")
	assert.NoError(t, err)

	resp, body = env.do(t, http.MethodDelete, "/api/folder-files/files?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	var cleared struct {
		Deleted []string `json:"deleted_files"`
	}
	body.decode(t, &cleared)
	assert.Equal(t, []string{"files/other.md"}, cleared.Deleted)

	_, err = env.ws.Read(ctx, "sub/important.md")
	assert.NoError(t, err)
}

func TestAPI_Upload(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.upload(t, "inbox", "notes.txt", "hello")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)
	var res struct {
		Path string `json:"filepath"`
		Size int64  `json:"file_size"`
	}
	body.decode(t, &res)
	assert.Equal(t, "inbox/notes.txt", res.Path)
	assert.EqualValues(t, 5, res.Size)

	resp, _ = env.upload(t, "inbox", "tool.exe", "MZ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	big := bytes.Repeat([]byte("x"), 2<<10)
	resp, _ = env.upload(t, "inbox", "big.txt", string(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAPI_UploadRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Upload.RatePerMinute = 1
		c.Upload.Burst = 1
	})

	resp, _ := env.upload(t, "", "a.txt", "a")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.upload(t, "", "b.txt", "b")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestAPI_Search(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/documents", documentRequest{Path: "a.md", Content: "alpha\nbeta\n"})

	resp, body := env.do(t, http.MethodGet, "/api/search?q=BETA", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res struct {
		Total   int `json:"total"`
		Results []struct {
			Path string `json:"filepath"`
			Line int    `json:"line"`
		} `json:"results"`
	}
	body.decode(t, &res)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "a.md", res.Results[0].Path)
	assert.Equal(t, 2, res.Results[0].Line)

	resp, _ = env.do(t, http.MethodGet, "/api/search?q=", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Presets(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/presets", map[string]any{
		"label":            "Research",
		"query":            "Find sources",
		"selected_servers": []string{"search"},
		"agent_mode":       "ReAct",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)
	var p domain.Preset
	body.decode(t, &p)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.IsPredefined)

	resp, _ = env.do(t, http.MethodPost, "/api/presets", map[string]any{"query": "no label"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list presetList
	body.decode(t, &list)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, defaultPageLimit, list.Limit)

	resp, _ = env.do(t, http.MethodGet, "/api/presets?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/presets/"+p.ID, map[string]any{"label": "Research v2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body.decode(t, &p)
	assert.Equal(t, "Research v2", p.Label)
	assert.Equal(t, "Find sources", p.Query)

	resp, body = env.do(t, http.MethodPost, "/api/presets/"+p.ID+"/apply", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var draft composer.Draft
	body.decode(t, &draft)
	assert.Equal(t, domain.ModeReAct, draft.AgentMode)
	assert.Equal(t, []string{"search"}, draft.SelectedServers)
	assert.Equal(t, p.ID, draft.PresetID)
	assert.True(t, draft.Ready)

	resp, _ = env.do(t, http.MethodDelete, "/api/presets/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/presets/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_PredefinedPresetCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.srv.presets.SeedPredefined([]domain.PresetInput{{Label: "Daily", Query: "Summarise today"}})
	require.NoError(t, err)

	presets, _, err := env.srv.presets.List(0, 0)
	require.NoError(t, err)
	require.Len(t, presets, 1)

	resp, _ := env.do(t, http.MethodDelete, "/api/presets/"+presets[0].ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_MCPServers(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/mcp/servers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Servers []domain.MCPServer `json:"servers"`
		Total   int                `json:"total"`
	}
	body.decode(t, &list)
	assert.Equal(t, 2, list.Total)

	resp, _ = env.do(t, http.MethodPost, "/api/mcp/servers", domain.MCPServer{Name: "planner", Command: "planner-mcp"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/mcp/servers", domain.MCPServer{Name: "broken"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/mcp/servers/filesystem", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/mcp/servers/planner", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/mcp/servers/planner", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	draft := composer.Draft{
		AgentMode:       domain.ModeWorkflow,
		Query:           "Plan the launch\nwith details",
		SelectedServers: []string{"filesystem"},
		SelectedFolder:  "launch",
	}
	resp, body := env.do(t, http.MethodPost, "/api/chat-history/sessions", createSessionRequest{Draft: &draft})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)
	var sess domain.ChatSession
	body.decode(t, &sess)
	assert.Equal(t, "Plan the launch", sess.Title)
	assert.Equal(t, domain.StatusActive, sess.Status)
	assert.Equal(t, 1, sess.TotalEvents)

	resp, body = env.do(t, http.MethodPost, "/api/chat-history/sessions/"+sess.ID+"/events", domain.Event{
		Type: domain.EventToolCallStart,
		Data: json.RawMessage(`{"tool":"read_file"}`),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)

	resp, _ = env.do(t, http.MethodPost, "/api/chat-history/sessions/"+sess.ID+"/events", domain.Event{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/chat-history/sessions/"+sess.ID+"/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events eventList
	body.decode(t, &events)
	require.Equal(t, 2, events.Total)
	assert.Equal(t, domain.EventUserMessage, events.Events[0].Type)
	assert.Equal(t, domain.EventToolCallStart, events.Events[1].Type)

	resp, body = env.do(t, http.MethodGet, "/api/chat-history/sessions/"+sess.ID+"/events?type=tool_call_start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body.decode(t, &events)
	assert.Equal(t, 1, events.Total)

	resp, body = env.do(t, http.MethodGet, "/api/chat-history/search?q=read_file", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found struct {
		Total int `json:"total"`
	}
	body.decode(t, &found)
	assert.Equal(t, 1, found.Total)

	resp, body = env.do(t, http.MethodPut, "/api/chat-history/sessions/"+sess.ID, updateSessionRequest{Status: domain.StatusCompleted})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body.decode(t, &sess)
	assert.Equal(t, domain.StatusCompleted, sess.Status)
	assert.NotNil(t, sess.CompletedAt)

	resp, body = env.do(t, http.MethodGet, "/api/chat-history/sessions?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list sessionList
	body.decode(t, &list)
	assert.Equal(t, 1, list.Total)

	resp, _ = env.do(t, http.MethodGet, "/api/chat-history/sessions?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/chat-history/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/chat-history/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SessionFromPreset(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/presets", map[string]any{"label": "Quick", "query": "What changed?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p domain.Preset
	body.decode(t, &p)

	resp, body = env.do(t, http.MethodPost, "/api/chat-history/sessions", createSessionRequest{PresetID: p.ID, Title: "From preset"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)
	var sess domain.ChatSession
	body.decode(t, &sess)
	assert.Equal(t, p.ID, sess.PresetID)
	assert.Equal(t, "From preset", sess.Title)

	resp, body = env.do(t, http.MethodGet, "/api/chat-history/sessions?preset_id="+p.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list sessionList
	body.decode(t, &list)
	assert.Equal(t, 1, list.Total)
}

func TestAPI_SessionValidation(t *testing.T) {
	env := newTestEnv(t)

	// Workflow mode needs a folder.
	draft := composer.Draft{AgentMode: domain.ModeWorkflow, Query: "go"}
	resp, body := env.do(t, http.MethodPost, "/api/chat-history/sessions", createSessionRequest{Draft: &draft})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body.Error, "selected_folder")

	draft = composer.Draft{Query: "go", SelectedServers: []string{"unknown"}}
	resp, _ = env.do(t, http.MethodPost, "/api/chat-history/sessions", createSessionRequest{Draft: &draft})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/chat-history/sessions", createSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/chat-history/sessions", createSessionRequest{PresetID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SessionClientErrors(t *testing.T) {
	env := newTestEnv(t)
	const path = "/api/chat-history/sessions"

	// A draft may carry the preset it was applied from; it must exist.
	draft := composer.Draft{Query: "status?", PresetID: "gone"}
	resp, body := env.do(t, http.MethodPost, path, createSessionRequest{Draft: &draft})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body.Error, "gone")

	draft = composer.Draft{Query: "status?"}
	req := createSessionRequest{SessionID: "ui-42", Draft: &draft}
	resp, body = env.do(t, http.MethodPost, path, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)

	resp, body = env.do(t, http.MethodPost, path, req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body.Error, "ui-42")

	resp, body = env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list sessionList
	body.decode(t, &list)
	assert.Equal(t, 1, list.Total)
}

func TestAPI_UnavailableBackends(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Auth.Token = testToken
	srv := New(cfg, logging.New(nil, "silent"))
	env := &testEnv{srv: srv, ts: httptest.NewServer(srv.Handler()), token: testToken}
	t.Cleanup(env.ts.Close)

	for _, path := range []string{"/api/documents", "/api/presets", "/api/mcp/servers", "/api/chat-history/sessions", "/api/versions/a.md"} {
		resp, body := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.False(t, body.Success)
	}

	// Modes need no backend.
	resp, _ := env.do(t, http.MethodGet, "/api/modes", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPatch, "/api/modes", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.False(t, body.Success)
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "Short", sessionTitle("  Short  "))
	assert.Equal(t, "First line", sessionTitle("First line\nsecond"))

	long := string(bytes.Repeat([]byte("a"), 100))
	title := sessionTitle(long)
	assert.Equal(t, maxTitleRunes, len([]rune(title)))
	assert.Equal(t, "…", string([]rune(title)[maxTitleRunes-1:]))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.ValidationError{Field: "label", Message: "is required"}, http.StatusBadRequest},
		{fmt.Errorf("%w: x", errBadRequest), http.StatusBadRequest},
		{errConfirm, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", workspace.ErrInvalidPath), http.StatusBadRequest},
		{fmt.Errorf("%w: hunk 1", workspace.ErrBadPatch), http.StatusBadRequest},
		{workspace.ErrNotFound, http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{mcpservers.ErrNotFound, http.StatusNotFound},
		{workspace.ErrExists, http.StatusConflict},
		{fmt.Errorf("session x: %w", store.ErrExists), http.StatusConflict},
		{store.ErrPredefined, http.StatusForbidden},
		{mcpservers.ErrBaseServer, http.StatusForbidden},
		{workspace.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errRateLimited, http.StatusTooManyRequests},
		{errUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}

	assert.Equal(t, "invalid_params", errorCode(http.StatusBadRequest))
	assert.Equal(t, "internal_error", errorCode(http.StatusInternalServerError))
}

func TestPageParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	limit, offset, err := pageParams(r)
	require.NoError(t, err)
	assert.Equal(t, defaultPageLimit, limit)
	assert.Equal(t, 0, offset)

	for _, q := range []string{"limit=0", "limit=501", "offset=-1", "limit=abc"} {
		r := httptest.NewRequest(http.MethodGet, "/api/presets?"+q, nil)
		_, _, err := pageParams(r)
		assert.ErrorIs(t, err, errBadRequest, q)
	}
}
