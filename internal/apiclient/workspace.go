package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/workspace"
)

// Tree is a workspace listing.
type Tree struct {
	Folder     string        `json:"folder,omitempty"`
	Files      []domain.File `json:"files"`
	TotalFiles int           `json:"total_files"`
}

// ListOptions narrows ListFiles.
type ListOptions struct {
	Folder   string
	MaxDepth *int
	Filter   string
}

// ListFiles returns the workspace tree.
func (c *Client) ListFiles(ctx context.Context, opts ListOptions) (*Tree, error) {
	q := url.Values{}
	if opts.Folder != "" {
		q.Set("folder", opts.Folder)
	}
	if opts.MaxDepth != nil {
		q.Set("max_depth", strconv.Itoa(*opts.MaxDepth))
	}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	var t Tree
	if err := c.call(ctx, http.MethodGet, "/documents", q, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReadFile returns a file with its content.
func (c *Client) ReadFile(ctx context.Context, path string) (*domain.File, error) {
	var f domain.File
	if err := c.call(ctx, http.MethodGet, "/documents/"+escapePath(path), nil, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// WriteFile creates or replaces a file and reports whether it was created.
func (c *Client) WriteFile(ctx context.Context, path, content string) (bool, error) {
	var out struct {
		Created bool `json:"created"`
	}
	body := map[string]string{"content": content}
	if err := c.call(ctx, http.MethodPut, "/documents/"+escapePath(path), nil, body, &out); err != nil {
		return false, err
	}
	return out.Created, nil
}

// CreateDocument creates a new markdown document. It fails with a 409 when
// the path exists.
func (c *Client) CreateDocument(ctx context.Context, path, content string) error {
	body := map[string]string{"filepath": path, "content": content}
	return c.call(ctx, http.MethodPost, "/documents", nil, body, nil)
}

// PatchFile applies a unified diff to a file. message labels the version
// the server records.
func (c *Client) PatchFile(ctx context.Context, path, diff, message string) (*workspace.PatchResult, error) {
	body := map[string]string{"diff": diff, "commit_message": message}
	var res workspace.PatchResult
	if err := c.call(ctx, http.MethodPatch, "/documents/"+escapePath(path), nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Versions returns the saved versions of a file, newest first.
func (c *Client) Versions(ctx context.Context, path string, limit int) ([]domain.FileVersion, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Versions []domain.FileVersion `json:"versions"`
	}
	if err := c.call(ctx, http.MethodGet, "/versions/"+escapePath(path), q, nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// RestoreVersion writes a saved version back to its file. It reports
// whether the file had to be recreated.
func (c *Client) RestoreVersion(ctx context.Context, path, versionID string) (bool, error) {
	var out struct {
		Created bool `json:"created"`
	}
	body := map[string]string{"version_id": versionID}
	if err := c.call(ctx, http.MethodPost, "/restore/"+escapePath(path), nil, body, &out); err != nil {
		return false, err
	}
	return out.Created, nil
}

// DeleteFile removes a file.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodDelete, "/documents/"+escapePath(path), confirmQuery(), nil, nil)
}

// MoveFile renames a file.
func (c *Client) MoveFile(ctx context.Context, src, dst string) error {
	body := map[string]string{"source": src, "destination": dst}
	return c.call(ctx, http.MethodPost, "/documents/move", nil, body, nil)
}

// UploadFile sends r as a multipart upload into folder.
func (c *Client) UploadFile(ctx context.Context, folder, filename string, r io.Reader) (*workspace.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("folder_path", folder); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", nil, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res workspace.UploadResult
	if err := c.send(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateFolder creates a folder and its parents.
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodPost, "/folders", nil, map[string]string{"folder_path": path}, nil)
}

// DeleteFolder removes a folder and everything in it.
func (c *Client) DeleteFolder(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodDelete, "/folders/"+escapePath(path), confirmQuery(), nil, nil)
}

// ClearFolder deletes every file below path and keeps the folders. It
// returns the deleted paths.
func (c *Client) ClearFolder(ctx context.Context, path string) ([]string, error) {
	var out struct {
		Deleted []string `json:"deleted_files"`
	}
	if err := c.call(ctx, http.MethodDelete, "/folder-files/"+escapePath(path), confirmQuery(), nil, &out); err != nil {
		return nil, err
	}
	return out.Deleted, nil
}

// SuggestFolders ranks workspace folders against query.
func (c *Client) SuggestFolders(ctx context.Context, query string, limit int) ([]workspace.FolderMatch, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Folders []workspace.FolderMatch `json:"folders"`
	}
	if err := c.call(ctx, http.MethodGet, "/folders", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Folders, nil
}

// Search runs a regular expression over the workspace text files.
func (c *Client) Search(ctx context.Context, query, folder string, limit int) (*workspace.SearchResult, error) {
	q := url.Values{"q": {query}}
	if folder != "" {
		q.Set("folder", folder)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var res workspace.SearchResult
	if err := c.call(ctx, http.MethodGet, "/search", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
