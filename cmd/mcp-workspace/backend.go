package main

import (
	"context"
	"time"

	"github.com/soyeahso/workbench/internal/apiclient"
	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/soyeahso/workbench/internal/workspace"
)

// Workspace is the document store the tools operate on. *workspace.Store
// serves it directly; gatewayWorkspace serves it through a running gateway.
type Workspace interface {
	List(ctx context.Context, folder string, maxDepth int) ([]domain.File, error)
	Read(ctx context.Context, p string) (domain.File, error)
	Write(ctx context.Context, p, content string) (bool, error)
	Patch(ctx context.Context, p, diff string) (workspace.PatchResult, error)
	Delete(ctx context.Context, p string) error
	Move(ctx context.Context, src, dst string) error
	CreateFolder(ctx context.Context, p string) error
	Search(ctx context.Context, query, folder string, limit int) (workspace.SearchResult, error)
}

// gatewayWorkspace sends every tool call to the gateway REST API, so
// writes take the gateway's path locks, are recorded in its file history
// and reach connected UIs as change events.
type gatewayWorkspace struct {
	c *apiclient.Client
}

func (g gatewayWorkspace) List(ctx context.Context, folder string, maxDepth int) ([]domain.File, error) {
	tree, err := g.c.ListFiles(ctx, apiclient.ListOptions{Folder: folder, MaxDepth: &maxDepth})
	if err != nil {
		return nil, err
	}
	return tree.Files, nil
}

func (g gatewayWorkspace) Read(ctx context.Context, p string) (domain.File, error) {
	f, err := g.c.ReadFile(ctx, p)
	if err != nil {
		return domain.File{}, err
	}
	return *f, nil
}

func (g gatewayWorkspace) Write(ctx context.Context, p, content string) (bool, error) {
	return g.c.WriteFile(ctx, p, content)
}

func (g gatewayWorkspace) Patch(ctx context.Context, p, diff string) (workspace.PatchResult, error) {
	res, err := g.c.PatchFile(ctx, p, diff, "")
	if err != nil {
		return workspace.PatchResult{}, err
	}
	return *res, nil
}

func (g gatewayWorkspace) Delete(ctx context.Context, p string) error {
	return g.c.DeleteFile(ctx, p)
}

func (g gatewayWorkspace) Move(ctx context.Context, src, dst string) error {
	return g.c.MoveFile(ctx, src, dst)
}

func (g gatewayWorkspace) CreateFolder(ctx context.Context, p string) error {
	return g.c.CreateFolder(ctx, p)
}

func (g gatewayWorkspace) Search(ctx context.Context, query, folder string, limit int) (workspace.SearchResult, error) {
	res, err := g.c.Search(ctx, query, folder, limit)
	if err != nil {
		return workspace.SearchResult{}, err
	}
	return *res, nil
}

// openWorkspace picks the backend. An explicit gateway URL routes tool
// calls through that gateway; otherwise the docs directory is opened in
// process with locks private to this process.
func openWorkspace(cfg config.Config, log *logging.Logger) (Workspace, error) {
	if cfg.Gateway.URL != "" {
		log.Info().Str("gateway", cfg.Gateway.URL).Msg("serving workspace through gateway")
		return gatewayWorkspace{c: apiclient.New(cfg.Gateway.URL, apiclient.WithToken(cfg.GatewaySecret()))}, nil
	}

	ws, err := workspace.New(cfg.Workspace.DocsDir, log,
		workspace.WithMaxUploadBytes(cfg.Workspace.MaxUploadBytes),
		workspace.WithLockTimeout(time.Duration(cfg.Workspace.LockTimeoutSeconds)*time.Second),
	)
	if err != nil {
		return nil, err
	}
	log.Info().Str("root", ws.Root()).Msg("serving workspace directory")
	return ws, nil
}
