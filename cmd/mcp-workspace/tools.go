package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/workspace"
)

func tools() []Tool {
	str := func(desc string) Property { return Property{Type: "string", Description: desc} }
	return []Tool{
		{
			Name:        "list_workspace_files",
			Description: "List the files and folders of the workspace as a tree.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"folder":    str("Folder to list, relative to the workspace root. Empty lists the root."),
				"max_depth": {Type: "integer", Description: "Levels below the folder to include; 0 lists direct children, -1 everything.", Default: -1},
			}},
		},
		{
			Name:        "read_workspace_file",
			Description: "Read the text content of a workspace file.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"filepath": str("File path relative to the workspace root."),
			}, Required: []string{"filepath"}},
		},
		{
			Name:        "update_workspace_file",
			Description: "Create or replace a workspace file. Missing parent folders are created.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"filepath": str("File path relative to the workspace root."),
				"content":  str("Full new content of the file."),
			}, Required: []string{"filepath", "content"}},
		},
		{
			Name:        "diff_patch_workspace_file",
			Description: "Apply a single-file unified diff to a workspace file. Hunks are matched by their context lines, so line numbers may be approximate.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"filepath": str("File path relative to the workspace root."),
				"diff":     str("Unified diff with @@ hunk headers; ---/+++ file headers are optional."),
			}, Required: []string{"filepath", "diff"}},
		},
		{
			Name:        "delete_workspace_file",
			Description: "Delete a workspace file.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"filepath": str("File path relative to the workspace root."),
			}, Required: []string{"filepath"}},
		},
		{
			Name:        "move_workspace_file",
			Description: "Move or rename a workspace file. Fails if the destination exists.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"source":      str("Current file path."),
				"destination": str("New file path."),
			}, Required: []string{"source", "destination"}},
		},
		{
			Name:        "create_workspace_folder",
			Description: "Create a folder and any missing parents.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"folder_path": str("Folder path relative to the workspace root."),
			}, Required: []string{"folder_path"}},
		},
		{
			Name:        "regex_search_workspace_files",
			Description: "Search the text files of the workspace with a regular expression. Returns path:line: content matches.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{
				"query":  str("Regular expression (RE2 syntax)."),
				"folder": str("Only search below this folder."),
				"limit":  {Type: "integer", Description: "Maximum matches.", Default: workspace.DefaultSearchLimit},
			}, Required: []string{"query"}},
		},
	}
}

type fileArgs struct {
	Path    string `json:"filepath"`
	Content string `json:"content"`
}

type patchArgs struct {
	Path string `json:"filepath"`
	Diff string `json:"diff"`
}

type listArgs struct {
	Folder   string `json:"folder"`
	MaxDepth *int   `json:"max_depth"`
}

type moveArgs struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type folderArgs struct {
	Path string `json:"folder_path"`
}

type searchArgs struct {
	Query  string `json:"query"`
	Folder string `json:"folder"`
	Limit  int    `json:"limit"`
}

func decodeArgs(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// runTool executes a tool and returns its text output.
func (s *Server) runTool(ctx context.Context, name string, raw json.RawMessage) (string, error) {
	switch name {
	case "list_workspace_files":
		var a listArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		depth := -1
		if a.MaxDepth != nil {
			depth = *a.MaxDepth
		}
		files, err := s.ws.List(ctx, a.Folder, depth)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			return "(empty)", nil
		}
		var b strings.Builder
		writeTree(&b, files, 0)
		fmt.Fprintf(&b, "\n%d file(s)", workspace.CountFiles(files))
		return b.String(), nil

	case "read_workspace_file":
		var a fileArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		f, err := s.ws.Read(ctx, a.Path)
		if err != nil {
			return "", err
		}
		if f.IsImage {
			return "", fmt.Errorf("%s is an image and cannot be read as text", f.Path)
		}
		return f.Content, nil

	case "update_workspace_file":
		var a fileArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		created, err := s.ws.Write(ctx, a.Path, a.Content)
		if err != nil {
			return "", err
		}
		if created {
			return "Created " + a.Path, nil
		}
		return "Updated " + a.Path, nil

	case "diff_patch_workspace_file":
		var a patchArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		res, err := s.ws.Patch(ctx, a.Path, a.Diff)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Applied %d hunk(s) to %s", res.Hunks, res.Path), nil

	case "delete_workspace_file":
		var a fileArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		if err := s.ws.Delete(ctx, a.Path); err != nil {
			return "", err
		}
		return "Deleted " + a.Path, nil

	case "move_workspace_file":
		var a moveArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		if err := s.ws.Move(ctx, a.Source, a.Destination); err != nil {
			return "", err
		}
		return fmt.Sprintf("Moved %s to %s", a.Source, a.Destination), nil

	case "create_workspace_folder":
		var a folderArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		if err := s.ws.CreateFolder(ctx, a.Path); err != nil {
			return "", err
		}
		return "Created folder " + a.Path, nil

	case "regex_search_workspace_files":
		var a searchArgs
		if err := decodeArgs(raw, &a); err != nil {
			return "", err
		}
		res, err := s.ws.Search(ctx, a.Query, a.Folder, a.Limit)
		if err != nil {
			return "", err
		}
		if len(res.Results) == 0 {
			return "No matches", nil
		}
		var b strings.Builder
		for _, m := range res.Results {
			fmt.Fprintf(&b, "%s:%d: %s\n", m.Path, m.Line, m.Content)
		}
		if res.Truncated {
			b.WriteString("(results truncated)\n")
		}
		return strings.TrimSuffix(b.String(), "\n"), nil
	}
	return "", errUnknownTool
}

// writeTree prints one line per node, indented two spaces per level.
func writeTree(b *strings.Builder, nodes []domain.File, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		if n.IsFolder() {
			fmt.Fprintf(b, "%s%s/\n", indent, n.Name())
			writeTree(b, n.Children, depth+1)
			continue
		}
		fmt.Fprintf(b, "%s%s\n", indent, n.Name())
	}
}
