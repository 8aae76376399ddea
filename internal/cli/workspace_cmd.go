package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/soyeahso/workbench/internal/apiclient"
	"github.com/spf13/cobra"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Browse and edit workspace documents",
	}

	cmd.AddCommand(newWorkspaceTreeCmd())
	cmd.AddCommand(newWorkspaceCatCmd())
	cmd.AddCommand(newWorkspacePutCmd())
	cmd.AddCommand(newWorkspacePatchCmd())
	cmd.AddCommand(newWorkspaceHistoryCmd())
	cmd.AddCommand(newWorkspaceRestoreCmd())
	cmd.AddCommand(newWorkspaceNewCmd())
	cmd.AddCommand(newWorkspaceRmCmd())
	cmd.AddCommand(newWorkspaceMvCmd())
	cmd.AddCommand(newWorkspaceMkdirCmd())
	cmd.AddCommand(newWorkspaceRmdirCmd())
	cmd.AddCommand(newWorkspaceClearCmd())
	cmd.AddCommand(newWorkspaceUploadCmd())
	cmd.AddCommand(newWorkspaceSearchCmd())
	cmd.AddCommand(newWorkspaceFoldersCmd())

	return cmd
}

func newWorkspaceTreeCmd() *cobra.Command {
	var (
		depth  int
		filter string
	)
	cmd := &cobra.Command{
		Use:   "tree [folder]",
		Short: "Show the workspace tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			opts := apiclient.ListOptions{Filter: filter}
			if len(args) == 1 {
				opts.Folder = args[0]
			}
			if cmd.Flags().Changed("depth") {
				opts.MaxDepth = &depth
			}
			tree, err := c.ListFiles(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, tree)
			}
			if len(tree.Files) == 0 {
				fmt.Fprintln(out, "(empty)")
				return nil
			}
			renderTree(out, tree.Files)
			fmt.Fprintf(out, "\n%d file(s)\n", tree.TotalFiles)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", -1, "levels below the folder to list (0 = direct children, -1 = all)")
	cmd.Flags().StringVar(&filter, "filter", "", "only show entries whose name contains this text")
	return cmd
}

func newWorkspaceCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			f, err := c.ReadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), f)
			}
			fmt.Fprint(cmd.OutOrStdout(), f.Content)
			return nil
		},
	}
}

func newWorkspacePutCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Write a document from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			created, err := c.WriteFile(cmd.Context(), args[0], content)
			if err != nil {
				return err
			}
			verb := "Updated"
			if created {
				verb = "Created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from this file instead of stdin")
	return cmd
}

func newWorkspacePatchCmd() *cobra.Command {
	var (
		file    string
		message string
	)
	cmd := &cobra.Command{
		Use:   "patch <path>",
		Short: "Apply a unified diff from a file or stdin to a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diff, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.PatchFile(cmd.Context(), args[0], diff, message)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Patched %s (%d hunk(s))\n", res.Path, res.Hunks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the diff from this file instead of stdin")
	cmd.Flags().StringVarP(&message, "message", "m", "", "label for the recorded version")
	return cmd
}

func newWorkspaceHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <path>",
		Short: "List the saved versions of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			versions, err := c.Versions(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, versions)
			}
			t := newTable(out, "ID", "Saved", "Size", "Message")
			for _, v := range versions {
				t.AppendRow([]any{v.ID, ago(v.CreatedAt), humanize.Bytes(uint64(v.Size)), orDash(v.Message)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum versions (default server limit)")
	return cmd
}

func newWorkspaceRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path> <version-id>",
		Short: "Write a saved version back to its document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if _, err := c.RestoreVersion(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newWorkspaceNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <path> [content]",
		Short: "Create a new document; fails if it exists",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			content := ""
			if len(args) == 2 {
				content = args[1]
			}
			if err := c.CreateDocument(cmd.Context(), args[0], content); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", args[0])
			return nil
		},
	}
}

func newWorkspaceRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.DeleteFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newWorkspaceMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <source> <destination>",
		Short: "Move or rename a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.MoveFile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newWorkspaceMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <folder>",
		Short: "Create a folder and its parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.CreateFolder(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s/\n", args[0])
			return nil
		},
	}
}

func newWorkspaceRmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <folder>",
		Short: "Delete a folder and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.DeleteFolder(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/\n", args[0])
			return nil
		},
	}
}

func newWorkspaceClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <folder>",
		Short: "Delete every file below a folder, keeping the folders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			deleted, err := c.ClearFolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, deleted)
			}
			for _, p := range deleted {
				fmt.Fprintf(out, "Deleted %s\n", p)
			}
			fmt.Fprintf(out, "%d file(s) removed\n", len(deleted))
			return nil
		},
	}
}

func newWorkspaceUploadCmd() *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a local file into the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.UploadFile(cmd.Context(), folder, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes, %s)\n", res.Path, res.Size, res.ContentType)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "destination folder (default workspace root)")
	return cmd
}

func newWorkspaceSearchCmd() *cobra.Command {
	var (
		folder string
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "search <pattern>",
		Aliases: []string{"find"},
		Short:   "Search document contents with a regular expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Search(cmd.Context(), args[0], folder, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, res)
			}
			t := newTable(out, "File", "Line", "Content")
			for _, m := range res.Results {
				t.AppendRow([]any{m.Path, m.Line, truncate(m.Content, 80)})
			}
			t.Render()
			renderCount(out, len(res.Results), res.Total)
			if res.Truncated {
				fmt.Fprintln(out, "results truncated; raise --limit to see more")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "only search below this folder")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum matches (default server limit)")
	return cmd
}

func newWorkspaceFoldersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "folders [query]",
		Short: "List folders, ranked by fuzzy match when a query is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			folders, err := c.SuggestFolders(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, folders)
			}
			for _, f := range folders {
				fmt.Fprintln(out, f.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum folders (default server limit)")
	return cmd
}

// readInput returns the content of file, or stdin when file is empty.
func readInput(cmd *cobra.Command, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
