package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/soyeahso/workbench/internal/domain"
)

func jsonOutput() bool { return output == "json" }

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a table writer mirrored to w with the header set.
func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

// renderCount prints the row count footer below a table.
func renderCount(w io.Writer, shown, total int) {
	if shown == total {
		fmt.Fprintf(w, "(%d rows)\n", total)
		return
	}
	fmt.Fprintf(w, "(%d of %d rows)\n", shown, total)
}

// renderTree prints a workspace tree with connected branches.
func renderTree(w io.Writer, files []domain.File) {
	l := list.NewWriter()
	l.SetOutputMirror(w)
	l.SetStyle(list.StyleConnectedLight)
	appendNodes(l, files)
	l.Render()
}

func appendNodes(l list.Writer, nodes []domain.File) {
	for _, n := range nodes {
		if n.IsFolder() {
			l.AppendItem(n.Name() + "/")
			if len(n.Children) > 0 {
				l.Indent()
				appendNodes(l, n.Children)
				l.UnIndent()
			}
			continue
		}
		l.AppendItem(fmt.Sprintf("%s (%s)", n.Name(), humanize.Bytes(uint64(n.Size))))
	}
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// truncate shortens s to n runes on one line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
