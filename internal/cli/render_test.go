package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRenderTree(t *testing.T) {
	files := []domain.File{
		{Path: "notes", Type: domain.FileTypeFolder, Children: []domain.File{
			{Path: "notes/a.md", Type: domain.FileTypeFile, Size: 2048},
		}},
		{Path: "todo.md", Type: domain.FileTypeFile, Size: 12},
	}

	var buf bytes.Buffer
	renderTree(&buf, files)
	out := buf.String()

	assert.Contains(t, out, "notes/")
	assert.Contains(t, out, "a.md (2.0 kB)")
	assert.Contains(t, out, "todo.md (12 B)")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a.md")), bytes.Index(buf.Bytes(), []byte("todo.md")))
}

func TestRenderCount(t *testing.T) {
	var buf bytes.Buffer
	renderCount(&buf, 3, 3)
	renderCount(&buf, 2, 9)
	assert.Equal(t, "(3 rows)\n(2 of 9 rows)\n", buf.String())
}

func TestNewTable(t *testing.T) {
	var buf bytes.Buffer
	tw := newTable(&buf, "Name", "Count")
	tw.AppendRow([]any{"alpha", 1})
	tw.Render()
	assert.Contains(t, buf.String(), "NAME")
	assert.Contains(t, buf.String(), "alpha")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b\tc", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestDashHelpers(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
	assert.Equal(t, "-", joinOrDash(nil))
	assert.Equal(t, "a, b", joinOrDash([]string{"a", "b"}))
	assert.Equal(t, "-", ago(time.Time{}))
}
