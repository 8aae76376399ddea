package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const todo = `# Todo List

## Objective
- Complete project analysis
- Generate comprehensive report

## Notes
- Leverages search for research`

func TestApplyPatch(t *testing.T) {
	tests := []struct {
		name    string
		content string
		diff    string
		want    string
	}{
		{
			name:    "insert with blank context line",
			content: todo,
			diff: `--- a/todo.md
+++ b/todo.md
@@ -1,3 +1,4 @@
 # Todo List
+**Patched**: added by diff.

 ## Objective
`,
			want: `# Todo List
**Patched**: added by diff.

## Objective
- Complete project analysis
- Generate comprehensive report

## Notes
- Leverages search for research`,
		},
		{
			name:    "line numbers far off",
			content: "## Notes\n- one\n- two\n- three",
			diff: `--- a/todo.md
+++ b/todo.md
@@ -200,3 +200,4 @@ - one
 - two
 - three
+- four
`,
			want: "## Notes\n- one\n- two\n- three\n- four",
		},
		{
			name:    "removal",
			content: "a\nb\nc\n",
			diff:    "@@ -1,3 +1,2 @@\n a\n-b\n c\n",
			want:    "a\nc\n",
		},
		{
			name:    "two hunks track the offset",
			content: "1\n2\n3\n4\n5\n6\n7\n8\n",
			diff:    "@@ -1,2 +1,4 @@\n 1\n+1a\n+1b\n 2\n@@ -7,2 +9,1 @@\n 7\n-8\n",
			want:    "1\n1a\n1b\n2\n3\n4\n5\n6\n7\n",
		},
		{
			name:    "pure insertion at end",
			content: "a\nb\n",
			diff:    "@@ -2,0 +3,1 @@\n+c\n",
			want:    "a\nb\nc\n",
		},
		{
			name:    "into an empty file",
			content: "",
			diff:    "--- /dev/null\n+++ b/new.md\n@@ -0,0 +1,2 @@\n+# New\n+body\n",
			want:    "# New\nbody\n",
		},
		{
			name:    "crlf file keeps its line endings",
			content: "# Todo\r\n\r\n## Objective\r\n",
			diff:    "@@ -1,3 +1,4 @@\r\n # Todo\r\n+added\r\n \r\n ## Objective\r\n",
			want:    "# Todo\r\nadded\r\n\r\n## Objective\r\n",
		},
		{
			name:    "trailing whitespace tolerated",
			content: "title  \nbody\n",
			diff:    "@@ -1,2 +1,2 @@\n title\n-body\n+text\n",
			want:    "title  \ntext\n",
		},
		{
			name:    "no newline marker ignored",
			content: "a\nb",
			diff:    "@@ -1,2 +1,2 @@\n a\n-b\n\\ No newline at end of file\n+c\n\\ No newline at end of file\n",
			want:    "a\nc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyPatch(tt.content, tt.diff)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyPatch_Rejects(t *testing.T) {
	tests := []struct {
		name string
		diff string
		msg  string
	}{
		{"empty", "", "no hunks"},
		{"headers only", "--- a/todo.md\n+++ b/todo.md\n", "no hunks"},
		{"placeholder header", "--- a/todo.md\n+++ b/todo.md\n@@ ... @@\n # Todo List\n+x\n", "malformed hunk header"},
		{"unprefixed line", "@@ -1,2 +1,3 @@\n # Todo List\n+x\n## Objective\n", "unexpected line"},
		{"context mismatch", "@@ -1,3 +1,4 @@\n # Todo List\n+x\n\n ## Different Content\n", "hunk 1"},
		{"second file", "--- a/a.md\n+++ b/a.md\n@@ -1 +1 @@\n-x\n+y\n--- a/b.md\n+++ b/b.md\n@@ -1 +1 @@\n-x\n+y\n", "single-file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyPatch(todo, tt.diff)
			require.ErrorIs(t, err, ErrBadPatch)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestApplyPatch_HunksApplyInOrder(t *testing.T) {
	// The second hunk's block only exists before the first hunk's edit.
	_, err := ApplyPatch("x\ny\nx\n", "@@ -3,1 +3,1 @@\n-x\n+z\n@@ -1,1 +1,1 @@\n-x\n+w\n")
	require.ErrorIs(t, err, ErrBadPatch)
}

func TestStore_Patch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	writeFile(t, s, "plans/todo.md", todo)

	res, err := s.Patch(ctx, "plans/todo.md", "@@ -7,2 +7,3 @@\n ## Notes\n - Leverages search for research\n+- Second source\n")
	require.NoError(t, err)
	assert.Equal(t, "plans/todo.md", res.Path)
	assert.Equal(t, 1, res.Hunks)
	assert.Equal(t, todo+"\n- Second source", res.Content)
	assert.Equal(t, len(res.Content), res.Size)

	data, err := os.ReadFile(filepath.Join(s.Root(), "plans", "todo.md"))
	require.NoError(t, err)
	assert.Equal(t, res.Content, string(data))
}

func TestStore_PatchErrors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seed(t, s)
	diff := "@@ -1 +1 @@\n-alpha\n+omega\n"

	_, err := s.Patch(ctx, "missing.md", diff)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Patch(ctx, "notes", diff)
	assert.ErrorIs(t, err, ErrIsFolder)

	_, err = s.Patch(ctx, "img.png", diff)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Patch(ctx, "../outside.md", diff)
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = s.Patch(ctx, "readme.md", diff)
	assert.ErrorIs(t, err, ErrBadPatch)
	f, err := s.Read(ctx, "readme.md")
	require.NoError(t, err)
	assert.Equal(t, "# Workspace", f.Content, "a failed patch leaves the file untouched")

	res, err := s.Patch(ctx, "notes/a.md", diff)
	require.NoError(t, err)
	assert.Equal(t, "omega", res.Content)
}
