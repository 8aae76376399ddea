package workspace

import (
	"testing"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func folder(p, parent string) domain.File {
	return domain.File{Path: p, Folder: parent, Type: domain.FileTypeFolder}
}

func file(p, parent string) domain.File {
	return domain.File{Path: p, Folder: parent, Type: domain.FileTypeFile}
}

func sampleTree() []domain.File {
	return BuildTree([]domain.File{
		file("readme.md", ""),
		folder("plans", ""),
		file("plans/roadmap.md", "plans"),
		folder("plans/q3", "plans"),
		file("plans/q3/budget.md", "plans/q3"),
		folder("archive", ""),
		file("archive/old-roadmap.md", "archive"),
	}, "")
}

func TestBuildTree(t *testing.T) {
	tree := sampleTree()

	require.Equal(t, []string{"archive", "plans", "readme.md"}, paths(tree))
	assert.Equal(t, []string{"plans/q3", "plans/roadmap.md"}, paths(tree[1].Children))
	assert.Equal(t, []string{"plans/q3/budget.md"}, paths(tree[1].Children[0].Children))
}

func TestBuildTree_OrphansBecomeRoots(t *testing.T) {
	tree := BuildTree([]domain.File{
		file("deep/nested/x.md", "deep/nested"),
		folder("deep/nested/more", "deep/nested"),
	}, "")
	assert.Equal(t, []string{"deep/nested/more", "deep/nested/x.md"}, paths(tree))
}

func TestBuildTree_RootFolderIsTopLevel(t *testing.T) {
	tree := BuildTree([]domain.File{
		folder("plans", ""),
		folder("plans/q3", "plans"),
		file("plans/q3/budget.md", "plans/q3"),
	}, "plans/q3")
	require.Equal(t, []string{"plans", "plans/q3"}, paths(tree))
	assert.Empty(t, tree[0].Children)
	assert.Equal(t, []string{"plans/q3/budget.md"}, paths(tree[1].Children))
}

func TestFilterTree(t *testing.T) {
	tree := sampleTree()

	got := FilterTree(tree, "ROADMAP")
	require.Equal(t, []string{"archive", "plans"}, paths(got))
	assert.Equal(t, []string{"archive/old-roadmap.md"}, paths(got[0].Children))
	assert.Equal(t, []string{"plans/roadmap.md"}, paths(got[1].Children))

	got = FilterTree(tree, "q3")
	require.Equal(t, []string{"plans"}, paths(got))
	require.Equal(t, []string{"plans/q3"}, paths(got[0].Children))
	assert.Equal(t, []string{"plans/q3/budget.md"}, paths(got[0].Children[0].Children), "matching folder keeps its subtree")

	assert.Empty(t, FilterTree(tree, "nothing-matches"))
	assert.Equal(t, tree, FilterTree(tree, "  "))
}

func TestFilterTree_DoesNotMutate(t *testing.T) {
	tree := sampleTree()
	_ = FilterTree(tree, "budget")
	assert.Equal(t, sampleTree(), tree)
}

func TestFilterTree_EmptyQueryCopies(t *testing.T) {
	tree := sampleTree()
	got := FilterTree(tree, "")
	require.Equal(t, tree, got)

	got[0] = file("replaced.md", "")
	assert.Equal(t, "archive", tree[0].Path, "caller's slice is not shared")
}

func TestRemovePath(t *testing.T) {
	tree := sampleTree()

	got := RemovePath(tree, "plans/q3")
	assert.Equal(t, []string{"archive", "plans"}, FolderPaths(got))
	assert.Equal(t, 4, CountFiles(tree), "input untouched")
	assert.Equal(t, 3, CountFiles(got))

	got = RemovePath(tree, "readme.md")
	assert.Equal(t, []string{"archive", "plans"}, paths(got))
}

func TestFolderPaths(t *testing.T) {
	assert.Equal(t, []string{"archive", "plans", "plans/q3"}, FolderPaths(sampleTree()))
	assert.Empty(t, FolderPaths(nil))
}

func TestFuzzyFolders(t *testing.T) {
	folders := []string{"plans", "plans/q3", "reports", "archive/old-plans"}

	got := FuzzyFolders("pln", folders, 0)
	var found []string
	for _, m := range got {
		found = append(found, m.Path)
		assert.NotEmpty(t, m.Matched)
	}
	assert.ElementsMatch(t, []string{"plans", "plans/q3", "archive/old-plans"}, found)

	assert.Len(t, FuzzyFolders("pln", folders, 2), 2)
	assert.Empty(t, FuzzyFolders("zzz", folders, 0))
}

func TestFuzzyFolders_EmptyQuery(t *testing.T) {
	folders := []string{"b", "a", "c"}
	got := FuzzyFolders("", folders, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Path)
	assert.Equal(t, "a", got[1].Path)
}
