package workspace

import (
	"slices"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/soyeahso/workbench/internal/domain"
)

// BuildTree nests a flat listing. The node at rootFolder, and nodes whose
// parent folder is not part of the listing, become top-level nodes. Each
// level is ordered folders first, then by path.
func BuildTree(flat []domain.File, rootFolder string) []domain.File {
	folders := make(map[string]bool)
	for _, f := range flat {
		if f.IsFolder() {
			folders[f.Path] = true
		}
	}

	children := make(map[string][]domain.File)
	var roots []domain.File
	for _, f := range flat {
		f.Children = nil
		if f.Path != rootFolder && f.Folder != "" && f.Folder != f.Path && folders[f.Folder] {
			children[f.Folder] = append(children[f.Folder], f)
			continue
		}
		roots = append(roots, f)
	}

	var attach func(nodes []domain.File) []domain.File
	attach = func(nodes []domain.File) []domain.File {
		for i := range nodes {
			if nodes[i].IsFolder() {
				nodes[i].Children = attach(children[nodes[i].Path])
			}
		}
		sortLevel(nodes)
		return nodes
	}
	return attach(roots)
}

func sortLevel(nodes []domain.File) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsFolder() != nodes[j].IsFolder() {
			return nodes[i].IsFolder()
		}
		return nodes[i].Path < nodes[j].Path
	})
}

// FilterTree keeps the nodes whose name contains query, ignoring case. A
// matching folder keeps its whole subtree; a folder that only has matching
// descendants keeps just those. The input is not modified.
func FilterTree(tree []domain.File, query string) []domain.File {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return slices.Clone(tree)
	}

	var out []domain.File
	for _, node := range tree {
		if strings.Contains(strings.ToLower(node.Name()), query) {
			out = append(out, node)
			continue
		}
		if !node.IsFolder() {
			continue
		}
		if kept := FilterTree(node.Children, query); len(kept) > 0 {
			node.Children = kept
			out = append(out, node)
		}
	}
	return out
}

// RemovePath returns the tree without the node at p and its subtree. The
// input is not modified.
func RemovePath(tree []domain.File, p string) []domain.File {
	out := make([]domain.File, 0, len(tree))
	for _, node := range tree {
		if node.Path == p {
			continue
		}
		if node.IsFolder() && strings.HasPrefix(p, node.Path+"/") {
			node.Children = RemovePath(node.Children, p)
		}
		out = append(out, node)
	}
	return out
}

// FolderPaths flattens the folders of a tree in display order.
func FolderPaths(tree []domain.File) []string {
	var out []string
	var walk func(nodes []domain.File)
	walk = func(nodes []domain.File) {
		for _, n := range nodes {
			if !n.IsFolder() {
				continue
			}
			out = append(out, n.Path)
			walk(n.Children)
		}
	}
	walk(tree)
	return out
}

// CountFiles counts the file (non-folder) nodes of a tree.
func CountFiles(tree []domain.File) int {
	n := 0
	for _, node := range tree {
		if node.IsFolder() {
			n += CountFiles(node.Children)
		} else {
			n++
		}
	}
	return n
}

// FolderMatch is a ranked folder suggestion.
type FolderMatch struct {
	Path    string `json:"path"`
	Score   int    `json:"score"`
	Matched []int  `json:"matched,omitempty"`
}

// FuzzyFolders ranks folders against query for the folder picker. An empty
// query keeps the input order. limit <= 0 means no limit.
func FuzzyFolders(query string, folders []string, limit int) []FolderMatch {
	var out []FolderMatch
	if strings.TrimSpace(query) == "" {
		for _, f := range folders {
			out = append(out, FolderMatch{Path: f})
		}
	} else {
		for _, m := range fuzzy.Find(query, folders) {
			out = append(out, FolderMatch{Path: m.Str, Score: m.Score, Matched: m.MatchedIndexes})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
