package workspace

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 100

const maxLineLength = 500

// SearchMatch is one matching line.
type SearchMatch struct {
	Path    string `json:"filepath"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// SearchResult is the response of a workspace search.
type SearchResult struct {
	Query     string        `json:"query"`
	Folder    string        `json:"folder,omitempty"`
	Results   []SearchMatch `json:"results"`
	Total     int           `json:"total"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Search runs a regular expression over the text files below folder.
// Matching is case-insensitive unless the pattern sets its own flags.
func (s *Store) Search(ctx context.Context, query, folder string, limit int) (_ SearchResult, err error) {
	dir, err := s.Clean(folder)
	if err != nil {
		return SearchResult{}, err
	}
	ctx, span := startSpan(ctx, "search", dir)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(query) == "" {
		return SearchResult{}, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}
	pattern := query
	if !strings.HasPrefix(pattern, "(?") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return SearchResult{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	info, err := s.stat(dir)
	if err != nil {
		return SearchResult{}, err
	}
	if !info.IsDir() {
		return SearchResult{}, fmt.Errorf("%w: %s", ErrNotFolder, dir)
	}

	res := SearchResult{Query: query, Folder: dir, Results: []SearchMatch{}}
	err = filepath.WalkDir(s.abs(dir), func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsTextFile(d.Name(), "") || IsImage(d.Name()) {
			return nil
		}
		if res.Truncated {
			return filepath.SkipAll
		}
		return s.searchFile(p, re, limit, &res)
	})
	if err != nil {
		return SearchResult{}, err
	}

	res.Total = len(res.Results)
	span.SetAttributes(attribute.Int("workspace.matches", res.Total))
	return res, nil
}

func (s *Store) searchFile(abs string, re *regexp.Regexp, limit int, res *SearchResult) error {
	f, err := os.Open(abs)
	if err != nil {
		return nil
	}
	defer f.Close()

	rel := s.rel(abs)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if !re.MatchString(text) {
			continue
		}
		if len(res.Results) >= limit {
			res.Truncated = true
			return nil
		}
		if len(text) > maxLineLength {
			cut := maxLineLength
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
		res.Results = append(res.Results, SearchMatch{Path: rel, Line: line, Content: text})
	}
	return nil
}
