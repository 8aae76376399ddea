package workspace

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// hunk is one @@ section of a unified diff. old holds the context and
// removed lines the file must contain; new holds what replaces them.
// ctx[i] is the index in old of new[i] when that line is context, else -1.
type hunk struct {
	oldStart int
	old      []string
	new      []string
	ctx      []int
}

func (h *hunk) context(line string) {
	h.ctx = append(h.ctx, len(h.old))
	h.old = append(h.old, line)
	h.new = append(h.new, line)
}

// PatchResult reports an applied diff.
type PatchResult struct {
	Path    string `json:"filepath"`
	Hunks   int    `json:"hunks"`
	Size    int    `json:"size"`
	Content string `json:"-"`
}

// parsePatch reads the hunks of a single-file unified diff. File headers
// and anything before the first hunk are ignored. Inside a hunk an empty
// line is taken as an empty context line.
func parsePatch(diff string) ([]hunk, error) {
	lines := strings.Split(strings.ReplaceAll(diff, "\r\n", "\n"), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var (
		hunks []hunk
		cur   *hunk
	)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "@@") {
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("%w: malformed hunk header %q", ErrBadPatch, line)
			}
			start, _ := strconv.Atoi(m[1])
			hunks = append(hunks, hunk{oldStart: start})
			cur = &hunks[len(hunks)-1]
			continue
		}
		if cur == nil {
			continue
		}
		// A second file header ends the hunk list.
		if strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ") {
			return nil, fmt.Errorf("%w: only single-file diffs are supported", ErrBadPatch)
		}
		switch {
		case line == "":
			cur.context("")
		case line[0] == ' ':
			cur.context(line[1:])
		case line[0] == '-':
			cur.old = append(cur.old, line[1:])
		case line[0] == '+':
			cur.ctx = append(cur.ctx, -1)
			cur.new = append(cur.new, line[1:])
		case line[0] == '\\':
			// "\ No newline at end of file"
		default:
			return nil, fmt.Errorf("%w: unexpected line %q in hunk %d", ErrBadPatch, line, len(hunks))
		}
	}

	if len(hunks) == 0 {
		return nil, fmt.Errorf("%w: no hunks found", ErrBadPatch)
	}
	for i, h := range hunks {
		if len(h.old) == 0 && len(h.new) == 0 {
			return nil, fmt.Errorf("%w: hunk %d is empty", ErrBadPatch, i+1)
		}
	}
	return hunks, nil
}

// applyHunks applies hunks in order. Each hunk is located by content,
// starting at its header line and widening outward, so line numbers that
// are off still apply. Context lines keep the file's text and CRLF files
// keep their line endings.
func applyHunks(content string, hunks []hunk) (string, error) {
	crlf := strings.Contains(content, "\r\n")
	if crlf {
		content = strings.ReplaceAll(content, "\r\n", "\n")
	}
	lines := strings.Split(content, "\n")

	offset, floor := 0, 0
	for i, h := range hunks {
		end := len(lines)
		if end > 0 && lines[end-1] == "" {
			end--
		}

		// -N,M starts at line N; -N,0 inserts after line N.
		base := max(h.oldStart-1, 0)
		if len(h.old) == 0 {
			base = h.oldStart
		}

		var pos int
		if len(h.old) == 0 {
			pos = min(max(base+offset, floor), end)
		} else {
			pos = locate(lines[:end], h.old, base+offset, floor)
			if pos < 0 {
				return "", fmt.Errorf("%w: hunk %d (@@ -%d) does not match the file", ErrBadPatch, i+1, h.oldStart)
			}
		}

		next := make([]string, 0, len(lines)-len(h.old)+len(h.new))
		next = append(next, lines[:pos]...)
		for j, l := range h.new {
			if k := h.ctx[j]; k >= 0 {
				l = lines[pos+k]
			}
			next = append(next, l)
		}
		next = append(next, lines[pos+len(h.old):]...)
		lines = next

		offset = pos - base + len(h.new) - len(h.old)
		floor = pos + len(h.new)
	}

	out := strings.Join(lines, "\n")
	if crlf {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, nil
}

// locate returns the index at or after floor where block occurs in lines,
// preferring the match closest to want. Exact matches win over matches
// that differ only in trailing whitespace.
func locate(lines, block []string, want, floor int) int {
	last := len(lines) - len(block)
	if last < floor {
		return -1
	}
	want = min(max(want, floor), last)

	exact := func(a, b string) bool { return a == b }
	loose := func(a, b string) bool {
		return strings.TrimRight(a, " \t") == strings.TrimRight(b, " \t")
	}
	for _, eq := range []func(a, b string) bool{exact, loose} {
		for d := 0; want-d >= floor || want+d <= last; d++ {
			if p := want - d; p >= floor && matchAt(lines, block, p, eq) {
				return p
			}
			if p := want + d; d > 0 && p <= last && matchAt(lines, block, p, eq) {
				return p
			}
		}
	}
	return -1
}

func matchAt(lines, block []string, p int, eq func(a, b string) bool) bool {
	for i, b := range block {
		if !eq(lines[p+i], b) {
			return false
		}
	}
	return true
}

// ApplyPatch applies a single-file unified diff to content.
func ApplyPatch(content, diff string) (string, error) {
	hunks, err := parsePatch(diff)
	if err != nil {
		return "", err
	}
	return applyHunks(content, hunks)
}

// Patch applies a unified diff to an existing text file in place.
func (s *Store) Patch(ctx context.Context, p, diff string) (_ PatchResult, err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return PatchResult{}, err
	}
	_, span := startSpan(ctx, "patch", rel)
	defer func() { endSpan(span, err) }()

	if rel == "" {
		return PatchResult{}, fmt.Errorf("%w: a file path is required", ErrInvalidPath)
	}
	hunks, err := parsePatch(diff)
	if err != nil {
		return PatchResult{}, err
	}

	release, err := s.lock(rel)
	if err != nil {
		return PatchResult{}, err
	}
	defer release()

	info, err := s.stat(rel)
	if err != nil {
		return PatchResult{}, err
	}
	if info.IsDir() {
		return PatchResult{}, fmt.Errorf("%w: %s", ErrIsFolder, rel)
	}
	if !IsTextFile(rel, "") {
		return PatchResult{}, fmt.Errorf("%w: %s", ErrUnsupportedType, rel)
	}

	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return PatchResult{}, err
	}
	patched, err := applyHunks(string(data), hunks)
	if err != nil {
		return PatchResult{}, err
	}
	if _, err := s.writeLocked(rel, patched); err != nil {
		return PatchResult{}, err
	}

	s.log.Info().Str("path", rel).Int("hunks", len(hunks)).Msg("patch applied")
	return PatchResult{Path: rel, Hunks: len(hunks), Size: len(patched), Content: patched}, nil
}
