package workspace

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const forbiddenChars = `<>:"|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Clean turns a caller-supplied path into a slash-separated path relative
// to the workspace root. Absolute paths are accepted only when they point
// inside the root. The root itself cleans to "".
func (s *Store) Clean(p string) (string, error) {
	p = strings.TrimSpace(p)
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(s.root, filepath.Clean(p))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %q is outside the workspace", ErrInvalidPath, p)
		}
		p = rel
	}
	p = filepath.ToSlash(p)
	p = strings.Trim(p, "/")

	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "..":
			return "", fmt.Errorf("%w: %q escapes the workspace", ErrInvalidPath, p)
		case ".git":
			return "", fmt.Errorf("%w: %q is inside .git", ErrInvalidPath, p)
		}
		if strings.ContainsAny(seg, forbiddenChars) {
			return "", fmt.Errorf("%w: %q contains one of %s", ErrInvalidPath, p, forbiddenChars)
		}
	}

	p = path.Clean(p)
	if p == "." {
		return "", nil
	}
	return p, nil
}

// abs maps a cleaned relative path to its location on disk.
func (s *Store) abs(rel string) string {
	if rel == "" {
		return s.root
	}
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// rel maps an on-disk path under the root back to its relative form.
func (s *Store) rel(abs string) string {
	r, err := filepath.Rel(s.root, abs)
	if err != nil || r == "." {
		return ""
	}
	return filepath.ToSlash(r)
}

func parentOf(rel string) string {
	dir := path.Dir(rel)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func validateFolderName(rel string) error {
	for _, seg := range strings.Split(rel, "/") {
		name := strings.ToUpper(seg)
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		if reservedNames[name] {
			return fmt.Errorf("%w: %q is a reserved name", ErrInvalidPath, seg)
		}
		if strings.HasSuffix(seg, ".") || strings.HasSuffix(seg, " ") {
			return fmt.Errorf("%w: %q must not end with a dot or space", ErrInvalidPath, seg)
		}
	}
	return nil
}

// SanitizeFilename turns an uploaded file name into a safe lowercase slug.
// Spaces and reserved characters become hyphens, runs of hyphens collapse,
// and an empty result becomes "untitled".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ' || r == '/' || r == '\\' || strings.ContainsRune(forbiddenChars, r):
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.ToLower(b.String())
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	out = strings.Trim(out, "-")
	if out == "" || out == "." || out == ".." {
		return "untitled"
	}
	return out
}
