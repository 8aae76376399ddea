package workspace

import (
	"encoding/base64"
	"mime"
	"path"
	"strings"
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// textExtensions decides by extension first. A false entry is a known
// binary format.
var textExtensions = map[string]bool{
	"txt": true, "md": true, "markdown": true, "json": true, "csv": true,
	"yaml": true, "yml": true, "xml": true, "html": true, "htm": true,
	"css": true, "js": true, "ts": true, "py": true, "go": true,
	"java": true, "cpp": true, "c": true, "h": true, "hpp": true,
	"php": true, "rb": true, "sh": true, "bash": true, "zsh": true,
	"fish": true, "sql": true, "log": true, "conf": true, "config": true,
	"ini": true, "toml": true, "env": true, "gitignore": true, "dockerfile": true,
	"makefile": true, "cmake": true, "gradle": true, "pom": true, "sbt": true,
	"scala": true, "kt": true, "swift": true, "rs": true, "dart": true,
	"r": true, "m": true, "pl": true, "lua": true, "vim": true,
	"tex": true, "latex": true, "rst": true, "adoc": true, "asciidoc": true,
	"org": true, "wiki": true, "svg": true,

	"pdf": false, "doc": false, "docx": false, "xls": false, "xlsx": false,
	"ppt": false, "pptx": false, "zip": false, "rar": false, "7z": false,
	"tar": false, "gz": false, "bz2": false, "xz": false, "jpg": false,
	"jpeg": false, "png": false, "gif": false, "bmp": false, "tiff": false,
	"webp": false, "ico": false, "mp4": false, "avi": false, "mov": false,
	"wmv": false, "flv": false, "webm": false, "mp3": false, "wav": false,
	"flac": false, "aac": false, "ogg": false, "exe": false, "dll": false,
	"so": false, "dylib": false, "bin": false, "app": false, "deb": false,
	"rpm": false, "msi": false, "dmg": false, "iso": false,
}

var textMIMETypes = map[string]bool{
	"text/plain":                true,
	"text/markdown":             true,
	"text/html":                 true,
	"text/css":                  true,
	"text/javascript":           true,
	"text/x-javascript":         true,
	"text/typescript":           true,
	"application/json":          true,
	"application/xml":           true,
	"text/xml":                  true,
	"text/csv":                  true,
	"application/csv":           true,
	"text/yaml":                 true,
	"application/x-yaml":        true,
	"text/x-yaml":               true,
	"application/x-python-code": true,
	"text/x-python":             true,
	"text/x-go":                 true,
	"application/toml":          true,
	"application/x-sh":          true,
	"image/svg+xml":             true,
}

// IsImage reports whether name has an image extension.
func IsImage(name string) bool {
	_, ok := imageTypes[strings.ToLower(path.Ext(name))]
	return ok
}

// IsTextFile reports whether a file may be stored and shown as text. The
// extension table wins; files without a known extension fall back to the
// MIME type, and anything else is rejected.
func IsTextFile(name, contentType string) bool {
	base := strings.ToLower(path.Base(name))
	ext := strings.TrimPrefix(path.Ext(base), ".")
	if ext == "" {
		ext = base
	}
	if ok, known := textExtensions[ext]; known {
		return ok
	}

	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return textMIMETypes[mediaType]
}

// imageDataURL encodes an image as a data URL for inline display.
func imageDataURL(name string, data []byte) string {
	mimeType, ok := imageTypes[strings.ToLower(path.Ext(name))]
	if !ok {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
