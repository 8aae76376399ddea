package domain

import (
	"path"
	"time"
)

// FileType distinguishes files from folders in the workspace tree.
type FileType string

const (
	FileTypeFile   FileType = "file"
	FileTypeFolder FileType = "folder"
)

// File is a node of the workspace tree. Paths are relative to the
// workspace root and always use forward slashes.
type File struct {
	Path       string    `json:"filepath"`
	Folder     string    `json:"folder"`
	Type       FileType  `json:"type"`
	Children   []File    `json:"children,omitempty"`
	IsImage    bool      `json:"is_image,omitempty"`
	Content    string    `json:"content,omitempty"`
	Size       int64     `json:"size,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitzero"`
}

// Name returns the last element of the path.
func (f File) Name() string { return path.Base(f.Path) }

// IsFolder reports whether the node is a folder.
func (f File) IsFolder() bool { return f.Type == FileTypeFolder }

// FileVersion is a saved copy of a workspace file.
type FileVersion struct {
	ID        string    `json:"id"`
	Path      string    `json:"filepath"`
	Message   string    `json:"message,omitempty"`
	Content   string    `json:"content"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
