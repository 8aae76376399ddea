package workspace

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrInvalidPath     = errors.New("invalid path")
	ErrInvalidQuery    = errors.New("invalid search query")
	ErrIsFolder        = errors.New("path is a folder")
	ErrNotFolder       = errors.New("path is not a folder")
	ErrLocked          = errors.New("path is being modified")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("only text-based files can be uploaded")
	ErrBadPatch        = errors.New("patch does not apply")
)
