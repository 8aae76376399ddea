// Package workspace implements the document workspace: a directory tree of
// planning documents that the agent UI browses, uploads into and prunes.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
)

const (
	DefaultMaxUploadBytes = 10 << 20
	DefaultLockTimeout    = 30 * time.Second
)

var tracer = otel.Tracer("github.com/soyeahso/workbench/internal/workspace")

// Store serves the workspace rooted at a single directory.
type Store struct {
	root        string
	maxUpload   int64
	lockTimeout time.Duration
	locks       *LockManager
	log         *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxUploadBytes caps the size of uploaded files.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithLockTimeout sets how long a write lock lives before it is considered
// abandoned.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLockManager shares a lock manager between stores.
func WithLockManager(m *LockManager) Option {
	return func(s *Store) { s.locks = m }
}

// New opens the workspace at root, creating the directory if needed.
func New(root string, log *logging.Logger, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	s := &Store{
		root:        abs,
		maxUpload:   DefaultMaxUploadBytes,
		lockTimeout: DefaultLockTimeout,
		locks:       NewLockManager(),
		log:         log.Sub("workspace"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute workspace directory.
func (s *Store) Root() string { return s.root }

// MaxUploadBytes returns the upload size limit.
func (s *Store) MaxUploadBytes() int64 { return s.maxUpload }

// Locks exposes the store's lock manager.
func (s *Store) Locks() *LockManager { return s.locks }

func startSpan(ctx context.Context, op, rel string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "workspace."+op, trace.WithAttributes(attribute.String("workspace.path", rel)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Store) lock(rel string) (func(), error) {
	return s.locks.Acquire(rel, s.lockTimeout)
}

func (s *Store) stat(rel string) (fs.FileInfo, error) {
	info, err := os.Stat(s.abs(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, displayPath(rel))
	}
	return info, err
}

func displayPath(rel string) string {
	if rel == "" {
		return "/"
	}
	return rel
}

func (s *Store) fileFromInfo(rel string, info fs.FileInfo) domain.File {
	f := domain.File{
		Path:       rel,
		Folder:     parentOf(rel),
		ModifiedAt: info.ModTime().UTC(),
	}
	if info.IsDir() {
		f.Type = domain.FileTypeFolder
	} else {
		f.Type = domain.FileTypeFile
		f.Size = info.Size()
		f.IsImage = IsImage(rel)
	}
	return f
}

// List returns the workspace tree under folder. maxDepth limits how deep
// the walk goes below folder (0 lists direct children only, negative is
// unlimited). When folder is not the root, the folder itself is the single
// top-level node.
func (s *Store) List(ctx context.Context, folder string, maxDepth int) (_ []domain.File, err error) {
	rel, err := s.Clean(folder)
	if err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "list", rel)
	defer func() { endSpan(span, err) }()

	info, err := s.stat(rel)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, rel)
	}

	searchRoot := s.abs(rel)
	var flat []domain.File
	err = filepath.WalkDir(searchRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		if p == searchRoot {
			if rel != "" {
				flat = append(flat, s.fileFromInfo(rel, info))
			}
			return nil
		}

		below, _ := filepath.Rel(searchRoot, p)
		depth := strings.Count(below, string(filepath.Separator))
		if maxDepth >= 0 && depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		flat = append(flat, s.fileFromInfo(s.rel(p), fi))
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("workspace.entries", len(flat)))
	return BuildTree(flat, rel), nil
}

// Read returns a file with its content. Text files come back verbatim,
// images as a data URL, and other binary files as a size placeholder.
func (s *Store) Read(ctx context.Context, p string) (_ domain.File, err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return domain.File{}, err
	}
	_, span := startSpan(ctx, "read", rel)
	defer func() { endSpan(span, err) }()

	if rel == "" {
		return domain.File{}, fmt.Errorf("%w: a file path is required", ErrInvalidPath)
	}
	info, err := s.stat(rel)
	if err != nil {
		return domain.File{}, err
	}
	if info.IsDir() {
		return domain.File{}, fmt.Errorf("%w: %s", ErrIsFolder, rel)
	}

	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return domain.File{}, err
	}

	f := s.fileFromInfo(rel, info)
	switch {
	case f.IsImage:
		f.Content = imageDataURL(rel, data)
	case IsTextFile(rel, ""):
		f.Content = string(data)
	default:
		f.Content = fmt.Sprintf("[Binary file: %d bytes]", len(data))
	}
	return f, nil
}

// Write creates or replaces a file, creating parent folders as needed.
// It reports whether the file was newly created.
func (s *Store) Write(ctx context.Context, p, content string) (created bool, err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return false, err
	}
	_, span := startSpan(ctx, "write", rel)
	defer func() { endSpan(span, err) }()

	if rel == "" {
		return false, fmt.Errorf("%w: a file path is required", ErrInvalidPath)
	}

	release, err := s.lock(rel)
	if err != nil {
		return false, err
	}
	defer release()

	return s.writeLocked(rel, content)
}

func (s *Store) writeLocked(rel, content string) (bool, error) {
	abs := s.abs(rel)
	created := false
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		created = true
	case err != nil:
		return false, err
	case info.IsDir():
		return false, fmt.Errorf("%w: %s", ErrIsFolder, rel)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return false, err
	}
	s.log.Debug().Str("path", rel).Bool("created", created).Int("bytes", len(content)).Msg("file written")
	return created, nil
}

// Create writes a new markdown document. It fails with ErrExists when the
// path is taken.
func (s *Store) Create(ctx context.Context, p, content string) (err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return err
	}
	_, span := startSpan(ctx, "create", rel)
	defer func() { endSpan(span, err) }()

	if rel == "" {
		return fmt.Errorf("%w: a file path is required", ErrInvalidPath)
	}
	if !strings.EqualFold(path.Ext(rel), ".md") {
		return fmt.Errorf("%w: documents must have a .md extension", ErrInvalidPath)
	}

	release, err := s.lock(rel)
	if err != nil {
		return err
	}
	defer release()

	if _, err := os.Stat(s.abs(rel)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, rel)
	}
	_, err = s.writeLocked(rel, content)
	return err
}

// Delete removes a single file.
func (s *Store) Delete(ctx context.Context, p string) (err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return err
	}
	_, span := startSpan(ctx, "delete", rel)
	defer func() { endSpan(span, err) }()

	if rel == "" {
		return fmt.Errorf("%w: a file path is required", ErrInvalidPath)
	}
	info, err := s.stat(rel)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsFolder, rel)
	}

	release, err := s.lock(rel)
	if err != nil {
		return err
	}
	defer release()

	if err := os.Remove(s.abs(rel)); err != nil {
		return err
	}
	s.log.Info().Str("path", rel).Msg("file deleted")
	return nil
}

// Move renames a file or folder. The destination must not exist.
func (s *Store) Move(ctx context.Context, src, dst string) (err error) {
	from, err := s.Clean(src)
	if err != nil {
		return err
	}
	to, err := s.Clean(dst)
	if err != nil {
		return err
	}
	_, span := startSpan(ctx, "move", from)
	span.SetAttributes(attribute.String("workspace.destination", to))
	defer func() { endSpan(span, err) }()

	if from == "" || to == "" {
		return fmt.Errorf("%w: source and destination are required", ErrInvalidPath)
	}
	if to == from || strings.HasPrefix(to, from+"/") {
		return fmt.Errorf("%w: cannot move %s into itself", ErrInvalidPath, from)
	}
	if _, err := s.stat(from); err != nil {
		return err
	}
	if _, err := os.Stat(s.abs(to)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, to)
	}

	releaseFrom, err := s.lock(from)
	if err != nil {
		return err
	}
	defer releaseFrom()
	releaseTo, err := s.lock(to)
	if err != nil {
		return err
	}
	defer releaseTo()

	if err := os.MkdirAll(filepath.Dir(s.abs(to)), 0o755); err != nil {
		return err
	}
	if err := os.Rename(s.abs(from), s.abs(to)); err != nil {
		return err
	}
	s.log.Info().Str("from", from).Str("to", to).Msg("moved")
	return nil
}

// CreateFolder makes a new folder, including missing parents.
func (s *Store) CreateFolder(ctx context.Context, p string) (err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return err
	}
	_, span := startSpan(ctx, "create_folder", rel)
	defer func() { endSpan(span, err) }()

	if rel == "" {
		return fmt.Errorf("%w: a folder path is required", ErrInvalidPath)
	}
	if err := validateFolderName(rel); err != nil {
		return err
	}
	if _, err := os.Stat(s.abs(rel)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, rel)
	}
	if err := os.MkdirAll(s.abs(rel), 0o755); err != nil {
		return err
	}
	s.log.Info().Str("folder", rel).Msg("folder created")
	return nil
}

// DeleteFolder removes a folder and everything in it. The workspace root
// cannot be deleted.
func (s *Store) DeleteFolder(ctx context.Context, p string) (err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return err
	}
	_, span := startSpan(ctx, "delete_folder", rel)
	defer func() { endSpan(span, err) }()

	if rel == "" {
		return fmt.Errorf("%w: the workspace root cannot be deleted", ErrInvalidPath)
	}
	info, err := s.stat(rel)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFolder, rel)
	}

	release, err := s.lock(rel)
	if err != nil {
		return err
	}
	defer release()

	if err := os.RemoveAll(s.abs(rel)); err != nil {
		return err
	}
	s.log.Info().Str("folder", rel).Msg("folder deleted")
	return nil
}

// ClearFolder deletes every file below folder while keeping the folder
// structure. It returns the removed paths in sorted order.
func (s *Store) ClearFolder(ctx context.Context, p string) (_ []string, err error) {
	rel, err := s.Clean(p)
	if err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "clear_folder", rel)
	defer func() { endSpan(span, err) }()

	info, err := s.stat(rel)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, rel)
	}

	release, err := s.lock(rel)
	if err != nil {
		return nil, err
	}
	defer release()

	var deleted []string
	err = filepath.WalkDir(s.abs(rel), func(p string, d fs.DirEntry, walkErr error) error {
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
		if err := os.Remove(p); err != nil {
			return err
		}
		deleted = append(deleted, s.rel(p))
		return nil
	})
	sort.Strings(deleted)
	if err != nil {
		return deleted, err
	}
	s.log.Info().Str("folder", displayPath(rel)).Int("files", len(deleted)).Msg("folder cleared")
	return deleted, nil
}

// UploadResult describes a stored upload.
type UploadResult struct {
	Path        string `json:"filepath"`
	Filename    string `json:"filename"`
	Size        int64  `json:"file_size"`
	ContentType string `json:"content_type"`
	Folder      string `json:"folder"`
}

// Upload stores r as a text file in folder under a sanitized name,
// replacing any file of the same name.
func (s *Store) Upload(ctx context.Context, folder, filename, contentType string, r io.Reader) (_ UploadResult, err error) {
	dir, err := s.Clean(folder)
	if err != nil {
		return UploadResult{}, err
	}
	_, span := startSpan(ctx, "upload", dir)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(filename) == "" {
		return UploadResult{}, fmt.Errorf("%w: file name cannot be empty", ErrInvalidPath)
	}
	if !IsTextFile(filename, contentType) {
		return UploadResult{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
	}
	if dir != "" {
		if err := validateFolderName(dir); err != nil {
			return UploadResult{}, err
		}
	}

	name := SanitizeFilename(path.Base(filepath.ToSlash(filename)))
	rel := path.Join(dir, name)
	span.SetAttributes(attribute.String("workspace.file", rel))

	data, err := io.ReadAll(io.LimitReader(r, s.maxUpload+1))
	if err != nil {
		return UploadResult{}, err
	}
	if int64(len(data)) > s.maxUpload {
		return UploadResult{}, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, s.maxUpload)
	}

	release, err := s.lock(rel)
	if err != nil {
		return UploadResult{}, err
	}
	defer release()

	if _, err := s.writeLocked(rel, string(data)); err != nil {
		return UploadResult{}, err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s.log.Info().Str("path", rel).Int("bytes", len(data)).Msg("file uploaded")
	return UploadResult{
		Path:        rel,
		Filename:    name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Folder:      dir,
	}, nil
}
