package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
)

// DefaultKeepVersions is how many versions of each file are retained.
const DefaultKeepVersions = 20

// VersionStore keeps a bounded history of workspace file contents.
type VersionStore struct {
	db   *DB
	log  *logging.Logger
	now  func() time.Time
	keep int
}

// NewVersionStore creates a version store over db that keeps the newest
// keep versions per file. keep <= 0 selects DefaultKeepVersions.
func NewVersionStore(db *DB, keep int) *VersionStore {
	if keep <= 0 {
		keep = DefaultKeepVersions
	}
	return &VersionStore{
		db:   db,
		log:  db.log.Sub("versions"),
		now:  time.Now,
		keep: keep,
	}
}

const versionColumns = `id, path, content, message, created_at`

// Record saves content as the newest version of path and prunes older
// versions beyond the retention limit. It returns nil when content is the
// same as the latest version.
func (s *VersionStore) Record(path, content, message string) (*domain.FileVersion, error) {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var latest string
	err = tx.QueryRow(`SELECT content FROM file_versions WHERE path = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, path).Scan(&latest)
	switch {
	case err == nil && latest == content:
		return nil, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("reading latest version: %w", err)
	}

	v := &domain.FileVersion{
		ID:        uuid.New().String(),
		Path:      path,
		Message:   message,
		Content:   content,
		Size:      len(content),
		CreatedAt: s.now().UTC(),
	}
	if _, err := tx.Exec(`INSERT INTO file_versions (`+versionColumns+`) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.Path, v.Content, v.Message, formatTime(v.CreatedAt)); err != nil {
		return nil, fmt.Errorf("inserting version: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM file_versions WHERE path = ? AND id NOT IN (
		SELECT id FROM file_versions WHERE path = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?)`, path, path, s.keep)
	if err != nil {
		return nil, fmt.Errorf("pruning versions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	pruned, _ := res.RowsAffected()
	s.log.Debug().Str("path", path).Str("id", v.ID).Int64("pruned", pruned).Msg("version recorded")
	return v, nil
}

// List returns up to limit versions of path, newest first.
func (s *VersionStore) List(path string, limit int) ([]domain.FileVersion, error) {
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	rows, err := s.db.sql.Query(`SELECT `+versionColumns+` FROM file_versions WHERE path = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	versions := []domain.FileVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// Get returns the version with the given id.
func (s *VersionStore) Get(id string) (*domain.FileVersion, error) {
	row := s.db.sql.QueryRow(`SELECT `+versionColumns+` FROM file_versions WHERE id = ?`, id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	return v, err
}

// Rename moves the history of a file, or of every file below a folder,
// to a new path.
func (s *VersionStore) Rename(from, to string) (int64, error) {
	n := utf8.RuneCountInString(from)
	res, err := s.db.sql.Exec(`UPDATE file_versions SET path = ? || substr(path, ?)
		WHERE path = ? OR substr(path, 1, ?) = ?`,
		to, n+1, from, n+1, from+"/")
	if err != nil {
		return 0, fmt.Errorf("renaming versions: %w", err)
	}
	return res.RowsAffected()
}

func scanVersion(sc scanner) (*domain.FileVersion, error) {
	var (
		v       domain.FileVersion
		created string
	)
	if err := sc.Scan(&v.ID, &v.Path, &v.Content, &v.Message, &created); err != nil {
		return nil, err
	}
	v.Size = len(v.Content)
	v.CreatedAt = parseTime(created)
	return &v, nil
}
