package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilnhq/kilnd/internal/paths"
)

// Filename of the exported archive inside an output directory.
const archiveFilename = "image.tar"

var ErrCache = errors.New("cache error")

// A recorded build.
type Entry struct {
	Digest    Digest        // Input digest identifying the build.
	App       string        // Application name the build belongs to.
	Output    string        // Directory containing the exported archive(s).
	Duration  time.Duration // How long the original build took.
	CreatedAt time.Time     // When the build was recorded.
}

// Persists build records in a sqlite database.
type Store struct {
	db *sql.DB
}

// Opens (and if necessary creates) the cache database at the given path.
//
// An empty path uses the default location under the XDG state directory.
func Open(path string) (*Store, error) {
	if path == "" {
		path = paths.CacheDB()
	}

	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			digest      TEXT PRIMARY KEY,
			app         TEXT NOT NULL,
			output      TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at  DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}

	return &Store{db: db}, nil
}

// Closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Returns the entry for a digest, or nil when there is no usable entry.
//
// An entry is only usable while its output archive is still on disk; a row
// whose archive has been deleted is removed and the lookup misses.
func (s *Store) Lookup(digest Digest) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT digest, app, output, duration_ms, created_at
		FROM builds WHERE digest = ?
	`, string(digest))

	var entry Entry
	var durationMs int64
	err := row.Scan(&entry.Digest, &entry.App, &entry.Output, &durationMs, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}
	entry.Duration = time.Duration(durationMs) * time.Millisecond

	if !archivePresent(entry.Output) {
		s.db.Exec(`DELETE FROM builds WHERE digest = ?`, string(digest))
		return nil, nil
	}

	return &entry, nil
}

// Inserts or replaces the entry for a digest.
func (s *Store) Record(entry Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO builds (digest, app, output, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(entry.Digest), entry.App, entry.Output, entry.Duration.Milliseconds(), createdAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCache, err)
	}
	return nil
}

// Removes entries whose output archives are no longer on disk. Returns the
// number of rows removed.
func (s *Store) Prune() (int, error) {
	rows, err := s.db.Query(`SELECT digest, output FROM builds`)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCache, err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var digest, output string
		if err := rows.Scan(&digest, &output); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCache, err)
		}
		if !archivePresent(output) {
			stale = append(stale, digest)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCache, err)
	}

	for _, digest := range stale {
		if _, err := s.db.Exec(`DELETE FROM builds WHERE digest = ?`, digest); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCache, err)
		}
	}

	return len(stale), nil
}

// Reports whether an output directory still holds an exported archive,
// either at the top level (single-platform builds) or in a per-platform
// subdirectory.
func archivePresent(output string) bool {
	if _, err := os.Stat(filepath.Join(output, archiveFilename)); err == nil {
		return true
	}

	matches, err := filepath.Glob(filepath.Join(output, "*", archiveFilename))
	return err == nil && len(matches) > 0
}
