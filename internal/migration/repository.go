package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Repository finds and creates migration units under a root directory.
type Repository struct {
	root string
	now  func() time.Time
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithClock sets the time source used to stamp new units.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) {
		r.now = now
	}
}

// NewRepository returns a Repository rooted at root.
func NewRepository(root string, opts ...RepositoryOption) *Repository {
	r := &Repository{root: root, now: time.Now}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Root returns the directory the repository scans.
func (r *Repository) Root() string {
	return r.root
}

// Discover returns every unit directory under the root, sorted by id.
// Entries that are not directories or whose name is not a canonical id are
// skipped.
func (r *Repository) Discover() ([]Unit, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading migrations directory %s: %w", ErrFilesystem, r.root, err)
	}

	var units []Unit

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		u, err := ParseID(entry.Name())
		if err != nil {
			continue
		}

		units = append(units, r.withPaths(u))
	}

	return Sort(units), nil
}

// Unit returns the unit stored under id without checking that its
// directory exists. Ids recorded by older tools may not be canonical; they
// keep the id as their name and a zero CreatedAt.
func (r *Repository) Unit(id string) Unit {
	u, err := ParseID(id)
	if err != nil {
		u = Unit{ID: id, Name: id}
	}

	return r.withPaths(u)
}

// Create makes a new unit directory stamped with the current UTC time and
// writes empty up and down scripts into it.
func (r *Repository) Create(name string) (Unit, error) {
	if err := ValidateName(name); err != nil {
		return Unit{}, err
	}

	u, err := ParseID(FormatID(r.now(), name))
	if err != nil {
		return Unit{}, err
	}

	u = r.withPaths(u)
	dir := filepath.Dir(u.UpPath)

	if err := os.MkdirAll(r.root, dirPerm); err != nil {
		return Unit{}, fmt.Errorf("%w: creating %s: %w", ErrFilesystem, r.root, err)
	}

	if err := os.Mkdir(dir, dirPerm); err != nil {
		return Unit{}, fmt.Errorf("%w: creating %s: %w", ErrFilesystem, dir, err)
	}

	for _, path := range []string{u.UpPath, u.DownPath} {
		if err := os.WriteFile(path, nil, filePerm); err != nil {
			return Unit{}, fmt.Errorf("%w: writing %s: %w", ErrFilesystem, path, err)
		}
	}

	return u, nil
}

// ReadScript returns the contents of a unit script with surrounding
// whitespace removed. An empty script is valid.
func (r *Repository) ReadScript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading migration script %s: %w", ErrFilesystem, path, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (r *Repository) withPaths(u Unit) Unit {
	dir := filepath.Join(r.root, u.ID)
	u.UpPath = filepath.Join(dir, UpScript)
	u.DownPath = filepath.Join(dir, DownScript)

	return u
}
