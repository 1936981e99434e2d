package migration

import (
	"fmt"
	"regexp"
	"time"
)

// IDTimeLayout is the timestamp embedded in every unit id. Its fixed width
// makes lexical order of ids equal to chronological order.
const IDTimeLayout = "20060102_150405"

// Script file names inside a unit directory.
const (
	UpScript   = "up.sql"
	DownScript = "down.sql"
)

var (
	//nolint:gochecknoglobals // compiled once
	namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

	//nolint:gochecknoglobals // compiled once
	idPattern = regexp.MustCompile(`^m(\d{8}_\d{6})_([A-Za-z0-9_]+)$`)
)

// Unit is one migration: a directory holding an up and a down script.
type Unit struct {
	ID        string    // "m20230101_000000_init" - the directory name
	Name      string    // "init"
	CreatedAt time.Time // parsed from ID, UTC
	UpPath    string
	DownPath  string
}

// ParseID splits a canonical id into its name and creation time.
// Ids with a malformed or impossible timestamp are rejected.
func ParseID(id string) (Unit, error) {
	matches := idPattern.FindStringSubmatch(id)
	if matches == nil {
		return Unit{}, fmt.Errorf("%w: %q", ErrInvalidName, id)
	}

	created, err := time.ParseInLocation(IDTimeLayout, matches[1], time.UTC)
	if err != nil {
		return Unit{}, fmt.Errorf("%w: %q: %w", ErrInvalidName, id, err)
	}

	return Unit{ID: id, Name: matches[2], CreatedAt: created}, nil
}

// FormatID builds the canonical id for name created at t.
func FormatID(t time.Time, name string) string {
	return "m" + t.UTC().Format(IDTimeLayout) + "_" + name
}

// ValidateName checks a user-supplied unit name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q may only contain letters, digits and underscores", ErrInvalidName, name)
	}

	return nil
}
