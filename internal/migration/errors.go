package migration

import "errors"

// ErrInvalidName indicates a unit name or id does not follow the canonical form.
var ErrInvalidName = errors.New("invalid migration name")

// ErrFilesystem indicates a migration directory or script could not be read or created.
var ErrFilesystem = errors.New("migration filesystem error")
