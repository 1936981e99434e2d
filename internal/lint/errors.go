package lint

import "errors"

// ErrUnsupportedDialect is returned when scripts cannot be parsed for the
// configured dialect.
var ErrUnsupportedDialect = errors.New("lint supports postgres scripts only")
