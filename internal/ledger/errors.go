package ledger

import "errors"

// ErrDuplicateEntry indicates a migration is already recorded in the ledger.
var ErrDuplicateEntry = errors.New("migration already recorded in ledger")

// ErrSchemaBootstrap indicates the ledger table could not be checked or created.
var ErrSchemaBootstrap = errors.New("creating ledger table")
