package ledger

import "fmt"

// createTableSQL returns the DDL for the ledger table. The statement is
// valid on every supported dialect.
func createTableSQL(qualified, table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name        VARCHAR(180) NOT NULL,
    apply_time  BIGINT,
    CONSTRAINT %s_pkey PRIMARY KEY (name)
)`, qualified, table)
}
