// Package migrations holds the todo schema. The service reads schema.sql from disk at
// startup, the embedded copy is what test databases are built from.
package migrations

import (
	_ "embed"
)

// DefaultPath is where the service looks for the schema, relative to its working directory.
const DefaultPath = "migrations/schema.sql"

//go:embed schema.sql
var Schema string
