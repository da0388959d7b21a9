// Package migrations embeds the goose SQL migrations so both the migrate
// binary and integration tests apply the same schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory name goose resolves inside FS.
const Dir = "."
