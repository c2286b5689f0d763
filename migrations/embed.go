// Package migrations holds the ledger schema, embedded so the binary can
// migrate without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
