// Package migrations embeds the SQL schema migrations for rescue.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
