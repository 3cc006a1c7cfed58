// Package migrations embeds the Postgres schema applied by alertctl migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
