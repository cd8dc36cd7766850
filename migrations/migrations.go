// Package migrations embeds the SQL files that bring a fresh Postgres
// database up to the schema immagent expects.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
