// Package migrations embeds the goose migrations of the sqlite local storage
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
