// Package migrations holds the embedded goose SQL migrations for the token
// pool database schema. The migrate and serve commands apply these on startup,
// and the healthcheck command compares the database version against the
// highest embedded version.
package migrations

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
