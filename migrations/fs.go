// Package migrations embeds the SQL migrations for the hosted backend schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
