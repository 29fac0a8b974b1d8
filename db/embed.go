// Package db provides embedded database migrations and seed data.
package db

import "embed"

// Migrations holds the versioned schema migrations, applied in order by
// golang-migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Seed holds the demo catalog loaded by cmd/seed-db.
//
//go:embed seed/products.json
var Seed []byte
