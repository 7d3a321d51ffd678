package persistence

import "embed"

// Migrations holds the goose migrations for the areas table, rooted at MigrationsDir.
//
//go:embed schema/*.sql
var Migrations embed.FS

const MigrationsDir = "schema"
