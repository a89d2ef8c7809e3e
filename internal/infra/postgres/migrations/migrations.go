package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema steps, registered by the files of this package.
var Migrations = migrate.NewMigrations()
