// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS (usually an embedded directory) and
// follow the naming convention {version}_{description}.sql, for example
// "0001_init.sql". Applied versions are tracked in a schema_migrations table
// so a migration never runs twice.
//
//	manager := migration.NewManager(
//		migration.NewScanner(files, "migrations"),
//		migration.NewSQLiteExecutor(db),
//		logger,
//	)
//	applied, err := manager.Run(ctx)
package migration
