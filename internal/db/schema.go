package db

import (
	"database/sql"
	"fmt"
)

// sqliteSchema holds one JSON document per row and a revision counter per
// collection.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    version    INTEGER NOT NULL DEFAULT 1,
    data       TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, id)
)`,
	`CREATE TABLE IF NOT EXISTS revisions (
    collection TEXT PRIMARY KEY,
    revision   INTEGER NOT NULL DEFAULT 0
)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
    collection VARCHAR(64)  NOT NULL,
    id         VARCHAR(128) NOT NULL,
    version    BIGINT       NOT NULL DEFAULT 1,
    data       LONGTEXT     NOT NULL,
    updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS revisions (
    collection VARCHAR(64) NOT NULL PRIMARY KEY,
    revision   BIGINT      NOT NULL DEFAULT 0
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates all tables if they don't already exist.
func EnsureSchema(db *sql.DB, driver string) error {
	var statements []string
	switch driver {
	case DriverSQLite:
		statements = sqliteSchema
	case DriverMySQL:
		statements = mysqlSchema
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}
