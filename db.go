package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)

	"github.com/ekaya-inc/cleanlist/pkg/logging"
)

// sqlOpenPostgres opens a database/sql handle for golang-migrate.
func sqlOpenPostgres(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %s", logging.SanitizeError(err))
	}
	return db, nil
}
