// Package test provides a throwaway postgres container for integration
// tests.
package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/pkg/errors"
)

const (
	containerName    = "postgres"
	containerVersion = "14-alpine"

	postgresUser     = "localtest"
	postgresPassword = "localtest"
	postgresDB       = "localtest"
)

// StartPostgresDB launches a postgres container and returns the connection
// URL. The container expires on its own in case the test run is killed
// before cleanup.
func StartPostgresDB(pool *dockertest.Pool) (databaseURL string, closeFunc func(), err error) {
	resource, err := pool.Run(containerName, containerVersion, []string{
		"POSTGRES_USER=" + postgresUser,
		"POSTGRES_PASSWORD=" + postgresPassword,
		"POSTGRES_DB=" + postgresDB,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to start postgres container")
	}

	_ = resource.Expire(300)

	databaseURL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		resource.GetPort("5432/tcp"),
		postgresDB,
	)
	closeFunc = func() {
		_ = pool.Purge(resource)
	}
	return databaseURL, closeFunc, nil
}

// WaitForConnection blocks until the database accepts connections, returning
// an open handle registered with the pgx stdlib driver.
func WaitForConnection(pool *dockertest.Pool, databaseURL string) (*sql.DB, error) {
	var db *sql.DB

	pool.MaxWait = 30 * time.Second
	err := pool.Retry(func() error {
		var err error
		db, err = sql.Open("pgx", databaseURL)
		if err != nil {
			return err
		}
		return db.Ping()
	})
	if err != nil {
		return nil, errors.Wrap(err, "database never became reachable")
	}
	return db, nil
}
