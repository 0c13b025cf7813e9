//go:build integration

package postgres

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	pgtest "github.com/code-payments/market-billing-client/database/postgres/test"
	"github.com/code-payments/market-billing-client/ledger/tests"

	_ "github.com/jackc/pgx/v4/stdlib"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	testPool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	databaseURL, cleanup, err := pgtest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}
	testDB, err = pgtest.WaitForConnection(testPool, databaseURL)
	if err != nil {
		log.WithError(err).Error("Error waiting for connection")
		os.Exit(1)
	}

	if _, err = testDB.Exec(Schema); err != nil {
		log.WithError(err).Error("Error applying schema")
		os.Exit(1)
	}

	code := m.Run()
	cleanup()
	os.Exit(code)
}

func TestLedger_PostgresStore(t *testing.T) {
	testStore := NewInPostgres(testDB)
	teardown := func() {
		testStore.(*pgStore).reset()
	}
	tests.RunStoreTests(t, testStore, teardown)
}
