package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/market-billing-client/ledger"
	"github.com/code-payments/market-billing-client/model"
)

const transactionTable = "purchases"

// Schema creates the transaction table. Applied by the integration-test
// harness; production deployments run it as a migration.
const Schema = `
CREATE TABLE IF NOT EXISTS ` + transactionTable + ` (
	"orderId"          TEXT    PRIMARY KEY,
	"productId"        TEXT    NOT NULL,
	"state"            INTEGER NOT NULL,
	"purchaseTime"     BIGINT  NOT NULL,
	"developerPayload" TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS purchases_product_state ON ` + transactionTable + ` ("productId", "state");
`

type pgStore struct {
	db *sqlx.DB
}

func NewInPostgres(db *sql.DB) ledger.Store {
	return &pgStore{
		db: sqlx.NewDb(db, "pgx"),
	}
}

func (s *pgStore) reset() {
	_, err := s.db.Exec(`DELETE FROM ` + transactionTable)
	if err != nil {
		panic(err)
	}
}

type transactionModel struct {
	OrderID          string `db:"orderId"`
	ProductID        string `db:"productId"`
	State            int    `db:"state"`
	PurchaseTime     int64  `db:"purchaseTime"`
	DeveloperPayload string `db:"developerPayload"`
}

func (s *pgStore) PutTransaction(ctx context.Context, tx *model.Transaction) error {
	insert := `INSERT INTO ` + transactionTable + `
		("orderId", "productId", "state", "purchaseTime", "developerPayload")
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, insert,
		tx.OrderID, tx.ItemID, int(tx.State), tx.PurchaseTime, tx.DeveloperPayload)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return errors.Wrap(err, "failed to insert transaction")
	}

	// Same order id seen again: replace the row with the latest state.
	update := `UPDATE ` + transactionTable + `
		SET "productId" = $2, "state" = $3, "purchaseTime" = $4, "developerPayload" = $5
		WHERE "orderId" = $1`

	_, err = s.db.ExecContext(ctx, update,
		tx.OrderID, tx.ItemID, int(tx.State), tx.PurchaseTime, tx.DeveloperPayload)
	return errors.Wrap(err, "failed to replace transaction")
}

func (s *pgStore) GetTransactions(ctx context.Context, opts ...ledger.Option) ([]*model.Transaction, error) {
	where, args := buildWhere(ledger.ApplyOptions(opts...))

	query := `SELECT "orderId", "productId", "state", "purchaseTime", "developerPayload"
		FROM ` + transactionTable + where + ` ORDER BY "orderId"`

	var rows []transactionModel
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to query transactions")
	}

	result := make([]*model.Transaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, fromModel(row))
	}
	return result, nil
}

func (s *pgStore) CountTransactions(ctx context.Context, opts ...ledger.Option) (int, error) {
	where, args := buildWhere(ledger.ApplyOptions(opts...))

	var count int
	query := `SELECT COUNT(*) FROM ` + transactionTable + where
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "failed to count transactions")
	}
	return count, nil
}

func buildWhere(q ledger.Query) (string, []any) {
	var clauses []string
	var args []any

	if q.ItemID != "" {
		args = append(args, q.ItemID)
		clauses = append(clauses, `"productId" = $1`)
	}
	if q.State != nil {
		args = append(args, int(*q.State))
		if len(args) == 1 {
			clauses = append(clauses, `"state" = $1`)
		} else {
			clauses = append(clauses, `"state" = $2`)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}

	where := " WHERE " + clauses[0]
	if len(clauses) > 1 {
		where += " AND " + clauses[1]
	}
	return where, args
}

func fromModel(row transactionModel) *model.Transaction {
	return &model.Transaction{
		OrderID:          row.OrderID,
		ItemID:           row.ProductID,
		State:            model.PurchaseStateOf(row.State),
		PurchaseTime:     row.PurchaseTime,
		DeveloperPayload: row.DeveloperPayload,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
