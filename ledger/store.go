// Package ledger is the durable store of transaction records. Values are
// stored exactly as handed in: the controller obfuscates sensitive fields
// before they get here and de-obfuscates on the way out, so a Store never
// sees plaintext identifiers when a salt is configured.
package ledger

import (
	"context"

	"github.com/code-payments/market-billing-client/model"
)

// Store persists transactions keyed by order id. PutTransaction is an
// idempotent replace: writing the same order id twice keeps the latest row.
type Store interface {
	PutTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransactions(ctx context.Context, opts ...Option) ([]*model.Transaction, error)
	CountTransactions(ctx context.Context, opts ...Option) (int, error)
}

// Query restricts which transactions a read returns.
type Query struct {
	// ItemID filters by item when non-empty.
	ItemID string

	// State filters by purchase state when non-nil.
	State *model.PurchaseState
}

type Option func(*Query)

func ForItem(itemID string) Option {
	return func(q *Query) {
		q.ItemID = itemID
	}
}

func InState(state model.PurchaseState) Option {
	return func(q *Query) {
		q.State = &state
	}
}

func ApplyOptions(options ...Option) Query {
	var applied Query
	for _, option := range options {
		option(&applied)
	}
	return applied
}

// Matches reports whether the transaction satisfies the query.
func (q Query) Matches(tx *model.Transaction) bool {
	if q.ItemID != "" && tx.ItemID != q.ItemID {
		return false
	}
	if q.State != nil && tx.State != *q.State {
		return false
	}
	return true
}
