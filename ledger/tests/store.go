package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/market-billing-client/ledger"
	"github.com/code-payments/market-billing-client/model"
)

func RunStoreTests(t *testing.T, s ledger.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s ledger.Store){
		testLedgerStore_RoundTrip,
		testLedgerStore_UpsertByOrderID,
		testLedgerStore_QueryFilters,
		testLedgerStore_CountsAreMonotonic,
	} {
		tf(t, s)
		teardown()
	}
}

func testLedgerStore_RoundTrip(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	expected := &model.Transaction{
		OrderID:          "order-1",
		ItemID:           "sku1",
		State:            model.StatePurchased,
		PurchaseTime:     1327657919000,
		DeveloperPayload: "payload",
	}
	require.NoError(t, s.PutTransaction(ctx, expected))

	all, err := s.GetTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	actual := all[0]
	require.Equal(t, expected.OrderID, actual.OrderID)
	require.Equal(t, expected.ItemID, actual.ItemID)
	require.Equal(t, expected.State, actual.State)
	require.Equal(t, expected.PurchaseTime, actual.PurchaseTime)
	require.Equal(t, expected.DeveloperPayload, actual.DeveloperPayload)

	// The returned value is a copy: mutating it must not affect the store.
	actual.ItemID = "mutated"
	again, err := s.GetTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, expected.ItemID, again[0].ItemID)
}

func testLedgerStore_UpsertByOrderID(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	require.NoError(t, s.PutTransaction(ctx, &model.Transaction{
		OrderID: "order-1",
		ItemID:  "sku1",
		State:   model.StatePurchased,
	}))

	// Same order id again, now refunded. One row, latest state wins.
	require.NoError(t, s.PutTransaction(ctx, &model.Transaction{
		OrderID: "order-1",
		ItemID:  "sku1",
		State:   model.StateRefunded,
	}))

	all, err := s.GetTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, model.StateRefunded, all[0].State)
}

func testLedgerStore_QueryFilters(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	for _, tx := range []*model.Transaction{
		{OrderID: "order-1", ItemID: "sku1", State: model.StatePurchased},
		{OrderID: "order-2", ItemID: "sku1", State: model.StateCancelled},
		{OrderID: "order-3", ItemID: "sku2", State: model.StatePurchased},
	} {
		require.NoError(t, s.PutTransaction(ctx, tx))
	}

	bySku, err := s.GetTransactions(ctx, ledger.ForItem("sku1"))
	require.NoError(t, err)
	require.Len(t, bySku, 2)

	byState, err := s.GetTransactions(ctx, ledger.InState(model.StatePurchased))
	require.NoError(t, err)
	require.Len(t, byState, 2)

	both, err := s.GetTransactions(ctx, ledger.ForItem("sku1"), ledger.InState(model.StatePurchased))
	require.NoError(t, err)
	require.Len(t, both, 1)
	require.Equal(t, "order-1", both[0].OrderID)

	none, err := s.GetTransactions(ctx, ledger.ForItem("sku3"))
	require.NoError(t, err)
	require.Empty(t, none)
}

func testLedgerStore_CountsAreMonotonic(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	count, err := s.CountTransactions(ctx, ledger.ForItem("sku1"), ledger.InState(model.StatePurchased))
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, s.PutTransaction(ctx, &model.Transaction{
		OrderID: "order-1", ItemID: "sku1", State: model.StatePurchased,
	}))
	require.NoError(t, s.PutTransaction(ctx, &model.Transaction{
		OrderID: "order-2", ItemID: "sku1", State: model.StatePurchased,
	}))

	// A refund of a different order is a separate row in a separate state,
	// not a decrement of the purchased count.
	require.NoError(t, s.PutTransaction(ctx, &model.Transaction{
		OrderID: "order-3", ItemID: "sku1", State: model.StateRefunded,
	}))

	count, err = s.CountTransactions(ctx, ledger.ForItem("sku1"), ledger.InState(model.StatePurchased))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	total, err := s.CountTransactions(ctx, ledger.ForItem("sku1"))
	require.NoError(t, err)
	require.Equal(t, 3, total)
}
