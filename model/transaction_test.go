package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	signedData := `{
		"nonce": 846242622,
		"orders": [{
			"notificationId": "n1",
			"orderId": "order-1",
			"packageName": "com.example.app",
			"productId": "sku1",
			"purchaseTime": 1327657919000,
			"purchaseState": 0,
			"developerPayload": "payload"
		}, {
			"orderId": "order-2",
			"productId": "sku2",
			"purchaseTime": 1327657920000,
			"purchaseState": 1
		}]
	}`

	env, err := ParseEnvelope(signedData)
	require.NoError(t, err)
	require.EqualValues(t, 846242622, env.Nonce)

	txs := env.Transactions()
	require.Len(t, txs, 2)

	require.Equal(t, "order-1", txs[0].OrderID)
	require.Equal(t, "sku1", txs[0].ItemID)
	require.Equal(t, StatePurchased, txs[0].State)
	require.EqualValues(t, 1327657919000, txs[0].PurchaseTime)
	require.Equal(t, "payload", txs[0].DeveloperPayload)
	require.Equal(t, "n1", txs[0].NotificationID)

	require.Equal(t, StateCancelled, txs[1].State)
	require.Empty(t, txs[1].NotificationID)
	require.Empty(t, txs[1].DeveloperPayload)
}

func TestParseEnvelope_NoOrders(t *testing.T) {
	env, err := ParseEnvelope(`{"nonce": 7}`)
	require.NoError(t, err)
	require.EqualValues(t, 7, env.Nonce)
	require.Empty(t, env.Transactions())
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := ParseEnvelope(`{"nonce": `)
	require.Error(t, err)

	_, err = ParseEnvelope("")
	require.Error(t, err)
}

func TestPurchaseStateOf(t *testing.T) {
	require.Equal(t, StatePurchased, PurchaseStateOf(0))
	require.Equal(t, StateCancelled, PurchaseStateOf(1))
	require.Equal(t, StateRefunded, PurchaseStateOf(2))
	require.Equal(t, StateUnknown, PurchaseStateOf(42))
	require.Equal(t, StateUnknown, PurchaseStateOf(-1))
}

func TestResponseCodeOf(t *testing.T) {
	require.Equal(t, ResultOK, ResponseCodeOf(0))
	require.Equal(t, ResultUserCanceled, ResponseCodeOf(1))
	require.Equal(t, ResultDeveloperError, ResponseCodeOf(5))
	require.Equal(t, ResultError, ResponseCodeOf(6))
	require.Equal(t, ResultError, ResponseCodeOf(99))

	require.True(t, IsOK(0))
	require.False(t, IsOK(1))
}

func TestTransactionClone(t *testing.T) {
	tx := &Transaction{OrderID: "o", ItemID: "i", State: StateRefunded}
	clone := tx.Clone()
	clone.OrderID = "changed"
	require.Equal(t, "o", tx.OrderID)
}
