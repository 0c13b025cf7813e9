package billing

import (
	"github.com/code-payments/market-billing-client/model"
)

// Observer is the callback surface delivered to by the controller. All
// callbacks run synchronously on the goroutine that produced the event;
// implementations hand off to their own loop if they need to block.
type Observer interface {
	// OnCheckSupportedResponse reports the ack of a CheckBillingSupported
	// request.
	OnCheckSupportedResponse(supported bool)

	// OnPurchaseIntentReady delivers the purchase-intent handle the embedding
	// UI must launch to complete payment for the item.
	OnPurchaseIntentReady(itemID, purchaseIntent string)

	// OnPurchaseIntentFailure reports that no purchase intent will arrive for
	// the item.
	OnPurchaseIntentFailure(itemID string, code model.ResponseCode)

	// OnPurchaseStateChanged reports verified, authoritative purchase state
	// for the item, after the ledger has recorded it.
	OnPurchaseStateChanged(itemID string, state model.PurchaseState)

	// OnRequestPurchaseResponse reports the asynchronous response code for a
	// RequestPurchase.
	OnRequestPurchaseResponse(itemID string, code model.ResponseCode)

	// OnTransactionsRestored reports that a RestoreTransactions request
	// completed successfully.
	OnTransactionsRestored()
}
