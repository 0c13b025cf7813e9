package request

import (
	"github.com/code-payments/market-billing-client/model"
)

// CheckBillingSupported asks whether the market service supports in-app
// billing for the calling package.
type CheckBillingSupported struct {
	base
}

func NewCheckBillingSupported(packageName string, startID int) *CheckBillingSupported {
	return &CheckBillingSupported{base{packageName: packageName, startID: startID}}
}

func (r *CheckBillingSupported) Kind() Kind { return KindCheckBillingSupported }

func (r *CheckBillingSupported) onAck(e Emitter, ack Payload) {
	e.OnCheckSupportedResponse(r.Succeeded())
}

// ConfirmNotifications acknowledges previously received purchase
// notifications so the service stops redelivering them.
type ConfirmNotifications struct {
	base
	notifyIDs []string
}

func NewConfirmNotifications(packageName string, startID int, notifyIDs []string) *ConfirmNotifications {
	return &ConfirmNotifications{
		base:      base{packageName: packageName, startID: startID},
		notifyIDs: notifyIDs,
	}
}

func (r *ConfirmNotifications) Kind() Kind { return KindConfirmNotifications }

func (r *ConfirmNotifications) fill(p Payload) {
	p[KeyNotifyIDs] = r.notifyIDs
}

// GetPurchaseInformation requests the signed purchase state behind one or
// more notifications. The authoritative answer arrives as a signed push, so
// the request carries a nonce.
type GetPurchaseInformation struct {
	base
	notifyIDs []string
}

func NewGetPurchaseInformation(packageName string, startID int, notifyIDs []string) *GetPurchaseInformation {
	return &GetPurchaseInformation{
		base:      base{packageName: packageName, startID: startID},
		notifyIDs: notifyIDs,
	}
}

func (r *GetPurchaseInformation) Kind() Kind     { return KindGetPurchaseInformation }
func (r *GetPurchaseInformation) HasNonce() bool { return true }

func (r *GetPurchaseInformation) fill(p Payload) {
	p[KeyNotifyIDs] = r.notifyIDs
}

// RequestPurchase starts the purchase of one item. The ack carries a
// purchase-intent handle the embedding UI launches to collect payment.
type RequestPurchase struct {
	base
	itemID           string
	developerPayload string
}

func NewRequestPurchase(packageName string, startID int, itemID, developerPayload string) *RequestPurchase {
	return &RequestPurchase{
		base:             base{packageName: packageName, startID: startID},
		itemID:           itemID,
		developerPayload: developerPayload,
	}
}

func (r *RequestPurchase) Kind() Kind { return KindRequestPurchase }

func (r *RequestPurchase) fill(p Payload) {
	p[KeyItemID] = r.itemID
	if r.developerPayload != "" {
		p[KeyDeveloperPayload] = r.developerPayload
	}
}

func (r *RequestPurchase) onAck(e Emitter, ack Payload) {
	e.OnPurchaseIntentReady(r.itemID, stringValue(ack, KeyPurchaseIntent))
}

func (r *RequestPurchase) OnResponseCode(e Emitter, code model.ResponseCode) {
	e.OnRequestPurchaseResponse(r.itemID, code)
	if code != model.ResultOK {
		e.OnPurchaseIntentFailure(r.itemID, code)
	}
}

// RestoreTransactions asks the service to replay the signed purchase state of
// all prior transactions, e.g. after a reinstall.
type RestoreTransactions struct {
	base
}

func NewRestoreTransactions(packageName string, startID int) *RestoreTransactions {
	return &RestoreTransactions{base{packageName: packageName, startID: startID}}
}

func (r *RestoreTransactions) Kind() Kind     { return KindRestoreTransactions }
func (r *RestoreTransactions) HasNonce() bool { return true }

func (r *RestoreTransactions) OnResponseCode(e Emitter, code model.ResponseCode) {
	if code == model.ResultOK {
		e.OnTransactionsRestored()
	}
}
