// Package request defines one object per billing operation. Each variant
// knows how to build its outbound payload, whether it carries an anti-replay
// nonce, how to interpret the synchronous ack, and what to emit when the
// asynchronous response code for it arrives.
package request

import (
	"context"

	"go.uber.org/zap"

	"github.com/code-payments/market-billing-client/model"
)

// Payload is one key/value message exchanged with the market service.
type Payload map[string]any

// Channel is one round trip to the remote privileged service. The concrete
// binding (AIDL, gRPC, socket) is an external collaborator.
type Channel interface {
	Send(ctx context.Context, request Payload) (Payload, error)
}

// Emitter receives the events a request produces while being processed. The
// controller implements it by fanning out to registered observers.
type Emitter interface {
	OnCheckSupportedResponse(supported bool)
	OnPurchaseIntentReady(itemID, purchaseIntent string)
	OnPurchaseIntentFailure(itemID string, code model.ResponseCode)
	OnRequestPurchaseResponse(itemID string, code model.ResponseCode)
	OnTransactionsRestored()
}

// Kind tags the operation a request performs. The value goes on the wire
// under KeyBillingRequest.
type Kind string

const (
	KindCheckBillingSupported  Kind = "CHECK_BILLING_SUPPORTED"
	KindConfirmNotifications   Kind = "CONFIRM_NOTIFICATIONS"
	KindGetPurchaseInformation Kind = "GET_PURCHASE_INFORMATION"
	KindRequestPurchase        Kind = "REQUEST_PURCHASE"
	KindRestoreTransactions    Kind = "RESTORE_TRANSACTIONS"
)

// Payload keys understood by the market service.
const (
	KeyBillingRequest   = "BILLING_REQUEST"
	KeyAPIVersion       = "API_VERSION"
	KeyPackageName      = "PACKAGE_NAME"
	KeyNonce            = "NONCE"
	KeyItemID           = "ITEM_ID"
	KeyDeveloperPayload = "DEVELOPER_PAYLOAD"
	KeyNotifyIDs        = "NOTIFY_IDS"
	KeyResponseCode     = "RESPONSE_CODE"
	KeyRequestID        = "REQUEST_ID"
	KeyPurchaseIntent   = "PURCHASE_INTENT"
)

// APIVersion is the protocol version constant sent with every request.
const APIVersion = 1

// IgnoreRequestID is returned by Send when the ack carried a non-OK status:
// no asynchronous response will follow, so there is nothing to correlate.
const IgnoreRequestID int64 = -1

// Request is the closed set of billing operations.
type Request interface {
	Kind() Kind

	// HasNonce reports whether the variant carries an anti-replay nonce. A
	// request with HasNonce()==true must have one set before being sent.
	HasNonce() bool
	Nonce() int64
	SetNonce(nonce int64)

	// StartID is the caller-assigned sequence id, used to report how far the
	// queue has drained.
	StartID() int

	// Succeeded reports whether the synchronous ack carried RESULT_OK. Only
	// meaningful after Send.
	Succeeded() bool

	// OnResponseCode handles the asynchronous response-code event correlated
	// back to this request.
	OnResponseCode(e Emitter, code model.ResponseCode)

	// fill adds the variant's extra payload fields.
	fill(p Payload)

	// onAck interprets a successful synchronous ack.
	onAck(e Emitter, ack Payload)
}

// Send performs one round trip for the request: build payload, send, validate
// the ack. It returns the server-assigned correlation id, or IgnoreRequestID
// when the ack status was not OK. A transport failure is returned as an error
// with nothing interpreted.
func Send(ctx context.Context, ch Channel, r Request, e Emitter, log *zap.Logger) (int64, error) {
	payload := Payload{
		KeyBillingRequest: string(r.Kind()),
		KeyAPIVersion:     APIVersion,
	}
	if pkg := baseOf(r).packageName; pkg != "" {
		payload[KeyPackageName] = pkg
	}
	if r.HasNonce() {
		payload[KeyNonce] = r.Nonce()
	}
	r.fill(payload)

	ack, err := ch.Send(ctx, payload)
	if err != nil {
		return IgnoreRequestID, err
	}

	code := intValue(ack, KeyResponseCode)
	ok := model.IsOK(code)
	baseOf(r).success = ok
	if !ok {
		log.Warn("Request acked with error",
			zap.String("kind", string(r.Kind())),
			zap.Stringer("response_code", model.ResponseCodeOf(code)))
		return IgnoreRequestID, nil
	}

	r.onAck(e, ack)
	return int64Value(ack, KeyRequestID, IgnoreRequestID), nil
}

// base carries the fields every variant shares.
type base struct {
	packageName string
	startID     int
	nonce       int64
	success     bool
}

func (b *base) HasNonce() bool       { return false }
func (b *base) Nonce() int64         { return b.nonce }
func (b *base) SetNonce(nonce int64) { b.nonce = nonce }
func (b *base) StartID() int         { return b.startID }
func (b *base) Succeeded() bool      { return b.success }

func (b *base) OnResponseCode(Emitter, model.ResponseCode) {}
func (b *base) fill(Payload)                               {}
func (b *base) onAck(Emitter, Payload)                     {}

func (b *base) embedded() *base { return b }

func baseOf(r Request) *base {
	type embedder interface{ embedded() *base }
	return r.(embedder).embedded()
}

func intValue(p Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func int64Value(p Payload, key string, fallback int64) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return fallback
	}
}

func stringValue(p Payload, key string) string {
	s, _ := p[key].(string)
	return s
}
