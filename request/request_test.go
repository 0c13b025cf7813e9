package request

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/code-payments/market-billing-client/model"
)

type recordingEmitter struct {
	supported        []bool
	intents          map[string]string
	intentFailures   map[string]model.ResponseCode
	purchaseResponse map[string]model.ResponseCode
	restored         int
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{
		intents:          map[string]string{},
		intentFailures:   map[string]model.ResponseCode{},
		purchaseResponse: map[string]model.ResponseCode{},
	}
}

func (e *recordingEmitter) OnCheckSupportedResponse(supported bool) {
	e.supported = append(e.supported, supported)
}
func (e *recordingEmitter) OnPurchaseIntentReady(itemID, purchaseIntent string) {
	e.intents[itemID] = purchaseIntent
}
func (e *recordingEmitter) OnPurchaseIntentFailure(itemID string, code model.ResponseCode) {
	e.intentFailures[itemID] = code
}
func (e *recordingEmitter) OnRequestPurchaseResponse(itemID string, code model.ResponseCode) {
	e.purchaseResponse[itemID] = code
}
func (e *recordingEmitter) OnTransactionsRestored() {
	e.restored++
}

type scriptedChannel struct {
	sent []Payload
	ack  Payload
	err  error
}

func (c *scriptedChannel) Send(_ context.Context, request Payload) (Payload, error) {
	c.sent = append(c.sent, request)
	return c.ack, c.err
}

func okAck(requestID int64) Payload {
	return Payload{KeyResponseCode: 0, KeyRequestID: requestID}
}

func TestSend_CommonPayloadFields(t *testing.T) {
	ch := &scriptedChannel{ack: okAck(42)}
	r := NewCheckBillingSupported("com.example.app", 1)

	id, err := Send(context.Background(), ch, r, newRecordingEmitter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.EqualValues(t, 42, id)
	require.True(t, r.Succeeded())

	require.Len(t, ch.sent, 1)
	payload := ch.sent[0]
	require.Equal(t, string(KindCheckBillingSupported), payload[KeyBillingRequest])
	require.Equal(t, APIVersion, payload[KeyAPIVersion])
	require.Equal(t, "com.example.app", payload[KeyPackageName])
	require.NotContains(t, payload, KeyNonce)
}

func TestSend_NonceOnTheWire(t *testing.T) {
	ch := &scriptedChannel{ack: okAck(7)}
	r := NewRestoreTransactions("com.example.app", 1)
	r.SetNonce(147)
	require.True(t, r.HasNonce())

	_, err := Send(context.Background(), ch, r, newRecordingEmitter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.EqualValues(t, int64(147), ch.sent[0][KeyNonce])
}

func TestSend_TransportFailure(t *testing.T) {
	ch := &scriptedChannel{err: errors.New("remote service crashed")}
	r := NewRequestPurchase("com.example.app", 1, "sku1", "")

	emitter := newRecordingEmitter()
	id, err := Send(context.Background(), ch, r, emitter, zaptest.NewLogger(t))
	require.Error(t, err)
	require.Equal(t, IgnoreRequestID, id)
	require.False(t, r.Succeeded())
	require.Empty(t, emitter.intents)
}

func TestSend_ErrorAck(t *testing.T) {
	ch := &scriptedChannel{ack: Payload{KeyResponseCode: 3, KeyRequestID: int64(55)}}
	r := NewCheckBillingSupported("com.example.app", 1)

	emitter := newRecordingEmitter()
	id, err := Send(context.Background(), ch, r, emitter, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, IgnoreRequestID, id)
	require.False(t, r.Succeeded())

	// A failed validation emits nothing; the response code only surfaces via
	// the asynchronous path.
	require.Empty(t, emitter.supported)
}

func TestSend_MissingRequestID(t *testing.T) {
	ch := &scriptedChannel{ack: Payload{KeyResponseCode: 0}}
	r := NewCheckBillingSupported("com.example.app", 1)

	id, err := Send(context.Background(), ch, r, newRecordingEmitter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, IgnoreRequestID, id)
	require.True(t, r.Succeeded())
}

func TestCheckBillingSupported_Ack(t *testing.T) {
	ch := &scriptedChannel{ack: okAck(1)}
	r := NewCheckBillingSupported("com.example.app", 1)

	emitter := newRecordingEmitter()
	_, err := Send(context.Background(), ch, r, emitter, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []bool{true}, emitter.supported)
}

func TestConfirmNotifications_Payload(t *testing.T) {
	ch := &scriptedChannel{ack: okAck(1)}
	r := NewConfirmNotifications("com.example.app", 2, []string{"n1", "n2"})

	_, err := Send(context.Background(), ch, r, newRecordingEmitter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []string{"n1", "n2"}, ch.sent[0][KeyNotifyIDs])
	require.False(t, r.HasNonce())
}

func TestGetPurchaseInformation_Payload(t *testing.T) {
	ch := &scriptedChannel{ack: okAck(1)}
	r := NewGetPurchaseInformation("com.example.app", 3, []string{"n1"})
	r.SetNonce(99)

	_, err := Send(context.Background(), ch, r, newRecordingEmitter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []string{"n1"}, ch.sent[0][KeyNotifyIDs])
	require.EqualValues(t, int64(99), ch.sent[0][KeyNonce])
}

func TestRequestPurchase_AckAndResponseCode(t *testing.T) {
	ch := &scriptedChannel{ack: Payload{
		KeyResponseCode:   0,
		KeyRequestID:      int64(42),
		KeyPurchaseIntent: "intent-handle",
	}}
	r := NewRequestPurchase("com.example.app", 4, "sku1", "payload")

	emitter := newRecordingEmitter()
	id, err := Send(context.Background(), ch, r, emitter, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	require.Equal(t, "sku1", ch.sent[0][KeyItemID])
	require.Equal(t, "payload", ch.sent[0][KeyDeveloperPayload])
	require.Equal(t, "intent-handle", emitter.intents["sku1"])

	r.OnResponseCode(emitter, model.ResultOK)
	require.Equal(t, model.ResultOK, emitter.purchaseResponse["sku1"])
	require.Empty(t, emitter.intentFailures)

	r.OnResponseCode(emitter, model.ResultUserCanceled)
	require.Equal(t, model.ResultUserCanceled, emitter.purchaseResponse["sku1"])
	require.Equal(t, model.ResultUserCanceled, emitter.intentFailures["sku1"])
}

func TestRequestPurchase_OmitsEmptyDeveloperPayload(t *testing.T) {
	ch := &scriptedChannel{ack: okAck(1)}
	r := NewRequestPurchase("com.example.app", 5, "sku1", "")

	_, err := Send(context.Background(), ch, r, newRecordingEmitter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotContains(t, ch.sent[0], KeyDeveloperPayload)
}

func TestRestoreTransactions_ResponseCode(t *testing.T) {
	r := NewRestoreTransactions("com.example.app", 6)

	emitter := newRecordingEmitter()
	r.OnResponseCode(emitter, model.ResultServiceUnavailable)
	require.Zero(t, emitter.restored)

	r.OnResponseCode(emitter, model.ResultOK)
	require.Equal(t, 1, emitter.restored)
}
