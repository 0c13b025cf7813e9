// Package billing is the public façade of the purchase client. A Controller
// submits operations to the market service through the dispatcher, verifies
// the signed pushes that come back, keeps the obfuscated transaction ledger
// consistent with them, and fans verified events out to observers.
package billing

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/code-payments/market-billing-client/dispatch"
	"github.com/code-payments/market-billing-client/ledger"
	"github.com/code-payments/market-billing-client/model"
	"github.com/code-payments/market-billing-client/nonce"
	"github.com/code-payments/market-billing-client/request"
	"github.com/code-payments/market-billing-client/security"
)

// Status is the last known answer to "does the service support billing".
type Status int

const (
	StatusUnknown Status = iota
	StatusSupported
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusSupported:
		return "supported"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

type Controller struct {
	log      *zap.Logger
	cfg      Config
	codec    *security.Codec
	verifier security.Verifier

	nonces     *nonce.Registry
	observers  *ObserverRegistry
	store      ledger.Store
	correlator *dispatch.Correlator
	dispatcher *dispatch.Dispatcher

	mu          sync.Mutex
	status      Status
	nextStartID int

	confirmMu     sync.Mutex
	autoConfirm   map[string]struct{}
	manualConfirm map[string]map[string]struct{}
}

// New wires a controller and the components it owns. The connector initiates
// connection attempts; the resulting channel is delivered via OnConnected.
func New(log *zap.Logger, cfg Config, store ledger.Store, connector dispatch.Connector) (*Controller, error) {
	verifier := cfg.Verifier
	if verifier == nil && cfg.PublicKey != "" {
		var err error
		verifier, err = security.NewRSAVerifier(cfg.PublicKey)
		if err != nil {
			return nil, errors.Wrap(err, "invalid public key")
		}
	}

	c := &Controller{
		log:           log,
		cfg:           cfg,
		codec:         security.NewCodec(cfg.ObfuscationSalt),
		verifier:      verifier,
		nonces:        nonce.NewRegistry(),
		observers:     NewObserverRegistry(),
		store:         store,
		autoConfirm:   make(map[string]struct{}),
		manualConfirm: make(map[string]map[string]struct{}),
	}
	c.correlator = dispatch.NewCorrelator(log, c.nonces)
	c.dispatcher = dispatch.NewDispatcher(log, c, c.correlator, c.nonces, connector)

	return c, nil
}

// Dispatcher exposes the connection state machine so the embedding process
// can deliver lifecycle events and observe queue drain.
func (c *Controller) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

func (c *Controller) RegisterObserver(o Observer) bool {
	return c.observers.Register(o)
}

func (c *Controller) UnregisterObserver(o Observer) bool {
	return c.observers.Unregister(o)
}

// OnConnected delivers an established channel to the dispatcher, which
// drains everything queued while disconnected.
func (c *Controller) OnConnected(ch request.Channel) {
	c.dispatcher.OnConnected(ch)
}

// OnDisconnected reports channel teardown (explicit unbind or remote crash).
func (c *Controller) OnDisconnected() {
	c.dispatcher.OnDisconnected()
}

// CheckBillingSupported returns the current billing status. When it is still
// unknown a check is submitted; observers eventually receive
// OnCheckSupportedResponse.
func (c *Controller) CheckBillingSupported() Status {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()

	if status == StatusUnknown {
		c.submit(request.NewCheckBillingSupported(c.cfg.PackageName, c.allocStartID()))
	}
	return status
}

// RequestPurchase starts the purchase of the item. With autoConfirm the
// eventual purchase notification is confirmed automatically; otherwise it
// waits for ConfirmNotifications. The developer payload travels with the
// purchase and comes back in the signed purchase state.
func (c *Controller) RequestPurchase(itemID string, autoConfirm bool, developerPayload string) {
	if autoConfirm {
		c.confirmMu.Lock()
		c.autoConfirm[itemID] = struct{}{}
		c.confirmMu.Unlock()
	}

	c.submit(request.NewRequestPurchase(c.cfg.PackageName, c.allocStartID(), itemID, developerPayload))
}

// ConfirmNotifications confirms all pending notifications of the item,
// reporting whether there were any. The pending set is taken atomically, so
// concurrent calls never confirm the same notification twice.
func (c *Controller) ConfirmNotifications(itemID string) bool {
	c.confirmMu.Lock()
	pending := c.manualConfirm[itemID]
	delete(c.manualConfirm, itemID)
	c.confirmMu.Unlock()

	if len(pending) == 0 {
		return false
	}

	notifyIDs := make([]string, 0, len(pending))
	for id := range pending {
		notifyIDs = append(notifyIDs, id)
	}
	sort.Strings(notifyIDs)

	c.confirmNotifications(notifyIDs)
	return true
}

// RestoreTransactions asks the service to replay the signed state of all
// prior transactions.
func (c *Controller) RestoreTransactions() {
	c.submit(request.NewRestoreTransactions(c.cfg.PackageName, c.allocStartID()))
}

// Transactions lists all locally recorded transactions, including
// cancellations and refunds, de-obfuscated.
func (c *Controller) Transactions(ctx context.Context) ([]*model.Transaction, error) {
	c.warnIfNoSalt()

	stored, err := c.store.GetTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return c.unobfuscateAll(stored)
}

// TransactionsForItem lists the locally recorded transactions of one item.
func (c *Controller) TransactionsForItem(ctx context.Context, itemID string) ([]*model.Transaction, error) {
	c.warnIfNoSalt()

	stored, err := c.store.GetTransactions(ctx, ledger.ForItem(c.codec.Obfuscate(itemID)))
	if err != nil {
		return nil, err
	}
	return c.unobfuscateAll(stored)
}

// CountPurchases counts recorded purchases of the item. Refunds and
// cancellations are separate states and do not subtract.
func (c *Controller) CountPurchases(ctx context.Context, itemID string) (int, error) {
	c.warnIfNoSalt()

	return c.store.CountTransactions(ctx,
		ledger.ForItem(c.codec.Obfuscate(itemID)),
		ledger.InState(model.StatePurchased))
}

// IsPurchased reports whether the item has ever been recorded as purchased
// locally. A later cancellation or refund does not flip it back.
func (c *Controller) IsPurchased(ctx context.Context, itemID string) (bool, error) {
	count, err := c.CountPurchases(ctx, itemID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// OnNotify handles an inbound purchase notification by requesting the signed
// purchase information behind it.
func (c *Controller) OnNotify(notificationID string) {
	c.log.Debug("Notification available", zap.String("notification_id", notificationID))

	r := request.NewGetPurchaseInformation(c.cfg.PackageName, c.allocStartID(), []string{notificationID})
	c.submit(r)
}

// OnResponseCode routes an asynchronous response-code event back to the
// request it belongs to. Unknown correlation ids are ignored.
func (c *Controller) OnResponseCode(requestID int64, responseCode int) {
	c.correlator.Resolve(requestID, model.ResponseCodeOf(responseCode), c)
}

// OnPurchaseStateChanged handles the authoritative signed push. Authenticity
// failures (missing or mismatched signature, unknown nonce, malformed
// payload) are logged and swallowed: a forged push must never corrupt the
// ledger or raise to the caller. Only a ledger write failure is returned,
// since that indicates a local resource problem.
func (c *Controller) OnPurchaseStateChanged(ctx context.Context, signedData, signature string) error {
	if signedData == "" {
		c.log.Warn("Signed data is empty")
		return nil
	}

	if !c.cfg.Debug {
		if signature == "" {
			c.log.Warn("Empty signature requires debug mode")
			return nil
		}
		if c.verifier == nil {
			c.log.Warn("No public key or verifier configured, rejecting signed data")
			return nil
		}
		if !c.verifier.Verify(signedData, signature) {
			c.log.Warn("Signature does not match data")
			return nil
		}
	}

	env, err := model.ParseEnvelope(signedData)
	if err != nil {
		c.log.Warn("Failed to parse signed data", zap.Error(err))
		return nil
	}

	// Single-use: the nonce is consumed here, making a replay of the same
	// signed payload impossible.
	if !c.nonces.Remove(env.Nonce) {
		c.log.Warn("Invalid nonce", zap.Int64("nonce", env.Nonce))
		return nil
	}

	transactions := env.Transactions()

	var confirmations []string
	for _, tx := range transactions {
		if tx.NotificationID == "" {
			continue
		}
		c.confirmMu.Lock()
		if _, auto := c.autoConfirm[tx.ItemID]; auto {
			confirmations = append(confirmations, tx.NotificationID)
		} else {
			c.addManualConfirmation(tx.ItemID, tx.NotificationID)
		}
		c.confirmMu.Unlock()
	}

	c.warnIfNoSalt()
	for _, tx := range transactions {
		if err := c.store.PutTransaction(ctx, c.obfuscate(tx)); err != nil {
			return errors.Wrap(err, "failed to record transaction")
		}
		c.observers.OnPurchaseStateChanged(tx.ItemID, tx.State)
	}

	if len(confirmations) > 0 {
		c.confirmNotifications(confirmations)
	}
	return nil
}

// Emitter surface, invoked by requests as their acks and response codes come
// in.

func (c *Controller) OnCheckSupportedResponse(supported bool) {
	c.mu.Lock()
	if supported {
		c.status = StatusSupported
	} else {
		c.status = StatusUnsupported
	}
	c.mu.Unlock()

	c.observers.OnCheckSupportedResponse(supported)
}

func (c *Controller) OnPurchaseIntentReady(itemID, purchaseIntent string) {
	c.observers.OnPurchaseIntentReady(itemID, purchaseIntent)
}

func (c *Controller) OnPurchaseIntentFailure(itemID string, code model.ResponseCode) {
	c.observers.OnPurchaseIntentFailure(itemID, code)
}

func (c *Controller) OnRequestPurchaseResponse(itemID string, code model.ResponseCode) {
	c.observers.OnRequestPurchaseResponse(itemID, code)
}

func (c *Controller) OnTransactionsRestored() {
	c.observers.OnTransactionsRestored()
}

func (c *Controller) confirmNotifications(notifyIDs []string) {
	c.submit(request.NewConfirmNotifications(c.cfg.PackageName, c.allocStartID(), notifyIDs))
}

// addManualConfirmation parks a notification until ConfirmNotifications is
// called for the item. Caller holds confirmMu.
func (c *Controller) addManualConfirmation(itemID, notificationID string) {
	pending, ok := c.manualConfirm[itemID]
	if !ok {
		pending = make(map[string]struct{})
		c.manualConfirm[itemID] = pending
	}
	pending[notificationID] = struct{}{}
}

// submit allocates a nonce for variants that carry one, then hands the
// request to the dispatcher. The nonce is released exactly once downstream:
// consumed by a verified push, or returned when the send fails.
func (c *Controller) submit(r request.Request) {
	if r.HasNonce() {
		r.SetNonce(c.nonces.Issue())
	}
	c.dispatcher.Submit(r)
}

func (c *Controller) allocStartID() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextStartID++
	return c.nextStartID
}

func (c *Controller) obfuscate(tx *model.Transaction) *model.Transaction {
	stored := tx.Clone()
	stored.OrderID = c.codec.Obfuscate(stored.OrderID)
	stored.ItemID = c.codec.Obfuscate(stored.ItemID)
	stored.DeveloperPayload = c.codec.Obfuscate(stored.DeveloperPayload)
	return stored
}

func (c *Controller) unobfuscateAll(stored []*model.Transaction) ([]*model.Transaction, error) {
	result := make([]*model.Transaction, 0, len(stored))
	for _, tx := range stored {
		plain := tx.Clone()

		var err error
		if plain.OrderID, err = c.codec.Unobfuscate(plain.OrderID); err == nil {
			if plain.ItemID, err = c.codec.Unobfuscate(plain.ItemID); err == nil {
				plain.DeveloperPayload, err = c.codec.Unobfuscate(plain.DeveloperPayload)
			}
		}
		if err != nil {
			return nil, errors.Wrap(err, "corrupt transaction record")
		}

		result = append(result, plain)
	}
	return result, nil
}

// warnIfNoSalt surfaces the missing-salt condition once per access rather
// than once per field.
func (c *Controller) warnIfNoSalt() {
	if !c.codec.Enabled() {
		c.log.Warn("Cannot (un)obfuscate purchases without salt")
	}
}
