// Command billing-demo runs the billing client against an in-process loopback
// market service: it checks support, purchases an item, confirms the
// notification, restores transactions, and prints the resulting ledger.
package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/code-payments/market-billing-client/billing"
	"github.com/code-payments/market-billing-client/dispatch"
	"github.com/code-payments/market-billing-client/ledger/cache"
	"github.com/code-payments/market-billing-client/ledger/memory"
	"github.com/code-payments/market-billing-client/model"
	"github.com/code-payments/market-billing-client/request"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	cfg, err := billing.ConfigFromEnv()
	if err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}
	if cfg.PackageName == "" {
		cfg.PackageName = "com.example.billingdemo"
	}
	// The loopback service pushes unsigned payloads.
	cfg.Debug = true

	store := cache.NewInCache(memory.NewInMemory(), time.Minute)
	service := &loopbackService{log: logger}

	var controller *billing.Controller
	connector := dispatch.ConnectorFunc(func() {
		go controller.OnConnected(service)
	})

	controller, err = billing.New(logger, cfg, store, connector)
	if err != nil {
		logger.Fatal("Failed to create controller", zap.Error(err))
	}
	service.controller = controller

	events := &waitingObserver{
		intents:      make(chan string, 4),
		stateChanges: make(chan string, 4),
		restored:     make(chan struct{}, 1),
	}
	controller.RegisterObserver(events)

	ctx := context.Background()

	controller.CheckBillingSupported()
	controller.RequestPurchase("demo.sword", true, "forged in the demo")

	select {
	case item := <-events.stateChanges:
		logger.Info("Purchase recorded", zap.String("item", item))
	case <-time.After(5 * time.Second):
		logger.Fatal("Timed out waiting for purchase state")
	}

	count, err := controller.CountPurchases(ctx, "demo.sword")
	if err != nil {
		logger.Fatal("Failed to count purchases", zap.Error(err))
	}
	logger.Info("Purchase count", zap.Int("count", count))

	controller.RestoreTransactions()
	select {
	case <-events.restored:
	case <-time.After(5 * time.Second):
		logger.Fatal("Timed out waiting for restore")
	}

	txs, err := controller.Transactions(ctx)
	if err != nil {
		logger.Fatal("Failed to list transactions", zap.Error(err))
	}
	for _, tx := range txs {
		logger.Info("Ledger entry",
			zap.String("order_id", tx.OrderID),
			zap.String("item_id", tx.ItemID),
			zap.Stringer("state", tx.State))
	}
}

// loopbackService plays the market service in-process. Follow-up events run
// on their own goroutines, the way a real binder delivers them.
type loopbackService struct {
	log        *zap.Logger
	controller *billing.Controller

	nextID int64

	mu     sync.Mutex
	orders map[string]order
}

type order struct {
	itemID  string
	payload string
}

func (s *loopbackService) Send(_ context.Context, p request.Payload) (request.Payload, error) {
	requestID := atomic.AddInt64(&s.nextID, 1)
	ack := request.Payload{
		request.KeyResponseCode: int(model.ResultOK),
		request.KeyRequestID:    requestID,
	}

	switch request.Kind(p[request.KeyBillingRequest].(string)) {
	case request.KindRequestPurchase:
		ack[request.KeyPurchaseIntent] = "intent:" + uuid.NewString()

		notifyID := uuid.NewString()
		s.mu.Lock()
		if s.orders == nil {
			s.orders = make(map[string]order)
		}
		s.orders[notifyID] = order{
			itemID:  p[request.KeyItemID].(string),
			payload: stringAt(p, request.KeyDeveloperPayload),
		}
		s.mu.Unlock()

		go func() {
			s.controller.OnResponseCode(requestID, int(model.ResultOK))
			s.controller.OnNotify(notifyID)
		}()

	case request.KindGetPurchaseInformation:
		nonce := p[request.KeyNonce].(int64)
		notifyIDs := p[request.KeyNotifyIDs].([]string)

		var orders []map[string]any
		s.mu.Lock()
		for _, id := range notifyIDs {
			o, ok := s.orders[id]
			if !ok {
				continue
			}
			orders = append(orders, map[string]any{
				"notificationId":   id,
				"orderId":          uuid.NewString(),
				"productId":        o.itemID,
				"purchaseTime":     time.Now().UnixMilli(),
				"purchaseState":    int(model.StatePurchased),
				"developerPayload": o.payload,
			})
		}
		s.mu.Unlock()

		go s.push(nonce, orders)

	case request.KindConfirmNotifications:
		s.mu.Lock()
		for _, id := range p[request.KeyNotifyIDs].([]string) {
			delete(s.orders, id)
		}
		s.mu.Unlock()

	case request.KindRestoreTransactions:
		// Nothing recorded server side in the demo; replay an empty set and
		// complete the request.
		go func() {
			s.push(p[request.KeyNonce].(int64), nil)
			s.controller.OnResponseCode(requestID, int(model.ResultOK))
		}()
	}

	return ack, nil
}

func (s *loopbackService) push(nonce int64, orders []map[string]any) {
	data, err := json.Marshal(map[string]any{
		"nonce":  nonce,
		"orders": orders,
	})
	if err != nil {
		s.log.Error("Failed to marshal push", zap.Error(err))
		return
	}

	if err := s.controller.OnPurchaseStateChanged(context.Background(), string(data), ""); err != nil {
		s.log.Error("Push rejected", zap.Error(err))
	}
}

func stringAt(p request.Payload, key string) string {
	s, _ := p[key].(string)
	return s
}

// waitingObserver bridges controller callbacks to the demo's main goroutine.
type waitingObserver struct {
	intents      chan string
	stateChanges chan string
	restored     chan struct{}
}

func (o *waitingObserver) OnCheckSupportedResponse(bool)                        {}
func (o *waitingObserver) OnPurchaseIntentFailure(string, model.ResponseCode)   {}
func (o *waitingObserver) OnRequestPurchaseResponse(string, model.ResponseCode) {}

func (o *waitingObserver) OnPurchaseIntentReady(itemID, purchaseIntent string) {
	select {
	case o.intents <- purchaseIntent:
	default:
	}
}

func (o *waitingObserver) OnPurchaseStateChanged(itemID string, state model.PurchaseState) {
	select {
	case o.stateChanges <- itemID:
	default:
	}
}

func (o *waitingObserver) OnTransactionsRestored() {
	select {
	case o.restored <- struct{}{}:
	default:
	}
}
