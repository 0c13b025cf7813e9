package billing

import (
	"sync"

	"github.com/code-payments/market-billing-client/model"
)

// ObserverRegistry fans events out to registered observers. Registration and
// fan-out never race: each wave iterates a point-in-time snapshot, so an
// observer added or removed mid-wave neither errors nor is guaranteed to see
// the in-progress wave.
type ObserverRegistry struct {
	mu        sync.Mutex
	observers []Observer
}

func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{}
}

// Register adds the observer, reporting whether the set changed.
func (r *ObserverRegistry) Register(o Observer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.observers {
		if existing == o {
			return false
		}
	}
	r.observers = append(r.observers, o)
	return true
}

// Unregister removes the observer, reporting whether the set changed.
func (r *ObserverRegistry) Unregister(o Observer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.observers {
		if existing == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the observer set so delivery happens outside the lock.
func (r *ObserverRegistry) snapshot() []Observer {
	r.mu.Lock()
	defer r.mu.Unlock()

	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	return observers
}

func (r *ObserverRegistry) OnCheckSupportedResponse(supported bool) {
	for _, o := range r.snapshot() {
		o.OnCheckSupportedResponse(supported)
	}
}

func (r *ObserverRegistry) OnPurchaseIntentReady(itemID, purchaseIntent string) {
	for _, o := range r.snapshot() {
		o.OnPurchaseIntentReady(itemID, purchaseIntent)
	}
}

func (r *ObserverRegistry) OnPurchaseIntentFailure(itemID string, code model.ResponseCode) {
	for _, o := range r.snapshot() {
		o.OnPurchaseIntentFailure(itemID, code)
	}
}

func (r *ObserverRegistry) OnPurchaseStateChanged(itemID string, state model.PurchaseState) {
	for _, o := range r.snapshot() {
		o.OnPurchaseStateChanged(itemID, state)
	}
}

func (r *ObserverRegistry) OnRequestPurchaseResponse(itemID string, code model.ResponseCode) {
	for _, o := range r.snapshot() {
		o.OnRequestPurchaseResponse(itemID, code)
	}
}

func (r *ObserverRegistry) OnTransactionsRestored() {
	for _, o := range r.snapshot() {
		o.OnTransactionsRestored()
	}
}
