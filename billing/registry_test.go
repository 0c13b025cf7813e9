package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/market-billing-client/model"
)

func TestObserverRegistry_RegisterUnregister(t *testing.T) {
	registry := NewObserverRegistry()
	a := &recordingObserver{}
	b := &recordingObserver{}

	require.True(t, registry.Register(a))
	require.False(t, registry.Register(a))
	require.True(t, registry.Register(b))

	require.True(t, registry.Unregister(a))
	require.False(t, registry.Unregister(a))
	require.True(t, registry.Unregister(b))
}

func TestObserverRegistry_FanOut(t *testing.T) {
	registry := NewObserverRegistry()
	a := &recordingObserver{}
	b := &recordingObserver{}
	registry.Register(a)
	registry.Register(b)

	registry.OnCheckSupportedResponse(true)
	registry.OnPurchaseStateChanged("sku1", model.StatePurchased)
	registry.OnTransactionsRestored()

	for _, o := range []*recordingObserver{a, b} {
		require.Equal(t, []bool{true}, o.supported)
		require.Equal(t, []stateEvent{{"sku1", model.StatePurchased}}, o.stateChanges)
		require.Equal(t, 1, o.restored)
	}
}

func TestObserverRegistry_UnregisteredStopsReceiving(t *testing.T) {
	registry := NewObserverRegistry()
	a := &recordingObserver{}
	b := &recordingObserver{}
	registry.Register(a)
	registry.Register(b)

	registry.OnPurchaseStateChanged("sku1", model.StatePurchased)
	registry.Unregister(a)
	registry.OnPurchaseStateChanged("sku1", model.StateRefunded)

	require.Len(t, a.stateChanges, 1)
	require.Len(t, b.stateChanges, 2)
}
