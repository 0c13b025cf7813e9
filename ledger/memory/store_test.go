package memory

import (
	"testing"

	"github.com/code-payments/market-billing-client/ledger/tests"
)

func TestLedger_MemoryStore(t *testing.T) {
	testStore := NewInMemory()
	teardown := func() {
		testStore.(*InMemoryStore).reset()
	}
	tests.RunStoreTests(t, testStore, teardown)
}
