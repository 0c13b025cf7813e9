package memory

import (
	"context"
	"sync"

	"github.com/code-payments/market-billing-client/ledger"
	"github.com/code-payments/market-billing-client/model"
)

type InMemoryStore struct {
	mu sync.RWMutex

	// Keyed by order id; order slice keeps reads deterministic.
	transactions map[string]*model.Transaction
	order        []string
}

func NewInMemory() ledger.Store {
	return &InMemoryStore{
		transactions: map[string]*model.Transaction{},
	}
}

func (s *InMemoryStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = make(map[string]*model.Transaction)
	s.order = nil
}

func (s *InMemoryStore) PutTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := tx.Clone()
	// The notification id is push-routing state, not part of the stored row.
	stored.NotificationID = ""

	if _, ok := s.transactions[stored.OrderID]; !ok {
		s.order = append(s.order, stored.OrderID)
	}
	s.transactions[stored.OrderID] = stored

	return nil
}

func (s *InMemoryStore) GetTransactions(_ context.Context, opts ...ledger.Option) ([]*model.Transaction, error) {
	query := ledger.ApplyOptions(opts...)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Transaction
	for _, orderID := range s.order {
		if tx := s.transactions[orderID]; query.Matches(tx) {
			result = append(result, tx.Clone())
		}
	}
	return result, nil
}

func (s *InMemoryStore) CountTransactions(_ context.Context, opts ...ledger.Option) (int, error) {
	query := ledger.ApplyOptions(opts...)

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tx := range s.transactions {
		if query.Matches(tx) {
			count++
		}
	}
	return count, nil
}
