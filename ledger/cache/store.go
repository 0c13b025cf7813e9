package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ReneKroon/ttlcache"

	"github.com/code-payments/market-billing-client/ledger"
	"github.com/code-payments/market-billing-client/model"
)

// Cache is a read-through decorator that memoizes purchase counts, the query
// behind every "is this item owned" check. Writes invalidate the keys they
// can affect; entries also age out on their own.
type Cache struct {
	db    ledger.Store
	cache *ttlcache.Cache
}

func NewInCache(db ledger.Store, ttl time.Duration) ledger.Store {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &Cache{
		db:    db,
		cache: cache,
	}
}

func (c *Cache) PutTransaction(ctx context.Context, tx *model.Transaction) error {
	if err := c.db.PutTransaction(ctx, tx); err != nil {
		return err
	}

	// An upsert can move a row between states, so every count touching this
	// item is suspect, as is every unfiltered count.
	for _, itemID := range []string{tx.ItemID, ""} {
		c.cache.Remove(countKey(ledger.Query{ItemID: itemID}))
		for _, state := range []model.PurchaseState{
			model.StatePurchased, model.StateCancelled, model.StateRefunded, model.StateUnknown,
		} {
			state := state
			c.cache.Remove(countKey(ledger.Query{ItemID: itemID, State: &state}))
		}
	}
	return nil
}

func (c *Cache) GetTransactions(ctx context.Context, opts ...ledger.Option) ([]*model.Transaction, error) {
	return c.db.GetTransactions(ctx, opts...)
}

func (c *Cache) CountTransactions(ctx context.Context, opts ...ledger.Option) (int, error) {
	key := countKey(ledger.ApplyOptions(opts...))

	if cached, ok := c.cache.Get(key); ok {
		return cached.(int), nil
	}

	count, err := c.db.CountTransactions(ctx, opts...)
	if err != nil {
		return 0, err
	}

	c.cache.Set(key, count)
	return count, nil
}

func countKey(q ledger.Query) string {
	if q.State == nil {
		return fmt.Sprintf("count:%s:any", q.ItemID)
	}
	return fmt.Sprintf("count:%s:%d", q.ItemID, int(*q.State))
}
