package dispatch

import (
	"sync"

	"go.uber.org/zap"

	"github.com/code-payments/market-billing-client/model"
	"github.com/code-payments/market-billing-client/nonce"
	"github.com/code-payments/market-billing-client/request"
)

// Correlator maps server-issued correlation ids to the requests that caused
// them, so the later asynchronous response-code event can be routed back.
type Correlator struct {
	log    *zap.Logger
	nonces *nonce.Registry

	mu      sync.Mutex
	pending map[int64]request.Request
}

func NewCorrelator(log *zap.Logger, nonces *nonce.Registry) *Correlator {
	return &Correlator{
		log:     log,
		nonces:  nonces,
		pending: make(map[int64]request.Request),
	}
}

// OnRequestSent records the outcome of a send. A request that succeeded and
// received a correlation id becomes pending; one that failed validation at
// the ack will never see a push, so any nonce it carried is released
// immediately.
func (c *Correlator) OnRequestSent(requestID int64, r request.Request) {
	if requestID == request.IgnoreRequestID || !r.Succeeded() {
		if r.HasNonce() {
			c.nonces.Remove(r.Nonce())
		}
		return
	}

	c.mu.Lock()
	c.pending[requestID] = r
	c.mu.Unlock()
}

// Resolve routes an asynchronous response code to the originating request,
// removing the pending record. An unknown id is benign: pending state can be
// lost across a restart, and the service may redeliver.
func (c *Correlator) Resolve(requestID int64, code model.ResponseCode, e request.Emitter) {
	c.mu.Lock()
	r, ok := c.pending[requestID]
	delete(c.pending, requestID)
	c.mu.Unlock()

	if !ok {
		c.log.Debug("Response for unknown request id",
			zap.Int64("request_id", requestID),
			zap.Stringer("response_code", code))
		return
	}

	r.OnResponseCode(e, code)
}

// PendingCount returns the number of requests awaiting an asynchronous
// response.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
