// Package dispatch owns the connection to the market service: it queues
// requests while disconnected, drains them in FIFO order once connected, and
// correlates asynchronous responses back to the requests that caused them.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/code-payments/market-billing-client/nonce"
	"github.com/code-payments/market-billing-client/request"
)

// State is the dispatcher's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Connector initiates an asynchronous connection attempt to the market
// service. The connection itself is delivered later through OnConnected.
type Connector interface {
	Connect()
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func()

func (f ConnectorFunc) Connect() { f() }

// Dispatcher owns the outbound FIFO queue and the channel connection state
// machine. Submission may happen from any goroutine; draining and sending are
// serialized so they are never concurrent with each other.
type Dispatcher struct {
	log        *zap.Logger
	emitter    request.Emitter
	correlator *Correlator
	nonces     *nonce.Registry
	connector  Connector

	// Optional: called with the highest caller-assigned sequence id after a
	// drain empties the queue, so an embedding process can release resources.
	idleFn func(maxStartID int)

	// mu guards the state machine, the queue, and the draining flag. At most
	// one drain loop runs at a time; anything submitted meanwhile is picked up
	// by the active loop.
	mu       sync.Mutex
	state    State
	channel  request.Channel
	queue    []request.Request
	draining bool
}

func NewDispatcher(
	log *zap.Logger,
	emitter request.Emitter,
	correlator *Correlator,
	nonces *nonce.Registry,
	connector Connector,
) *Dispatcher {
	return &Dispatcher{
		log:        log,
		emitter:    emitter,
		correlator: correlator,
		nonces:     nonces,
		connector:  connector,
	}
}

// SetIdleFunc registers the drained-queue callback. Must be called before the
// dispatcher is in use.
func (d *Dispatcher) SetIdleFunc(fn func(maxStartID int)) {
	d.idleFn = fn
}

// State returns the current connection state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// QueueLen returns the number of requests waiting to be sent.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Submit appends the request to the queue and makes sure something will drain
// it: starts a connection attempt when disconnected, triggers a drain when
// already connected, and does nothing extra while a connection attempt is in
// flight.
func (d *Dispatcher) Submit(r request.Request) {
	var connect, drain bool

	d.mu.Lock()
	d.queue = append(d.queue, r)
	switch d.state {
	case Disconnected:
		d.state = Connecting
		connect = true
	case Connected:
		// A drain already in progress will see this request; starting a
		// second one would deadlock a submission made from inside an ack
		// handler on the draining goroutine.
		drain = !d.draining
	}
	d.mu.Unlock()

	if connect {
		d.connector.Connect()
	}
	if drain {
		d.drain()
	}
}

// OnConnected transitions to Connected and drains whatever queued up while
// the connection was being established.
func (d *Dispatcher) OnConnected(ch request.Channel) {
	d.mu.Lock()
	d.state = Connected
	d.channel = ch
	d.mu.Unlock()

	d.drain()
}

// OnDisconnected transitions to Disconnected. Requests still queued remain
// queued for the next connection; requests already sent stay pending in the
// correlator, since a late push may still arrive for them.
func (d *Dispatcher) OnDisconnected() {
	d.mu.Lock()
	d.state = Disconnected
	d.channel = nil
	d.mu.Unlock()
}

func (d *Dispatcher) drain() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	d.mu.Unlock()

	maxStartID := -1

	for {
		d.mu.Lock()
		if d.state != Connected || len(d.queue) == 0 {
			// Clearing the flag and deciding the queue is empty happen under
			// the same lock hold, so a concurrent Submit either handed its
			// request to this loop or will start a drain of its own.
			d.draining = false
			d.mu.Unlock()
			break
		}
		r := d.queue[0]
		d.queue = d.queue[1:]
		ch := d.channel
		d.mu.Unlock()

		requestID, err := request.Send(context.Background(), ch, r, d.emitter, d.log)
		if err != nil {
			// The transport rejected the send. The request is dropped, not
			// re-queued; a bounded retry is a known gap. Its nonce would
			// otherwise leak, so release it here.
			d.log.Warn("Remote billing service send failed",
				zap.String("kind", string(r.Kind())),
				zap.Error(err))
			if r.HasNonce() {
				d.nonces.Remove(r.Nonce())
			}
			continue
		}

		d.correlator.OnRequestSent(requestID, r)

		if r.StartID() > maxStartID {
			maxStartID = r.StartID()
		}
	}

	if maxStartID >= 0 && d.idleFn != nil {
		d.idleFn(maxStartID)
	}
}
