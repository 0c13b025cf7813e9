package model

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// PurchaseState is the state of a single purchase as reported by the market
// service. The wire values are fixed by the service protocol.
type PurchaseState int

const (
	StatePurchased PurchaseState = 0
	StateCancelled PurchaseState = 1
	StateRefunded  PurchaseState = 2

	// StateUnknown is the decode fallback for values outside the protocol.
	StateUnknown PurchaseState = 3
)

// PurchaseStateOf decodes a wire value, mapping anything unrecognized to
// StateUnknown.
func PurchaseStateOf(value int) PurchaseState {
	switch state := PurchaseState(value); state {
	case StatePurchased, StateCancelled, StateRefunded:
		return state
	default:
		return StateUnknown
	}
}

func (s PurchaseState) String() string {
	switch s {
	case StatePurchased:
		return "purchased"
	case StateCancelled:
		return "cancelled"
	case StateRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Transaction is one purchase event. Identity is the order id: the ledger
// upserts on it.
type Transaction struct {
	OrderID          string
	ItemID           string
	State            PurchaseState
	PurchaseTime     int64 // milliseconds since epoch
	DeveloperPayload string

	// NotificationID links the transaction back to the push notification that
	// announced it, when there was one. Not persisted.
	NotificationID string
}

func (t *Transaction) Clone() *Transaction {
	clone := *t
	return &clone
}

// Envelope is the signed JSON payload carried by a purchase-state push.
type Envelope struct {
	Nonce  int64        `json:"nonce"`
	Orders []*wireOrder `json:"orders"`
}

type wireOrder struct {
	NotificationID   string `json:"notificationId"`
	OrderID          string `json:"orderId"`
	PackageName      string `json:"packageName"`
	ProductID        string `json:"productId"`
	PurchaseTime     int64  `json:"purchaseTime"`
	PurchaseState    int    `json:"purchaseState"`
	DeveloperPayload string `json:"developerPayload"`
}

// ParseEnvelope decodes the signed data of a purchase-state push. A payload
// without an orders array is valid and yields no transactions.
func ParseEnvelope(signedData string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(signedData), &env); err != nil {
		return nil, errors.Wrap(err, "malformed signed data")
	}
	return &env, nil
}

// Transactions converts the raw orders of the envelope into Transaction
// values.
func (e *Envelope) Transactions() []*Transaction {
	txs := make([]*Transaction, 0, len(e.Orders))
	for _, o := range e.Orders {
		txs = append(txs, &Transaction{
			OrderID:          o.OrderID,
			ItemID:           o.ProductID,
			State:            PurchaseStateOf(o.PurchaseState),
			PurchaseTime:     o.PurchaseTime,
			DeveloperPayload: o.DeveloperPayload,
			NotificationID:   o.NotificationID,
		})
	}
	return txs
}
