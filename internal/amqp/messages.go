package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds published on the ledger exchange.
const (
	EventTransactionCreated  = "transaction.created"
	EventTransactionUpdated  = "transaction.updated"
	EventTransactionDeleted  = "transaction.deleted"
	EventTransactionRestored = "transaction.restored"
	EventTransferCompleted   = "transfer.completed"
)

// LedgerEvent is a lightweight notification about a committed ledger
// mutation. Consumers fetch full records through the API if they need more
// than the identifiers.
type LedgerEvent struct {
	Kind          string    `json:"kind"`
	OwnerID       string    `json:"ownerId"`
	TransactionID string    `json:"transactionId,omitempty"`
	GroupID       string    `json:"groupId,omitempty"`
	AccountID     string    `json:"accountId,omitempty"`
	AmountCents   int64     `json:"amountCents,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(kind, ownerID string) LedgerEvent {
	return LedgerEvent{
		Kind:      kind,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event from JSON bytes.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}
