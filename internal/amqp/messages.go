package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"journey/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventObjectiveUpdated   EventType = "objective.updated"
	EventSettingsUpdated    EventType = "settings.updated"
)

// LedgerEvent announces a committed change to the ledger. Created events carry
// a snapshot of the transaction so consumers do not need access to the store.
type LedgerEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	TransactionID int64             `json:"transactionId,omitempty"`
	ObjectiveID   string            `json:"objectiveId,omitempty"`
	AmountBRL     *decimal.Decimal  `json:"amountBRL,omitempty"`
	ExchangeRate  *decimal.Decimal  `json:"exchangeRate,omitempty"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

func newEvent(t EventType) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

func NewTransactionCreated(tx core.Transaction) *LedgerEvent {
	ev := newEvent(EventTransactionCreated)
	ev.TransactionID = tx.ID
	ev.AmountBRL = &tx.AmountBRL
	if tx.ObjectiveID != nil {
		ev.ObjectiveID = *tx.ObjectiveID
	}
	ev.Transaction = &tx
	return ev
}

func NewTransactionDeleted(tx core.Transaction) *LedgerEvent {
	ev := newEvent(EventTransactionDeleted)
	ev.TransactionID = tx.ID
	ev.AmountBRL = &tx.AmountBRL
	if tx.ObjectiveID != nil {
		ev.ObjectiveID = *tx.ObjectiveID
	}
	return ev
}

func NewObjectiveUpdated(o core.Objective) *LedgerEvent {
	ev := newEvent(EventObjectiveUpdated)
	ev.ObjectiveID = o.ID
	ev.AmountBRL = &o.AccumulatedBRL
	return ev
}

func NewSettingsUpdated(s core.Settings) *LedgerEvent {
	ev := newEvent(EventSettingsUpdated)
	ev.ExchangeRate = &s.ExchangeRate
	return ev
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and sanity-checks a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventTransactionCreated:
		if msg.Transaction == nil {
			return nil, fmt.Errorf("%s event without transaction", msg.Type)
		}
	case EventTransactionDeleted:
		if msg.TransactionID <= 0 {
			return nil, fmt.Errorf("%s event without transaction id", msg.Type)
		}
	case EventObjectiveUpdated, EventSettingsUpdated:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
