package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// BalanceEventMessage announces one committed wallet adjustment. Amounts
// are integer cents.
type BalanceEventMessage struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	WalletID      string    `json:"wallet_id"`
	TransactionID string    `json:"transaction_id"`
	Operation     string    `json:"operation"`
	DeltaCents    int64     `json:"delta_cents"`
	BalanceCents  int64     `json:"balance_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewBalanceEventMessage builds the wire message for evt.
func NewBalanceEventMessage(evt core.BalanceEvent) *BalanceEventMessage {
	ts := evt.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &BalanceEventMessage{
		ID:            evt.ID,
		UserID:        evt.UserID,
		WalletID:      evt.WalletID,
		TransactionID: evt.TransactionID,
		Operation:     evt.Operation,
		DeltaCents:    evt.Delta.Cents,
		BalanceCents:  evt.Balance.Cents,
		Timestamp:     ts,
	}
}

// Event converts the message back to the domain event.
func (m *BalanceEventMessage) Event() core.BalanceEvent {
	return core.BalanceEvent{
		ID:            m.ID,
		UserID:        m.UserID,
		WalletID:      m.WalletID,
		TransactionID: m.TransactionID,
		Operation:     m.Operation,
		Delta:         core.Cents(m.DeltaCents),
		Balance:       core.Cents(m.BalanceCents),
		At:            m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *BalanceEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BalanceEventMessageFromJSON creates a message from JSON bytes
func BalanceEventMessageFromJSON(data []byte) (*BalanceEventMessage, error) {
	var msg BalanceEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
