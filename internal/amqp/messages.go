package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// LedgerSyncMessage asks the worker to bring the receipts ledger in line
// with one invoice. Only the id and the ledger version travel; the worker
// reloads the invoice from the database.
type LedgerSyncMessage struct {
	MessageID string    `json:"message_id"`
	InvoiceID int64     `json:"invoice_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(invoiceID, version int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		MessageID: uuid.NewString(),
		InvoiceID: invoiceID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InvoiceID <= 0 {
		return nil, errors.New("ledger sync message without invoice id")
	}
	return &msg, nil
}
