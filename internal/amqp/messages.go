package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// LedgerChangeMessage announces that a committed write touched some months
// of a tenant's ledger. Consumers reload whatever they need from the
// database; the message carries no amounts.
type LedgerChangeMessage struct {
	TenantID  int64     `json:"tenantId"`
	Operation string    `json:"operation"`
	Periods   []string  `json:"periods"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage creates a change message stamped with the current time.
func NewLedgerChangeMessage(tenantID int64, operation string, periods []string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		TenantID:  tenantID,
		Operation: operation,
		Periods:   periods,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes and validates a message body.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TenantID <= 0 {
		return nil, fmt.Errorf("message has no tenant")
	}
	return &msg, nil
}
