package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"accountbook/internal/core"
)

// TransactionGeneratedType is the AMQP message type of TransactionGeneratedMessage.
const TransactionGeneratedType = "transaction.generated"

// TransactionGeneratedMessage announces a transaction created from a
// recurring rule. Consumers can dedupe on TransactionID.
type TransactionGeneratedMessage struct {
	RunID         string          `json:"run_id"`
	TransactionID int64           `json:"transaction_id"`
	RuleID        int64           `json:"rule_id"`
	UserID        int64           `json:"user_id"`
	CategoryID    int64           `json:"category_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewTransactionGeneratedMessage builds the event for tx created in run runID.
func NewTransactionGeneratedMessage(runID string, tx core.Transaction) *TransactionGeneratedMessage {
	return &TransactionGeneratedMessage{
		RunID:         runID,
		TransactionID: tx.ID,
		RuleID:        tx.RuleID,
		UserID:        tx.UserID,
		CategoryID:    tx.CategoryID,
		Type:          string(tx.Type),
		Amount:        tx.Amount.Value,
		Description:   tx.Description,
		Date:          tx.Date.String(),
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionGeneratedMessageFromJSON creates a message from JSON bytes
func TransactionGeneratedMessageFromJSON(data []byte) (*TransactionGeneratedMessage, error) {
	var msg TransactionGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
