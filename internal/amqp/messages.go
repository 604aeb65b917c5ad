package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"dailysales/internal/core"
)

// SaleRecordedMessage announces one sale appended to a session ledger.
// Amounts travel as decimal strings so consumers never see float rounding.
type SaleRecordedMessage struct {
	SessionID  string          `json:"session_id"`
	Product    string          `json:"product"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Revenue    decimal.Decimal `json:"revenue"`
	RecordedAt time.Time       `json:"recorded_at"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewSaleRecordedMessage builds the event for rec.
func NewSaleRecordedMessage(sessionID string, rec core.SaleRecord) *SaleRecordedMessage {
	return &SaleRecordedMessage{
		SessionID:  sessionID,
		Product:    rec.Product,
		Quantity:   rec.Quantity,
		Price:      rec.Price,
		Revenue:    rec.Revenue,
		RecordedAt: rec.RecordedAt,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SaleRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SaleRecordedMessageFromJSON creates a message from JSON bytes
func SaleRecordedMessageFromJSON(data []byte) (*SaleRecordedMessage, error) {
	var msg SaleRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Record rebuilds the sale carried by the event, validating it on the way.
func (m *SaleRecordedMessage) Record() (core.SaleRecord, error) {
	rec, err := core.NewSaleRecord(m.Product, m.Quantity, m.Price, m.RecordedAt)
	if err != nil {
		return core.SaleRecord{}, err
	}
	if !rec.Revenue.Equal(m.Revenue.Round(2)) {
		return core.SaleRecord{}, core.ErrRevenueMismatch
	}
	return rec, nil
}
