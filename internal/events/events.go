// Package events publishes committed ledger facts for downstream consumers such as analytics.
// Publication happens after commit and is best effort: a lost event never undoes a sale.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	SaleCreated      = "sale.created"
	WriteOffCreated  = "writeoff.created"
	PaymentConfirmed = "payment.confirmed"
	StockAdjusted    = "stock.adjusted"
)

const source = "flower-pos/ledger"

// Event is a CloudEvents-shaped envelope. Subject is the aggregate id and doubles as the
// partition key.
type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	SpecVersion     string    `json:"specversion"`
	Subject         string    `json:"subject"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`
}

func NewEvent(eventType, subject string, data any) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		Source:          source,
		SpecVersion:     "1.0",
		Subject:         subject,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
