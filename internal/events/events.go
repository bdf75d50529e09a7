// Package events publishes domain events (sales, low-stock alerts) to
// whoever listens: a message broker in production, the log otherwise.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Event types.
const (
	TypeSaleRecorded = "sale.recorded"
	TypeStockLow     = "stock.low"
)

// Event is one published occurrence. Type doubles as the routing key.
type Event struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// SaleRecorded is the payload of TypeSaleRecorded.
type SaleRecorded struct {
	SaleID      string          `json:"sale_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	NewQuantity int             `json:"new_quantity"`
}

// StockLow is the payload of TypeStockLow.
type StockLow struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New stamps an event of type typ with the current time.
func New(typ string, payload any) Event {
	return Event{Type: typ, At: time.Now().UTC(), Payload: payload}
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, e Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event", "type", e.Type, "payload", e.Payload)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns the events of the given type, or all events if typ is "".
func (r *Recorder) Events(typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if typ == "" || e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
