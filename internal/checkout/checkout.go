// Package checkout records sales against the inventory.
//
// A sale is written first and the stock is then taken with a guarded
// decrement, so two sales racing for the same units cannot both succeed. The
// loser's sale record is voided. Only if that void also fails is the caller
// left with a recorded sale and untouched stock.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/events"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/metrics"
	"github.com/erazemk/zaloga/internal/model"
)

// Inventory is what checkout needs from the item repository.
type Inventory interface {
	Get(id string) (model.Item, bool)
	Decrement(ctx context.Context, id string, n int) (model.Item, error)
}

// Sales is what checkout needs from the sales repository.
type Sales interface {
	Record(ctx context.Context, in model.SaleInput) (model.Sale, error)
	Void(ctx context.Context, id string) error
}

// Result is a completed sale.
type Result struct {
	Transaction       model.Sale `json:"transaction"`
	NewQuantity       int        `json:"new_quantity"`
	LowStockTriggered bool       `json:"low_stock_triggered"`
}

// LowStockHandler is told about an item a sale left at or below its threshold.
type LowStockHandler func(item model.Item)

// Service records sales.
type Service struct {
	inventory Inventory
	sales     Sales
	publisher events.Publisher
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	handlers []LowStockHandler
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends sale and low-stock events to p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics counts sales in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(inv Inventory, sales Sales, opts ...Option) *Service {
	s := &Service{inventory: inv, sales: sales}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnLowStock registers h to run after any sale that leaves stock low.
func (s *Service) OnLowStock(h LowStockHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// RecordSale sells quantity units of the product.
func (s *Service) RecordSale(ctx context.Context, productID string, quantity int) (Result, error) {
	if quantity <= 0 {
		s.metrics.SaleRejected(metrics.ReasonInvalidQuantity)
		return Result{}, ErrInvalidQuantity
	}
	item, ok := s.inventory.Get(productID)
	if !ok {
		s.metrics.SaleRejected(metrics.ReasonProductNotFound)
		return Result{}, ErrProductNotFound
	}
	if quantity > item.Quantity {
		s.metrics.SaleRejected(metrics.ReasonInsufficientStock)
		return Result{}, &InsufficientStockError{Requested: quantity, Available: item.Quantity}
	}

	// Name and price are fixed here; later edits to the item do not touch the sale.
	sale, err := s.sales.Record(ctx, model.SaleInput{
		ProductID:   item.ID,
		ProductName: item.Name,
		Quantity:    quantity,
		UnitPrice:   item.UnitPrice,
	})
	if err != nil {
		s.metrics.SaleRejected(metrics.ReasonStore)
		return Result{}, err
	}

	updated, err := s.inventory.Decrement(ctx, item.ID, quantity)
	if err != nil {
		return Result{}, s.compensate(ctx, sale, quantity, err)
	}

	low := updated.Quantity <= updated.Threshold
	result := Result{Transaction: sale, NewQuantity: updated.Quantity, LowStockTriggered: low}

	total, _ := sale.TotalAmount.Float64()
	s.metrics.SaleRecorded(total, low)
	slog.Info("sale recorded", "sale", sale.ID, "product", item.ID, "quantity", quantity, "remaining", updated.Quantity)

	s.publish(ctx, events.New(events.TypeSaleRecorded, events.SaleRecorded{
		SaleID:      sale.ID,
		ProductID:   sale.ProductID,
		ProductName: sale.ProductName,
		Quantity:    sale.Quantity,
		TotalAmount: sale.TotalAmount,
		NewQuantity: updated.Quantity,
	}))
	if low {
		s.lowStock(ctx, updated)
	}
	return result, nil
}

// compensate handles a failed decrement after the sale was written. When the
// store reports the stock untouched (a lost race, a vanished item or a
// compare-and-swap that never landed) the sale is voided; anything else leaves
// it in place.
func (s *Service) compensate(ctx context.Context, sale model.Sale, quantity int, cause error) error {
	var guard *docstore.GuardError
	lostRace := errors.As(cause, &guard)
	vanished := errors.Is(cause, inventory.ErrNotFound)
	busy := errors.Is(cause, docstore.ErrConflict)
	if !lostRace && !vanished && !busy {
		s.metrics.SaleRejected(metrics.ReasonPartialFailure)
		slog.Error("sale recorded but stock not taken", "sale", sale.ID, "product", sale.ProductID, "error", cause)
		return &PartialFailureError{Sale: sale, Err: cause}
	}

	// The caller may have given up; the void must still happen.
	if err := s.sales.Void(context.WithoutCancel(ctx), sale.ID); err != nil {
		s.metrics.SaleRejected(metrics.ReasonPartialFailure)
		slog.Error("voiding sale failed", "sale", sale.ID, "product", sale.ProductID, "cause", cause, "error", err)
		return &PartialFailureError{Sale: sale, Err: errors.Join(cause, err)}
	}
	s.metrics.SaleVoided()

	switch {
	case vanished:
		s.metrics.SaleRejected(metrics.ReasonProductNotFound)
		return ErrProductNotFound
	case busy:
		s.metrics.SaleRejected(metrics.ReasonConflict)
		slog.Warn("sale voided after repeated write conflicts", "sale", sale.ID, "product", sale.ProductID)
		return fmt.Errorf("%w: %w", ErrStockBusy, cause)
	}
	s.metrics.SaleRejected(metrics.ReasonInsufficientStock)
	slog.Warn("sale lost race for stock", "sale", sale.ID, "product", sale.ProductID, "available", guard.Current)
	return &InsufficientStockError{Requested: quantity, Available: int(guard.Current)}
}

func (s *Service) lowStock(ctx context.Context, item model.Item) {
	slog.Warn("low stock", "item", item.ID, "name", item.Name, "quantity", item.Quantity, "threshold", item.Threshold)

	s.mu.RLock()
	handlers := append([]LowStockHandler(nil), s.handlers...)
	s.mu.RUnlock()
	for _, h := range handlers {
		h(item)
	}

	s.publish(ctx, events.New(events.TypeStockLow, events.StockLow{
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  item.Quantity,
		Threshold: item.Threshold,
	}))
}

// publish is best effort: the sale has already happened.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.Warn("publishing event failed", "type", e.Type, "error", err)
	}
}
