package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"barback/internal/models"
)

// EventType - тип доменного события
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventStockLow           EventType = "stock.low"
)

// LowStockNotice - ингредиент опустился ниже порога
type LowStockNotice struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinStock     decimal.Decimal `json:"min_stock"`
}

// Event - событие, публикуемое после фиксации транзакции
type Event struct {
	Type       EventType          `json:"type"`
	OrderID    string             `json:"order_id,omitempty"`
	Status     models.OrderStatus `json:"status,omitempty"`
	Order      *models.Order      `json:"order,omitempty"`
	LowStock   *LowStockNotice    `json:"low_stock,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Key - ключ партиционирования: заказ или ингредиент
func (e Event) Key() string {
	if e.LowStock != nil {
		return e.LowStock.IngredientID
	}
	return e.OrderID
}

// EventPublisher доставляет события наружу (Kafka, WebSocket)
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher отбрасывает события
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
