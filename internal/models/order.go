package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus статус заказа клиента
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pendente"   // Принят, ждет бармена
	OrderStatusPreparing OrderStatus = "em_preparo" // Готовится
	OrderStatusReady     OrderStatus = "pronto"     // Готов к выдаче
	OrderStatusDelivered OrderStatus = "entregue"   // Выдан клиенту
	OrderStatusCancelled OrderStatus = "cancelado"  // Отменен
)

// orderTransitions - допустимые переходы. Отсутствие ключа означает терминальный статус.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusDelivered},
}

// ParseOrderStatus проверяет, что строка является известным статусом
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransitionTo проверяет, разрешен ли переход в статус next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal проверяет, является ли статус конечным
func (s OrderStatus) IsTerminal() bool {
	_, ok := orderTransitions[s]
	return !ok
}

// Order представляет заказ клиента
type Order struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	CustomerName string          `json:"customer_name" gorm:"type:varchar(255);not null;index"`
	Table        *int            `json:"table,omitempty" gorm:"column:table_number"` // Номер столика, если есть
	Status       OrderStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pendente';index"`
	Total        decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"` // Снимок цены на момент создания
	Note         string          `json:"note,omitempty" gorm:"type:text"`
	StaffID      *string         `json:"staff_id,omitempty" gorm:"type:varchar(100)"` // Бармен, взявший заказ
	CreatedAt    time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Relations
	Lines []OrderLine `json:"lines" gorm:"foreignKey:OrderID"`
}

// TableName указывает имя таблицы
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate генерирует UUID
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// OrderLine - позиция заказа
type OrderLine struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID   string          `json:"order_id" gorm:"type:uuid;not null;index"`
	DrinkID   string          `json:"drink_id" gorm:"type:uuid;not null;index"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Note      string          `json:"note,omitempty" gorm:"type:text"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2);not null"`
}

// TableName указывает имя таблицы
func (OrderLine) TableName() string {
	return "order_lines"
}

// BeforeCreate генерирует UUID
func (l *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// OrderStatusChange - запись журнала смены статусов заказа (только добавление)
type OrderStatusChange struct {
	ID        string      `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID   string      `json:"order_id" gorm:"type:uuid;not null;index"`
	From      OrderStatus `json:"from" gorm:"column:from_status;type:varchar(20)"` // Пусто для создания заказа
	To        OrderStatus `json:"to" gorm:"column:to_status;type:varchar(20);not null"`
	Note      string      `json:"note,omitempty" gorm:"type:text"`
	StaffID   *string     `json:"staff_id,omitempty" gorm:"type:varchar(100)"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName указывает имя таблицы
func (OrderStatusChange) TableName() string {
	return "order_status_changes"
}

// BeforeCreate генерирует UUID
func (c *OrderStatusChange) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
