package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementReason причина движения остатка
type MovementReason string

const (
	MovementInitialStock     MovementReason = "initial_stock"     // Начальный остаток при заведении ингредиента
	MovementOrderConsumption MovementReason = "order_consumption" // Списание под заказ
	MovementReplenishment    MovementReason = "replenishment"     // Поступление от поставщика
	MovementAdjustment       MovementReason = "adjustment"        // Ручная корректировка (инвентаризация, бой)
)

// StockMovement - запись журнала движения остатков. Журнал только дополняется.
type StockMovement struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	IngredientID string          `json:"ingredient_id" gorm:"type:uuid;not null;index:idx_stock_movements_ingredient_created,priority:1"`
	Delta        decimal.Decimal `json:"delta" gorm:"type:numeric(14,3);not null"` // Положительное - приход, отрицательное - расход
	Reason       MovementReason  `json:"reason" gorm:"type:varchar(30);not null"`
	Note         string          `json:"note,omitempty" gorm:"type:text"`
	SupplierID   *string         `json:"supplier_id,omitempty" gorm:"type:uuid"`
	OrderID      *string         `json:"order_id,omitempty" gorm:"type:uuid;index"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index:idx_stock_movements_ingredient_created,priority:2,sort:desc"`
	Seq          int64           `json:"-" gorm:"->;column:seq"` // Порядок вставки, заполняет БД
}

// TableName указывает имя таблицы
func (StockMovement) TableName() string {
	return "stock_movements"
}

// BeforeCreate генерирует UUID
func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
