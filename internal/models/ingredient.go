package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuantityScale - знаков после запятой у остатков и движений (numeric(14,3) в БД)
const QuantityScale = 3

// FitsQuantityScale проверяет, что количество сохранится в БД без округления
func FitsQuantityScale(q decimal.Decimal) bool {
	return q.Equal(q.Round(QuantityScale))
}

// Ingredient представляет ингредиент на складе бара (ром, сироп, лед и т.д.)
type Ingredient struct {
	ID           string              `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string              `json:"name" gorm:"type:varchar(255);not null"`
	Unit         string              `json:"unit" gorm:"type:varchar(20);not null"` // ml, g, un
	CurrentStock decimal.Decimal     `json:"current_stock" gorm:"type:numeric(14,3);not null;default:0"`
	MinStock     decimal.NullDecimal `json:"min_stock" gorm:"type:numeric(14,3)"`  // NULL если порог не задан
	UnitCost     decimal.NullDecimal `json:"unit_cost" gorm:"type:numeric(12,4)"` // Стоимость за единицу измерения
	CreatedAt    time.Time           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time           `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Ingredient) TableName() string {
	return "ingredients"
}

// BeforeCreate генерирует UUID
func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// IsLow возвращает true, если порог задан и текущий остаток строго ниже него
func (i Ingredient) IsLow() bool {
	return i.MinStock.Valid && i.CurrentStock.LessThan(i.MinStock.Decimal)
}

// CostOrZero возвращает стоимость единицы; ингредиент без стоимости считается бесплатным
func (i Ingredient) CostOrZero() decimal.Decimal {
	if !i.UnitCost.Valid {
		return decimal.Zero
	}
	return i.UnitCost.Decimal
}
