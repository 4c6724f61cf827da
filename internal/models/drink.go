package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Drink представляет напиток из меню вместе с его технологической картой
type Drink struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string          `json:"name" gorm:"type:varchar(255);not null"`
	Category  string          `json:"category" gorm:"type:varchar(100)"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"` // Цена продажи за порцию
	Active    bool            `json:"active" gorm:"default:true"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	// Relations
	Recipe []RecipeLine `json:"recipe" gorm:"foreignKey:DrinkID"`
}

// TableName указывает имя таблицы
func (Drink) TableName() string {
	return "drinks"
}

// BeforeCreate генерирует UUID
func (d *Drink) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// RecipeLine - строка технологической карты: сколько ингредиента уходит на одну порцию
type RecipeLine struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	DrinkID      string          `json:"drink_id" gorm:"type:uuid;not null;index"`
	IngredientID string          `json:"ingredient_id" gorm:"type:uuid;not null;index"`
	Ingredient   *Ingredient     `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"type:numeric(14,3);not null"` // На одну порцию, > 0
	Position     int             `json:"position" gorm:"not null;default:0"`
}

// TableName указывает имя таблицы
func (RecipeLine) TableName() string {
	return "recipe_lines"
}

// BeforeCreate генерирует UUID
func (l *RecipeLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}
