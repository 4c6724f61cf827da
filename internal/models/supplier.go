package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Supplier представляет поставщика
type Supplier struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	TaxID     string    `json:"tax_id,omitempty" gorm:"type:varchar(20)"`
	Email     string    `json:"email,omitempty" gorm:"type:varchar(255)"`
	Phone     string    `json:"phone,omitempty" gorm:"type:varchar(50)"`
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Supplier) TableName() string {
	return "suppliers"
}

// BeforeCreate генерирует UUID
func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// SupplierOffer - предложение поставщика по конкретному ингредиенту
type SupplierOffer struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	SupplierID   string          `json:"supplier_id" gorm:"type:uuid;not null;index"`
	Supplier     *Supplier       `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	IngredientID string          `json:"ingredient_id" gorm:"type:uuid;not null;index"`
	UnitPrice    decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,4);not null"` // > 0
	LeadTimeDays int             `json:"lead_time_days" gorm:"not null;default:0"`       // Срок поставки в днях
	Notes        string          `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (SupplierOffer) TableName() string {
	return "supplier_offers"
}

// BeforeCreate генерирует UUID
func (o *SupplierOffer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}
