package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Виды ошибок ядра. Проверяются через errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPersistence            = errors.New("persistence failure")
	ErrInvalidArgument        = errors.New("invalid argument")
)

// IngredientShortfall описывает нехватку одного ингредиента
type IngredientShortfall struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Needed       decimal.Decimal `json:"needed"`
	Available    decimal.Decimal `json:"available"`
}

// Missing возвращает недостающее количество
func (s IngredientShortfall) Missing() decimal.Decimal {
	return s.Needed.Sub(s.Available)
}

// InsufficientStockError возвращается, когда остатков не хватает хотя бы по одному ингредиенту
type InsufficientStockError struct {
	Shortfalls []IngredientShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		name := s.Name
		if name == "" {
			name = s.IngredientID
		}
		parts = append(parts, fmt.Sprintf("%s (требуется: %s, в наличии: %s)", name, s.Needed, s.Available))
	}
	return "недостаточно остатков: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// TransitionError - недопустимая смена статуса заказа
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("недопустимый переход статуса: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// PersistenceError оборачивает ошибку хранилища, не относящуюся к доменным видам
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NotFoundf формирует ошибку вида ErrNotFound с описанием
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidArgumentf формирует ошибку вида ErrInvalidArgument с описанием
func InvalidArgumentf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}
