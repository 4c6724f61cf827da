package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusPreparing}:   true,
		{OrderStatusPending, OrderStatusCancelled}:   true,
		{OrderStatusPreparing, OrderStatusReady}:     true,
		{OrderStatusPreparing, OrderStatusCancelled}: true,
		{OrderStatusReady, OrderStatusDelivered}:     true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				assert.Equal(t, allowed[[2]OrderStatus{from, to}], from.CanTransitionTo(to))
			})
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusPreparing.IsTerminal())
	assert.False(t, OrderStatusReady.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	st, ok := ParseOrderStatus("em_preparo")
	require.True(t, ok)
	assert.Equal(t, OrderStatusPreparing, st)

	_, ok = ParseOrderStatus("shipped")
	assert.False(t, ok)
}

func TestErrorKinds(t *testing.T) {
	var err error = &InsufficientStockError{Shortfalls: []IngredientShortfall{{
		IngredientID: "rum",
		Name:         "Rum",
		Needed:       decimal.NewFromInt(150),
		Available:    decimal.NewFromInt(100),
	}}}
	wrapped := fmt.Errorf("create order: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInsufficientStock))
	var ise *InsufficientStockError
	require.True(t, errors.As(wrapped, &ise))
	assert.True(t, ise.Shortfalls[0].Missing().Equal(decimal.NewFromInt(50)))

	assert.True(t, errors.Is(&TransitionError{From: OrderStatusDelivered, To: OrderStatusCancelled}, ErrInvalidStateTransition))
	assert.True(t, errors.Is(NotFoundf("drink %s", "x"), ErrNotFound))

	cause := errors.New("connection reset")
	perr := &PersistenceError{Op: "insert order", Err: cause}
	assert.True(t, errors.Is(perr, ErrPersistence))
	assert.True(t, errors.Is(perr, cause))
}

func TestIngredientIsLow(t *testing.T) {
	ing := Ingredient{CurrentStock: decimal.NewFromInt(50)}
	assert.False(t, ing.IsLow(), "без порога ингредиент не считается заканчивающимся")

	ing.MinStock = decimal.NewNullDecimal(decimal.NewFromInt(50))
	assert.False(t, ing.IsLow())

	ing.MinStock = decimal.NewNullDecimal(decimal.NewFromInt(51))
	assert.True(t, ing.IsLow())
}
