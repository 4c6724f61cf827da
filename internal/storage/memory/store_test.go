package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barback/internal/models"
	"barback/internal/storage"
)

func setupStoreTest(t *testing.T) (*Store, context.Context) {
	t.Helper()
	s := New()
	s.PutIngredient(models.Ingredient{ID: "rum", Name: "Rum", Unit: "ml", CurrentStock: decimal.NewFromInt(100)})
	return s, context.Background()
}

func currentStock(t *testing.T, s *Store, id string) decimal.Decimal {
	t.Helper()
	var stock decimal.Decimal
	require.NoError(t, s.View(context.Background(), func(tx storage.Tx) error {
		ing, err := tx.GetIngredient(context.Background(), id)
		if err != nil {
			return err
		}
		stock = ing.CurrentStock
		return nil
	}))
	return stock
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, ctx := setupStoreTest(t)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.AddStock(ctx, "rum", decimal.NewFromInt(-40)); err != nil {
			return err
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.True(t, currentStock(t, s, "rum").Equal(decimal.NewFromInt(100)))
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s, ctx := setupStoreTest(t)

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(tx storage.Tx) error {
			_, _ = tx.AddStock(ctx, "rum", decimal.NewFromInt(-40))
			panic("boom")
		})
	})

	assert.True(t, currentStock(t, s, "rum").Equal(decimal.NewFromInt(100)))
	// Мьютекс освобожден: следующая транзакция проходит
	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error { return nil }))
}

func TestBeforeCommitFailureRollsBack(t *testing.T) {
	s, ctx := setupStoreTest(t)
	s.SetBeforeCommit(func() error { return errors.New("disk full") })

	err := s.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.AddStock(ctx, "rum", decimal.NewFromInt(-40))
		return err
	})

	require.ErrorIs(t, err, models.ErrPersistence)
	assert.True(t, currentStock(t, s, "rum").Equal(decimal.NewFromInt(100)))
}

func TestAddStockRejectsNegative(t *testing.T) {
	s, ctx := setupStoreTest(t)

	err := s.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.AddStock(ctx, "rum", decimal.NewFromInt(-101))
		return err
	})
	require.ErrorIs(t, err, storage.ErrNegativeStock)

	err = s.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.AddStock(ctx, "gin", decimal.NewFromInt(1))
		return err
	})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestViewIsReadOnly(t *testing.T) {
	s, ctx := setupStoreTest(t)

	err := s.View(ctx, func(tx storage.Tx) error {
		_, err := tx.AddStock(ctx, "rum", decimal.NewFromInt(1))
		return err
	})
	require.ErrorIs(t, err, models.ErrPersistence)
}

func TestListMovementsNewestFirst(t *testing.T) {
	s, ctx := setupStoreTest(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error {
		return tx.AppendMovements(ctx, []models.StockMovement{
			{IngredientID: "rum", Delta: decimal.NewFromInt(1), Reason: models.MovementAdjustment, CreatedAt: base},
			{IngredientID: "rum", Delta: decimal.NewFromInt(2), Reason: models.MovementAdjustment, CreatedAt: base.Add(time.Hour)},
			{IngredientID: "lime", Delta: decimal.NewFromInt(3), Reason: models.MovementAdjustment, CreatedAt: base.Add(2 * time.Hour)},
		})
	}))

	var got []models.StockMovement
	from := base.Add(30 * time.Minute)
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		var err error
		got, err = tx.ListMovements(ctx, storage.MovementFilter{IngredientID: "rum"})
		return err
	}))
	require.Len(t, got, 2)
	assert.True(t, got[0].Delta.Equal(decimal.NewFromInt(2)))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		var err error
		got, err = tx.ListMovements(ctx, storage.MovementFilter{IngredientID: "rum", From: &from})
		return err
	}))
	require.Len(t, got, 1)
}

func TestListOrdersPagination(t *testing.T) {
	s, ctx := setupStoreTest(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error {
		for i := 0; i < 5; i++ {
			o := &models.Order{
				CustomerName: "Ana",
				Status:       models.OrderStatusPending,
				CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			}
			if i == 4 {
				o.CustomerName = "Bruno"
			}
			if err := tx.CreateOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	}))

	var page *storage.OrderPage
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		var err error
		page, err = tx.ListOrders(ctx, storage.OrderFilter{Customer: "an", Page: 2, Limit: 3})
		return err
	}))
	assert.EqualValues(t, 4, page.Total)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, base, page.Orders[0].CreatedAt)
}

func TestListMovementsSameTimeReverseInsertion(t *testing.T) {
	s, ctx := setupStoreTest(t)
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error {
		return tx.AppendMovements(ctx, []models.StockMovement{
			{IngredientID: "rum", Delta: decimal.NewFromInt(1), Reason: models.MovementAdjustment, Note: "caixa 1", CreatedAt: at},
			{IngredientID: "rum", Delta: decimal.NewFromInt(1), Reason: models.MovementAdjustment, Note: "caixa 2", CreatedAt: at},
			{IngredientID: "rum", Delta: decimal.NewFromInt(1), Reason: models.MovementAdjustment, Note: "caixa 3", CreatedAt: at},
		})
	}))

	var got []models.StockMovement
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		var err error
		got, err = tx.ListMovements(ctx, storage.MovementFilter{IngredientID: "rum"})
		return err
	}))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"caixa 3", "caixa 2", "caixa 1"}, []string{got[0].Note, got[1].Note, got[2].Note})
}
