package database

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barback/internal/models"
	"barback/internal/storage"
	"barback/internal/storage/memory"
)

func TestDemoCatalogIsConsistent(t *testing.T) {
	catalog := DemoCatalog()

	ingredients := make(map[string]bool)
	for _, ing := range catalog.Ingredients {
		ingredients[ing.ID] = true
	}
	for _, d := range catalog.Drinks {
		require.NotEmpty(t, d.Recipe, d.Name)
		for _, l := range d.Recipe {
			assert.True(t, ingredients[l.IngredientID], "%s references unknown ingredient", d.Name)
			assert.True(t, l.Quantity.IsPositive())
		}
	}
	for _, o := range catalog.Offers {
		assert.True(t, ingredients[o.IngredientID])
		assert.True(t, o.UnitPrice.IsPositive())
	}

	// ID стабильны между вызовами
	assert.Equal(t, catalog.Drinks[0].ID, DemoCatalog().Drinks[0].ID)
}

func TestSeedMemoryRecordsInitialStock(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := memory.New()
	catalog := DemoCatalog()
	ctx := context.Background()

	require.NoError(t, SeedMemory(ctx, store, catalog, logrus.NewEntry(logger)))

	rum := catalog.Ingredients[0]
	err := store.View(ctx, func(tx storage.Tx) error {
		ing, err := tx.GetIngredient(ctx, rum.ID)
		require.NoError(t, err)
		assert.True(t, ing.CurrentStock.Equal(rum.CurrentStock))

		movements, err := tx.ListMovements(ctx, storage.MovementFilter{IngredientID: rum.ID})
		require.NoError(t, err)
		require.Len(t, movements, 1)
		assert.Equal(t, models.MovementInitialStock, movements[0].Reason)
		assert.True(t, movements[0].Delta.Equal(rum.CurrentStock))

		drink, err := tx.GetDrink(ctx, catalog.Drinks[0].ID)
		require.NoError(t, err)
		assert.Len(t, drink.Recipe, len(catalog.Drinks[0].Recipe))
		return nil
	})
	require.NoError(t, err)
}

func TestRedactURL(t *testing.T) {
	redacted := RedactURL("postgres://bar:secret@db:5432/barback")
	assert.NotContains(t, redacted, "secret")
	assert.Contains(t, redacted, "@db:5432/barback")
	assert.Equal(t, "redis://localhost:6379", RedactURL("redis://localhost:6379"))
}
