package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"barback/internal/models"
	"barback/internal/storage"
	"barback/internal/storage/memory"
)

type fixture struct {
	store   *memory.Store
	catalog *RecipeCatalog
	checker *AvailabilityChecker
	ledger  *StockLedger
	pricing *CostCalculator
	orders  *OrderCoordinator
	advisor *ReplenishmentAdvisor
	events  *recordingPublisher
	logs    *test.Hook
}

func newFixture() *fixture {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(logger)

	store := memory.New()
	catalog := NewRecipeCatalog(store)
	catalog.SetLogger(log)
	checker := NewAvailabilityChecker(store, catalog)
	ledger := NewStockLedger(store)
	ledger.SetLogger(log)
	pricing := NewCostCalculator(store, catalog)
	orders := NewOrderCoordinator(store, checker, ledger, pricing)
	orders.SetLogger(log)
	events := &recordingPublisher{}
	orders.SetPublisher(events)
	advisor := NewReplenishmentAdvisor(store)
	advisor.SetLogger(log)

	return &fixture{
		store:   store,
		catalog: catalog,
		checker: checker,
		ledger:  ledger,
		pricing: pricing,
		orders:  orders,
		advisor: advisor,
		events:  events,
		logs:    hook,
	}
}

func setupFixture(t *testing.T) (*fixture, context.Context) {
	t.Helper()
	return newFixture(), context.Background()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// addIngredient заводит ингредиент; пустые minStock и cost означают "не задано"
func (f *fixture) addIngredient(id, stock, minStock, cost string) {
	f.store.PutIngredient(models.Ingredient{
		ID:           id,
		Name:         id,
		Unit:         "ml",
		CurrentStock: dec(stock),
		MinStock:     nullDec(minStock),
		UnitCost:     nullDec(cost),
	})
}

func line(ingredientID, quantity string) models.RecipeLine {
	return models.RecipeLine{IngredientID: ingredientID, Quantity: dec(quantity)}
}

func (f *fixture) addDrink(id, price string, lines ...models.RecipeLine) {
	for i := range lines {
		lines[i].Position = i + 1
	}
	f.store.PutDrink(models.Drink{ID: id, Name: id, Price: dec(price), Active: true, Recipe: lines})
}

func (f *fixture) stock(t require.TestingT, id string) decimal.Decimal {
	var stock decimal.Decimal
	err := f.store.View(context.Background(), func(tx storage.Tx) error {
		ing, err := tx.GetIngredient(context.Background(), id)
		if err != nil {
			return err
		}
		stock = ing.CurrentStock
		return nil
	})
	require.NoError(t, err)
	return stock
}

func (f *fixture) movements(t require.TestingT, id string) []models.StockMovement {
	var list []models.StockMovement
	err := f.store.View(context.Background(), func(tx storage.Tx) error {
		var err error
		list, err = tx.ListMovements(context.Background(), storage.MovementFilter{IngredientID: id})
		return err
	})
	require.NoError(t, err)
	return list
}

func (f *fixture) orderCount(t require.TestingT) int64 {
	var total int64
	err := f.store.View(context.Background(), func(tx storage.Tx) error {
		page, err := tx.ListOrders(context.Background(), storage.OrderFilter{})
		if err != nil {
			return err
		}
		total = page.Total
		return nil
	})
	require.NoError(t, err)
	return total
}

func order(lines ...OrderLineRequest) NewOrder {
	return NewOrder{CustomerName: "Ana", Lines: lines}
}

func item(drinkID string, quantity int) OrderLineRequest {
	return OrderLineRequest{DrinkID: drinkID, Quantity: quantity}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) ofType(t EventType) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
