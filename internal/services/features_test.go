package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"barback/internal/models"
	"barback/internal/storage"
)

type fulfillmentTestContext struct {
	f            *fixture
	order        *models.Order
	availability *AvailabilityResult
	suggestions  []Suggestion
	err          error
}

func (c *fulfillmentTestContext) reset() {
	c.f = newFixture()
	c.order = nil
	c.availability = nil
	c.suggestions = nil
	c.err = nil
}

func (c *fulfillmentTestContext) theBarIsEmpty() error {
	c.reset()
	return nil
}

func (c *fulfillmentTestContext) ingredientWithStock(id, stock string) error {
	c.f.addIngredient(id, stock, "", "")
	return nil
}

func (c *fulfillmentTestContext) ingredientWithStockAndMinimum(id, stock, minStock string) error {
	c.f.addIngredient(id, stock, minStock, "")
	return nil
}

func (c *fulfillmentTestContext) drinkPricedMadeOf(id, price string, table *godog.Table) error {
	var lines []models.RecipeLine
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 2 {
			return fmt.Errorf("expected 2 columns, got %d", len(row.Cells))
		}
		lines = append(lines, line(row.Cells[0].Value, row.Cells[1].Value))
	}
	c.f.addDrink(id, price, lines...)
	return nil
}

func (c *fulfillmentTestContext) supplierOffers(supplier, ingredient, price string, lead int) error {
	c.f.store.PutSupplier(models.Supplier{ID: supplier, Name: supplier})
	c.f.store.PutOffer(models.SupplierOffer{SupplierID: supplier, IngredientID: ingredient, UnitPrice: dec(price), LeadTimeDays: lead})
	return nil
}

func (c *fulfillmentTestContext) theCustomerOrders(qty int, drink string) error {
	c.order, c.err = c.f.orders.CreateOrder(context.Background(), order(item(drink, qty)))
	return nil
}

func (c *fulfillmentTestContext) iCheckAvailabilityFor(qtyA int, drinkA string, qtyB int, drinkB string) error {
	c.availability, c.err = c.f.checker.Check(context.Background(), []OrderLineRequest{item(drinkA, qtyA), item(drinkB, qtyB)})
	return c.err
}

func (c *fulfillmentTestContext) theOrderMovesThrough(list string) error {
	if c.order == nil {
		return fmt.Errorf("no order: %v", c.err)
	}
	for _, raw := range strings.Split(list, ",") {
		next := models.OrderStatus(strings.Trim(strings.TrimSpace(raw), `"`))
		if _, err := c.f.orders.UpdateStatus(context.Background(), c.order.ID, next, ""); err != nil {
			return err
		}
	}
	return nil
}

func (c *fulfillmentTestContext) iMoveTheOrderTo(status string) error {
	if c.order == nil {
		return fmt.Errorf("no order: %v", c.err)
	}
	_, c.err = c.f.orders.UpdateStatus(context.Background(), c.order.ID, models.OrderStatus(status), "")
	return nil
}

func (c *fulfillmentTestContext) iAskForReplenishmentSuggestions() error {
	c.suggestions, c.err = c.f.advisor.Suggest(context.Background())
	return c.err
}

func (c *fulfillmentTestContext) theOrderIsAcceptedWithStatus(status string) error {
	if c.err != nil {
		return fmt.Errorf("expected order but got error: %v", c.err)
	}
	if string(c.order.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, c.order.Status)
	}
	return nil
}

func (c *fulfillmentTestContext) theOrderTotalIs(total string) error {
	if !c.order.Total.Equal(dec(total)) {
		return fmt.Errorf("expected total %s, got %s", total, c.order.Total)
	}
	return nil
}

func (c *fulfillmentTestContext) theStockOfIs(id, want string) error {
	got, err := c.f.ledger.CurrentStock(context.Background(), id)
	if err != nil {
		return err
	}
	if !got.Equal(dec(want)) {
		return fmt.Errorf("expected stock of %s to be %s, got %s", id, want, got)
	}
	return nil
}

func (c *fulfillmentTestContext) hasMovementWithReason(id string, count int, reason string) error {
	moves, err := c.f.ledger.History(context.Background(), id, nil, nil)
	if err != nil {
		return err
	}
	n := 0
	for _, m := range moves {
		if string(m.Reason) == reason {
			n++
		}
	}
	if n != count {
		return fmt.Errorf("expected %d movements with reason %s, got %d", count, reason, n)
	}
	return nil
}

func (c *fulfillmentTestContext) theOrderIsRejectedForInsufficientStock() error {
	if !errors.Is(c.err, models.ErrInsufficientStock) {
		return fmt.Errorf("expected insufficient stock, got %v", c.err)
	}
	return nil
}

func (c *fulfillmentTestContext) theShortfallFor(id, needed, available string) error {
	var ise *models.InsufficientStockError
	if !errors.As(c.err, &ise) {
		return fmt.Errorf("expected shortfall details, got %v", c.err)
	}
	for _, s := range ise.Shortfalls {
		if s.IngredientID != id {
			continue
		}
		if !s.Needed.Equal(dec(needed)) || !s.Available.Equal(dec(available)) {
			return fmt.Errorf("shortfall %s: needed %s available %s", id, s.Needed, s.Available)
		}
		return nil
	}
	return fmt.Errorf("no shortfall for %s", id)
}

func (c *fulfillmentTestContext) noOrdersExist() error {
	page, err := c.f.orders.ListOrders(context.Background(), storage.OrderFilter{})
	if err != nil {
		return err
	}
	if page.Total != 0 {
		return fmt.Errorf("expected no orders, got %d", page.Total)
	}
	return nil
}

func (c *fulfillmentTestContext) theOrderIsNotAvailable() error {
	if c.availability == nil || c.availability.Available {
		return errors.New("expected order to be unavailable")
	}
	return nil
}

func (c *fulfillmentTestContext) needsAgainstStock(id, needed, stock string) error {
	for _, v := range c.availability.PerIngredient {
		if v.IngredientID != id {
			continue
		}
		if !v.Needed.Equal(dec(needed)) || !v.CurrentStock.Equal(dec(stock)) {
			return fmt.Errorf("%s: needed %s stock %s", id, v.Needed, v.CurrentStock)
		}
		return nil
	}
	return fmt.Errorf("no verdict for %s", id)
}

func (c *fulfillmentTestContext) theTransitionIsRejected() error {
	if !errors.Is(c.err, models.ErrInvalidStateTransition) {
		return fmt.Errorf("expected invalid transition, got %v", c.err)
	}
	return nil
}

func (c *fulfillmentTestContext) theOrderStatusIs(status string) error {
	o, err := c.f.orders.GetOrder(context.Background(), c.order.ID)
	if err != nil {
		return err
	}
	if string(o.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, o.Status)
	}
	return nil
}

func (c *fulfillmentTestContext) shouldBeBoughtFrom(id, supplier string) error {
	s, err := c.suggestionFor(id)
	if err != nil {
		return err
	}
	if s.BestOffer.SupplierID != supplier {
		return fmt.Errorf("expected supplier %s, got %s", supplier, s.BestOffer.SupplierID)
	}
	return nil
}

func (c *fulfillmentTestContext) theRecommendedQuantityForIs(id, qty string) error {
	s, err := c.suggestionFor(id)
	if err != nil {
		return err
	}
	if !s.RecommendedQuantity.Equal(dec(qty)) {
		return fmt.Errorf("expected quantity %s, got %s", qty, s.RecommendedQuantity)
	}
	return nil
}

func (c *fulfillmentTestContext) suggestionFor(id string) (*Suggestion, error) {
	for i := range c.suggestions {
		if c.suggestions[i].Ingredient.ID == id {
			return &c.suggestions[i], nil
		}
	}
	return nil, fmt.Errorf("no suggestion for %s", id)
}

const number = `(\d+(?:\.\d+)?)`

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &fulfillmentTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given
	ctx.Step(`^the bar is empty$`, tc.theBarIsEmpty)
	ctx.Step(`^ingredient "([^"]*)" with stock `+number+`$`, tc.ingredientWithStock)
	ctx.Step(`^ingredient "([^"]*)" with stock `+number+` and minimum `+number+`$`, tc.ingredientWithStockAndMinimum)
	ctx.Step(`^drink "([^"]*)" priced `+number+` made of:$`, tc.drinkPricedMadeOf)
	ctx.Step(`^supplier "([^"]*)" offers "([^"]*)" at `+number+` with lead time (\d+) days$`, tc.supplierOffers)
	ctx.Step(`^the order moves through (.+)$`, tc.theOrderMovesThrough)

	// When
	ctx.Step(`^the customer orders (\d+) "([^"]*)"$`, tc.theCustomerOrders)
	ctx.Step(`^I check availability for (\d+) "([^"]*)" and (\d+) "([^"]*)"$`, tc.iCheckAvailabilityFor)
	ctx.Step(`^I move the order to "([^"]*)"$`, tc.iMoveTheOrderTo)
	ctx.Step(`^I ask for replenishment suggestions$`, tc.iAskForReplenishmentSuggestions)

	// Then
	ctx.Step(`^the order is accepted with status "([^"]*)"$`, tc.theOrderIsAcceptedWithStatus)
	ctx.Step(`^the order total is `+number+`$`, tc.theOrderTotalIs)
	ctx.Step(`^the stock of "([^"]*)" is `+number+`$`, tc.theStockOfIs)
	ctx.Step(`^"([^"]*)" has (\d+) movements? with reason "([^"]*)"$`, tc.hasMovementWithReason)
	ctx.Step(`^the order is rejected for insufficient stock$`, tc.theOrderIsRejectedForInsufficientStock)
	ctx.Step(`^the shortfall for "([^"]*)" is `+number+` needed with `+number+` available$`, tc.theShortfallFor)
	ctx.Step(`^no orders exist$`, tc.noOrdersExist)
	ctx.Step(`^the order is not available$`, tc.theOrderIsNotAvailable)
	ctx.Step(`^"([^"]*)" needs `+number+` against stock `+number+`$`, tc.needsAgainstStock)
	ctx.Step(`^the transition is rejected$`, tc.theTransitionIsRejected)
	ctx.Step(`^the order status is "([^"]*)"$`, tc.theOrderStatusIs)
	ctx.Step(`^"([^"]*)" should be bought from "([^"]*)"$`, tc.shouldBeBoughtFrom)
	ctx.Step(`^the recommended quantity for "([^"]*)" is `+number+`$`, tc.theRecommendedQuantityForIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
