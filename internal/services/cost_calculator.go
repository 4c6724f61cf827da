package services

import (
	"context"

	"github.com/shopspring/decimal"

	"barback/internal/models"
	"barback/internal/storage"
)

// DrinkMargin - цена, себестоимость и маржа порции
type DrinkMargin struct {
	DrinkID string          `json:"drink_id"`
	Price   decimal.Decimal `json:"price"`
	Cost    decimal.Decimal `json:"cost"`
	Margin  decimal.Decimal `json:"margin"`
}

// CostCalculator считает себестоимость по составу рецептов и цену заказа
type CostCalculator struct {
	store   storage.Store
	catalog *RecipeCatalog
}

// NewCostCalculator создает калькулятор себестоимости
func NewCostCalculator(store storage.Store, catalog *RecipeCatalog) *CostCalculator {
	return &CostCalculator{store: store, catalog: catalog}
}

// DrinkCost - себестоимость одной порции: сумма стоимости ингредиентов.
// Ингредиент без стоимости дает вклад 0.
func (c *CostCalculator) DrinkCost(ctx context.Context, drinkID string) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := c.store.View(ctx, func(tx storage.Tx) error {
		drink, err := c.catalog.resolveIn(ctx, tx, drinkID)
		if err != nil {
			return err
		}
		cost, err = c.drinkCostIn(ctx, tx, drink)
		return err
	})
	return cost, err
}

// DrinkMargin считает маржу порции от текущей цены продажи
func (c *CostCalculator) DrinkMargin(ctx context.Context, drinkID string) (*DrinkMargin, error) {
	var m *DrinkMargin
	err := c.store.View(ctx, func(tx storage.Tx) error {
		drink, err := c.catalog.resolveIn(ctx, tx, drinkID)
		if err != nil {
			return err
		}
		cost, err := c.drinkCostIn(ctx, tx, drink)
		if err != nil {
			return err
		}
		m = &DrinkMargin{DrinkID: drinkID, Price: drink.Price, Cost: cost, Margin: drink.Price.Sub(cost)}
		return nil
	})
	return m, err
}

// OrderCost пересчитывает себестоимость заказа по текущим ценам ингредиентов.
// Не зависит от Order.Total, который фиксирует цену продажи на момент создания.
func (c *CostCalculator) OrderCost(ctx context.Context, orderID string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := c.store.View(ctx, func(tx storage.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		perDrink := make(map[string]decimal.Decimal)
		for _, line := range order.Lines {
			cost, ok := perDrink[line.DrinkID]
			if !ok {
				drink, err := c.catalog.resolveIn(ctx, tx, line.DrinkID)
				if err != nil {
					return err
				}
				if cost, err = c.drinkCostIn(ctx, tx, drink); err != nil {
					return err
				}
				perDrink[line.DrinkID] = cost
			}
			total = total.Add(cost.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (c *CostCalculator) drinkCostIn(ctx context.Context, tx storage.Tx, drink *models.Drink) (decimal.Decimal, error) {
	ids := make([]string, len(drink.Recipe))
	for i, rl := range drink.Recipe {
		ids[i] = rl.IngredientID
	}
	ingredients, err := tx.FindIngredients(ctx, ids)
	if err != nil {
		return decimal.Zero, err
	}

	cost := decimal.Zero
	for _, rl := range drink.Recipe {
		ing, ok := ingredients[rl.IngredientID]
		if !ok {
			return decimal.Zero, models.NotFoundf("ингредиент %s из рецепта не найден", rl.IngredientID)
		}
		cost = cost.Add(ing.CostOrZero().Mul(rl.Quantity))
	}
	return cost, nil
}

// Quote фиксирует цену продажи позиций: цена порции x количество
func (c *CostCalculator) Quote(drinks map[string]*models.Drink, lines []OrderLineRequest) ([]models.OrderLine, decimal.Decimal) {
	out := make([]models.OrderLine, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		price := drinks[l.DrinkID].Price
		lineTotal := price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		out = append(out, models.OrderLine{
			DrinkID:   l.DrinkID,
			Quantity:  l.Quantity,
			Note:      l.Note,
			UnitPrice: price,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return out, total
}
