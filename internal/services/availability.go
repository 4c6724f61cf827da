package services

import (
	"context"

	"github.com/shopspring/decimal"

	"barback/internal/models"
	"barback/internal/storage"
)

// OrderLineRequest - позиция заказа во входящем запросе
type OrderLineRequest struct {
	DrinkID  string `json:"drink_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Note     string `json:"note,omitempty"`
}

// IngredientDemand - суммарная потребность заказа в ингредиенте
type IngredientDemand struct {
	IngredientID string          `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// IngredientVerdict - результат проверки по одному ингредиенту
type IngredientVerdict struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Needed       decimal.Decimal `json:"needed"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	Available    bool            `json:"available"`
}

// AvailabilityResult - результат проверки заказа целиком
type AvailabilityResult struct {
	Available     bool                `json:"available"`
	PerIngredient []IngredientVerdict `json:"per_ingredient"`
}

// Shortfalls возвращает ингредиенты, которых не хватает
func (r AvailabilityResult) Shortfalls() []models.IngredientShortfall {
	var out []models.IngredientShortfall
	for _, v := range r.PerIngredient {
		if !v.Available {
			out = append(out, models.IngredientShortfall{
				IngredientID: v.IngredientID,
				Name:         v.Name,
				Needed:       v.Needed,
				Available:    v.CurrentStock,
			})
		}
	}
	return out
}

func validateLines(lines []OrderLineRequest) error {
	if len(lines) == 0 {
		return models.InvalidArgumentf("заказ не содержит позиций")
	}
	for _, l := range lines {
		if l.DrinkID == "" {
			return models.InvalidArgumentf("не указан напиток")
		}
		if l.Quantity <= 0 {
			return models.InvalidArgumentf("количество напитка %s должно быть положительным", l.DrinkID)
		}
	}
	return nil
}

// AggregateDemand суммирует потребность по всем позициям заказа:
// для ингредиента, встречающегося в нескольких напитках, количества складываются.
// Порядок результата - порядок первого появления ингредиента.
func AggregateDemand(lines []OrderLineRequest, recipes map[string][]models.RecipeLine) ([]IngredientDemand, error) {
	var order []string
	totals := make(map[string]decimal.Decimal)
	for _, line := range lines {
		recipe, ok := recipes[line.DrinkID]
		if !ok {
			return nil, models.NotFoundf("напиток %s не найден", line.DrinkID)
		}
		servings := decimal.NewFromInt(int64(line.Quantity))
		for _, rl := range recipe {
			if _, seen := totals[rl.IngredientID]; !seen {
				order = append(order, rl.IngredientID)
			}
			totals[rl.IngredientID] = totals[rl.IngredientID].Add(rl.Quantity.Mul(servings))
		}
	}

	demand := make([]IngredientDemand, 0, len(order))
	for _, id := range order {
		demand = append(demand, IngredientDemand{IngredientID: id, Quantity: totals[id]})
	}
	return demand, nil
}

// EvaluateAvailability сравнивает потребность со снимком остатков.
// Ингредиент, отсутствующий в снимке, считается с нулевым остатком.
func EvaluateAvailability(demand []IngredientDemand, snapshot map[string]*models.Ingredient) AvailabilityResult {
	result := AvailabilityResult{Available: true, PerIngredient: make([]IngredientVerdict, 0, len(demand))}
	for _, d := range demand {
		v := IngredientVerdict{IngredientID: d.IngredientID, Needed: d.Quantity, CurrentStock: decimal.Zero}
		if ing, ok := snapshot[d.IngredientID]; ok {
			v.Name = ing.Name
			v.Unit = ing.Unit
			v.CurrentStock = ing.CurrentStock
		}
		v.Available = v.CurrentStock.GreaterThanOrEqual(d.Quantity)
		if !v.Available {
			result.Available = false
		}
		result.PerIngredient = append(result.PerIngredient, v)
	}
	return result
}

func demandIDs(demand []IngredientDemand) []string {
	ids := make([]string, len(demand))
	for i, d := range demand {
		ids[i] = d.IngredientID
	}
	return ids
}

func recipesOf(drinks map[string]*models.Drink) map[string][]models.RecipeLine {
	out := make(map[string][]models.RecipeLine, len(drinks))
	for id, d := range drinks {
		out[id] = d.Recipe
	}
	return out
}

func drinkIDs(lines []OrderLineRequest) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.DrinkID
	}
	return ids
}

// AvailabilityChecker проверяет, хватит ли остатков на заказ, ничего не меняя
type AvailabilityChecker struct {
	store   storage.Store
	catalog *RecipeCatalog
}

// NewAvailabilityChecker создает проверку наличия
func NewAvailabilityChecker(store storage.Store, catalog *RecipeCatalog) *AvailabilityChecker {
	return &AvailabilityChecker{store: store, catalog: catalog}
}

// Check проверяет наличие по всем позициям заказа. Повторный вызов без изменений остатков дает тот же результат.
func (c *AvailabilityChecker) Check(ctx context.Context, lines []OrderLineRequest) (*AvailabilityResult, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	var result *AvailabilityResult
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		result, _, err = c.checkIn(ctx, tx, lines, false)
		return err
	})
	return result, err
}

// checkIn выполняет проверку внутри транзакции. При lock=true строки ингредиентов
// блокируются до конца транзакции, и снимок остается верным до фиксации.
func (c *AvailabilityChecker) checkIn(ctx context.Context, tx storage.Tx, lines []OrderLineRequest, lock bool) (*AvailabilityResult, map[string]*models.Drink, error) {
	drinks, err := c.catalog.resolveManyIn(ctx, tx, drinkIDs(lines))
	if err != nil {
		return nil, nil, err
	}
	demand, err := AggregateDemand(lines, recipesOf(drinks))
	if err != nil {
		return nil, nil, err
	}

	var snapshot map[string]*models.Ingredient
	if lock {
		snapshot, err = tx.LockIngredients(ctx, demandIDs(demand))
	} else {
		snapshot, err = tx.FindIngredients(ctx, demandIDs(demand))
	}
	if err != nil {
		return nil, nil, err
	}
	for _, id := range demandIDs(demand) {
		if _, ok := snapshot[id]; !ok {
			return nil, nil, models.NotFoundf("ингредиент %s из рецепта не найден", id)
		}
	}

	result := EvaluateAvailability(demand, snapshot)
	return &result, drinks, nil
}
