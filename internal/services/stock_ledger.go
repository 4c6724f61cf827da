package services

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"barback/internal/models"
	"barback/internal/storage"
)

// MovementRequest - запрос на одно движение остатка
type MovementRequest struct {
	IngredientID string                `json:"ingredient_id"`
	Delta        decimal.Decimal       `json:"delta"`
	Reason       models.MovementReason `json:"reason"`
	Note         string                `json:"note,omitempty"`
	SupplierID   *string               `json:"supplier_id,omitempty"`
	OrderID      *string               `json:"order_id,omitempty"`
}

// LedgerReceipt - результат применения пакета движений
type LedgerReceipt struct {
	Movements []models.StockMovement       `json:"movements"`
	Before    map[string]models.Ingredient `json:"-"`
	After     map[string]models.Ingredient `json:"levels"`
}

// CrossedMinimum возвращает ингредиенты, которые этим пакетом опустились ниже порога
func (r *LedgerReceipt) CrossedMinimum() []models.Ingredient {
	var out []models.Ingredient
	for id, after := range r.After {
		if after.IsLow() && !r.Before[id].IsLow() {
			out = append(out, after)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// NewIngredient - данные для заведения ингредиента
type NewIngredient struct {
	Name         string              `json:"name" binding:"required"`
	Unit         string              `json:"unit" binding:"required"`
	MinStock     decimal.NullDecimal `json:"min_stock"`
	UnitCost     decimal.NullDecimal `json:"unit_cost"`
	InitialStock decimal.Decimal     `json:"initial_stock"`
}

// StockLedger - единственная точка изменения остатков. Каждое изменение пишет движение в журнал.
type StockLedger struct {
	store storage.Store
	now   func() time.Time
	log   *logrus.Entry
}

// NewStockLedger создает складской журнал
func NewStockLedger(store storage.Store) *StockLedger {
	return &StockLedger{
		store: store,
		now: func() time.Time {
			return time.Now().UTC()
		},
		log: logrus.WithField("component", "stock_ledger"),
	}
}

// SetClock подменяет источник времени
func (l *StockLedger) SetClock(now func() time.Time) {
	l.now = now
}

// SetLogger задает логгер
func (l *StockLedger) SetLogger(log *logrus.Entry) {
	l.log = log.WithField("component", "stock_ledger")
}

// CurrentStock возвращает текущий остаток ингредиента
func (l *StockLedger) CurrentStock(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	var stock decimal.Decimal
	err := l.store.View(ctx, func(tx storage.Tx) error {
		ing, err := tx.GetIngredient(ctx, ingredientID)
		if err != nil {
			return err
		}
		stock = ing.CurrentStock
		return nil
	})
	return stock, err
}

// ApplyMovements применяет пакет движений атомарно: либо все, либо ни одного
func (l *StockLedger) ApplyMovements(ctx context.Context, batch []MovementRequest) (*LedgerReceipt, error) {
	var receipt *LedgerReceipt
	err := l.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		receipt, err = l.applyIn(ctx, tx, batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// applyIn применяет пакет внутри транзакции вызывающего.
// Строки ингредиентов блокируются, итог по каждому проверяется до записи,
// затем каждая запись еще раз проверяется условным обновлением.
func (l *StockLedger) applyIn(ctx context.Context, tx storage.Tx, batch []MovementRequest) (*LedgerReceipt, error) {
	if len(batch) == 0 {
		return nil, models.InvalidArgumentf("пустой пакет движений")
	}

	var order []string
	net := make(map[string]decimal.Decimal)
	for _, m := range batch {
		if m.IngredientID == "" {
			return nil, models.InvalidArgumentf("не указан ингредиент")
		}
		if m.Delta.IsZero() {
			return nil, models.InvalidArgumentf("нулевое движение по ингредиенту %s", m.IngredientID)
		}
		if m.Reason == "" {
			return nil, models.InvalidArgumentf("не указана причина движения по ингредиенту %s", m.IngredientID)
		}
		if !models.FitsQuantityScale(m.Delta) {
			return nil, models.InvalidArgumentf("движение по ингредиенту %s точнее %d знаков после запятой", m.IngredientID, models.QuantityScale)
		}
		if _, seen := net[m.IngredientID]; !seen {
			order = append(order, m.IngredientID)
		}
		net[m.IngredientID] = net[m.IngredientID].Add(m.Delta)
	}

	locked, err := tx.LockIngredients(ctx, order)
	if err != nil {
		return nil, err
	}

	var shortfalls []models.IngredientShortfall
	for _, id := range order {
		ing, ok := locked[id]
		if !ok {
			return nil, models.NotFoundf("ингредиент %s не найден", id)
		}
		if ing.CurrentStock.Add(net[id]).IsNegative() {
			shortfalls = append(shortfalls, models.IngredientShortfall{
				IngredientID: id,
				Name:         ing.Name,
				Needed:       net[id].Neg(),
				Available:    ing.CurrentStock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &models.InsufficientStockError{Shortfalls: shortfalls}
	}

	receipt := &LedgerReceipt{
		Before: make(map[string]models.Ingredient, len(order)),
		After:  make(map[string]models.Ingredient, len(order)),
	}
	for _, id := range order {
		ing := *locked[id]
		receipt.Before[id] = ing
		if net[id].IsZero() {
			receipt.After[id] = ing
			continue
		}
		after, err := tx.AddStock(ctx, id, net[id])
		if err != nil {
			if errors.Is(err, storage.ErrNegativeStock) {
				return nil, &models.InsufficientStockError{Shortfalls: []models.IngredientShortfall{{
					IngredientID: id,
					Name:         ing.Name,
					Needed:       net[id].Neg(),
					Available:    after,
				}}}
			}
			return nil, err
		}
		ing.CurrentStock = after
		receipt.After[id] = ing
	}

	now := l.now()
	receipt.Movements = make([]models.StockMovement, 0, len(batch))
	for _, m := range batch {
		receipt.Movements = append(receipt.Movements, models.StockMovement{
			IngredientID: m.IngredientID,
			Delta:        m.Delta,
			Reason:       m.Reason,
			Note:         m.Note,
			SupplierID:   m.SupplierID,
			OrderID:      m.OrderID,
			CreatedAt:    now,
		})
	}
	if err := tx.AppendMovements(ctx, receipt.Movements); err != nil {
		return nil, err
	}
	return receipt, nil
}

// LowStock возвращает ингредиенты с остатком строго ниже порога
func (l *StockLedger) LowStock(ctx context.Context) ([]models.Ingredient, error) {
	var list []models.Ingredient
	err := l.store.View(ctx, func(tx storage.Tx) error {
		var err error
		list, err = tx.ListLowStock(ctx)
		return err
	})
	return list, err
}

// History возвращает движения ингредиента от новых к старым
func (l *StockLedger) History(ctx context.Context, ingredientID string, from, to *time.Time) ([]models.StockMovement, error) {
	var list []models.StockMovement
	err := l.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetIngredient(ctx, ingredientID); err != nil {
			return err
		}
		var err error
		list, err = tx.ListMovements(ctx, storage.MovementFilter{IngredientID: ingredientID, From: from, To: to})
		return err
	})
	return list, err
}

// RegisterIngredient заводит ингредиент с нулевым остатком и сразу проводит начальный остаток движением
func (l *StockLedger) RegisterIngredient(ctx context.Context, in NewIngredient) (*models.Ingredient, error) {
	if in.Name == "" || in.Unit == "" {
		return nil, models.InvalidArgumentf("не указано название или единица измерения")
	}
	if in.InitialStock.IsNegative() {
		return nil, models.InvalidArgumentf("начальный остаток не может быть отрицательным")
	}
	if !models.FitsQuantityScale(in.InitialStock) {
		return nil, models.InvalidArgumentf("начальный остаток точнее %d знаков после запятой", models.QuantityScale)
	}

	ing := &models.Ingredient{
		Name:         in.Name,
		Unit:         in.Unit,
		CurrentStock: decimal.Zero,
		MinStock:     in.MinStock,
		UnitCost:     in.UnitCost,
	}
	err := l.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateIngredient(ctx, ing); err != nil {
			return err
		}
		if !in.InitialStock.IsPositive() {
			return nil
		}
		receipt, err := l.applyIn(ctx, tx, []MovementRequest{{
			IngredientID: ing.ID,
			Delta:        in.InitialStock,
			Reason:       models.MovementInitialStock,
			Note:         "начальный остаток",
		}})
		if err != nil {
			return err
		}
		ing.CurrentStock = receipt.After[ing.ID].CurrentStock
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{"ingredient_id": ing.ID, "stock": ing.CurrentStock}).Info("✅ Ингредиент заведен")
	return ing, nil
}

// Replenish проводит поступление от поставщика
func (l *StockLedger) Replenish(ctx context.Context, ingredientID string, quantity decimal.Decimal, supplierID, note string) (*LedgerReceipt, error) {
	if !quantity.IsPositive() {
		return nil, models.InvalidArgumentf("количество поступления должно быть положительным")
	}
	req := MovementRequest{
		IngredientID: ingredientID,
		Delta:        quantity,
		Reason:       models.MovementReplenishment,
		Note:         note,
	}

	var receipt *LedgerReceipt
	err := l.store.InTx(ctx, func(tx storage.Tx) error {
		if supplierID != "" {
			if _, err := tx.GetSupplier(ctx, supplierID); err != nil {
				return err
			}
			req.SupplierID = &supplierID
		}
		var err error
		receipt, err = l.applyIn(ctx, tx, []MovementRequest{req})
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"ingredient_id": ingredientID,
		"quantity":      quantity,
		"supplier_id":   supplierID,
	}).Info("📦 Поступление проведено")
	return receipt, nil
}

// Adjust проводит ручную корректировку остатка (знак delta произвольный)
func (l *StockLedger) Adjust(ctx context.Context, ingredientID string, delta decimal.Decimal, note string) (*LedgerReceipt, error) {
	return l.ApplyMovements(ctx, []MovementRequest{{
		IngredientID: ingredientID,
		Delta:        delta,
		Reason:       models.MovementAdjustment,
		Note:         note,
	}})
}
