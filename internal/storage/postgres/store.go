// Package postgres - реализация storage.Store поверх gorm/PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barback/internal/models"
	"barback/internal/storage"
)

const stockCheckConstraint = "ingredients_stock_non_negative"

// Store работает через переданный *gorm.DB; глобального подключения нет
type Store struct {
	db *gorm.DB
}

// New создает хранилище
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InTx выполняет fn в транзакции БД
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return classify("begin transaction", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&gormTx{db: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// View выполняет fn в транзакции только на чтение
func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	var inner error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner = fn(&gormTx{db: tx})
		return inner
	}, &sql.TxOptions{ReadOnly: true})
	if inner != nil {
		return inner
	}
	return classify("read transaction", err)
}

// Ping проверяет соединение с БД
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return classify("get sql.DB", err)
	}
	return classify("ping", sqlDB.PingContext(ctx))
}

// classify переводит ошибку драйвера в доменный вид
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" && pgErr.ConstraintName == stockCheckConstraint {
		return storage.ErrNegativeStock
	}
	return &models.PersistenceError{Op: op, Err: err}
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) GetIngredient(ctx context.Context, id string) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := t.db.First(&ing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundf("ингредиент %s не найден", id)
		}
		return nil, classify("get ingredient", err)
	}
	return &ing, nil
}

func (t *gormTx) FindIngredients(ctx context.Context, ids []string) (map[string]*models.Ingredient, error) {
	return t.findIngredients(t.db, ids, "find ingredients")
}

func (t *gormTx) LockIngredients(ctx context.Context, ids []string) (map[string]*models.Ingredient, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	// ORDER BY id + FOR UPDATE: строки блокируются в порядке возрастания ID
	q := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).Order("id")
	return t.findIngredients(q, sorted, "lock ingredients")
}

func (t *gormTx) findIngredients(q *gorm.DB, ids []string, op string) (map[string]*models.Ingredient, error) {
	out := make(map[string]*models.Ingredient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []models.Ingredient
	if err := q.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, classify(op, err)
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (t *gormTx) ListLowStock(ctx context.Context) ([]models.Ingredient, error) {
	var list []models.Ingredient
	err := t.db.Where("min_stock IS NOT NULL AND current_stock < min_stock").
		Order("name").
		Find(&list).Error
	if err != nil {
		return nil, classify("list low stock", err)
	}
	return list, nil
}

func (t *gormTx) CreateIngredient(ctx context.Context, ing *models.Ingredient) error {
	return classify("create ingredient", t.db.Create(ing).Error)
}

func (t *gormTx) AddStock(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	var ing models.Ingredient
	res := t.db.Model(&ing).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "current_stock"}}}).
		Where("id = ? AND current_stock + ? >= 0", id, delta).
		UpdateColumns(map[string]interface{}{
			"current_stock": gorm.Expr("current_stock + ?", delta),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return decimal.Zero, classify("add stock", res.Error)
	}
	if res.RowsAffected == 1 {
		return ing.CurrentStock, nil
	}

	// Строка не обновилась: либо ингредиента нет, либо остаток ушел бы в минус
	current, err := t.GetIngredient(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return current.CurrentStock, storage.ErrNegativeStock
}

func (t *gormTx) AppendMovements(ctx context.Context, movements []models.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return classify("append movements", t.db.Create(&movements).Error)
}

func (t *gormTx) ListMovements(ctx context.Context, filter storage.MovementFilter) ([]models.StockMovement, error) {
	q := t.db.Model(&models.StockMovement{})
	if filter.IngredientID != "" {
		q = q.Where("ingredient_id = ?", filter.IngredientID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	var list []models.StockMovement
	// Внутри пакета время одинаковое, позже вставленные идут первыми
	if err := q.Order("created_at DESC, seq DESC").Find(&list).Error; err != nil {
		return nil, classify("list movements", err)
	}
	return list, nil
}

func (t *gormTx) GetDrink(ctx context.Context, id string) (*models.Drink, error) {
	var d models.Drink
	err := t.db.Preload("Recipe", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&d, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundf("напиток %s не найден", id)
		}
		return nil, classify("get drink", err)
	}
	return &d, nil
}

func (t *gormTx) CreateOrder(ctx context.Context, order *models.Order) error {
	// Строки заказа сохраняются gorm вместе с заказом
	return classify("create order", t.db.Create(order).Error)
}

func (t *gormTx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := t.db.Preload("Lines").First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundf("заказ %s не найден", id)
		}
		return nil, classify("get order", err)
	}
	return &o, nil
}

func (t *gormTx) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundf("заказ %s не найден", id)
		}
		return nil, classify("lock order", err)
	}
	if err := t.db.Where("order_id = ?", id).Find(&o.Lines).Error; err != nil {
		return nil, classify("load order lines", err)
	}
	return &o, nil
}

func (t *gormTx) UpdateOrderStatus(ctx context.Context, change models.OrderStatusChange) error {
	updates := map[string]interface{}{
		"status":     change.To,
		"updated_at": time.Now().UTC(),
	}
	if change.StaffID != nil {
		updates["staff_id"] = *change.StaffID
	}
	res := t.db.Model(&models.Order{}).Where("id = ?", change.OrderID).Updates(updates)
	if res.Error != nil {
		return classify("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFoundf("заказ %s не найден", change.OrderID)
	}
	return classify("append status change", t.db.Create(&change).Error)
}

func (t *gormTx) ListOrders(ctx context.Context, filter storage.OrderFilter) (*storage.OrderPage, error) {
	filter = filter.Normalize()
	q := t.db.Model(&models.Order{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Customer != "" {
		q = q.Where("customer_name ILIKE ?", "%"+filter.Customer+"%")
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	page := &storage.OrderPage{Page: filter.Page, Limit: filter.Limit}
	if err := q.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return nil, classify("count orders", err)
	}
	err := q.Preload("Lines").
		Order("created_at DESC, id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&page.Orders).Error
	if err != nil {
		return nil, classify("list orders", err)
	}
	return page, nil
}

func (t *gormTx) ListStatusChanges(ctx context.Context, orderID string) ([]models.OrderStatusChange, error) {
	var list []models.OrderStatusChange
	if err := t.db.Where("order_id = ?", orderID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, classify("list status changes", err)
	}
	return list, nil
}

func (t *gormTx) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	var s models.Supplier
	if err := t.db.First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundf("поставщик %s не найден", id)
		}
		return nil, classify("get supplier", err)
	}
	return &s, nil
}

func (t *gormTx) ListOffers(ctx context.Context, ingredientIDs []string) (map[string][]models.SupplierOffer, error) {
	out := make(map[string][]models.SupplierOffer)
	if len(ingredientIDs) == 0 {
		return out, nil
	}
	var list []models.SupplierOffer
	if err := t.db.Preload("Supplier").Where("ingredient_id IN ?", ingredientIDs).Find(&list).Error; err != nil {
		return nil, classify("list supplier offers", err)
	}
	for _, o := range list {
		out[o.IngredientID] = append(out[o.IngredientID], o)
	}
	return out, nil
}
