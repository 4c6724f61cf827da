// Package storage описывает контракт хранилища, с которым работает ядро выполнения заказов.
//
// Все изменения выполняются внутри Store.InTx: при ошибке или панике транзакция откатывается,
// соединение освобождается на любом пути. Реализации: postgres (gorm) и memory (тесты, локальный запуск).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"barback/internal/models"
)

// ErrNegativeStock возвращается AddStock, если новое значение остатка стало бы отрицательным.
// Сервисы переводят ее в models.InsufficientStockError с подробностями.
var ErrNegativeStock = errors.New("stock would become negative")

// IngredientRepository - доступ к ингредиентам и их остаткам
type IngredientRepository interface {
	GetIngredient(ctx context.Context, id string) (*models.Ingredient, error)
	// FindIngredients возвращает найденные ингредиенты; отсутствующие ID в результат не попадают
	FindIngredients(ctx context.Context, ids []string) (map[string]*models.Ingredient, error)
	// LockIngredients блокирует строки на запись до конца транзакции.
	// Блокировки берутся в порядке возрастания ID.
	LockIngredients(ctx context.Context, ids []string) (map[string]*models.Ingredient, error)
	ListLowStock(ctx context.Context) ([]models.Ingredient, error)
	CreateIngredient(ctx context.Context, ingredient *models.Ingredient) error
	// AddStock прибавляет delta к остатку условным обновлением и возвращает новое значение.
	// Единственное место записи current_stock.
	AddStock(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
}

// MovementFilter - фильтр истории движений
type MovementFilter struct {
	IngredientID string
	From         *time.Time
	To           *time.Time
}

// MovementRepository - журнал движений остатков
type MovementRepository interface {
	AppendMovements(ctx context.Context, movements []models.StockMovement) error
	// ListMovements возвращает движения от новых к старым
	ListMovements(ctx context.Context, filter MovementFilter) ([]models.StockMovement, error)
}

// RecipeRepository - чтение каталога напитков
type RecipeRepository interface {
	// GetDrink возвращает напиток со строками рецепта, отсортированными по Position
	GetDrink(ctx context.Context, id string) (*models.Drink, error)
}

// OrderFilter - фильтр списка заказов
type OrderFilter struct {
	Status   models.OrderStatus
	Customer string // Подстрока имени клиента, без учета регистра
	From     *time.Time
	To       *time.Time
	Page     int // С 1
	Limit    int
}

// OrderPage - страница заказов
type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// OrderRepository - заказы и журнал их статусов
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// LockOrder читает заказ с блокировкой строки до конца транзакции
	LockOrder(ctx context.Context, id string) (*models.Order, error)
	// UpdateOrderStatus меняет статус (и бармена, если staffID не nil) и добавляет запись в журнал
	UpdateOrderStatus(ctx context.Context, change models.OrderStatusChange) error
	ListOrders(ctx context.Context, filter OrderFilter) (*OrderPage, error)
	ListStatusChanges(ctx context.Context, orderID string) ([]models.OrderStatusChange, error)
}

// SupplierRepository - поставщики и их предложения
type SupplierRepository interface {
	GetSupplier(ctx context.Context, id string) (*models.Supplier, error)
	// ListOffers возвращает предложения по ингредиентам вместе с поставщиком
	ListOffers(ctx context.Context, ingredientIDs []string) (map[string][]models.SupplierOffer, error)
}

// Tx - набор репозиториев, работающих в одной транзакции
type Tx interface {
	IngredientRepository
	MovementRepository
	RecipeRepository
	OrderRepository
	SupplierRepository
}

// Store - транзакционное хранилище
type Store interface {
	// InTx выполняет fn в транзакции: commit при nil, rollback при ошибке или панике
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// View выполняет fn только на чтение
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Normalize подставляет значения пагинации по умолчанию
func (f OrderFilter) Normalize() OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}
