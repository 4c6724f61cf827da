package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"barback/internal/models"
	"barback/internal/storage"
)

// NewOrder - данные для создания заказа
type NewOrder struct {
	CustomerName string             `json:"customer_name" binding:"required"`
	Table        *int               `json:"table"`
	Note         string             `json:"note"`
	Lines        []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// OrderCoordinator ведет заказ от создания до выдачи.
// Создание заказа, списание остатков и журнал выполняются одной транзакцией.
type OrderCoordinator struct {
	store     storage.Store
	checker   *AvailabilityChecker
	ledger    *StockLedger
	pricing   *CostCalculator
	publisher EventPublisher
	now       func() time.Time
	log       *logrus.Entry
}

// NewOrderCoordinator создает координатор заказов
func NewOrderCoordinator(store storage.Store, checker *AvailabilityChecker, ledger *StockLedger, pricing *CostCalculator) *OrderCoordinator {
	return &OrderCoordinator{
		store:     store,
		checker:   checker,
		ledger:    ledger,
		pricing:   pricing,
		publisher: NopPublisher{},
		now: func() time.Time {
			return time.Now().UTC()
		},
		log: logrus.WithField("component", "order_coordinator"),
	}
}

// SetPublisher подключает публикацию событий
func (c *OrderCoordinator) SetPublisher(p EventPublisher) {
	c.publisher = p
}

// SetClock подменяет источник времени
func (c *OrderCoordinator) SetClock(now func() time.Time) {
	c.now = now
}

// SetLogger задает логгер
func (c *OrderCoordinator) SetLogger(log *logrus.Entry) {
	c.log = log.WithField("component", "order_coordinator")
}

// CheckAvailability проверяет наличие без изменений
func (c *OrderCoordinator) CheckAvailability(ctx context.Context, lines []OrderLineRequest) (*AvailabilityResult, error) {
	return c.checker.Check(ctx, lines)
}

// CreateOrder создает заказ в статусе pendente и списывает ингредиенты.
// При нехватке хотя бы одного ингредиента ничего не записывается.
func (c *OrderCoordinator) CreateOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.CustomerName == "" {
		return nil, models.InvalidArgumentf("не указано имя клиента")
	}
	if err := validateLines(in.Lines); err != nil {
		return nil, err
	}

	var (
		order   *models.Order
		receipt *LedgerReceipt
	)
	err := c.store.InTx(ctx, func(tx storage.Tx) error {
		result, drinks, err := c.checker.checkIn(ctx, tx, in.Lines, true)
		if err != nil {
			return err
		}
		if !result.Available {
			return &models.InsufficientStockError{Shortfalls: result.Shortfalls()}
		}

		lines, total := c.pricing.Quote(drinks, in.Lines)
		now := c.now()
		order = &models.Order{
			ID:           uuid.New().String(),
			CustomerName: in.CustomerName,
			Table:        in.Table,
			Note:         in.Note,
			Status:       models.OrderStatusPending,
			Total:        total,
			Lines:        lines,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, models.OrderStatusChange{
			OrderID: order.ID,
			To:      models.OrderStatusPending,
			Note:    "заказ создан",
		}); err != nil {
			return err
		}

		// Одно движение на ингредиент на всю суммарную потребность
		batch := make([]MovementRequest, 0, len(result.PerIngredient))
		for _, v := range result.PerIngredient {
			batch = append(batch, MovementRequest{
				IngredientID: v.IngredientID,
				Delta:        v.Needed.Neg(),
				Reason:       models.MovementOrderConsumption,
				Note:         fmt.Sprintf("списание под заказ %s", order.ID),
				OrderID:      &order.ID,
			})
		}
		receipt, err = c.ledger.applyIn(ctx, tx, batch)
		return err
	})
	if err != nil {
		c.logFailure("создания заказа", err)
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"customer": order.CustomerName,
		"lines":    len(order.Lines),
		"total":    order.Total,
	}).Info("✅ Заказ создан")

	c.publish(ctx, Event{
		Type:       EventOrderCreated,
		OrderID:    order.ID,
		Status:     order.Status,
		Order:      order,
		OccurredAt: order.CreatedAt,
	})
	for _, ing := range receipt.CrossedMinimum() {
		c.publish(ctx, Event{
			Type: EventStockLow,
			LowStock: &LowStockNotice{
				IngredientID: ing.ID,
				Name:         ing.Name,
				Unit:         ing.Unit,
				CurrentStock: ing.CurrentStock,
				MinStock:     ing.MinStock.Decimal,
			},
			OccurredAt: order.CreatedAt,
		})
	}
	return order, nil
}

// UpdateStatus переводит заказ в новый статус по таблице переходов
func (c *OrderCoordinator) UpdateStatus(ctx context.Context, orderID string, next models.OrderStatus, note string) (*models.Order, error) {
	return c.transition(ctx, orderID, func(current *models.Order) (*models.OrderStatusChange, error) {
		if !current.Status.CanTransitionTo(next) {
			return nil, &models.TransitionError{From: current.Status, To: next}
		}
		return &models.OrderStatusChange{OrderID: orderID, From: current.Status, To: next, Note: note}, nil
	})
}

// Fulfill - бармен берет заказ в работу: только из pendente, статус em_preparo
func (c *OrderCoordinator) Fulfill(ctx context.Context, orderID, staffID string) (*models.Order, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, models.InvalidArgumentf("не указан бармен")
	}
	return c.transition(ctx, orderID, func(current *models.Order) (*models.OrderStatusChange, error) {
		if current.Status != models.OrderStatusPending {
			return nil, &models.TransitionError{From: current.Status, To: models.OrderStatusPreparing}
		}
		return &models.OrderStatusChange{
			OrderID: orderID,
			From:    current.Status,
			To:      models.OrderStatusPreparing,
			Note:    fmt.Sprintf("принят в работу барменом %s", staffID),
			StaffID: &staffID,
		}, nil
	})
}

// transition блокирует заказ, решает переход через decide и записывает его
func (c *OrderCoordinator) transition(ctx context.Context, orderID string, decide func(current *models.Order) (*models.OrderStatusChange, error)) (*models.Order, error) {
	var (
		updated *models.Order
		change  *models.OrderStatusChange
	)
	err := c.store.InTx(ctx, func(tx storage.Tx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if change, err = decide(current); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, *change); err != nil {
			return err
		}
		updated, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		c.logFailure("смены статуса заказа", err)
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     change.From,
		"to":       change.To,
	}).Info("🔄 Статус заказа изменен")

	c.publish(ctx, Event{
		Type:       EventOrderStatusChanged,
		OrderID:    orderID,
		Status:     updated.Status,
		Order:      updated,
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// GetOrder возвращает заказ с позициями
func (c *OrderCoordinator) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order *models.Order
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		return err
	})
	return order, err
}

// ListOrders возвращает страницу заказов от новых к старым
func (c *OrderCoordinator) ListOrders(ctx context.Context, filter storage.OrderFilter) (*storage.OrderPage, error) {
	var page *storage.OrderPage
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		page, err = tx.ListOrders(ctx, filter)
		return err
	})
	return page, err
}

// StatusHistory возвращает журнал смены статусов заказа
func (c *OrderCoordinator) StatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusChange, error) {
	var changes []models.OrderStatusChange
	err := c.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		changes, err = tx.ListStatusChanges(ctx, orderID)
		return err
	})
	return changes, err
}

// publish отправляет событие после фиксации; ошибка доставки не отменяет заказ
func (c *OrderCoordinator) publish(ctx context.Context, ev Event) {
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"event": ev.Type,
			"key":   ev.Key(),
		}).Warn("⚠️ Не удалось опубликовать событие")
	}
}

func (c *OrderCoordinator) logFailure(op string, err error) {
	entry := c.log.WithError(err)
	switch {
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrInvalidArgument):
		entry.Info("ℹ️ Отказ " + op)
	default:
		entry.Error("❌ Ошибка " + op)
	}
}
