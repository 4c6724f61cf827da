package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"barback/internal/models"
	"barback/internal/services"
	"barback/internal/storage"
)

// OrderController управляет API endpoints заказов
type OrderController struct {
	orders  *services.OrderCoordinator
	pricing *services.CostCalculator
}

// NewOrderController создает контроллер заказов
func NewOrderController(orders *services.OrderCoordinator, pricing *services.CostCalculator) *OrderController {
	return &OrderController{orders: orders, pricing: pricing}
}

type availabilityRequest struct {
	Lines []services.OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CheckAvailability проверяет, хватит ли остатков на заказ, ничего не списывая
// POST /api/v1/orders/availability
func (oc *OrderController) CheckAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверные параметры запроса", err)
		return
	}

	result, err := oc.orders.CheckAvailability(c.Request.Context(), req.Lines)
	if err != nil {
		respondError(c, "Ошибка проверки наличия", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateOrder создает заказ и списывает ингредиенты
// POST /api/v1/orders
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.NewOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверные параметры запроса", err)
		return
	}

	order, err := oc.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Не удалось создать заказ", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListOrders возвращает заказы с фильтрами и пагинацией
// GET /api/v1/orders?status=pendente&customer=ana&from=2024-03-01T00:00:00Z&to=...&page=1&limit=20
func (oc *OrderController) ListOrders(c *gin.Context) {
	filter := storage.OrderFilter{Customer: c.Query("customer")}

	if s := c.Query("status"); s != "" {
		status, ok := models.ParseOrderStatus(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный статус", "details": s})
			return
		}
		filter.Status = status
	}
	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		badRequest(c, "Неверный формат даты from (ожидается RFC3339)", err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		badRequest(c, "Неверный формат даты to (ожидается RFC3339)", err)
		return
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	page, err := oc.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Ошибка получения заказов", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": page.Orders,
		"total":  page.Total,
		"page":   page.Page,
		"limit":  page.Limit,
	})
}

// GetOrder возвращает заказ с позициями
// GET /api/v1/orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Заказ не найден", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetHistory возвращает журнал смены статусов
// GET /api/v1/orders/:id/history
func (oc *OrderController) GetHistory(c *gin.Context) {
	changes, err := oc.orders.StatusHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Ошибка получения истории заказа", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"history": changes,
		"count":   len(changes),
	})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// UpdateStatus переводит заказ в новый статус
// PATCH /api/v1/orders/:id/status
func (oc *OrderController) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверные параметры запроса", err)
		return
	}
	status, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный статус", "details": req.Status})
		return
	}

	order, err := oc.orders.UpdateStatus(c.Request.Context(), c.Param("id"), status, req.Note)
	if err != nil {
		respondError(c, "Не удалось изменить статус", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type fulfillRequest struct {
	StaffID string `json:"staff_id" binding:"required"`
}

// Fulfill - бармен берет заказ в работу
// POST /api/v1/orders/:id/fulfill
func (oc *OrderController) Fulfill(c *gin.Context) {
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверные параметры запроса", err)
		return
	}

	order, err := oc.orders.Fulfill(c.Request.Context(), c.Param("id"), req.StaffID)
	if err != nil {
		respondError(c, "Не удалось взять заказ в работу", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderCost возвращает себестоимость заказа по текущим ценам ингредиентов
// GET /api/v1/orders/:id/cost
func (oc *OrderController) GetOrderCost(c *gin.Context) {
	id := c.Param("id")
	cost, err := oc.pricing.OrderCost(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Ошибка расчета себестоимости", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": id,
		"cost":     cost,
	})
}

// queryTime читает необязательный параметр времени в RFC3339
func queryTime(c *gin.Context, param string) (*time.Time, error) {
	raw := c.Query(param)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
