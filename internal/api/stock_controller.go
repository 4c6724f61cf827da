package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"barback/internal/models"
	"barback/internal/services"
)

// StockController управляет API endpoints склада
type StockController struct {
	ledger *services.StockLedger
}

// NewStockController создает новый контроллер остатков
func NewStockController(ledger *services.StockLedger) *StockController {
	return &StockController{ledger: ledger}
}

// CreateIngredient заводит ингредиент с начальным остатком
// POST /api/v1/inventory
func (sc *StockController) CreateIngredient(c *gin.Context) {
	var req services.NewIngredient
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверные параметры запроса", err)
		return
	}

	ing, err := sc.ledger.RegisterIngredient(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Не удалось завести ингредиент", err)
		return
	}
	c.JSON(http.StatusCreated, ing)
}

// GetLowStock возвращает ингредиенты ниже порога
// GET /api/v1/inventory/low-stock
func (sc *StockController) GetLowStock(c *gin.Context) {
	items, err := sc.ledger.LowStock(c.Request.Context())
	if err != nil {
		respondError(c, "Ошибка получения остатков", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// GetStock возвращает текущий остаток ингредиента
// GET /api/v1/inventory/:id/stock
func (sc *StockController) GetStock(c *gin.Context) {
	id := c.Param("id")
	stock, err := sc.ledger.CurrentStock(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Ошибка получения остатка", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ingredient_id": id,
		"current_stock": stock,
	})
}

// GetHistory возвращает журнал движений ингредиента
// GET /api/v1/inventory/:id/history?from=...&to=...
func (sc *StockController) GetHistory(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		badRequest(c, "Неверный формат даты from (ожидается RFC3339)", err)
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		badRequest(c, "Неверный формат даты to (ожидается RFC3339)", err)
		return
	}

	movements, err := sc.ledger.History(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, "Ошибка получения журнала", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movements": movements,
		"count":     len(movements),
	})
}

type movementRequest struct {
	IngredientID string          `json:"ingredient_id" binding:"required"`
	Delta        decimal.Decimal `json:"delta"`
	Note         string          `json:"note"`
}

type movementsRequest struct {
	Movements []movementRequest `json:"movements" binding:"required,min=1,dive"`
}

// ApplyMovements проводит пакет ручных корректировок: все или ни одной
// POST /api/v1/inventory/movements
func (sc *StockController) ApplyMovements(c *gin.Context) {
	var req movementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверные параметры запроса", err)
		return
	}

	batch := make([]services.MovementRequest, 0, len(req.Movements))
	for _, m := range req.Movements {
		batch = append(batch, services.MovementRequest{
			IngredientID: m.IngredientID,
			Delta:        m.Delta,
			Reason:       models.MovementAdjustment,
			Note:         m.Note,
		})
	}

	receipt, err := sc.ledger.ApplyMovements(c.Request.Context(), batch)
	if err != nil {
		respondError(c, "Не удалось провести движения", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movements": receipt.Movements,
		"stock":     stockAfter(receipt),
	})
}

type replenishRequest struct {
	Quantity   decimal.Decimal `json:"quantity"`
	SupplierID string          `json:"supplier_id"`
	Note       string          `json:"note"`
}

// Replenish проводит поступление от поставщика
// POST /api/v1/inventory/:id/replenish
func (sc *StockController) Replenish(c *gin.Context) {
	var req replenishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверные параметры запроса", err)
		return
	}

	receipt, err := sc.ledger.Replenish(c.Request.Context(), c.Param("id"), req.Quantity, req.SupplierID, req.Note)
	if err != nil {
		respondError(c, "Не удалось провести поступление", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movements": receipt.Movements,
		"stock":     stockAfter(receipt),
	})
}

func stockAfter(r *services.LedgerReceipt) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.After))
	for id, ing := range r.After {
		out[id] = ing.CurrentStock
	}
	return out
}
