package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterDeps - контроллеры и зависимости HTTP сервера
type RouterDeps struct {
	Orders      *OrderController
	Stock       *StockController
	Procurement *ProcurementPlanningController
	Recipes     *RecipeController
	WS          *WSController
	Store       Pinger
	Hub         *Hub
	Log         *logrus.Entry
}

// NewRouter собирает gin engine со всеми маршрутами
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Health check endpoint (до CORS и логирования, его дергает балансировщик)
	r.GET("/api/v1/health", healthHandler(d.Store, d.Hub))

	r.Use(requestLogger(d.Log))
	r.Use(cors())

	apiGroup := r.Group("/api/v1")

	orders := apiGroup.Group("/orders")
	{
		orders.POST("/availability", d.Orders.CheckAvailability)
		orders.POST("", d.Orders.CreateOrder)
		orders.GET("", d.Orders.ListOrders)
		orders.GET("/:id", d.Orders.GetOrder)
		orders.GET("/:id/history", d.Orders.GetHistory)
		orders.PATCH("/:id/status", d.Orders.UpdateStatus)
		orders.POST("/:id/fulfill", d.Orders.Fulfill)
		orders.GET("/:id/cost", d.Orders.GetOrderCost)
	}

	drinks := apiGroup.Group("/drinks")
	{
		drinks.GET("/:id", d.Recipes.GetRecipe)
		drinks.GET("/:id/cost", d.Recipes.GetDrinkCost)
	}

	inventory := apiGroup.Group("/inventory")
	{
		inventory.POST("", d.Stock.CreateIngredient)
		inventory.GET("/low-stock", d.Stock.GetLowStock)
		inventory.POST("/movements", d.Stock.ApplyMovements)
		inventory.GET("/:id/stock", d.Stock.GetStock)
		inventory.GET("/:id/history", d.Stock.GetHistory)
		inventory.POST("/:id/replenish", d.Stock.Replenish)
	}

	procurement := apiGroup.Group("/procurement")
	{
		procurement.GET("/suggestions", d.Procurement.GetSuggestions)
		procurement.GET("/suggestions.xlsx", d.Procurement.ExportSuggestions)
	}

	if d.WS != nil {
		r.GET("/ws/orders", d.WS.ServeWS)
	}
	return r
}

func healthHandler(store Pinger, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if store != nil {
			if err := store.Ping(c.Request.Context()); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		body := gin.H{
			"status":  status,
			"service": "barback",
		}
		if hub != nil {
			body["ws_clients"] = hub.GetClientsCount()
		}
		c.JSON(code, body)
	}
}

// requestLogger логирует каждый запрос
func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Error("🌐 Запрос завершился ошибкой")
			return
		}
		entry.Info("🌐 Запрос")
	}
}

// cors разрешает запросы фронтенда с любого origin
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
