package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"barback/internal/models"
)

// respondError переводит доменную ошибку в HTTP-ответ.
// Нехватка остатков возвращает список недостающих ингредиентов.
func respondError(c *gin.Context, message string, err error) {
	body := gin.H{
		"error":   message,
		"details": err.Error(),
	}

	var stockErr *models.InsufficientStockError
	var transitionErr *models.TransitionError
	switch {
	case errors.As(err, &stockErr):
		body["shortfalls"] = stockErr.Shortfalls
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &transitionErr):
		body["from"] = transitionErr.From
		body["to"] = transitionErr.To
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, models.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, body)
	default:
		// Детали ошибок хранилища наружу не отдаем
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
