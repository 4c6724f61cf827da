package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"barback/internal/services"
)

// RecipeController отдает рецепты и себестоимость напитков
type RecipeController struct {
	catalog *services.RecipeCatalog
	pricing *services.CostCalculator
}

// NewRecipeController создает контроллер рецептов
func NewRecipeController(catalog *services.RecipeCatalog, pricing *services.CostCalculator) *RecipeController {
	return &RecipeController{catalog: catalog, pricing: pricing}
}

// GetRecipe возвращает напиток с технологической картой
// GET /api/v1/drinks/:id
func (rc *RecipeController) GetRecipe(c *gin.Context) {
	drink, err := rc.catalog.ResolveDrink(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Напиток не найден", err)
		return
	}
	c.JSON(http.StatusOK, drink)
}

// GetDrinkCost возвращает себестоимость и маржу порции
// GET /api/v1/drinks/:id/cost
func (rc *RecipeController) GetDrinkCost(c *gin.Context) {
	margin, err := rc.pricing.DrinkMargin(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Ошибка расчета себестоимости", err)
		return
	}
	c.JSON(http.StatusOK, margin)
}
