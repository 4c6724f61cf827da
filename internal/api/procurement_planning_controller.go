package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"barback/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProcurementPlanningController отдает рекомендации закупки
type ProcurementPlanningController struct {
	advisor *services.ReplenishmentAdvisor
}

// NewProcurementPlanningController создает контроллер закупок
func NewProcurementPlanningController(advisor *services.ReplenishmentAdvisor) *ProcurementPlanningController {
	return &ProcurementPlanningController{advisor: advisor}
}

// GetSuggestions возвращает рекомендации по ингредиентам ниже порога
// GET /api/v1/procurement/suggestions
func (pc *ProcurementPlanningController) GetSuggestions(c *gin.Context) {
	suggestions, err := pc.advisor.Suggest(c.Request.Context())
	if err != nil {
		respondError(c, "Ошибка формирования рекомендаций", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// ExportSuggestions выгружает рекомендации в XLSX
// GET /api/v1/procurement/suggestions.xlsx
func (pc *ProcurementPlanningController) ExportSuggestions(c *gin.Context) {
	suggestions, err := pc.advisor.Suggest(c.Request.Context())
	if err != nil {
		respondError(c, "Ошибка формирования рекомендаций", err)
		return
	}

	var buf bytes.Buffer
	if err := pc.advisor.ExportXLSX(&buf, suggestions); err != nil {
		respondError(c, "Ошибка выгрузки XLSX", err)
		return
	}

	filename := fmt.Sprintf("zakupka-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
