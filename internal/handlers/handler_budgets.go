package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/dto"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

type budgetHandler struct {
	store portssvc.CollectionReaderSvc
}

func registerBudgetRoutes(rg *gin.RouterGroup, store portssvc.CollectionReaderSvc) {
	h := &budgetHandler{store: store}
	rg.GET("/budgets/lookup", h.lookupBudget)
}

// lookupBudget godoc
// @Summary Find a payment center budget
// @Description Finds the budget of a payment center for one year
// @Tags budgets
// @Produce json
// @Param paymentCenterId query string true "Payment center ID"
// @Param year query int true "Budget year"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Budget not found"
// @Security BearerAuth
// @Router /budgets/lookup [get]
func (h *budgetHandler) lookupBudget(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.BudgetLookupParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for LookupBudget", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	budget, ok := h.store.FindBudget(c.Request.Context(), params.PaymentCenterID, params.Year)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Budget not found"})
		return
	}
	c.JSON(http.StatusOK, budget)
}
