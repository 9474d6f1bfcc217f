package handlers

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/dto"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/SscSPs/kiosc_finance_app/internal/utils/pagination"
	"github.com/gin-gonic/gin"
)

type auditHandler struct {
	store portssvc.CollectionReaderSvc
}

func registerAuditRoutes(rg *gin.RouterGroup, store portssvc.CollectionReaderSvc) {
	h := &auditHandler{store: store}
	rg.GET("/audit", h.listAudit)
}

// listAudit godoc
// @Summary List audit entries
// @Description Lists audit log entries newest first, optionally for one entity type or entity
// @Tags audit
// @Produce json
// @Param entityType query string false "Collection of the audited record"
// @Param entityId query string false "ID of the audited record"
// @Param limit query int false "Maximum entries (default 100, max 1000)"
// @Success 200 {object} dto.ListAuditResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /audit [get]
func (h *auditHandler) listAudit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListAuditParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for ListAudit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	var records []domain.Record
	if params.EntityType != "" {
		records = h.store.Filter(c.Request.Context(), domain.AuditLog, "entityType", params.EntityType)
	} else {
		records = h.store.List(c.Request.Context(), domain.AuditLog)
	}

	entries := make([]domain.AuditEntry, 0, len(records))
	for _, r := range records {
		entry := domain.AuditEntryFromRecord(r)
		if params.EntityID != "" && entry.EntityID != domain.CanonicalID(params.EntityID) {
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	if limit := pagination.ClampLimit(params.Limit); len(entries) > limit {
		entries = entries[:limit]
	}

	c.JSON(http.StatusOK, dto.ListAuditResponse{Entries: dto.ToAuditEntryResponses(entries)})
}
