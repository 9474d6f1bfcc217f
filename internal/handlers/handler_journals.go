package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/dto"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// journalHandler handles the approval workflow of journal entries.
type journalHandler struct {
	store     portssvc.CollectionStoreSvc
	validator portssvc.ValidatorSvc
	now       func() time.Time
}

// registerJournalRoutes registers the journal approval routes.
func registerJournalRoutes(rg *gin.RouterGroup, store portssvc.CollectionStoreSvc, validator portssvc.ValidatorSvc) {
	h := &journalHandler{store: store, validator: validator, now: time.Now}

	journals := rg.Group("/journals")
	{
		journals.POST("/:id/approve", h.approveJournal)
		journals.POST("/:id/reject", h.rejectJournal)
	}
}

// approveJournal godoc
// @Summary Approve a journal entry
// @Description Marks a pending journal entry as Approved by the caller. Its lines must balance.
// @Tags journals
// @Produce json
// @Param id path string true "Journal ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Journal lines do not balance"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Journal not found"
// @Failure 409 {object} map[string]string "Journal is not pending"
// @Failure 500 {object} map[string]string "Failed to approve journal"
// @Security BearerAuth
// @Router /journals/{id}/approve [post]
func (h *journalHandler) approveJournal(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entry, ok := h.pendingJournal(c)
	if !ok {
		return
	}

	if lines, _ := domain.RecordsOf(entry[domain.FieldLines]); len(lines) > 0 {
		if err := h.validator.ValidateJournalBalance(lines); err != nil {
			respondError(c, logger, err, "Failed to approve journal")
			return
		}
	}

	actor := middleware.GetActorFromCtx(c.Request.Context())
	h.transition(c, entry.ID(), domain.Record{
		domain.FieldStatus: string(domain.JournalApproved),
		"approvedBy":       actorName(actor),
		"approvedAt":       domain.Timestamp(h.now()),
	})
}

// rejectJournal godoc
// @Summary Reject a journal entry
// @Description Marks a pending journal entry as Rejected by the caller with a reason.
// @Tags journals
// @Accept json
// @Produce json
// @Param id path string true "Journal ID"
// @Param rejection body dto.RejectJournalRequest true "Rejection reason"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Reason missing"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Journal not found"
// @Failure 409 {object} map[string]string "Journal is not pending"
// @Failure 500 {object} map[string]string "Failed to reject journal"
// @Security BearerAuth
// @Router /journals/{id}/reject [post]
func (h *journalHandler) rejectJournal(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RejectJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RejectJournal", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	entry, ok := h.pendingJournal(c)
	if !ok {
		return
	}

	actor := middleware.GetActorFromCtx(c.Request.Context())
	h.transition(c, entry.ID(), domain.Record{
		domain.FieldStatus: string(domain.JournalRejected),
		"rejectedBy":       actorName(actor),
		"rejectedAt":       domain.Timestamp(h.now()),
		"reason":           req.Reason,
	})
}

// pendingJournal loads the journal named by the path and checks it awaits a decision.
// It writes the error response itself when ok is false.
func (h *journalHandler) pendingJournal(c *gin.Context) (domain.Record, bool) {
	id := c.Param("id")
	entry, found := h.store.Get(c.Request.Context(), domain.JournalEntries, id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Journal not found"})
		return nil, false
	}
	status := domain.JournalStatus(entry.String(domain.FieldStatus))
	if status != "" && status != domain.JournalPending {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Journal %s is already %s", entry.ID(), status)})
		return nil, false
	}
	return entry, true
}

func (h *journalHandler) transition(c *gin.Context, id string, patch domain.Record) {
	ctx := c.Request.Context()
	logger := middleware.GetLoggerFromCtx(ctx).With(slog.String("journal_id", id))

	updated, err := h.store.Update(ctx, domain.JournalEntries, id, patch)
	if err != nil {
		respondError(c, logger, err, "Failed to update journal status")
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Journal not found"})
		return
	}

	logger.Info("Journal status changed", slog.String("status", patch.String(domain.FieldStatus)))
	entry, _ := h.store.Get(ctx, domain.JournalEntries, id)
	c.JSON(http.StatusOK, entry)
}
