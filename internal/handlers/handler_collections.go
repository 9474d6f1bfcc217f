package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/dto"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/SscSPs/kiosc_finance_app/internal/utils/pagination"
	"github.com/gin-gonic/gin"
)

// collectionHandler serves generic CRUD over the workbook collections.
type collectionHandler struct {
	store     portssvc.CollectionStoreSvc
	validator portssvc.ValidatorSvc
	now       func() time.Time
}

func newCollectionHandler(store portssvc.CollectionStoreSvc, validator portssvc.ValidatorSvc) *collectionHandler {
	return &collectionHandler{store: store, validator: validator, now: time.Now}
}

// registerCollectionRoutes registers routes related to collections.
func registerCollectionRoutes(rg *gin.RouterGroup, store portssvc.CollectionStoreSvc, validator portssvc.ValidatorSvc) {
	h := newCollectionHandler(store, validator)

	collections := rg.Group("/collections")
	{
		collections.GET("", h.listCollections)
		collections.GET("/:collection", h.listRecords)
		collections.POST("/:collection", h.createRecord)
		collections.GET("/:collection/:id", h.getRecord)
		collections.PUT("/:collection/:id", h.updateRecord)
		collections.DELETE("/:collection/:id", h.deleteRecord)
	}
}

// listCollections godoc
// @Summary List collections
// @Description Lists the collections of the loaded workbook with their record counts
// @Tags collections
// @Produce json
// @Success 200 {object} dto.ListCollectionsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /collections [get]
func (h *collectionHandler) listCollections(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ListCollectionsResponse{Collections: h.store.Collections(c.Request.Context())})
}

// listRecords godoc
// @Summary List records of a collection
// @Description Lists records in stored order, optionally filtered by one field. Unknown collections are empty.
// @Tags collections
// @Produce json
// @Param collection path string true "Collection name"
// @Param field query string false "Field to filter on"
// @Param value query string false "Value the field must equal"
// @Param limit query int false "Page size (default 100, max 1000)"
// @Param nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListRecordsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /collections/{collection} [get]
func (h *collectionHandler) listRecords(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	collection := c.Param("collection")

	var params dto.ListRecordsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for ListRecords", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}
	if params.Field == "" && params.Value != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value requires field"})
		return
	}

	offset := 0
	if params.NextToken != "" {
		var err error
		offset, err = pagination.DecodeOffsetToken(params.NextToken, collection)
		if err != nil {
			logger.Warn("Invalid pagination token", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nextToken"})
			return
		}
	}

	var records []domain.Record
	if params.Field != "" {
		records = h.store.Filter(c.Request.Context(), collection, params.Field, params.Value)
	} else {
		records = h.store.List(c.Request.Context(), collection)
	}

	total := len(records)
	limit := pagination.ClampLimit(params.Limit)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	resp := dto.ListRecordsResponse{
		Collection: collection,
		Records:    records[offset:end],
		Total:      total,
	}
	if end < total {
		token := pagination.EncodeOffsetToken(collection, end)
		resp.NextToken = &token
	}
	c.JSON(http.StatusOK, resp)
}

// getRecord godoc
// @Summary Get a record
// @Description Retrieves one record by id. Journal entries include their lines.
// @Tags collections
// @Produce json
// @Param collection path string true "Collection name"
// @Param id path string true "Record ID"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Record not found"
// @Security BearerAuth
// @Router /collections/{collection}/{id} [get]
func (h *collectionHandler) getRecord(c *gin.Context) {
	collection, id := c.Param("collection"), c.Param("id")
	record, ok := h.store.Get(c.Request.Context(), collection, id)
	if !ok {
		middleware.GetLoggerFromCtx(c.Request.Context()).Debug("Record not found",
			slog.String("collection", collection), slog.String("id", id))
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// createRecord godoc
// @Summary Create a record
// @Description Validates and inserts a record. An id is generated when absent; an existing id returns the stored record.
// @Tags collections
// @Accept json
// @Produce json
// @Param collection path string true "Collection name"
// @Param record body map[string]interface{} true "Record fields"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 403 {object} map[string]string "Collection is read-only"
// @Failure 404 {object} map[string]string "Unknown collection"
// @Failure 409 {object} map[string]string "Duplicate budget"
// @Failure 500 {object} map[string]string "Failed to create record"
// @Security BearerAuth
// @Router /collections/{collection} [post]
func (h *collectionHandler) createRecord(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.GetLoggerFromCtx(ctx)
	collection := c.Param("collection")

	var record domain.Record
	if err := c.ShouldBindJSON(&record); err != nil {
		logger.Warn("Failed to bind JSON for CreateRecord", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	if record == nil {
		record = domain.Record{}
	}
	h.stampNew(collection, record, middleware.GetActorFromCtx(ctx))

	if err := h.validator.ValidateRecord(collection, record); err != nil {
		respondError(c, logger, err, "Failed to create record")
		return
	}

	created, err := h.store.Create(ctx, collection, record)
	if err != nil {
		respondError(c, logger, err, "Failed to create record")
		return
	}

	logger.Info("Record created", slog.String("collection", collection), slog.String("id", created.ID()))
	if full, ok := h.store.Get(ctx, collection, created.ID()); ok {
		created = full
	}
	c.JSON(http.StatusCreated, created)
}

// updateRecord godoc
// @Summary Update a record
// @Description Shallow-merges the body onto the record. A journal patch with lines replaces all lines.
// @Tags collections
// @Accept json
// @Produce json
// @Param collection path string true "Collection name"
// @Param id path string true "Record ID"
// @Param patch body map[string]interface{} true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 403 {object} map[string]string "Collection is read-only"
// @Failure 404 {object} map[string]string "Record not found"
// @Failure 500 {object} map[string]string "Failed to update record"
// @Security BearerAuth
// @Router /collections/{collection}/{id} [put]
func (h *collectionHandler) updateRecord(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.GetLoggerFromCtx(ctx)
	collection, id := c.Param("collection"), c.Param("id")

	var patch domain.Record
	if err := c.ShouldBindJSON(&patch); err != nil {
		logger.Warn("Failed to bind JSON for UpdateRecord", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	existing, ok := h.store.Get(ctx, collection, id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if err := h.validator.ValidatePatch(collection, existing, patch); err != nil {
		respondError(c, logger, err, "Failed to update record")
		return
	}

	updated, err := h.store.Update(ctx, collection, id, patch)
	if err != nil {
		respondError(c, logger, err, "Failed to update record")
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	logger.Info("Record updated", slog.String("collection", collection), slog.String("id", id))
	record, _ := h.store.Get(ctx, collection, id)
	c.JSON(http.StatusOK, record)
}

// deleteRecord godoc
// @Summary Delete a record
// @Description Deletes a record. Deleting a journal entry deletes its lines.
// @Tags collections
// @Param collection path string true "Collection name"
// @Param id path string true "Record ID"
// @Success 204 "No Content"
// @Failure 403 {object} map[string]string "Collection is read-only"
// @Failure 404 {object} map[string]string "Record not found"
// @Failure 500 {object} map[string]string "Failed to delete record"
// @Security BearerAuth
// @Router /collections/{collection}/{id} [delete]
func (h *collectionHandler) deleteRecord(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.GetLoggerFromCtx(ctx)
	collection, id := c.Param("collection"), c.Param("id")

	deleted, err := h.store.Delete(ctx, collection, id)
	if err != nil {
		respondError(c, logger, err, "Failed to delete record")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	logger.Info("Record deleted", slog.String("collection", collection), slog.String("id", id))
	c.Status(http.StatusNoContent)
}

// stampNew fills creation metadata the client did not send.
func (h *collectionHandler) stampNew(collection string, record domain.Record, actor domain.Actor) {
	if record.String("createdAt") == "" {
		record["createdAt"] = domain.Timestamp(h.now())
	}
	switch collection {
	case domain.Expenses, domain.JournalEntries:
		if record.String("createdBy") == "" {
			record["createdBy"] = actorName(actor)
		}
	}
	if collection == domain.JournalEntries && record.String(domain.FieldStatus) == "" {
		record[domain.FieldStatus] = string(domain.JournalPending)
	}
}

func actorName(actor domain.Actor) string {
	if actor.Username != "" {
		return actor.Username
	}
	return actor.UserID
}
