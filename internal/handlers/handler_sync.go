package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/dto"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// syncHandler exposes the session synchronizer: loading, saving and exporting the workbook.
type syncHandler struct {
	sync portssvc.SessionSynchronizerSvc
}

func registerSyncRoutes(rg *gin.RouterGroup, sync portssvc.SessionSynchronizerSvc) {
	h := &syncHandler{sync: sync}

	group := rg.Group("/sync")
	{
		group.POST("/load", h.load)
		group.POST("/save", h.save)
		group.GET("/status", h.status)
		group.GET("/export", h.export)
		group.GET("/files", h.listFiles)
		group.GET("/ping", h.ping)
	}
}

// load godoc
// @Summary Reload the workbook
// @Description Replaces the in-memory data with the remote workbook, or the defaults when it cannot be read.
// @Description Refuses to discard unsaved changes unless force=true.
// @Tags sync
// @Produce json
// @Param force query bool false "Discard unsaved changes"
// @Success 200 {object} services.LoadResult
// @Failure 400 {object} map[string]string "Invalid force flag"
// @Failure 409 {object} map[string]string "Unsaved changes or session busy"
// @Failure 500 {object} map[string]string "Failed to load workbook"
// @Security BearerAuth
// @Router /sync/load [post]
func (h *syncHandler) load(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid force flag"})
			return
		}
		force = parsed
	}
	if h.sync.HasUnsavedChanges() && !force {
		c.JSON(http.StatusConflict, gin.H{"error": "There are unsaved changes; save first or pass force=true"})
		return
	}

	result, err := h.sync.Load(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to load workbook")
		return
	}
	logger.Info("Workbook loaded", slog.String("source", string(result.Source)))
	c.JSON(http.StatusOK, result)
}

// save godoc
// @Summary Save the workbook
// @Description Encodes the current data and writes it to the remote store.
// @Tags sync
// @Produce json
// @Success 200 {object} services.SaveResult
// @Failure 404 {object} map[string]string "Remote location not found"
// @Failure 409 {object} map[string]string "Remote changed, session busy or not loaded"
// @Failure 502 {object} map[string]string "Remote store unreachable"
// @Failure 500 {object} map[string]string "Failed to save workbook"
// @Security BearerAuth
// @Router /sync/save [post]
func (h *syncHandler) save(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	result, err := h.sync.Save(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to save workbook")
		return
	}
	logger.Info("Workbook saved", slog.String("revision", result.Revision), slog.Int("bytes", result.Bytes))
	c.JSON(http.StatusOK, result)
}

// status godoc
// @Summary Session status
// @Description Reports the synchronizer state and whether there are unsaved changes.
// @Tags sync
// @Produce json
// @Success 200 {object} services.SessionStatus
// @Security BearerAuth
// @Router /sync/status [get]
func (h *syncHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status())
}

// export godoc
// @Summary Download the workbook
// @Description Encodes the current data as an xlsx file without touching the remote store.
// @Tags sync
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 409 {object} map[string]string "Session not loaded"
// @Failure 500 {object} map[string]string "Failed to export workbook"
// @Security BearerAuth
// @Router /sync/export [get]
func (h *syncHandler) export(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	data, err := h.sync.Export(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to export workbook")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.sync.Status().Filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// listFiles godoc
// @Summary List remote workbooks
// @Tags sync
// @Produce json
// @Success 200 {object} dto.ListFilesResponse
// @Failure 502 {object} map[string]string "Remote store unreachable"
// @Security BearerAuth
// @Router /sync/files [get]
func (h *syncHandler) listFiles(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	files, err := h.sync.ListRemoteFiles(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to list remote files")
		return
	}
	c.JSON(http.StatusOK, dto.ListFilesResponse{Driver: h.sync.Status().Driver, Files: files})
}

// ping godoc
// @Summary Check the remote store
// @Tags sync
// @Produce json
// @Success 200 {object} dto.PingResponse
// @Failure 502 {object} map[string]string "Remote store unreachable"
// @Security BearerAuth
// @Router /sync/ping [get]
func (h *syncHandler) ping(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	if err := h.sync.TestConnection(c.Request.Context()); err != nil {
		respondError(c, logger, err, "Remote store check failed")
		return
	}
	c.JSON(http.StatusOK, dto.PingResponse{Driver: h.sync.Status().Driver, Status: "ok"})
}
