package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// statusFor maps service sentinels to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnknownCollection),
		errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrReadOnlyCollection):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrBusy),
		errors.Is(err, apperrors.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Internal failures are logged at
// error level and hidden behind fallback.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	logger.Warn(fallback, slog.String("error", err.Error()), slog.Int("status", status))
	c.JSON(status, gin.H{"error": err.Error()})
}
