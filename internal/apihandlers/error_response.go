package apihandlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"msgsort/internal/models"
	"msgsort/internal/services"
	"msgsort/internal/store"
	"msgsort/pkg/categorizer"
)

// APIError defines standard error response
// Example: { "error": { "code": "bad_request", "message": "Invalid ID" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// Convenience wrappers
func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

func Conflict(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusConflict, "conflict", msg)
}

func PayloadTooLarge(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", msg)
}

func Unavailable(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusServiceUnavailable, "unavailable", msg)
}

// respondError maps domain and store errors onto the error envelope.
func respondError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, categorizer.ErrInvalidCategory),
		errors.Is(err, services.ErrReservedCategory),
		errors.Is(err, models.ErrValidation):
		BadRequest(ctx, err.Error())
	case errors.Is(err, categorizer.ErrCategoryNotFound), errors.Is(err, store.ErrNotFound):
		NotFound(ctx, err.Error())
	case errors.Is(err, categorizer.ErrDuplicateCategory), errors.Is(err, services.ErrNoCategories):
		Conflict(ctx, err.Error())
	default:
		log.WithError(err).Errorf("%s failed", op)
		Internal(ctx, fmt.Sprintf("%s: %v", op, err))
	}
}
