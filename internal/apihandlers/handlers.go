package apihandlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"msgsort/internal/app"
	"msgsort/internal/models"
	"msgsort/internal/services"
)

// maxImportBytes caps the body of POST /categories/import.
const maxImportBytes = 10 << 20

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(app *app.App) *APIHandler {
	return &APIHandler{App: app}
}

// CreateCategoryRequest is the body of POST /categories.
type CreateCategoryRequest struct {
	Name     string   `json:"name" binding:"required"`
	Keywords []string `json:"keywords" binding:"required"`
}

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	Text    string `json:"text" binding:"required"`
	Explain bool   `json:"explain"`
}

// IngestMessageRequest is the body of POST /messages.
type IngestMessageRequest struct {
	ChatID   int64   `json:"chat_id"`
	UserID   int64   `json:"user_id"`
	Username *string `json:"username"`
	ChatType string  `json:"chat_type"`
	Text     string  `json:"text" binding:"required"`
}

func (h *APIHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "msgsort",
		"status":  "running",
	})
}

// HealthHandler reports unhealthy when the database does not answer.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	if err := h.App.Store.Ping(c.Request.Context()); err != nil {
		log.WithError(err).Warn("Health check: database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "disconnected"})
		return
	}
	cats, err := h.App.CategoryService.ListCategories(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("Health check: loading categories failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "connected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"database":   "connected",
		"categories": len(cats),
	})
}

func (h *APIHandler) ListCategoriesHandler(c *gin.Context) {
	cats, err := h.App.CategoryService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, "ListCategoriesHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cats})
}

func (h *APIHandler) CreateCategoryHandler(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	cat, err := h.App.CategoryService.AddCategory(c.Request.Context(), req.Name, req.Keywords)
	if err != nil {
		respondError(c, "CreateCategoryHandler", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": cat})
}

func (h *APIHandler) DeleteCategoryHandler(c *gin.Context) {
	if err := h.App.CategoryService.DeleteCategory(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, "DeleteCategoryHandler", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportCategoriesHandler streams the categories as an attachment;
// ?format=csv (default) or xlsx.
func (h *APIHandler) ExportCategoriesHandler(c *gin.Context) {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := h.App.ExportService.Export(c.Request.Context(), &buf, format); err != nil {
		respondError(c, "ExportCategoriesHandler", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, services.ExportFileName(time.Now(), format)))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// ImportCategoriesHandler reads an export file from the request body.
func (h *APIHandler) ImportCategoriesHandler(c *gin.Context) {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			PayloadTooLarge(c, fmt.Sprintf("Category file is larger than %d bytes", maxImportBytes))
			return
		}
		BadRequest(c, "Failed to read request body: "+err.Error())
		return
	}
	report, err := h.App.ExportService.Import(c.Request.Context(), bytes.NewReader(body), format)
	if err != nil {
		if report == nil {
			BadRequest(c, "Invalid category file: "+err.Error())
			return
		}
		respondError(c, "ImportCategoriesHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// ClassifyHandler categorizes text without storing it.
func (h *APIHandler) ClassifyHandler(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	res, err := h.App.MessageService.Classify(ctx, req.Text)
	if err != nil {
		respondError(c, "ClassifyHandler", err)
		return
	}
	resp := gin.H{"data": res}
	if req.Explain {
		scores, err := h.App.MessageService.Explain(ctx, req.Text)
		if err != nil {
			respondError(c, "ClassifyHandler", err)
			return
		}
		resp["scores"] = scores
	}
	c.JSON(http.StatusOK, resp)
}

// IngestMessageHandler categorizes and stores a message. With ?async=true the
// work is queued for the worker and 202 is returned with the task ID.
func (h *APIHandler) IngestMessageHandler(c *gin.Context) {
	var req IngestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	msg := &models.Message{
		ChatID:   req.ChatID,
		UserID:   req.UserID,
		Username: req.Username,
		ChatType: req.ChatType,
		Text:     req.Text,
	}
	if msg.ChatType == "" {
		msg.ChatType = models.ChatTypeAPI
	}

	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		h.enqueueMessage(c, msg)
		return
	}

	res, err := h.App.MessageService.Ingest(c.Request.Context(), msg)
	if err != nil {
		respondError(c, "IngestMessageHandler", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"message": msg, "result": res}})
}

func (h *APIHandler) enqueueMessage(c *gin.Context, msg *models.Message) {
	if h.App.JobClient == nil {
		Unavailable(c, "asynchronous ingest requires redis.address to be configured")
		return
	}
	taskID, err := h.App.JobClient.EnqueueCategorizeMessage(c.Request.Context(), msg)
	h.App.Metrics.ObserveEnqueue(err)
	if err != nil {
		Internal(c, fmt.Sprintf("IngestMessageHandler: failed to enqueue message: %v", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"task_id": taskID}})
}

func (h *APIHandler) StatsHandler(c *gin.Context) {
	stats, err := h.App.StatsService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "StatsHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}
