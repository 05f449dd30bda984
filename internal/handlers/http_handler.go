package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/internal/service"
	"github.com/crmforge/groupposter/pkg/database"
	"github.com/crmforge/groupposter/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type HTTPHandler struct {
	service service.SchedulerService
	logger  logger.Logger
}

func NewHTTPHandler(service service.SchedulerService, logger logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		logger:  logger,
	}
}

func (h *HTTPHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.POST("/scheduler/generate", h.GenerateSchedule)
		api.POST("/scheduler/preview", h.PreviewSchedule)
		api.POST("/groups/import", h.ImportGroups)
		api.POST("/groups/import/preview", h.PreviewImport)
		api.GET("/groups/summary", h.GetGroupSummary)
		api.GET("/tasks", h.ListTasks)
		api.PATCH("/tasks/:taskId/status", h.UpdateTaskStatus)
		api.GET("/notifications", h.ListNotifications)
	}
}

func (h *HTTPHandler) GenerateSchedule(c *gin.Context) {
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.GenerateSchedule(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to generate schedule", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) PreviewSchedule(c *gin.Context) {
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.PreviewSchedule(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to preview schedule", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) ImportGroups(c *gin.Context) {
	var req struct {
		Entries []models.ImportEntry `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ImportGroups(c.Request.Context(), req.Entries)
	if err != nil {
		h.respondError(c, "Failed to import groups", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) PreviewImport(c *gin.Context) {
	var req struct {
		Entries []models.ImportEntry `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.service.PreviewImport(c.Request.Context(), req.Entries)
	if err != nil {
		h.respondError(c, "Failed to preview import", err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (h *HTTPHandler) GetGroupSummary(c *gin.Context) {
	summary, err := h.service.GetGroupSummary(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to get group summary", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *HTTPHandler) ListTasks(c *gin.Context) {
	filter := models.TaskFilter{
		AccountID:  c.Query("account_id"),
		GroupID:    c.Query("group_id"),
		TemplateID: c.Query("template_id"),
		Status:     c.Query("status"),
		RunID:      c.Query("run_id"),
	}

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			filter.Offset = o
		}
	}
	if since := c.Query("since"); since != "" {
		if parsed, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &parsed
		}
	}

	tasks, err := h.service.ListTasks(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "Failed to list tasks", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (h *HTTPHandler) UpdateTaskStatus(c *gin.Context) {
	taskID, err := primitive.ObjectIDFromHex(c.Param("taskId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id format"})
		return
	}

	var req struct {
		Status    string `json:"status" binding:"required"`
		LastError string `json:"last_error"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.UpdateTaskStatus(c.Request.Context(), taskID, req.Status, req.LastError); err != nil {
		h.respondError(c, "Failed to update task status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *HTTPHandler) ListNotifications(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	notifications, err := h.service.ListNotifications(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		h.respondError(c, "Failed to list notifications", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"total":         len(notifications),
	})
}

func (h *HTTPHandler) respondError(c *gin.Context, logMsg string, err error) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrGroupNotFound), errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("%s: %v", logMsg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
