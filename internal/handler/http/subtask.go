package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/service"
)

// SubtaskHandler 处理子任务，包括批量创建
type SubtaskHandler struct {
	subtaskService *service.SubtaskService
}

func NewSubtaskHandler(subtaskService *service.SubtaskService) *SubtaskHandler {
	return &SubtaskHandler{subtaskService: subtaskService}
}

// CreateBatchRequest 中每一项是字面标题或 "起点~终点" 的数字区间
type CreateBatchRequest struct {
	TaskID   string   `json:"taskId" binding:"required"`
	Subtasks []string `json:"subtasks" binding:"required,dive,max=255"`
}

type UpdateSubtaskRequest struct {
	Title *string `json:"title" binding:"omitempty,max=255"`
	Order *int    `json:"order" binding:"omitempty,min=0"`
}

func (h *SubtaskHandler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	subtasks, err := h.subtaskService.CreateBatch(c.Request.Context(), req.TaskID, req.Subtasks)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"task_id": req.TaskID, "created": len(subtasks)}).Debug("Handler.CreateBatch: Subtasks created")
	SuccessResponse(c, http.StatusCreated, subtasks)
}

func (h *SubtaskHandler) ListTaskSubtasks(c *gin.Context) {
	subtasks, err := h.subtaskService.ListTaskSubtasks(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, subtasks)
}

func (h *SubtaskHandler) GetSubtask(c *gin.Context) {
	subtask, err := h.subtaskService.GetSubtask(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, subtask)
}

func (h *SubtaskHandler) UpdateSubtask(c *gin.Context) {
	var req UpdateSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	subtask, err := h.subtaskService.UpdateSubtask(c.Request.Context(), c.Param("id"), req.Title, req.Order)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, subtask)
}

func (h *SubtaskHandler) DeleteSubtask(c *gin.Context) {
	if err := h.subtaskService.DeleteSubtask(c.Request.Context(), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
