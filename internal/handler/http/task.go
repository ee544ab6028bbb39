package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"task-duel/internal/service"
)

// TaskHandler 处理房间内任务的增删改查
type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type CreateTaskRequest struct {
	Title  string `json:"title" binding:"required,max=255"`
	RoomID string `json:"roomId" binding:"required"`
}

type UpdateTaskRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	task, err := h.taskService.CreateTask(c.Request.Context(), req.RoomID, req.Title)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, task)
}

func (h *TaskHandler) ListRoomTasks(c *gin.Context) {
	tasks, err := h.taskService.ListRoomTasks(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskService.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	task, err := h.taskService.UpdateTask(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, task)
}

// DeleteTask 同时删除任务下的子任务和完成记录
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskService.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
