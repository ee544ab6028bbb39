package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/service"
)

// CompletionHandler 处理子任务完成记录与进度查询
type CompletionHandler struct {
	completionService *service.CompletionService
}

func NewCompletionHandler(completionService *service.CompletionService) *CompletionHandler {
	return &CompletionHandler{completionService: completionService}
}

// CompleteRequest 中 UserID 为空时记在调用者名下
type CompleteRequest struct {
	SubtaskID string `json:"subtaskId" binding:"required"`
	UserID    string `json:"userId"`
}

// UpdateProgressRequest 用指针区分缺失与 0
type UpdateProgressRequest struct {
	Progress *float64 `json:"progress" binding:"required"`
}

type TaskProgressResponse struct {
	Progress int `json:"progress"`
}

// Complete POST /completion，把进度置为 1
func (h *CompletionHandler) Complete(c *gin.Context) {
	callerID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if req.UserID == "" {
		req.UserID = callerID
	}

	completion, err := h.completionService.CompleteSubtask(c.Request.Context(), req.SubtaskID, req.UserID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": req.UserID, "subtask_id": req.SubtaskID}).Info("Handler.Complete: Subtask completed")
	SuccessResponse(c, http.StatusOK, completion)
}

// UpdateProgress PUT /completion/:id
func (h *CompletionHandler) UpdateProgress(c *gin.Context) {
	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	completion, err := h.completionService.UpdateProgress(c.Request.Context(), c.Param("id"), *req.Progress)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, completion)
}

// GetUserCompletions GET /completion/user/:userId?subtaskId=
func (h *CompletionHandler) GetUserCompletions(c *gin.Context) {
	completions, err := h.completionService.GetUserCompletions(c.Request.Context(), c.Param("userId"), c.Query("subtaskId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, completions)
}

func (h *CompletionHandler) GetSubtaskCompletions(c *gin.Context) {
	completions, err := h.completionService.GetSubtaskCompletions(c.Request.Context(), c.Param("subtaskId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, completions)
}

// GetUserTaskProgress 返回 0-100 的整数进度
func (h *CompletionHandler) GetUserTaskProgress(c *gin.Context) {
	progress, err := h.completionService.GetUserTaskProgress(c.Request.Context(), c.Param("userId"), c.Param("taskId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, TaskProgressResponse{Progress: progress})
}

// GetRoomCompletions 出错时返回空列表
func (h *CompletionHandler) GetRoomCompletions(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, h.completionService.GetRoomCompletions(c.Request.Context(), c.Param("roomId")))
}
