package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
	"task-duel/internal/middleware"
	"task-duel/internal/service"
	"task-duel/pkg/apierrors"
)

// serviceErrors 把业务错误映射为状态码与消息 key
var serviceErrors = []struct {
	err    error
	status int
	msgKey string
}{
	{service.ErrInvalidInput, http.StatusBadRequest, apierrors.MsgInvalidRequest},
	{service.ErrInvalidProgress, http.StatusBadRequest, apierrors.MsgInvalidProgress},
	{service.ErrEmptyTitle, http.StatusBadRequest, apierrors.MsgEmptyTitle},
	{service.ErrEmptyName, http.StatusBadRequest, apierrors.MsgEmptyName},
	{domain.ErrBatchTooLarge, http.StatusBadRequest, apierrors.MsgBatchTooLarge},
	{service.ErrAuthenticationFailed, http.StatusUnauthorized, apierrors.MsgInvalidCredentials},
	{service.ErrInvalidToken, http.StatusUnauthorized, apierrors.MsgInvalidToken},
	{service.ErrForbidden, http.StatusForbidden, apierrors.MsgForbidden},
	{service.ErrNotRoomOwner, http.StatusForbidden, apierrors.MsgNotRoomOwner},
	{service.ErrCannotRemoveOwner, http.StatusForbidden, apierrors.MsgCannotRemoveOwner},
	{service.ErrUserNotFound, http.StatusNotFound, apierrors.MsgUserNotFound},
	{service.ErrRoomNotFound, http.StatusNotFound, apierrors.MsgRoomNotFound},
	{service.ErrTaskNotFound, http.StatusNotFound, apierrors.MsgTaskNotFound},
	{service.ErrSubtaskNotFound, http.StatusNotFound, apierrors.MsgSubtaskNotFound},
	{service.ErrCompletionNotFound, http.StatusNotFound, apierrors.MsgCompletionNotFound},
	{service.ErrEmailTaken, http.StatusConflict, apierrors.MsgEmailExists},
}

// HandleServiceError 把 Service 返回的错误写成本地化的错误响应
func HandleServiceError(c *gin.Context, err error) {
	lang := middleware.GetLang(c)
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			ErrorResponse(c, m.status, m.msgKey, lang)
			return
		}
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("Unhandled internal server error")
	ErrorResponse(c, http.StatusInternalServerError, apierrors.MsgInternalError, lang)
}

// BindError 用于请求体或参数校验失败
func BindError(c *gin.Context, err error) {
	logrus.WithError(err).WithField("path", c.FullPath()).Debug("Invalid request input")
	ErrorResponse(c, http.StatusBadRequest, apierrors.MsgInvalidRequest, middleware.GetLang(c))
}
