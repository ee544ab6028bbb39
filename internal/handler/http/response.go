package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/middleware"
	"task-duel/pkg/apierrors"
)

func ErrorResponse(c *gin.Context, code int, msgKey, lang string) {
	c.AbortWithStatusJSON(code, apierrors.CreateError(code, msgKey, lang))
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// currentUser 取出 Auth 中间件写入的用户 ID，缺失时直接写 401
func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		logrus.WithField("path", c.FullPath()).Warn("Handler: user id not found in context, auth middleware missing?")
		ErrorResponse(c, http.StatusUnauthorized, apierrors.MsgUnauthorized, middleware.GetLang(c))
		return "", false
	}
	return userID, true
}
