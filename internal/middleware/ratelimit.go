package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/repository"
	"task-duel/pkg/apierrors"
)

// RateLimit 返回一个 Gin 中间件，按客户端 IP 做固定窗口限流。
// 计数保存在 StateRepository (Redis) 中。
func RateLimit(state repository.StateRepository, maxRequests int, window time.Duration) gin.HandlerFunc {
	if state == nil {
		panic("StateRepository cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		key := c.ClientIP()
		exceeded, err := state.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).WithField("client_ip", key).Error("RateLimit: Redis check failed")
			abortJSON(c, http.StatusInternalServerError, apierrors.MsgInternalError, GetLang(c))
			return
		}
		if exceeded {
			abortJSON(c, http.StatusTooManyRequests, apierrors.MsgRateLimited, GetLang(c))
			return
		}
		c.Next()
	}
}
