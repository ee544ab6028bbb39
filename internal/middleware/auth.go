package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"task-duel/pkg/apierrors"
)

// ContextUserIDKey 是 gin.Context 中保存当前用户 ID 的键
const ContextUserIDKey = "user_id"

// ErrMissingAuthHeader 表示请求既没有 Authorization 头也没有 token 查询参数
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件，用于验证 JWT token。
// token 取自 "Authorization: Bearer <token>"，没有时取 ?token= 查询参数
// (浏览器的 EventSource 无法设置请求头)。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		lang := GetLang(c)

		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Debug("Auth middleware: Missing Authorization header")
				abortJSON(c, http.StatusUnauthorized, apierrors.MsgUnauthorized, lang)
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed token format")
				abortJSON(c, http.StatusUnauthorized, apierrors.MsgInvalidToken, lang)
			}
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx = logCtx.WithField("reason", "expired")
			}
			logCtx.Warn("Auth middleware: Invalid token")
			abortJSON(c, http.StatusUnauthorized, apierrors.MsgInvalidToken, lang)
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			logrus.Warnf("Auth middleware: 'user_id' claim missing or not a string: %v", claims["user_id"])
			abortJSON(c, http.StatusUnauthorized, apierrors.MsgInvalidToken, lang)
			return
		}

		c.Set(ContextUserIDKey, userID)
		logrus.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")
		c.Next()
	}
}

// GetUserID 返回 Auth 中间件设置的用户 ID
func GetUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func abortJSON(c *gin.Context, status int, msgKey, lang string) {
	c.AbortWithStatusJSON(status, apierrors.CreateError(status, msgKey, lang))
}

// extractToken 从请求头或查询参数中提取 token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query("token"); q != "" {
			return q, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}
