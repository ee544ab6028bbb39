package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"task-duel/internal/middleware"
	"task-duel/internal/repository/mocks"
	"task-duel/pkg/translator"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
	translator.InitTranslator(translator.Config{})
}

func signToken(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Language())
	r.GET("/me", middleware.Auth(secret), func(c *gin.Context) {
		id, _ := middleware.GetUserID(c)
		c.String(http.StatusOK, id)
	})
	return r
}

func TestAuth(t *testing.T) {
	valid := signToken(t, jwt.MapClaims{"user_id": "U1", "exp": time.Now().Add(time.Hour).Unix()}, secret)
	expired := signToken(t, jwt.MapClaims{"user_id": "U1", "exp": time.Now().Add(-time.Hour).Unix()}, secret)
	wrongKey := signToken(t, jwt.MapClaims{"user_id": "U1", "exp": time.Now().Add(time.Hour).Unix()}, "other")
	numericID := signToken(t, jwt.MapClaims{"user_id": 5, "exp": time.Now().Add(time.Hour).Unix()}, secret)

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "bearer header", header: "Bearer " + valid, status: http.StatusOK, body: "U1"},
		{name: "query token", query: "?token=" + valid, status: http.StatusOK, body: "U1"},
		{name: "missing", status: http.StatusUnauthorized, body: `{"error":"Authentication required."}`},
		{name: "malformed header", header: "Token " + valid, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + wrongKey, status: http.StatusUnauthorized},
		{name: "numeric user id", header: "Bearer " + numericID, status: http.StatusUnauthorized},
	}
	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				if tt.status == http.StatusOK {
					assert.Equal(t, tt.body, w.Body.String())
				} else {
					assert.JSONEq(t, tt.body, w.Body.String())
				}
			}
		})
	}
}

func TestAuth_LocalizedError(t *testing.T) {
	r := newAuthRouter()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Accept-Language", "zh")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"需要登录。"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	state := mocks.NewStateRepository(t)
	r := gin.New()
	r.Use(middleware.Language(), middleware.RateLimit(state, 2, time.Second))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	state.On("CheckRateLimit", mock.Anything, "192.0.2.1", 2, time.Second).Return(false, nil).Once()
	state.On("CheckRateLimit", mock.Anything, "192.0.2.1", 2, time.Second).Return(true, nil).Once()
	state.On("CheckRateLimit", mock.Anything, "192.0.2.1", 2, time.Second).Return(false, errors.New("redis down")).Once()

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
	assert.Equal(t, http.StatusInternalServerError, do())
}
