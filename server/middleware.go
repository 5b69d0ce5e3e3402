package server

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/iwt-cmd/awx/clog"
)

// RequestIDHeader 请求 ID 的请求头与响应头
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDKey 请求 ID 在 context 中的键，配合 clog.WithContextField 输出到日志
var RequestIDKey = requestIDKey{}

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID 沿用合法的上游请求 ID，否则生成 UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), RequestIDKey, id))
		c.Next()
	}
}

// RequestIDFrom 读取 context 中的请求 ID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Recovery 捕获 panic，记录堆栈并返回 500
func Recovery(logger clog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "panic recovered",
			clog.Any("panic", recovered),
			clog.String("method", c.Request.Method),
			clog.String("path", c.Request.URL.Path),
			clog.String("stack", string(debug.Stack())))
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
