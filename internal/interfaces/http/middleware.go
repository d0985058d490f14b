package http

import (
	"time"

	"flow-vce/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDKey 上下文中请求 ID 的键，处理器通过 c.GetString 读取
	RequestIDKey = "RequestID"
	// RequestIDHeader 请求 ID 响应头
	RequestIDHeader = "X-Request-ID"
)

// RequestID 为每个请求分配 ID，沿用客户端传入的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog 记录请求日志
func AccessLog() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("请求失败", fields...)
		case status >= 400:
			log.Warn("请求异常", fields...)
		default:
			log.Info("请求完成", fields...)
		}
	}
}

// Recovery 捕获 panic 并返回 500
func Recovery() gin.HandlerFunc {
	log := logger.Named("http")
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("处理请求时发生 panic",
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Any("panic", recovered),
			zap.Stack("stack"))
		c.AbortWithStatusJSON(500, gin.H{"error": "服务器内部错误"})
	})
}
