package handlers

import (
	"context"
	"errors"
	"net/http"

	"flow-vce/internal/application"
	"flow-vce/internal/domain/models"
	"flow-vce/internal/domain/services"
	"flow-vce/internal/infrastructure/claude"
	"flow-vce/internal/infrastructure/github"
	"flow-vce/internal/infrastructure/walrus"
	"flow-vce/pkg/filetree"
	"flow-vce/pkg/logger"
	"flow-vce/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestID 返回中间件写入的请求 ID
func requestID(c *gin.Context) string {
	return c.GetString("RequestID")
}

// badRequest 返回 400，details 可为空
func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// respondError 将服务层错误映射为 HTTP 状态码和 JSON 错误体
func respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	_ = c.Error(err)

	fields := []zap.Field{
		zap.String("request_id", requestID(c)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("请求处理失败", fields...)
	} else {
		logger.Debug("请求被拒绝", fields...)
	}
	c.JSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	if paths := filetree.InvalidPaths(err); len(paths) > 0 {
		return http.StatusUnprocessableEntity, gin.H{
			"error":         "invalid paths",
			"invalid_paths": paths,
			"details":       err.Error(),
		}
	}

	var apiErr *claude.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		return status, gin.H{"error": apiErr.Error(), "details": apiErr.Body}
	}

	switch {
	case errors.Is(err, filetree.ErrNotFound),
		errors.Is(err, models.ErrProjectNotFound),
		errors.Is(err, application.ErrFileNotFound),
		github.IsNotFound(err):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, claude.ErrMissingAPIKey), errors.Is(err, github.ErrMissingToken):
		return http.StatusUnauthorized, gin.H{"error": err.Error()}
	case errors.Is(err, services.ErrInvalidReply):
		return http.StatusBadGateway, gin.H{"error": "invalid reply from generation provider", "details": err.Error()}
	case errors.Is(err, application.ErrEmptyPrompt),
		errors.Is(err, application.ErrMissingSite),
		errors.Is(err, application.ErrInvalidPrivateKey),
		errors.Is(err, types.ErrIncompleteSite),
		errors.Is(err, github.ErrInvalidRepoURL),
		errors.Is(err, walrus.ErrEmptyBundle):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, application.ErrNotConnected), errors.Is(err, application.ErrNothingToCommit):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, gin.H{"error": "request timed out"}
	}
	return http.StatusInternalServerError, gin.H{"error": "服务器内部错误", "details": err.Error()}
}
