package handlers

import (
	"fmt"
	"net/http"

	"flow-vce/internal/application"
	"flow-vce/internal/domain/models"
	"flow-vce/pkg/logger"
	"flow-vce/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SiteHandler 站点生成、预览和部署的 HTTP 处理器
type SiteHandler struct {
	siteService *application.SiteService
}

// NewSiteHandler 创建站点 HTTP 处理器实例
func NewSiteHandler(siteService *application.SiteService) *SiteHandler {
	return &SiteHandler{siteService: siteService}
}

// apiKeyFrom 优先使用请求体中的密钥，其次是请求头
func apiKeyFrom(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetHeader("X-API-Key")
}

// HandleGenerate 处理站点生成请求
func (h *SiteHandler) HandleGenerate(c *gin.Context) {
	var request models.GenerateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	request.APIKey = apiKeyFrom(c, request.APIKey)

	logger.Info("处理站点生成请求",
		zap.String("request_id", requestID(c)),
		zap.Int("prompt_length", len(request.Prompt)))

	response, err := h.siteService.Generate(c.Request.Context(), request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// HandleRefine 处理站点精修请求
func (h *SiteHandler) HandleRefine(c *gin.Context) {
	var request models.RefineRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	request.APIKey = apiKeyFrom(c, request.APIKey)

	logger.Info("处理站点精修请求",
		zap.String("request_id", requestID(c)),
		zap.String("session_id", request.SessionID),
		zap.String("project_id", request.ProjectID))

	response, err := h.siteService.Refine(c.Request.Context(), request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// HandlePreview 返回可直接在 iframe 中渲染的 HTML 文档
func (h *SiteHandler) HandlePreview(c *gin.Context) {
	var site types.GeneratedSite
	if err := c.ShouldBindJSON(&site); err != nil {
		badRequest(c, "无效的站点数据", err)
		return
	}

	doc, err := h.siteService.Preview(&site)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

// HandleDownload 以附件形式返回单文件站点
func (h *SiteHandler) HandleDownload(c *gin.Context) {
	var site types.GeneratedSite
	if err := c.ShouldBindJSON(&site); err != nil {
		badRequest(c, "无效的站点数据", err)
		return
	}

	name, body, err := h.siteService.Download(&site)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

// HandleDeploy 处理部署请求
func (h *SiteHandler) HandleDeploy(c *gin.Context) {
	var request models.DeployRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}

	logger.Info("处理部署请求",
		zap.String("request_id", requestID(c)),
		zap.String("site_name", request.SiteName),
		zap.String("project_id", request.ProjectID))

	deployment, err := h.siteService.Deploy(c.Request.Context(), request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deployment)
}

// HandleDeploymentStatus 查询部署状态
func (h *SiteHandler) HandleDeploymentStatus(c *gin.Context) {
	status, err := h.siteService.DeploymentStatus(c.Request.Context(), c.Param("objectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
