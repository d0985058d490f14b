package handlers

import (
	"net/http"
	"strings"

	"flow-vce/internal/application"
	"flow-vce/internal/domain/models"
	"flow-vce/pkg/config"
	"flow-vce/pkg/logger"
	"flow-vce/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProjectHandler 项目和文件浏览器的 HTTP 处理器
type ProjectHandler struct {
	projectService *application.ProjectService
	config         *config.Config
}

// NewProjectHandler 创建项目 HTTP 处理器实例
func NewProjectHandler(projectService *application.ProjectService, cfg *config.Config) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, config: cfg}
}

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type putFileRequest struct {
	Content  string `json:"content"`
	IsBase64 bool   `json:"is_base64"`
}

type putFilesRequest struct {
	Files []models.FileContent `json:"files" binding:"required"`
}

type renameRequest struct {
	Path    string `json:"path" binding:"required"`
	NewName string `json:"newName" binding:"required"`
}

type moveRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// filePath 取出通配路径参数，去掉开头的 /
func filePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

// HandleList 列出项目
func (h *ProjectHandler) HandleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"projects": h.projectService.List()})
}

// HandleCreate 创建项目
func (h *ProjectHandler) HandleCreate(c *gin.Context) {
	var request createProjectRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	project, err := h.projectService.Create(request.Name, request.Description)
	if err != nil {
		badRequest(c, err.Error(), nil)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// HandleGet 获取项目详情
func (h *ProjectHandler) HandleGet(c *gin.Context) {
	project, err := h.projectService.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// HandleDelete 删除项目
func (h *ProjectHandler) HandleDelete(c *gin.Context) {
	if err := h.projectService.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetFile 获取单个文件，format=raw 时直接返回内容
func (h *ProjectHandler) HandleGetFile(c *gin.Context) {
	file, err := h.projectService.GetFile(c.Param("id"), filePath(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("format") == "raw" {
		c.String(http.StatusOK, file.Content)
		return
	}
	c.JSON(http.StatusOK, file)
}

// HandlePutFile 创建或更新单个文件
func (h *ProjectHandler) HandlePutFile(c *gin.Context) {
	var request putFileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}

	id, path := c.Param("id"), filePath(c)
	if err := h.projectService.PutFiles(id, []models.FileContent{
		{Path: path, Content: request.Content, IsBase64: request.IsBase64},
	}); err != nil {
		respondError(c, err)
		return
	}
	file, err := h.projectService.GetFile(id, path)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// HandlePutFiles 批量写入文件
func (h *ProjectHandler) HandlePutFiles(c *gin.Context) {
	var request putFilesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	if err := h.projectService.PutFiles(c.Param("id"), request.Files); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": len(request.Files)})
}

// HandleDeleteNode 删除文件或文件夹
func (h *ProjectHandler) HandleDeleteNode(c *gin.Context) {
	removed, err := h.projectService.DeleteNode(c.Param("id"), filePath(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

// HandleRename 重命名文件或文件夹
func (h *ProjectHandler) HandleRename(c *gin.Context) {
	var request renameRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	if err := h.projectService.RenameNode(c.Param("id"), request.Path, request.NewName); err != nil {
		respondError(c, err)
		return
	}
	h.respondTree(c)
}

// HandleMove 移动文件或文件夹
func (h *ProjectHandler) HandleMove(c *gin.Context) {
	var request moveRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	if err := h.projectService.MoveNode(c.Param("id"), request.From, request.To); err != nil {
		respondError(c, err)
		return
	}
	h.respondTree(c)
}

// HandleTree 返回项目文件树，format=text 时返回 ASCII 目录结构
func (h *ProjectHandler) HandleTree(c *gin.Context) {
	id := c.Param("id")
	sorted := c.DefaultQuery("sorted", "false") == "true"

	if c.DefaultQuery("format", "json") == "text" {
		text, err := h.projectService.TreeText(id, sorted, c.Query("sizes") == "true")
		if err != nil {
			respondError(c, err)
			return
		}
		c.String(http.StatusOK, text)
		return
	}
	h.respondTree(c)
}

func (h *ProjectHandler) respondTree(c *gin.Context) {
	roots, err := h.projectService.Tree(c.Param("id"), c.DefaultQuery("sorted", "false") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tree": roots})
}

// HandleImportSite 将生成的站点导入项目
func (h *ProjectHandler) HandleImportSite(c *gin.Context) {
	var site types.GeneratedSite
	if err := c.ShouldBindJSON(&site); err != nil {
		badRequest(c, "无效的站点数据", err)
		return
	}
	if err := h.projectService.ImportSite(c.Param("id"), &site); err != nil {
		respondError(c, err)
		return
	}
	h.respondTree(c)
}

// HandleImportZip 导入上传的 ZIP 文件
func (h *ProjectHandler) HandleImportZip(c *gin.Context) {
	file, err := c.FormFile("codeZip")
	if err != nil {
		badRequest(c, "请上传 ZIP 文件", nil)
		return
	}
	if file.Size > h.config.GetMaxUploadSize() {
		logger.Warn("文件大小超过限制",
			zap.String("request_id", requestID(c)),
			zap.String("file_name", file.Filename),
			zap.Int64("file_size", file.Size),
			zap.Int64("max_size", h.config.GetMaxUploadSize()))
		badRequest(c, "文件大小超过限制", nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	result, err := h.projectService.ImportZip(c.Param("id"), f, file.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Info("ZIP 导入成功",
		zap.String("request_id", requestID(c)),
		zap.String("file_name", file.Filename),
		zap.Int("files_count", len(result.Files)))
	c.JSON(http.StatusOK, gin.H{"files": len(result.Files), "skipped": result.Skipped})
}

// HandleExport 导出目录结构和所有文件内容
func (h *ProjectHandler) HandleExport(c *gin.Context) {
	output, err := h.projectService.Export(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, output)
}

// HandleDirty 列出待提交的修改
func (h *ProjectHandler) HandleDirty(c *gin.Context) {
	dirty, deleted, err := h.projectService.DirtyFiles(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	paths := make([]string, 0, len(dirty))
	for _, f := range dirty {
		paths = append(paths, f.Path)
	}
	c.JSON(http.StatusOK, gin.H{"modified": paths, "deleted": deleted})
}
