package handlers

import (
	"net/http"

	"flow-vce/internal/domain/services"
	"flow-vce/pkg/config"
	"flow-vce/pkg/filetree"
	"flow-vce/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileHandler 无状态的文件树和 ZIP 处理器
type FileHandler struct {
	fileProcessor *services.FileProcessor
	config        *config.Config
}

// NewFileHandler 创建 HTTP 处理器实例
func NewFileHandler(fileProcessor *services.FileProcessor, cfg *config.Config) *FileHandler {
	return &FileHandler{
		fileProcessor: fileProcessor,
		config:        cfg,
	}
}

type treeRequest struct {
	Files  []filetree.FileRecord `json:"files" binding:"required"`
	Sorted bool                  `json:"sorted"`
}

// HandleTree 根据扁平的文件列表构建文件树，format=text 时返回 ASCII 目录结构
func (h *FileHandler) HandleTree(c *gin.Context) {
	var request treeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}

	roots, err := filetree.Build(request.Files)
	if err != nil {
		respondError(c, err)
		return
	}
	if request.Sorted {
		roots = filetree.SortFoldersFirst(roots)
	}

	if c.DefaultQuery("format", "json") == "text" {
		c.String(http.StatusOK, filetree.Render(roots, filetree.RenderOptions{
			ShowSize:     c.Query("sizes") == "true",
			FolderSuffix: "/",
		}))
		return
	}
	folders, files := filetree.Count(roots)
	c.JSON(http.StatusOK, gin.H{"tree": roots, "folders": folders, "files": files})
}

// HandleCombineCode 处理文件合并请求，返回目录结构和全部文本文件内容
func (h *FileHandler) HandleCombineCode(c *gin.Context) {
	reqID := requestID(c)
	logger.Info("处理合并代码请求",
		zap.String("request_id", reqID),
		zap.String("client_ip", c.ClientIP()))

	file, err := c.FormFile("codeZip")
	if err != nil {
		logger.Warn("未上传ZIP文件",
			zap.String("request_id", reqID),
			zap.Error(err))
		badRequest(c, "请上传 ZIP 文件", nil)
		return
	}

	if file.Size > h.config.GetMaxUploadSize() {
		logger.Warn("文件大小超过限制",
			zap.String("request_id", reqID),
			zap.String("file_name", file.Filename),
			zap.Int64("file_size", file.Size),
			zap.Int64("max_size", h.config.GetMaxUploadSize()))
		badRequest(c, "文件大小超过限制", nil)
		return
	}

	// 从表单和URL查询参数中获取参数
	format := c.DefaultQuery("format", "text")
	if formatForm := c.PostForm("format"); formatForm != "" {
		format = formatForm
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	result, err := h.fileProcessor.ProcessZipFile(f, file.Size)
	if err != nil {
		logger.Error("处理ZIP文件失败",
			zap.String("request_id", reqID),
			zap.String("file_name", file.Filename),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "处理 ZIP 文件失败", "details": err.Error()})
		return
	}

	logger.Info("ZIP文件处理成功",
		zap.String("request_id", reqID),
		zap.String("file_name", file.Filename),
		zap.Int("files_count", len(result.Files)))

	if format == "json" {
		records := make([]filetree.FileRecord, len(result.Files))
		for i, fc := range result.Files {
			records[i] = filetree.FileRecord{
				Path:     fc.Path,
				Size:     int64(len(fc.Content)),
				Language: services.DetectLanguage(fc.Path, []byte(fc.Content)),
			}
		}
		roots, err := filetree.Build(records)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tree":    filetree.SortFoldersFirst(roots),
			"files":   result.Files,
			"skipped": result.Skipped,
		})
		return
	}

	output, err := h.fileProcessor.FormatOutput(result.Files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, output)
}

