package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"flow-vce/internal/domain/models"
	"flow-vce/pkg/config"
	"flow-vce/pkg/filetree"
	"flow-vce/pkg/logger"

	"go.uber.org/zap"
)

// FileProcessor 文件处理服务
type FileProcessor struct {
	config *config.Config
	log    *zap.Logger
}

// NewFileProcessor 创建文件处理服务实例
func NewFileProcessor(cfg *config.Config) *FileProcessor {
	return &FileProcessor{
		config: cfg,
		log:    logger.Named("file_processor"),
	}
}

// ProcessZipFile 读取ZIP中的文本文件，单一顶层目录会被去掉
func (fp *FileProcessor) ProcessZipFile(file io.ReaderAt, size int64) (*models.ImportResult, error) {
	reader, err := zip.NewReader(file, size)
	if err != nil {
		return nil, fmt.Errorf("无法读取ZIP文件: %w", err)
	}

	result := &models.ImportResult{}
	for _, zipEntry := range reader.File {
		if zipEntry.FileInfo().IsDir() {
			continue
		}

		filePath := filepath.ToSlash(zipEntry.Name)
		if fp.config.IsExcluded(filePath, zipEntry.UncompressedSize64) {
			fp.log.Debug("排除 (规则)", zap.String("path", filePath))
			result.Skipped = append(result.Skipped, filePath)
			continue
		}

		if !fp.config.IsLikelyTextFile(filePath) {
			fp.log.Debug("排除 (非文本扩展名)", zap.String("path", filePath))
			result.Skipped = append(result.Skipped, filePath)
			continue
		}

		content, err := fp.readEntry(zipEntry)
		if err != nil {
			fp.log.Warn("读取文件失败", zap.String("path", filePath), zap.Error(err))
			result.Skipped = append(result.Skipped, filePath)
			continue
		}
		if content == nil {
			result.Skipped = append(result.Skipped, filePath)
			continue
		}

		result.Files = append(result.Files, models.FileContent{
			Path:    filePath,
			Content: string(content),
		})
	}

	stripCommonRoot(result.Files)
	fp.log.Info("ZIP 处理完成",
		zap.Int("files", len(result.Files)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// readEntry 读取单个条目，超限或二进制内容返回 nil
func (fp *FileProcessor) readEntry(zipEntry *zip.File) ([]byte, error) {
	rc, err := zipEntry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	maxSize := fp.config.GetMaxFileSize()
	contentBytes, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
	if err != nil {
		return nil, err
	}

	if int64(len(contentBytes)) > maxSize {
		fp.log.Debug("排除 (文件内容超限)", zap.String("path", zipEntry.Name))
		return nil, nil
	}

	contentType := http.DetectContentType(contentBytes)
	if !strings.HasPrefix(contentType, "text/") && !fp.config.IsTextContentTypeException(contentType) {
		fp.log.Debug("排除 (检测到二进制内容)",
			zap.String("path", zipEntry.Name),
			zap.String("content_type", contentType))
		return nil, nil
	}
	return contentBytes, nil
}

// stripCommonRoot 所有文件位于同一个顶层目录时去掉该目录
func stripCommonRoot(files []models.FileContent) {
	if len(files) == 0 {
		return
	}
	var root string
	for i, f := range files {
		idx := strings.Index(f.Path, filetree.Separator)
		if idx <= 0 {
			return
		}
		if i == 0 {
			root = f.Path[:idx+1]
		} else if !strings.HasPrefix(f.Path, root) {
			return
		}
	}
	for i := range files {
		files[i].Path = strings.TrimPrefix(files[i].Path, root)
	}
}

// FormatOutput 格式化输出目录结构和文件内容，文件内容按路径排序
func (fp *FileProcessor) FormatOutput(files []models.FileContent) (string, error) {
	records := make([]filetree.FileRecord, len(files))
	for i, f := range files {
		records[i] = filetree.FileRecord{Path: f.Path, Size: int64(len(f.Content))}
	}
	roots, err := filetree.Build(records)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("文件结构:\n")
	buf.WriteString(filetree.Render(filetree.SortFoldersFirst(roots), filetree.RenderOptions{FolderSuffix: "/"}))
	buf.WriteString("\n文件内容:\n")

	sorted := append([]models.FileContent(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	for _, f := range sorted {
		fmt.Fprintf(&buf, "\n=== %s ===\n", f.Path)
		buf.WriteString(f.Content)
		buf.WriteString("\n")
	}

	return buf.String(), nil
}
