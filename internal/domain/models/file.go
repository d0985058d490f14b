package models

import (
	"strconv"
	"time"

	"flow-vce/pkg/filetree"
	"flow-vce/pkg/types"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// FileContent alias to unified model
type FileContent = types.FileContent

// SourceFile 项目中的一个源文件
type SourceFile struct {
	ID             string    `json:"id"`
	Path           string    `json:"path"`
	Content        string    `json:"content,omitempty"`
	Language       string    `json:"language"`
	Size           int64     `json:"size"`
	Checksum       string    `json:"checksum"`
	SyncedChecksum string    `json:"syncedChecksum,omitempty"` // 最近一次与仓库同步时的校验和
	Generated      bool      `json:"generated"`                // 由站点生成导入
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewSourceFile 创建源文件并计算校验和
func NewSourceFile(path string, content []byte, language string) *SourceFile {
	return &SourceFile{
		ID:        uuid.NewString(),
		Path:      path,
		Content:   string(content),
		Language:  language,
		Size:      int64(len(content)),
		Checksum:  Checksum(content),
		UpdatedAt: time.Now(),
	}
}

// SetContent 更新内容，返回内容是否发生变化
func (f *SourceFile) SetContent(content []byte) bool {
	sum := Checksum(content)
	if sum == f.Checksum {
		return false
	}
	f.Content = string(content)
	f.Size = int64(len(content))
	f.Checksum = sum
	f.UpdatedAt = time.Now()
	return true
}

// Dirty 自上次同步后是否有修改
func (f *SourceFile) Dirty() bool {
	return f.Checksum != f.SyncedChecksum
}

// MarkSynced 标记为已同步
func (f *SourceFile) MarkSynced() {
	f.SyncedChecksum = f.Checksum
}

// Record 转换为构建文件树所需的记录
func (f *SourceFile) Record() filetree.FileRecord {
	return filetree.FileRecord{
		ID:       f.ID,
		Path:     f.Path,
		Size:     f.Size,
		Language: f.Language,
	}
}

// Clone 返回副本
func (f *SourceFile) Clone() *SourceFile {
	c := *f
	return &c
}

// Checksum 计算内容校验和
func Checksum(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

// ImportResult 导入文件的结果
type ImportResult struct {
	Files   []FileContent `json:"files"`
	Skipped []string      `json:"skipped,omitempty"`
}
