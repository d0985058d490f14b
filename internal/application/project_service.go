package application

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"flow-vce/internal/domain/models"
	"flow-vce/internal/domain/services"
	"flow-vce/pkg/filetree"
	"flow-vce/pkg/logger"
	"flow-vce/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrFileNotFound 项目中不存在该文件
var ErrFileNotFound = errors.New("file not found")

// projectEntry 每个项目一把锁，串行化对文件列表的修改
type projectEntry struct {
	mu      sync.Mutex
	project *models.Project
}

// ProjectService 项目应用服务，数据只保存在内存中
type ProjectService struct {
	mu            sync.RWMutex
	projects      map[string]*projectEntry
	fileProcessor *services.FileProcessor
	log           *zap.Logger
}

// NewProjectService 创建项目应用服务实例
func NewProjectService(fileProcessor *services.FileProcessor) *ProjectService {
	return &ProjectService{
		projects:      make(map[string]*projectEntry),
		fileProcessor: fileProcessor,
		log:           logger.Named("project"),
	}
}

// Create 创建项目
func (s *ProjectService) Create(name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("project name is required")
	}

	now := time.Now()
	p := &models.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      models.ProjectDraft,
		Files:       []*models.SourceFile{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.projects[p.ID] = &projectEntry{project: p}
	s.mu.Unlock()

	s.log.Info("创建项目", zap.String("project_id", p.ID), zap.String("name", name))
	return p.Clone(), nil
}

// List 按更新时间倒序列出项目
func (s *ProjectService) List() []models.ProjectSummary {
	s.mu.RLock()
	entries := make([]*projectEntry, 0, len(s.projects))
	for _, e := range s.projects {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]models.ProjectSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.project.Summary())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Get 返回项目副本
func (s *ProjectService) Get(id string) (*models.Project, error) {
	var out *models.Project
	err := s.view(id, func(p *models.Project) error {
		out = p.Clone()
		return nil
	})
	return out, err
}

// Delete 删除项目
func (s *ProjectService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return models.ErrProjectNotFound
	}
	delete(s.projects, id)
	s.log.Info("删除项目", zap.String("project_id", id))
	return nil
}

// GetFile 按路径返回文件副本
func (s *ProjectService) GetFile(id, path string) (*models.SourceFile, error) {
	var out *models.SourceFile
	err := s.view(id, func(p *models.Project) error {
		f := p.FileByPath(path)
		if f == nil {
			return ErrFileNotFound
		}
		out = f.Clone()
		return nil
	})
	return out, err
}

// PutFile 创建或更新单个文件
func (s *ProjectService) PutFile(id, path string, content []byte) (*models.SourceFile, error) {
	var out *models.SourceFile
	err := s.update(id, func(p *models.Project) error {
		if err := upsertFiles(p, []models.FileContent{{Path: path, Content: string(content)}}, false, false); err != nil {
			return err
		}
		out = p.FileByPath(path).Clone()
		return nil
	})
	return out, err
}

// PutFiles 批量创建或更新文件，任一路径非法时全部不生效
func (s *ProjectService) PutFiles(id string, files []models.FileContent) error {
	return s.update(id, func(p *models.Project) error {
		return upsertFiles(p, files, false, false)
	})
}

// RenameNode 重命名文件或文件夹
func (s *ProjectService) RenameNode(id, path, newName string) error {
	return s.update(id, func(p *models.Project) error {
		records, err := filetree.Rename(p.Records(), path, newName)
		if err != nil {
			return err
		}
		applyPaths(p, records)
		return nil
	})
}

// MoveNode 移动文件或文件夹到新路径
func (s *ProjectService) MoveNode(id, from, to string) error {
	return s.update(id, func(p *models.Project) error {
		records, err := filetree.Move(p.Records(), from, to)
		if err != nil {
			return err
		}
		applyPaths(p, records)
		return nil
	})
}

// DeleteNode 删除文件或整个文件夹，返回删除的文件数
func (s *ProjectService) DeleteNode(id, path string) (int, error) {
	var removed int
	err := s.update(id, func(p *models.Project) error {
		records, n, err := filetree.Delete(p.Records(), path)
		if err != nil {
			return err
		}

		keep := make(map[string]bool, len(records))
		for _, r := range records {
			keep[r.ID] = true
		}
		files := make([]*models.SourceFile, 0, len(records))
		for _, f := range p.Files {
			if keep[f.ID] {
				files = append(files, f)
			} else if f.SyncedChecksum != "" {
				p.DeletedPaths = appendUnique(p.DeletedPaths, f.Path)
			}
		}
		p.Files = files
		removed = n
		return nil
	})
	return removed, err
}

// Tree 构建项目文件树，sorted 为 true 时文件夹在前并按名称排序
func (s *ProjectService) Tree(id string, sorted bool) ([]*filetree.Node, error) {
	var roots []*filetree.Node
	err := s.view(id, func(p *models.Project) error {
		var err error
		roots, err = filetree.Build(p.Records())
		return err
	})
	if err != nil {
		return nil, err
	}
	if sorted {
		roots = filetree.SortFoldersFirst(roots)
	}
	return roots, nil
}

// TreeText 返回项目文件树的文本形式
func (s *ProjectService) TreeText(id string, sorted, showSize bool) (string, error) {
	p, err := s.Get(id)
	if err != nil {
		return "", err
	}
	roots, err := s.Tree(id, sorted)
	if err != nil {
		return "", err
	}
	return filetree.Render(roots, filetree.RenderOptions{Root: p.Name, ShowSize: showSize, FolderSuffix: "/"}), nil
}

// ImportSite 将生成的站点拆分为文件写入项目
func (s *ProjectService) ImportSite(id string, site *types.GeneratedSite) error {
	bundle, err := services.BundleFiles(site)
	if err != nil {
		return err
	}

	files := make([]models.FileContent, 0, len(bundle))
	for _, name := range sortedKeys(bundle) {
		files = append(files, models.FileContent{Path: name, Content: string(bundle[name])})
	}

	return s.update(id, func(p *models.Project) error {
		if err := upsertFiles(p, files, true, false); err != nil {
			return err
		}
		copied := *site
		p.Site = &copied
		if p.Status == models.ProjectDraft {
			p.Status = models.ProjectGenerated
		}
		return nil
	})
}

// ImportZip 导入ZIP中的文本文件
func (s *ProjectService) ImportZip(id string, r io.ReaderAt, size int64) (*models.ImportResult, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	result, err := s.fileProcessor.ProcessZipFile(r, size)
	if err != nil {
		return nil, err
	}
	if err := s.update(id, func(p *models.Project) error {
		return upsertFiles(p, result.Files, false, false)
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// Export 导出目录结构和全部文件内容
func (s *ProjectService) Export(id string) (string, error) {
	p, err := s.Get(id)
	if err != nil {
		return "", err
	}
	files := make([]models.FileContent, 0, len(p.Files))
	for _, f := range p.Files {
		files = append(files, models.FileContent{Path: f.Path, Content: f.Content})
	}
	return s.fileProcessor.FormatOutput(files)
}

// DirtyFiles 返回自上次同步后修改过的文件和待删除的路径
func (s *ProjectService) DirtyFiles(id string) ([]*models.SourceFile, []string, error) {
	var (
		dirty   []*models.SourceFile
		deleted []string
	)
	err := s.view(id, func(p *models.Project) error {
		for _, f := range p.Files {
			if f.Dirty() {
				dirty = append(dirty, f.Clone())
			}
		}
		deleted = append(deleted, p.DeletedPaths...)
		return nil
	})
	return dirty, deleted, err
}

// MarkSynced 标记文件已与仓库同步，并清除已提交的删除
func (s *ProjectService) MarkSynced(id string, checksums map[string]string, deleted []string) error {
	return s.update(id, func(p *models.Project) error {
		for _, f := range p.Files {
			// 提交期间内容可能又被修改，只有校验和一致才算同步
			if sum, ok := checksums[f.Path]; ok && sum == f.Checksum {
				f.MarkSynced()
			}
		}
		p.DeletedPaths = removeAll(p.DeletedPaths, deleted)
		return nil
	})
}

// SyncFromRepo 写入从仓库拉取的文件并标记为已同步
func (s *ProjectService) SyncFromRepo(id string, files []models.FileContent) error {
	return s.update(id, func(p *models.Project) error {
		return upsertFiles(p, files, false, true)
	})
}

// SetRepository 关联仓库
func (s *ProjectService) SetRepository(id string, link *models.RepositoryLink) error {
	return s.update(id, func(p *models.Project) error {
		p.Repository = link
		return nil
	})
}

// AddDeployment 记录一次部署
func (s *ProjectService) AddDeployment(id string, deployment types.Deployment) error {
	return s.update(id, func(p *models.Project) error {
		p.Deployments = append(p.Deployments, deployment)
		p.Status = models.ProjectDeployed
		return nil
	})
}

// SetPagesURL 记录 GitHub Pages 地址
func (s *ProjectService) SetPagesURL(id, url string) error {
	return s.update(id, func(p *models.Project) error {
		p.PagesURL = url
		p.Status = models.ProjectDeployed
		return nil
	})
}

func (s *ProjectService) entry(id string) (*projectEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.projects[id]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	return e, nil
}

// view 在项目锁内只读访问
func (s *ProjectService) view(id string, fn func(p *models.Project) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.project)
}

// update 在项目锁内修改副本，成功后替换原项目
func (s *ProjectService) update(id string, fn func(p *models.Project) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.project.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now()
	e.project = next
	return nil
}

// upsertFiles 按路径创建或更新文件，先用候选列表构建文件树校验
func upsertFiles(p *models.Project, files []models.FileContent, generated, synced bool) error {
	index := make(map[string]int, len(p.Files))
	for i, f := range p.Files {
		index[f.Path] = i
	}

	next := append([]*models.SourceFile(nil), p.Files...)
	for _, fc := range files {
		content, err := decodeContent(fc)
		if err != nil {
			return err
		}

		if i, ok := index[fc.Path]; ok {
			f := next[i].Clone()
			f.SetContent(content)
			f.Generated = f.Generated || generated
			if synced {
				f.MarkSynced()
			}
			next[i] = f
			continue
		}

		f := models.NewSourceFile(fc.Path, content, services.DetectLanguage(fc.Path, content))
		f.Generated = generated
		if synced {
			f.MarkSynced()
		}
		index[fc.Path] = len(next)
		next = append(next, f)
	}

	records := make([]filetree.FileRecord, len(next))
	for i, f := range next {
		records[i] = f.Record()
	}
	if _, err := filetree.Build(records); err != nil {
		return err
	}

	p.Files = next
	for _, fc := range files {
		p.DeletedPaths = removeAll(p.DeletedPaths, []string{fc.Path})
	}
	return nil
}

// applyPaths 根据改名后的记录更新文件路径，记录顺序与文件顺序一致
func applyPaths(p *models.Project, records []filetree.FileRecord) {
	for i, rec := range records {
		f := p.Files[i]
		if f.ID != rec.ID || f.Path == rec.Path {
			continue
		}
		if f.SyncedChecksum != "" {
			p.DeletedPaths = appendUnique(p.DeletedPaths, f.Path)
			f.SyncedChecksum = ""
		}
		f.Path = rec.Path
		f.UpdatedAt = time.Now()
	}
	for _, f := range p.Files {
		p.DeletedPaths = removeAll(p.DeletedPaths, []string{f.Path})
	}
}

func decodeContent(fc models.FileContent) ([]byte, error) {
	if !fc.IsBase64 {
		return []byte(fc.Content), nil
	}
	b, err := base64.StdEncoding.DecodeString(fc.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fc.Path, err)
	}
	return b, nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func removeAll(list, remove []string) []string {
	if len(list) == 0 || len(remove) == 0 {
		return list
	}
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := list[:0:0]
	for _, v := range list {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}
