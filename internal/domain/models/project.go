package models

import (
	"errors"
	"time"

	"flow-vce/pkg/filetree"
	"flow-vce/pkg/types"
)

// ErrProjectNotFound 项目不存在
var ErrProjectNotFound = errors.New("project not found")

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectGenerated ProjectStatus = "generated"
	ProjectDeployed  ProjectStatus = "deployed"
)

// RepositoryLink 项目关联的仓库
type RepositoryLink struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
	URL    string `json:"url,omitempty"`
}

// FullName 返回 owner/name
func (r *RepositoryLink) FullName() string {
	return r.Owner + "/" + r.Name
}

// Project 表示一个站点项目
type Project struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Status      ProjectStatus        `json:"status"`
	Repository  *RepositoryLink      `json:"repository,omitempty"`
	Files       []*SourceFile        `json:"files"`
	Site        *types.GeneratedSite `json:"site,omitempty"`
	Deployments []types.Deployment   `json:"deployments,omitempty"`
	PagesURL    string               `json:"pagesUrl,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`

	// 已同步到仓库但在本地删除或改名的路径，下次提交时从仓库删除
	DeletedPaths []string `json:"deletedPaths,omitempty"`
}

// Records 返回项目文件对应的文件树记录，顺序与 Files 一致
func (p *Project) Records() []filetree.FileRecord {
	out := make([]filetree.FileRecord, len(p.Files))
	for i, f := range p.Files {
		out[i] = f.Record()
	}
	return out
}

// FileByPath 按路径查找文件
func (p *Project) FileByPath(path string) *SourceFile {
	for _, f := range p.Files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// Clone 深拷贝项目，供调用方在锁外读取
func (p *Project) Clone() *Project {
	c := *p
	c.Files = make([]*SourceFile, len(p.Files))
	for i, f := range p.Files {
		c.Files[i] = f.Clone()
	}
	if p.Repository != nil {
		repo := *p.Repository
		c.Repository = &repo
	}
	if p.Site != nil {
		site := *p.Site
		c.Site = &site
	}
	c.Deployments = append([]types.Deployment(nil), p.Deployments...)
	c.DeletedPaths = append([]string(nil), p.DeletedPaths...)
	return &c
}

// Summary 返回不含文件内容的摘要
func (p *Project) Summary() ProjectSummary {
	s := ProjectSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		FileCount:   len(p.Files),
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Repository != nil {
		s.Repository = p.Repository.FullName()
	}
	return s
}

// ProjectSummary 项目列表项
type ProjectSummary struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	Repository  string        `json:"repository,omitempty"`
	FileCount   int           `json:"fileCount"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
