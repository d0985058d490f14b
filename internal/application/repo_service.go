package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"flow-vce/internal/domain/models"
	"flow-vce/internal/domain/services"
	"flow-vce/internal/infrastructure/github"
	"flow-vce/pkg/config"
	"flow-vce/pkg/filetree"
	"flow-vce/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const fetchConcurrency = 4 // 拉取文件内容的并发数

var (
	// ErrNotConnected 项目尚未关联仓库
	ErrNotConnected = errors.New("project is not connected to a repository")
	// ErrNothingToCommit 没有需要提交的修改
	ErrNothingToCommit = errors.New("nothing to commit")
)

// ClientFactory 按访问令牌创建 GitHub 客户端
type ClientFactory func(ctx context.Context, token string) (*github.Client, error)

// CommitResult 提交结果
type CommitResult struct {
	SHA     string   `json:"sha"`
	Files   []string `json:"files"`
	Deleted []string `json:"deleted,omitempty"`
}

// PullResult 拉取结果
type PullResult struct {
	Files   int      `json:"files"`
	Skipped []string `json:"skipped,omitempty"`
}

// RepoService 项目与 GitHub 仓库同步的应用服务
type RepoService struct {
	newClient   ClientFactory
	projects    *ProjectService
	maxFileSize int64
	log         *zap.Logger
}

// NewRepoService 创建仓库应用服务实例
func NewRepoService(cfg *config.Config, projects *ProjectService) *RepoService {
	factory := func(ctx context.Context, token string) (*github.Client, error) {
		return github.NewClient(ctx, cfg, token)
	}
	return NewRepoServiceWithFactory(factory, cfg.GetMaxFileSize(), projects)
}

// NewRepoServiceWithFactory 使用自定义客户端工厂创建实例
func NewRepoServiceWithFactory(factory ClientFactory, maxFileSize int64, projects *ProjectService) *RepoService {
	return &RepoService{
		newClient:   factory,
		projects:    projects,
		maxFileSize: maxFileSize,
		log:         logger.Named("repo"),
	}
}

// Client 返回令牌对应的 GitHub 客户端
func (s *RepoService) Client(ctx context.Context, token string) (*github.Client, error) {
	return s.newClient(ctx, token)
}

// Connect 将项目关联到仓库，branch 为空时使用仓库默认分支
func (s *RepoService) Connect(ctx context.Context, token, projectID, repoURL, branch string) (*models.RepositoryLink, error) {
	owner, name, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(projectID); err != nil {
		return nil, err
	}

	client, err := s.newClient(ctx, token)
	if err != nil {
		return nil, err
	}
	repo, err := client.GetRepo(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		branch = repo.DefaultBranch
	}
	if branch == "" {
		branch = client.DefaultBranch()
	}

	link := &models.RepositoryLink{Owner: repo.Owner, Name: repo.Name, Branch: branch, URL: repo.HTMLURL}
	if err := s.projects.SetRepository(projectID, link); err != nil {
		return nil, err
	}
	s.log.Info("项目关联仓库",
		zap.String("project_id", projectID),
		zap.String("repo", link.FullName()),
		zap.String("branch", branch))
	return link, nil
}

// Tree 构建仓库文件树，语言按路径推断
func (s *RepoService) Tree(ctx context.Context, token, owner, repo, branch string, sorted bool) ([]*filetree.Node, error) {
	client, err := s.newClient(ctx, token)
	if err != nil {
		return nil, err
	}
	files, err := client.ListFiles(ctx, owner, repo, branch)
	if err != nil {
		return nil, err
	}

	records := make([]filetree.FileRecord, len(files))
	for i, f := range files {
		records[i] = filetree.FileRecord{
			ID:       f.SHA,
			Path:     f.Path,
			Size:     f.Size,
			Language: services.DetectLanguage(f.Path, nil),
		}
	}
	roots, err := filetree.Build(records)
	if err != nil {
		return nil, err
	}
	if sorted {
		roots = filetree.SortFoldersFirst(roots)
	}
	return roots, nil
}

// Pull 拉取仓库文件写入项目，超过大小限制或二进制文件跳过
func (s *RepoService) Pull(ctx context.Context, token, projectID string) (*PullResult, error) {
	link, client, err := s.connected(ctx, token, projectID)
	if err != nil {
		return nil, err
	}

	files, err := client.ListFiles(ctx, link.Owner, link.Name, link.Branch)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		fetched = make(map[string][]byte, len(files))
		result  = &PullResult{}
	)
	skip := func(path string) {
		mu.Lock()
		result.Skipped = append(result.Skipped, path)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, f := range files {
		f := f
		if s.maxFileSize > 0 && f.Size > s.maxFileSize {
			skip(f.Path)
			continue
		}
		g.Go(func() error {
			content, err := client.GetBlob(gctx, link.Owner, link.Name, f.SHA, f.Path)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", f.Path, err)
			}
			if services.DetectLanguage(f.Path, content.Content) == "binary" {
				skip(f.Path)
				return nil
			}
			mu.Lock()
			fetched[f.Path] = content.Content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 按仓库树中的顺序写入，保证文件树顺序稳定
	batch := make([]models.FileContent, 0, len(fetched))
	for _, f := range files {
		if content, ok := fetched[f.Path]; ok {
			batch = append(batch, models.FileContent{Path: f.Path, Content: string(content)})
		}
	}
	if err := s.projects.SyncFromRepo(projectID, batch); err != nil {
		return nil, err
	}

	sort.Strings(result.Skipped)
	result.Files = len(batch)
	s.log.Info("从仓库拉取文件",
		zap.String("repo", link.FullName()),
		zap.Int("files", result.Files),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// Commit 提交项目中修改过的文件，并删除本地已删除的路径
func (s *RepoService) Commit(ctx context.Context, token, projectID, message string) (*CommitResult, error) {
	link, client, err := s.connected(ctx, token, projectID)
	if err != nil {
		return nil, err
	}

	dirty, deleted, err := s.projects.DirtyFiles(projectID)
	if err != nil {
		return nil, err
	}
	if len(dirty) == 0 && len(deleted) == 0 {
		return nil, ErrNothingToCommit
	}
	if message == "" {
		message = fmt.Sprintf("Update %d files from Flow VCE", len(dirty)+len(deleted))
	}

	changes := make([]github.FileChange, 0, len(dirty)+len(deleted))
	checksums := make(map[string]string, len(dirty))
	result := &CommitResult{Deleted: deleted}
	for _, f := range dirty {
		changes = append(changes, github.FileChange{Path: f.Path, Content: []byte(f.Content)})
		checksums[f.Path] = f.Checksum
		result.Files = append(result.Files, f.Path)
	}
	for _, p := range deleted {
		changes = append(changes, github.FileChange{Path: p, Delete: true})
	}

	sha, err := client.CommitFiles(ctx, link.Owner, link.Name, link.Branch, message, changes)
	if err != nil {
		s.log.Error("提交失败", zap.String("repo", link.FullName()), zap.Error(err))
		return nil, err
	}
	result.SHA = sha

	if err := s.projects.MarkSynced(projectID, checksums, deleted); err != nil {
		return nil, err
	}
	s.log.Info("提交到仓库",
		zap.String("repo", link.FullName()),
		zap.String("sha", sha),
		zap.Int("files", len(result.Files)),
		zap.Int("deleted", len(deleted)))
	return result, nil
}

// PublishPages 将项目站点发布到关联仓库的 GitHub Pages
func (s *RepoService) PublishPages(ctx context.Context, token, projectID string) (*github.PagesResult, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	if project.Site == nil {
		return nil, ErrMissingSite
	}
	link, client, err := s.connected(ctx, token, projectID)
	if err != nil {
		return nil, err
	}

	bundle, err := services.BundleFiles(project.Site)
	if err != nil {
		return nil, err
	}
	changes := make([]github.FileChange, 0, len(bundle))
	for _, path := range sortedKeys(bundle) {
		changes = append(changes, github.FileChange{Path: path, Content: bundle[path]})
	}

	message := "Publish " + project.Site.Metadata.Title
	result, err := client.PublishPages(ctx, link.Owner, link.Name, message, changes)
	if err != nil {
		return nil, err
	}
	if err := s.projects.SetPagesURL(projectID, result.URL); err != nil {
		return nil, err
	}
	return result, nil
}

// connected 返回项目关联的仓库和客户端
func (s *RepoService) connected(ctx context.Context, token, projectID string) (*models.RepositoryLink, *github.Client, error) {
	project, err := s.projects.Get(projectID)
	if err != nil {
		return nil, nil, err
	}
	if project.Repository == nil {
		return nil, nil, ErrNotConnected
	}
	client, err := s.newClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	return project.Repository, client, nil
}
