package application

import (
	"context"
	"errors"
	"strings"

	"flow-vce/internal/app/service"
	"flow-vce/internal/domain/models"
	"flow-vce/internal/domain/services"
	"flow-vce/internal/infrastructure/walrus"
	"flow-vce/pkg/logger"
	"flow-vce/pkg/types"

	"go.uber.org/zap"
)

var (
	// ErrEmptyPrompt 提示词为空
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrInvalidPrivateKey 部署私钥格式错误
	ErrInvalidPrivateKey = errors.New("invalid private key: expected 64 hex characters")
	// ErrMissingSite 请求中没有站点且项目也没有生成过站点
	ErrMissingSite = errors.New("site is required")
)

// SiteService 站点生成、精修和部署的应用服务
type SiteService struct {
	ai       *service.AIService
	deployer *walrus.Deployer
	projects *ProjectService
	log      *zap.Logger
}

// NewSiteService 创建站点应用服务实例
func NewSiteService(ai *service.AIService, deployer *walrus.Deployer, projects *ProjectService) *SiteService {
	return &SiteService{
		ai:       ai,
		deployer: deployer,
		projects: projects,
		log:      logger.Named("site"),
	}
}

// Generate 根据提示词生成站点，并为结果创建项目
func (s *SiteService) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	estimate := services.EstimateGenerationTime(prompt)
	s.log.Info("开始生成站点", zap.Int("prompt_length", len(prompt)), zap.Duration("estimate", estimate))

	site, sessionID, err := s.ai.GenerateSite(ctx, req.APIKey, prompt)
	if err != nil {
		s.log.Error("生成站点失败", zap.Error(err))
		return nil, err
	}

	siteName := services.GenerateSiteName(prompt)
	project, err := s.projects.Create(siteName, site.Metadata.Description)
	if err != nil {
		return nil, err
	}
	if err := s.projects.ImportSite(project.ID, site); err != nil {
		return nil, err
	}

	return &models.GenerateResponse{
		Site:          site,
		SessionID:     sessionID,
		ProjectID:     project.ID,
		SiteName:      siteName,
		EstimatedTime: int(estimate.Milliseconds()),
	}, nil
}

// Refine 按修改要求精修站点，关联项目时把文件树一并提供给模型
func (s *SiteService) Refine(ctx context.Context, req models.RefineRequest) (*models.GenerateResponse, error) {
	request := strings.TrimSpace(req.RefinementPrompt)
	if request == "" {
		return nil, ErrEmptyPrompt
	}

	current := req.CurrentSite
	var tree string
	if req.ProjectID != "" {
		project, err := s.projects.Get(req.ProjectID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			current = project.Site
		}
		if tree, err = s.projects.TreeText(req.ProjectID, true, false); err != nil {
			return nil, err
		}
	}
	if current == nil {
		return nil, ErrMissingSite
	}

	site, sessionID, err := s.ai.RefineSite(ctx, req.APIKey, req.SessionID, current, request, tree)
	if err != nil {
		s.log.Error("精修站点失败", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil, err
	}

	resp := &models.GenerateResponse{
		Site:      site,
		SessionID: sessionID,
		ProjectID: req.ProjectID,
		SiteName:  services.GenerateSiteName(site.Metadata.Title),
	}
	if req.ProjectID != "" {
		if err := s.projects.ImportSite(req.ProjectID, site); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Preview 返回内联了样式和脚本的预览文档
func (s *SiteService) Preview(site *types.GeneratedSite) (string, error) {
	if site == nil {
		return "", ErrMissingSite
	}
	if err := site.Validate(); err != nil {
		return "", err
	}
	return services.ComposeDocument(site), nil
}

// Download 返回单文件下载的文件名和内容
func (s *SiteService) Download(site *types.GeneratedSite) (string, []byte, error) {
	doc, err := s.Preview(site)
	if err != nil {
		return "", nil, err
	}
	return services.DownloadFileName(site.Metadata.Title), []byte(doc), nil
}

// Deploy 部署站点，站点可来自请求或项目
func (s *SiteService) Deploy(ctx context.Context, req models.DeployRequest) (*types.Deployment, error) {
	if !services.ValidatePrivateKey(req.PrivateKey) {
		return nil, ErrInvalidPrivateKey
	}

	site := req.Site
	if site == nil && req.ProjectID != "" {
		project, err := s.projects.Get(req.ProjectID)
		if err != nil {
			return nil, err
		}
		site = project.Site
	}
	if site == nil {
		return nil, ErrMissingSite
	}

	files, err := services.BundleFiles(site)
	if err != nil {
		return nil, err
	}

	siteName := req.SiteName
	if siteName == "" {
		siteName = services.GenerateSiteName(site.Metadata.Title)
	}

	deployment, err := s.deployer.Deploy(ctx, files, siteName)
	if err != nil {
		s.log.Error("部署失败", zap.String("site", siteName), zap.Error(err))
		return nil, err
	}

	if req.ProjectID != "" {
		if err := s.projects.AddDeployment(req.ProjectID, *deployment); err != nil {
			return nil, err
		}
	}
	s.log.Info("部署完成",
		zap.String("site", siteName),
		zap.String("object_id", deployment.ObjectID),
		zap.String("url", deployment.URL))
	return deployment, nil
}

// DeploymentStatus 查询部署状态
func (s *SiteService) DeploymentStatus(ctx context.Context, objectID string) (*types.DeploymentStatus, error) {
	return s.deployer.Status(ctx, objectID)
}
