package github

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"flow-vce/pkg/config"
	"flow-vce/pkg/logger"

	gh "github.com/google/go-github/v18/github"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNotFound 仓库、分支或文件不存在
var ErrNotFound = errors.New("github: not found")

// ErrMissingToken 未提供访问令牌
var ErrMissingToken = errors.New("github: access token is required")

// ErrInvalidRepoURL 无法解析的仓库地址
var ErrInvalidRepoURL = errors.New("github: invalid repository url")

// ErrTreeTruncated 仓库树过大，递归列表被截断
var ErrTreeTruncated = errors.New("github: tree listing truncated")

// Client GitHub 客户端
type Client struct {
	api           *gh.Client
	defaultBranch string
	pagesBranch   string
	log           *zap.Logger
}

// NewClient 使用访问令牌创建 GitHub 客户端实例
func NewClient(ctx context.Context, cfg *config.Config, token string) (*Client, error) {
	if token == "" {
		token = cfg.GetGithubAPIKey()
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = 30 * time.Second

	api := gh.NewClient(httpClient)
	api.UserAgent = "flow-vce/1.0"
	if base := cfg.GetGithubAPIBaseURL(); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.Wrapf(err, "parse github api base url %q", base)
		}
		api.BaseURL = u
		api.UploadURL = u
	}

	return NewClientWithAPI(api, cfg), nil
}

// NewClientWithAPI 包装已有的 go-github 客户端
func NewClientWithAPI(api *gh.Client, cfg *config.Config) *Client {
	return &Client{
		api:           api,
		defaultBranch: cfg.GetGithubDefaultBranch(),
		pagesBranch:   cfg.GetGithubPagesBranch(),
		log:           logger.Named("github"),
	}
}

// DefaultBranch 返回配置的默认分支
func (c *Client) DefaultBranch() string {
	return c.defaultBranch
}

// branchOr 空分支使用默认分支
func (c *Client) branchOr(branch string) string {
	if branch == "" {
		return c.defaultBranch
	}
	return branch
}

// wrap 统一包装 go-github 错误，404 转换为 ErrNotFound
func wrap(err error, resp *gh.Response, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

// IsNotFound 判断错误是否为资源不存在
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// ParseRepoURL 解析 GitHub 仓库 URL，也接受 owner/repo 简写
func ParseRepoURL(raw string) (owner, repo string, err error) {
	raw = strings.TrimSpace(raw)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`),
		regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`),
		regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9._-]+?)(?:\.git)?$`),
	}

	for _, re := range patterns {
		matches := re.FindStringSubmatch(raw)
		if len(matches) == 3 {
			return matches[1], matches[2], nil
		}
	}

	return "", "", errors.Wrapf(ErrInvalidRepoURL, "%q", raw)
}
