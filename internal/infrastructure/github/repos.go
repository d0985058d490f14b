package github

import (
	"context"

	gh "github.com/google/go-github/v18/github"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxListPages = 10

// CurrentUser 返回令牌对应的用户
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	u, resp, err := c.api.Users.Get(ctx, "")
	if err != nil {
		return nil, wrap(err, resp, "get authenticated user")
	}
	return &User{
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		AvatarURL: u.GetAvatarURL(),
		HTMLURL:   u.GetHTMLURL(),
	}, nil
}

// ListRepos 列出当前用户的仓库，按更新时间倒序
func (c *Client) ListRepos(ctx context.Context) ([]Repository, error) {
	opt := &gh.RepositoryListOptions{
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var out []Repository
	for page := 0; page < maxListPages; page++ {
		repos, resp, err := c.api.Repositories.List(ctx, "", opt)
		if err != nil {
			return nil, wrap(err, resp, "list repositories")
		}
		for _, r := range repos {
			out = append(out, toRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// SearchRepos 在当前用户的仓库中搜索
func (c *Client) SearchRepos(ctx context.Context, query string) ([]Repository, error) {
	q := "user:@me"
	if query != "" {
		q = query + " " + q
	}
	result, resp, err := c.api.Search.Repositories(ctx, q, &gh.SearchOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: 50},
	})
	if err != nil {
		return nil, wrap(err, resp, "search repositories %q", query)
	}

	out := make([]Repository, 0, len(result.Repositories))
	for i := range result.Repositories {
		out = append(out, toRepository(&result.Repositories[i]))
	}
	return out, nil
}

// GetRepo 获取仓库信息
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repository, error) {
	r, resp, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, wrap(err, resp, "get repository %s/%s", owner, repo)
	}
	out := toRepository(r)
	return &out, nil
}

// CreateRepo 创建仓库并自动初始化默认分支
func (c *Client) CreateRepo(ctx context.Context, opts CreateRepoOptions) (*Repository, error) {
	if opts.Name == "" {
		return nil, errors.New("repository name is required")
	}
	r, resp, err := c.api.Repositories.Create(ctx, "", &gh.Repository{
		Name:        gh.String(opts.Name),
		Description: gh.String(opts.Description),
		Private:     gh.Bool(opts.Private),
		AutoInit:    gh.Bool(true),
	})
	if err != nil {
		return nil, wrap(err, resp, "create repository %s", opts.Name)
	}

	c.log.Info("创建仓库", zap.String("repo", r.GetFullName()))
	out := toRepository(r)
	return &out, nil
}

// DeleteRepo 删除仓库
func (c *Client) DeleteRepo(ctx context.Context, owner, repo string) error {
	resp, err := c.api.Repositories.Delete(ctx, owner, repo)
	if err != nil {
		return wrap(err, resp, "delete repository %s/%s", owner, repo)
	}
	c.log.Info("删除仓库", zap.String("owner", owner), zap.String("repo", repo))
	return nil
}

func toRepository(r *gh.Repository) Repository {
	return Repository{
		ID:            r.GetID(),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Private:       r.GetPrivate(),
		HTMLURL:       r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		DefaultBranch: r.GetDefaultBranch(),
		UpdatedAt:     r.GetUpdatedAt().Time,
	}
}
