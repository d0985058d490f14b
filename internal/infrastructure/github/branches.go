package github

import (
	"context"

	gh "github.com/google/go-github/v18/github"
	"go.uber.org/zap"
)

// ListBranches 列出仓库分支
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]Branch, error) {
	opt := &gh.ListOptions{PerPage: 100}

	var out []Branch
	for page := 0; page < maxListPages; page++ {
		branches, resp, err := c.api.Repositories.ListBranches(ctx, owner, repo, opt)
		if err != nil {
			return nil, wrap(err, resp, "list branches %s/%s", owner, repo)
		}
		for _, b := range branches {
			out = append(out, Branch{
				Name:      b.GetName(),
				SHA:       b.GetCommit().GetSHA(),
				Protected: b.GetProtected(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// CreateBranch 从已有分支创建新分支
func (c *Client) CreateBranch(ctx context.Context, owner, repo, name, from string) (*Branch, error) {
	from = c.branchOr(from)
	src, resp, err := c.api.Git.GetRef(ctx, owner, repo, "heads/"+from)
	if err != nil {
		return nil, wrap(err, resp, "get ref %s", from)
	}

	ref, resp, err := c.api.Git.CreateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("refs/heads/" + name),
		Object: &gh.GitObject{SHA: src.GetObject().SHA},
	})
	if err != nil {
		return nil, wrap(err, resp, "create branch %s", name)
	}

	c.log.Info("创建分支", zap.String("repo", owner+"/"+repo), zap.String("branch", name), zap.String("from", from))
	return &Branch{Name: name, SHA: ref.GetObject().GetSHA()}, nil
}

// DeleteBranch 删除分支
func (c *Client) DeleteBranch(ctx context.Context, owner, repo, name string) error {
	resp, err := c.api.Git.DeleteRef(ctx, owner, repo, "heads/"+name)
	return wrap(err, resp, "delete branch %s", name)
}

// ensureBranch 分支不存在时从默认分支创建
func (c *Client) ensureBranch(ctx context.Context, owner, repo, name string) error {
	_, resp, err := c.api.Git.GetRef(ctx, owner, repo, "heads/"+name)
	if err == nil {
		return nil
	}
	if err = wrap(err, resp, "get ref %s", name); !IsNotFound(err) {
		return err
	}
	_, err = c.CreateBranch(ctx, owner, repo, name, c.defaultBranch)
	return err
}
