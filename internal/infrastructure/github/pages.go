package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const pagesPreviewAccept = "application/vnd.github.switcheroo-preview+json"

type pagesSource struct {
	Branch string `json:"branch"`
	Path   string `json:"path"`
}

type enablePagesRequest struct {
	Source pagesSource `json:"source"`
}

// PagesURL 返回仓库对应的 GitHub Pages 地址
func PagesURL(owner, repo string) string {
	owner = strings.ToLower(owner)
	if strings.EqualFold(repo, owner+".github.io") {
		return fmt.Sprintf("https://%s.github.io", owner)
	}
	return fmt.Sprintf("https://%s.github.io/%s", owner, repo)
}

// PublishPages 将文件提交到 Pages 分支并启用 GitHub Pages
func (c *Client) PublishPages(ctx context.Context, owner, repo, message string, files []FileChange) (*PagesResult, error) {
	if err := c.ensureBranch(ctx, owner, repo, c.pagesBranch); err != nil {
		return nil, err
	}

	sha, err := c.CommitFiles(ctx, owner, repo, c.pagesBranch, message, files)
	if err != nil {
		return nil, err
	}

	if err := c.enablePages(ctx, owner, repo); err != nil {
		return nil, err
	}

	// 已启用时请求重新构建，失败不影响发布结果
	if _, _, err := c.api.Repositories.RequestPageBuild(ctx, owner, repo); err != nil {
		c.log.Warn("请求 Pages 构建失败", zap.String("repo", owner+"/"+repo), zap.Error(err))
	}

	url := PagesURL(owner, repo)
	c.log.Info("发布到 GitHub Pages", zap.String("repo", owner+"/"+repo), zap.String("url", url))
	return &PagesResult{URL: url, Branch: c.pagesBranch, CommitSHA: sha}, nil
}

// enablePages 启用 Pages，已启用时直接返回
func (c *Client) enablePages(ctx context.Context, owner, repo string) error {
	_, resp, err := c.api.Repositories.GetPagesInfo(ctx, owner, repo)
	if err == nil {
		return nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return wrap(err, resp, "get pages info %s/%s", owner, repo)
	}

	req, err := c.api.NewRequest("POST", fmt.Sprintf("repos/%s/%s/pages", owner, repo), &enablePagesRequest{
		Source: pagesSource{Branch: c.pagesBranch, Path: "/"},
	})
	if err != nil {
		return errors.Wrap(err, "build enable pages request")
	}
	req.Header.Set("Accept", pagesPreviewAccept)

	resp, err = c.api.Do(ctx, req, nil)
	if err != nil {
		// 并发发布时可能已被启用
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil
		}
		return wrap(err, resp, "enable pages %s/%s", owner, repo)
	}
	return nil
}
