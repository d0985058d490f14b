package github

import (
	"context"

	gh "github.com/google/go-github/v18/github"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ListFiles 递归列出分支上的全部文件
func (c *Client) ListFiles(ctx context.Context, owner, repo, branch string) ([]RepoFile, error) {
	branch = c.branchOr(branch)

	tree, resp, err := c.api.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, wrap(err, resp, "get tree %s/%s@%s", owner, repo, branch)
	}

	if tree.GetTruncated() {
		c.log.Warn("仓库树被截断，文件列表不完整", zap.String("repo", owner+"/"+repo), zap.String("branch", branch))
	}

	files := make([]RepoFile, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		files = append(files, RepoFile{
			Path: entry.GetPath(),
			Size: int64(entry.GetSize()),
			SHA:  entry.GetSHA(),
		})
	}

	c.log.Debug("获取仓库文件列表",
		zap.String("repo", owner+"/"+repo),
		zap.String("branch", branch),
		zap.Int("files", len(files)))
	return files, nil
}

// GetFile 获取文件内容
func (c *Client) GetFile(ctx context.Context, owner, repo, branch, path string) (*FileContent, error) {
	file, dir, resp, err := c.api.Repositories.GetContents(ctx, owner, repo, path,
		&gh.RepositoryContentGetOptions{Ref: c.branchOr(branch)})
	if err != nil {
		return nil, wrap(err, resp, "get contents %s", path)
	}
	if file == nil || dir != nil {
		return nil, errors.Errorf("%s is a directory", path)
	}

	// 超过 1MB 的文件 Contents API 不返回内容，改按 blob 读取
	if file.GetEncoding() == "none" {
		return c.GetBlob(ctx, owner, repo, file.GetSHA(), file.GetPath())
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, errors.Wrapf(err, "decode contents %s", path)
	}
	return &FileContent{
		Path:    file.GetPath(),
		SHA:     file.GetSHA(),
		Size:    int64(file.GetSize()),
		Content: []byte(content),
	}, nil
}

// GetBlob 按 blob SHA 读取文件原始内容，不受 Contents API 的大小限制
func (c *Client) GetBlob(ctx context.Context, owner, repo, sha, path string) (*FileContent, error) {
	content, resp, err := c.api.Git.GetBlobRaw(ctx, owner, repo, sha)
	if err != nil {
		return nil, wrap(err, resp, "get blob %s (%s)", path, sha)
	}
	return &FileContent{
		Path:    path,
		SHA:     sha,
		Size:    int64(len(content)),
		Content: content,
	}, nil
}

// PutFile 创建或更新单个文件，sha 为空表示新建
func (c *Client) PutFile(ctx context.Context, owner, repo, branch, path, message string, content []byte, sha string) (string, error) {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		Branch:  gh.String(c.branchOr(branch)),
	}

	var (
		res  *gh.RepositoryContentResponse
		resp *gh.Response
		err  error
	)
	if sha == "" {
		res, resp, err = c.api.Repositories.CreateFile(ctx, owner, repo, path, opts)
	} else {
		opts.SHA = gh.String(sha)
		res, resp, err = c.api.Repositories.UpdateFile(ctx, owner, repo, path, opts)
	}
	if err != nil {
		return "", wrap(err, resp, "put file %s", path)
	}
	return res.Commit.GetSHA(), nil
}

// DeleteFile 删除单个文件
func (c *Client) DeleteFile(ctx context.Context, owner, repo, branch, path, message, sha string) error {
	_, resp, err := c.api.Repositories.DeleteFile(ctx, owner, repo, path, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		SHA:     gh.String(sha),
		Branch:  gh.String(c.branchOr(branch)),
	})
	return wrap(err, resp, "delete file %s", path)
}
