package github

import (
	"context"
	"encoding/base64"

	gh "github.com/google/go-github/v18/github"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const blobUploadConcurrency = 4

// ListCommits 列出分支上的最近提交
func (c *Client) ListCommits(ctx context.Context, owner, repo, branch string, limit int) ([]Commit, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	commits, resp, err := c.api.Repositories.ListCommits(ctx, owner, repo, &gh.CommitsListOptions{
		SHA:         c.branchOr(branch),
		ListOptions: gh.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, wrap(err, resp, "list commits %s/%s", owner, repo)
	}

	out := make([]Commit, 0, len(commits))
	for _, rc := range commits {
		out = append(out, Commit{
			SHA:     rc.GetSHA(),
			Message: rc.GetCommit().GetMessage(),
			Author:  rc.GetCommit().GetAuthor().GetName(),
			Date:    rc.GetCommit().GetAuthor().GetDate(),
			HTMLURL: rc.GetHTMLURL(),
		})
	}
	return out, nil
}

// GetCommitChanges 获取提交中变更的文件
func (c *Client) GetCommitChanges(ctx context.Context, owner, repo, sha string) ([]CommitChange, error) {
	rc, resp, err := c.api.Repositories.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		return nil, wrap(err, resp, "get commit %s", sha)
	}

	out := make([]CommitChange, 0, len(rc.Files))
	for _, f := range rc.Files {
		out = append(out, CommitChange{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.GetPatch(),
		})
	}
	return out, nil
}

// CommitFiles 在分支上创建包含多个文件变更的单个提交，返回新提交的 SHA
func (c *Client) CommitFiles(ctx context.Context, owner, repo, branch, message string, changes []FileChange) (string, error) {
	if len(changes) == 0 {
		return "", errors.New("nothing to commit")
	}
	branch = c.branchOr(branch)

	ref, resp, err := c.api.Git.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		return "", wrap(err, resp, "get ref %s", branch)
	}
	parentSHA := ref.GetObject().GetSHA()

	parent, resp, err := c.api.Git.GetCommit(ctx, owner, repo, parentSHA)
	if err != nil {
		return "", wrap(err, resp, "get commit %s", parentSHA)
	}

	entries, err := c.uploadBlobs(ctx, owner, repo, changes)
	if err != nil {
		return "", err
	}

	// 有删除时以完整树重建，否则在父提交的树上追加
	baseTree := parent.GetTree().GetSHA()
	if hasDeletes(changes) {
		entries, err = c.mergeTree(ctx, owner, repo, baseTree, changes, entries)
		if err != nil {
			return "", err
		}
		baseTree = ""
	}

	tree, resp, err := c.api.Git.CreateTree(ctx, owner, repo, baseTree, entries)
	if err != nil {
		return "", wrap(err, resp, "create tree")
	}

	commit, resp, err := c.api.Git.CreateCommit(ctx, owner, repo, &gh.Commit{
		Message: gh.String(message),
		Tree:    &gh.Tree{SHA: tree.SHA},
		Parents: []gh.Commit{{SHA: gh.String(parentSHA)}},
	})
	if err != nil {
		return "", wrap(err, resp, "create commit")
	}

	_, resp, err = c.api.Git.UpdateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("heads/" + branch),
		Object: &gh.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return "", wrap(err, resp, "update ref %s", branch)
	}

	c.log.Info("提交文件",
		zap.String("repo", owner+"/"+repo),
		zap.String("branch", branch),
		zap.String("sha", commit.GetSHA()),
		zap.Int("changes", len(changes)))
	return commit.GetSHA(), nil
}

// uploadBlobs 并发上传新增或修改的文件内容
func (c *Client) uploadBlobs(ctx context.Context, owner, repo string, changes []FileChange) ([]gh.TreeEntry, error) {
	shas := make([]string, len(changes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobUploadConcurrency)
	for i, change := range changes {
		if change.Delete {
			continue
		}
		i, change := i, change
		g.Go(func() error {
			blob, resp, err := c.api.Git.CreateBlob(gctx, owner, repo, &gh.Blob{
				Content:  gh.String(base64.StdEncoding.EncodeToString(change.Content)),
				Encoding: gh.String("base64"),
			})
			if err != nil {
				return wrap(err, resp, "create blob %s", change.Path)
			}
			shas[i] = blob.GetSHA()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]gh.TreeEntry, 0, len(changes))
	for i, change := range changes {
		if change.Delete {
			continue
		}
		entries = append(entries, gh.TreeEntry{
			Path: gh.String(change.Path),
			Mode: gh.String("100644"),
			Type: gh.String("blob"),
			SHA:  gh.String(shas[i]),
		})
	}
	return entries, nil
}

// mergeTree 读取父提交的完整树，去掉删除和被覆盖的路径后合并新条目，保留子模块
func (c *Client) mergeTree(ctx context.Context, owner, repo, baseTree string, changes []FileChange, updated []gh.TreeEntry) ([]gh.TreeEntry, error) {
	tree, resp, err := c.api.Git.GetTree(ctx, owner, repo, baseTree, true)
	if err != nil {
		return nil, wrap(err, resp, "get tree %s", baseTree)
	}
	// 截断的列表无法完整重建，继续会丢失文件
	if tree.GetTruncated() {
		return nil, errors.Wrapf(ErrTreeTruncated, "rebuild tree %s/%s", owner, repo)
	}

	skip := make(map[string]bool, len(changes))
	for _, change := range changes {
		skip[change.Path] = true
	}

	merged := make([]gh.TreeEntry, 0, len(tree.Entries)+len(updated))
	for _, entry := range tree.Entries {
		// 递归列表已包含全部文件，tree 条目多余；commit 条目是子模块，必须保留
		if entry.GetType() == "tree" || skip[entry.GetPath()] {
			continue
		}
		merged = append(merged, gh.TreeEntry{
			Path: entry.Path,
			Mode: entry.Mode,
			Type: entry.Type,
			SHA:  entry.SHA,
		})
	}
	return append(merged, updated...), nil
}

func hasDeletes(changes []FileChange) bool {
	for _, change := range changes {
		if change.Delete {
			return true
		}
	}
	return false
}
