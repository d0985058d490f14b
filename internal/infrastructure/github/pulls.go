package github

import (
	"context"

	gh "github.com/google/go-github/v18/github"
	"github.com/pkg/errors"
)

// ListPullRequests 列出拉取请求，state 为 open、closed 或 all
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, state string) ([]PullRequest, error) {
	if state == "" {
		state = "open"
	}
	prs, resp, err := c.api.PullRequests.List(ctx, owner, repo, &gh.PullRequestListOptions{
		State:       state,
		ListOptions: gh.ListOptions{PerPage: 50},
	})
	if err != nil {
		return nil, wrap(err, resp, "list pull requests %s/%s", owner, repo)
	}

	out := make([]PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, toPullRequest(pr))
	}
	return out, nil
}

// CreatePullRequest 创建拉取请求
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, req NewPullRequest) (*PullRequest, error) {
	if req.Title == "" || req.Head == "" {
		return nil, errors.New("pull request title and head are required")
	}
	pr, resp, err := c.api.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.String(req.Title),
		Head:  gh.String(req.Head),
		Base:  gh.String(c.branchOr(req.Base)),
		Body:  gh.String(req.Body),
	})
	if err != nil {
		return nil, wrap(err, resp, "create pull request %s -> %s", req.Head, req.Base)
	}
	out := toPullRequest(pr)
	return &out, nil
}

func toPullRequest(pr *gh.PullRequest) PullRequest {
	return PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		State:   pr.GetState(),
		Head:    pr.GetHead().GetRef(),
		Base:    pr.GetBase().GetRef(),
		HTMLURL: pr.GetHTMLURL(),
	}
}
