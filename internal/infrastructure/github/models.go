package github

import "time"

// User 已认证的 GitHub 用户
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	HTMLURL   string `json:"htmlUrl,omitempty"`
}

// Repository 仓库摘要
type Repository struct {
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"fullName"`
	Description   string    `json:"description,omitempty"`
	Private       bool      `json:"private"`
	HTMLURL       string    `json:"htmlUrl"`
	CloneURL      string    `json:"cloneUrl,omitempty"`
	DefaultBranch string    `json:"defaultBranch"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// CreateRepoOptions 创建仓库的参数
type CreateRepoOptions struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
}

// RepoFile 仓库树中的一个文件
type RepoFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

// FileContent 单个文件的内容
type FileContent struct {
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Size    int64  `json:"size"`
	Content []byte `json:"-"`
}

// FileChange 一次提交中的文件变更，Delete 为 true 时删除该路径
type FileChange struct {
	Path    string
	Content []byte
	Delete  bool
}

// Commit 提交摘要
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	HTMLURL string    `json:"htmlUrl,omitempty"`
}

// CommitChange 提交中单个文件的改动
type CommitChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// Branch 分支信息
type Branch struct {
	Name      string `json:"name"`
	SHA       string `json:"sha"`
	Protected bool   `json:"protected"`
}

// PullRequest 拉取请求摘要
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	Head    string `json:"head"`
	Base    string `json:"base"`
	HTMLURL string `json:"htmlUrl"`
}

// NewPullRequest 创建拉取请求的参数
type NewPullRequest struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

// PagesResult GitHub Pages 发布结果
type PagesResult struct {
	URL       string `json:"url"`
	Branch    string `json:"branch"`
	CommitSHA string `json:"commitSha"`
}
