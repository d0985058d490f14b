package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"flow-vce/internal/application"
	"flow-vce/internal/infrastructure/github"
	"flow-vce/pkg/filetree"

	"github.com/gin-gonic/gin"
)

// RepoHandler GitHub 仓库相关的 HTTP 处理器
type RepoHandler struct {
	repoService *application.RepoService
}

// NewRepoHandler 创建仓库 HTTP 处理器实例
func NewRepoHandler(repoService *application.RepoService) *RepoHandler {
	return &RepoHandler{repoService: repoService}
}

type connectRequest struct {
	URL    string `json:"url" binding:"required"`
	Branch string `json:"branch"`
}

type commitRequest struct {
	Message string `json:"message"`
}

type createBranchRequest struct {
	Name string `json:"name" binding:"required"`
	From string `json:"from"`
}

// githubToken 依次从请求头、查询参数和表单中读取访问令牌，为空时使用配置中的令牌
func githubToken(c *gin.Context) string {
	if token := c.GetHeader("X-GitHub-Token"); token != "" {
		return token
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	return c.PostForm("token")
}

func (h *RepoHandler) client(c *gin.Context) (*github.Client, bool) {
	client, err := h.repoService.Client(c.Request.Context(), githubToken(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return client, true
}

// HandleUser 返回当前认证用户
func (h *RepoHandler) HandleUser(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	user, err := client.CurrentUser(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// HandleListRepos 列出仓库，带 q 参数时搜索
func (h *RepoHandler) HandleListRepos(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	var (
		repos []github.Repository
		err   error
	)
	if q := c.Query("q"); q != "" {
		repos, err = client.SearchRepos(c.Request.Context(), q)
	} else {
		repos, err = client.ListRepos(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repositories": repos})
}

// HandleCreateRepo 创建仓库
func (h *RepoHandler) HandleCreateRepo(c *gin.Context) {
	var request github.CreateRepoOptions
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	client, ok := h.client(c)
	if !ok {
		return
	}
	repo, err := client.CreateRepo(c.Request.Context(), request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, repo)
}

// HandleDeleteRepo 删除仓库
func (h *RepoHandler) HandleDeleteRepo(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	if err := client.DeleteRepo(c.Request.Context(), c.Param("owner"), c.Param("repo")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRepoTree 返回仓库文件树，format=text 时返回 ASCII 目录结构
func (h *RepoHandler) HandleRepoTree(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")
	roots, err := h.repoService.Tree(c.Request.Context(), githubToken(c), owner, repo,
		c.Query("branch"), c.DefaultQuery("sorted", "true") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, filetree.Render(roots, filetree.RenderOptions{
			Root:         owner + "/" + repo,
			ShowSize:     c.Query("sizes") == "true",
			FolderSuffix: "/",
		}))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tree": roots})
}

// HandleGetFile 获取仓库中的文件内容
func (h *RepoHandler) HandleGetFile(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	file, err := client.GetFile(c.Request.Context(), c.Param("owner"), c.Param("repo"), c.Query("branch"), filePath(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"path":    file.Path,
		"sha":     file.SHA,
		"size":    file.Size,
		"content": string(file.Content),
	})
}

// HandleListBranches 列出分支
func (h *RepoHandler) HandleListBranches(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	branches, err := client.ListBranches(c.Request.Context(), c.Param("owner"), c.Param("repo"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branches": branches})
}

// HandleCreateBranch 从已有分支创建新分支
func (h *RepoHandler) HandleCreateBranch(c *gin.Context) {
	var request createBranchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	client, ok := h.client(c)
	if !ok {
		return
	}
	branch, err := client.CreateBranch(c.Request.Context(), c.Param("owner"), c.Param("repo"), request.Name, request.From)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, branch)
}

// HandleListCommits 列出最近提交
func (h *RepoHandler) HandleListCommits(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	commits, err := client.ListCommits(c.Request.Context(), c.Param("owner"), c.Param("repo"), c.Query("branch"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commits": commits})
}

// HandleCommitChanges 获取提交中的文件变更
func (h *RepoHandler) HandleCommitChanges(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	changes, err := client.GetCommitChanges(c.Request.Context(), c.Param("owner"), c.Param("repo"), c.Param("sha"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": changes})
}

// HandleListPulls 列出拉取请求
func (h *RepoHandler) HandleListPulls(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	pulls, err := client.ListPullRequests(c.Request.Context(), c.Param("owner"), c.Param("repo"), c.DefaultQuery("state", "open"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pullRequests": pulls})
}

// HandleCreatePull 创建拉取请求
func (h *RepoHandler) HandleCreatePull(c *gin.Context) {
	var request github.NewPullRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	client, ok := h.client(c)
	if !ok {
		return
	}
	pr, err := client.CreatePullRequest(c.Request.Context(), c.Param("owner"), c.Param("repo"), request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pr)
}

// HandleConnect 将项目关联到仓库
func (h *RepoHandler) HandleConnect(c *gin.Context) {
	var request connectRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "请提供 GitHub 仓库 URL", err)
		return
	}
	link, err := h.repoService.Connect(c.Request.Context(), githubToken(c), c.Param("id"), request.URL, request.Branch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// HandlePull 从关联仓库拉取文件
func (h *RepoHandler) HandlePull(c *gin.Context) {
	result, err := h.repoService.Pull(c.Request.Context(), githubToken(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleCommit 提交项目中的修改
func (h *RepoHandler) HandleCommit(c *gin.Context) {
	var request commitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequest(c, "无效的请求参数", err)
			return
		}
	}
	result, err := h.repoService.Commit(c.Request.Context(), githubToken(c), c.Param("id"), request.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandlePublishPages 发布项目站点到 GitHub Pages
func (h *RepoHandler) HandlePublishPages(c *gin.Context) {
	result, err := h.repoService.PublishPages(c.Request.Context(), githubToken(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
