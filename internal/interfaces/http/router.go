package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"flow-vce/internal/interfaces/http/handlers"
	"flow-vce/pkg/config"
	"flow-vce/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Handlers 路由使用的处理器
type Handlers struct {
	Site    *handlers.SiteHandler
	Project *handlers.ProjectHandler
	Repo    *handlers.RepoHandler
	File    *handlers.FileHandler
}

// NewRouter 创建 Gin 引擎并注册全部路由
func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	gin.SetMode(cfg.GetServerMode())

	router := gin.New()
	router.MaxMultipartMemory = cfg.GetMaxUploadSize()
	router.Use(Recovery(), RequestID(), AccessLog(), cors.New(corsConfig(cfg)))

	router.GET("/healthz", healthz)

	api := router.Group("/api")
	{
		api.POST("/generate", h.Site.HandleGenerate)
		api.POST("/refine", h.Site.HandleRefine)
		api.POST("/preview", h.Site.HandlePreview)
		api.POST("/download", h.Site.HandleDownload)
		api.POST("/deploy", h.Site.HandleDeploy)
		api.GET("/deployments/:objectId", h.Site.HandleDeploymentStatus)

		api.POST("/tree", h.File.HandleTree)
		api.POST("/combine-code", h.File.HandleCombineCode)
	}

	projects := api.Group("/projects")
	{
		projects.GET("", h.Project.HandleList)
		projects.POST("", h.Project.HandleCreate)
		projects.GET("/:id", h.Project.HandleGet)
		projects.DELETE("/:id", h.Project.HandleDelete)

		projects.GET("/:id/tree", h.Project.HandleTree)
		projects.POST("/:id/files", h.Project.HandlePutFiles)
		projects.GET("/:id/files/*path", h.Project.HandleGetFile)
		projects.PUT("/:id/files/*path", h.Project.HandlePutFile)
		projects.DELETE("/:id/files/*path", h.Project.HandleDeleteNode)
		projects.POST("/:id/rename", h.Project.HandleRename)
		projects.POST("/:id/move", h.Project.HandleMove)
		projects.POST("/:id/site", h.Project.HandleImportSite)
		projects.POST("/:id/import", h.Project.HandleImportZip)
		projects.GET("/:id/export", h.Project.HandleExport)
		projects.GET("/:id/changes", h.Project.HandleDirty)

		projects.POST("/:id/repo", h.Repo.HandleConnect)
		projects.POST("/:id/pull", h.Repo.HandlePull)
		projects.POST("/:id/commit", h.Repo.HandleCommit)
		projects.POST("/:id/pages", h.Repo.HandlePublishPages)
	}

	gh := api.Group("/github")
	{
		gh.GET("/user", h.Repo.HandleUser)
		gh.GET("/repos", h.Repo.HandleListRepos)
		gh.POST("/repos", h.Repo.HandleCreateRepo)
		gh.DELETE("/repos/:owner/:repo", h.Repo.HandleDeleteRepo)
		gh.GET("/repos/:owner/:repo/tree", h.Repo.HandleRepoTree)
		gh.GET("/repos/:owner/:repo/files/*path", h.Repo.HandleGetFile)
		gh.GET("/repos/:owner/:repo/branches", h.Repo.HandleListBranches)
		gh.POST("/repos/:owner/:repo/branches", h.Repo.HandleCreateBranch)
		gh.GET("/repos/:owner/:repo/commits", h.Repo.HandleListCommits)
		gh.GET("/repos/:owner/:repo/commits/:sha", h.Repo.HandleCommitChanges)
		gh.GET("/repos/:owner/:repo/pulls", h.Repo.HandleListPulls)
		gh.POST("/repos/:owner/:repo/pulls", h.Repo.HandleCreatePull)
	}

	return router
}

// corsConfig 未配置来源时允许所有来源
func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		c.AllowOrigins = origins
	} else {
		c.AllowAllOrigins = true
	}
	c.AddAllowHeaders("Authorization", "X-API-Key", "X-GitHub-Token", RequestIDHeader)
	c.AddExposeHeaders(RequestIDHeader, "Content-Disposition")
	return c
}

func healthz(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// Serve 启动 HTTP 服务，ctx 取消时优雅关闭
func Serve(ctx context.Context, addr string, handler stdhttp.Handler) error {
	server := &stdhttp.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("启动服务", zap.String("addr", addr))
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("正在关闭服务", zap.String("addr", addr))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
