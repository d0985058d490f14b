package cli

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"flow-vce/internal/app/service"
	"flow-vce/internal/application"
	"flow-vce/internal/domain/services"
	"flow-vce/internal/infrastructure/claude"
	"flow-vce/internal/infrastructure/walrus"
	httpapi "flow-vce/internal/interfaces/http"
	"flow-vce/internal/interfaces/http/handlers"
	"flow-vce/pkg/config"
	"flow-vce/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newServeCmd 启动 HTTP 服务
func newServeCmd(opts *Options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.Load(opts.ConfigPath); err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			cfg := config.Get()

			if err := logger.Init(cfg.GetLogLevel(), cfg.GetLogOutputPath()); err != nil {
				return fmt.Errorf("初始化日志失败: %w", err)
			}
			defer logger.Sync()

			if addr == "" {
				addr = cfg.GetAddr()
			}

			handler, cleanup := buildServer(cfg)
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("服务配置",
				zap.String("addr", addr),
				zap.String("mode", cfg.GetServerMode()),
				zap.String("claude_model", cfg.GetClaudeModel()),
				zap.String("walrus_network", cfg.GetWalrusNetwork()))
			return httpapi.Serve(ctx, addr, handler)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

// buildServer 组装各层服务并返回路由，cleanup 停止后台任务
func buildServer(cfg *config.Config) (stdhttp.Handler, func()) {
	processor := services.NewFileProcessor(cfg)
	ai := service.NewAIService(claude.GetClient(cfg))

	projects := application.NewProjectService(processor)
	sites := application.NewSiteService(ai, walrus.NewDeployer(cfg), projects)
	repos := application.NewRepoService(cfg, projects)

	router := httpapi.NewRouter(cfg, httpapi.Handlers{
		Site:    handlers.NewSiteHandler(sites),
		Project: handlers.NewProjectHandler(projects, cfg),
		Repo:    handlers.NewRepoHandler(repos),
		File:    handlers.NewFileHandler(processor, cfg),
	})
	return router, ai.Close
}
