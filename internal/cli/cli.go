// Package cli 命令行入口
package cli

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// version 发布构建时通过 -ldflags 覆盖
var version = "dev"

// Options 各子命令共享的参数
type Options struct {
	// ConfigPath 配置文件路径
	ConfigPath string
}

// NewRootCmd 创建根命令，未指定子命令时启动服务
func NewRootCmd() *cobra.Command {
	return newRootCmd(afero.NewOsFs())
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	opts := &Options{}

	serveCmd := newServeCmd(opts)
	rootCmd := &cobra.Command{
		Use:          "flow-vce",
		Short:        "Flow VCE site builder backend",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config/config.yaml", "Config file")

	rootCmd.AddCommand(
		serveCmd,
		newTreeCmd(fs),
	)
	return rootCmd
}
