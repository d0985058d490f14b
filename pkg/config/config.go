package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config 表示应用程序的配置
type Config struct {
	Server struct {
		Addr           string   `yaml:"addr"`
		Mode           string   `yaml:"mode"` // gin 运行模式: debug, release, test
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	FileLimits struct {
		MaxUploadSize  int64 `yaml:"max_upload_size"`
		MaxFileSize    int64 `yaml:"max_file_size"`
		ReadBufferSize int   `yaml:"read_buffer_size"`
	} `yaml:"file_limits"`

	ApiKeys struct {
		Claude string `yaml:"claude"`
		Github string `yaml:"github"`
	} `yaml:"api_keys"`

	Claude struct {
		APIEndpoint    string `yaml:"api_endpoint"`
		Model          string `yaml:"model"`
		Version        string `yaml:"version"`
		MaxTokens      int    `yaml:"max_tokens"`
		ProxyURL       string `yaml:"proxy_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
	} `yaml:"claude"`

	Github struct {
		APIBaseURL    string `yaml:"api_base_url"`
		DefaultBranch string `yaml:"default_branch"`
		PagesBranch   string `yaml:"pages_branch"`
	} `yaml:"github"`

	Walrus struct {
		Network       string `yaml:"network"` // mainnet 或 testnet
		SitesDomain   string `yaml:"sites_domain"`
		DeployDelayMs int    `yaml:"deploy_delay_ms"`
	} `yaml:"walrus"`

	Logging struct {
		Level      string `yaml:"level"`       // 日志级别: debug, info, warn, error
		OutputPath string `yaml:"output_path"` // 日志输出路径
	} `yaml:"logging"`

	ExcludedDirPrefixes []string `yaml:"excluded_dir_prefixes"`
	ExcludedExtensions  []string `yaml:"excluded_extensions"`
	TextExtensions      []string `yaml:"text_extensions"`
	TextFilenames       []string `yaml:"text_filenames"`
	TextMimeTypes       []string `yaml:"text_mime_types"`

	// 运行时缓存
	excludedExtMap map[string]struct{}
	textExtMap     map[string]struct{}
	textMimeMap    map[string]struct{}
}

// envOverrides 可以通过环境变量覆盖的配置项
type envOverrides struct {
	ClaudeAPIKey  string `env:"CLAUDE_API_KEY"`
	ClaudeModel   string `env:"CLAUDE_MODEL"`
	ClaudeProxy   string `env:"CLAUDE_PROXY_URL"`
	GithubToken   string `env:"GITHUB_TOKEN"`
	Addr          string `env:"FLOW_ADDR"`
	LogLevel      string `env:"FLOW_LOG_LEVEL"`
	WalrusNetwork string `env:"WALRUS_NETWORK"`
}

var (
	config *Config
	once   sync.Once
)

// Load 加载配置文件，只在第一次调用时生效
func Load(configPath string) error {
	var err error
	once.Do(func() {
		var data []byte
		data, err = os.ReadFile(configPath)
		if err != nil {
			return
		}
		var cfg *Config
		cfg, err = Parse(data)
		if err != nil {
			return
		}
		err = cfg.ApplyEnv(context.Background(), envconfig.OsLookuper())
		config = cfg
	})
	return err
}

// Get 返回配置实例
func Get() *Config {
	return config
}

// Parse 解析 YAML 配置内容并初始化运行时缓存
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.excludedExtMap = make(map[string]struct{})
	cfg.textExtMap = make(map[string]struct{})
	cfg.textMimeMap = make(map[string]struct{})

	for _, ext := range cfg.ExcludedExtensions {
		cfg.excludedExtMap[strings.ToLower(ext)] = struct{}{}
	}
	for _, ext := range cfg.TextExtensions {
		cfg.textExtMap[strings.ToLower(ext)] = struct{}{}
	}
	for _, mime := range cfg.TextMimeTypes {
		cfg.textMimeMap[mime] = struct{}{}
	}

	// 转换大小为字节
	cfg.FileLimits.MaxUploadSize *= 1024 * 1024 // MB to bytes
	cfg.FileLimits.MaxFileSize *= 1024 * 1024   // MB to bytes

	return cfg, nil
}

// ApplyEnv 使用环境变量覆盖配置，未设置的变量保持原值
func (c *Config) ApplyEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&c.ApiKeys.Claude, env.ClaudeAPIKey)
	override(&c.Claude.Model, env.ClaudeModel)
	override(&c.Claude.ProxyURL, env.ClaudeProxy)
	override(&c.ApiKeys.Github, env.GithubToken)
	override(&c.Server.Addr, env.Addr)
	override(&c.Logging.Level, env.LogLevel)
	override(&c.Walrus.Network, env.WalrusNetwork)
	return nil
}

// IsExcluded 检查文件是否应该被排除
func (c *Config) IsExcluded(filePath string, fileSize uint64) bool {
	if c.FileLimits.MaxFileSize > 0 && fileSize > uint64(c.FileLimits.MaxFileSize) {
		return true
	}

	normalizedPath := filepath.ToSlash(filePath)
	for _, prefix := range c.ExcludedDirPrefixes {
		if strings.HasPrefix(normalizedPath, prefix) || strings.Contains(normalizedPath, "/"+prefix) {
			return true
		}
	}

	ext := strings.ToLower(filepath.Ext(normalizedPath))
	_, excluded := c.excludedExtMap[ext]
	return excluded
}

// IsLikelyTextFile 检查文件是否可能是文本文件
func (c *Config) IsLikelyTextFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	if _, ok := c.textExtMap[ext]; ok {
		return true
	}

	// 处理无扩展名的常见文本文件
	baseName := filepath.Base(filePath)
	for _, name := range c.TextFilenames {
		if name == baseName {
			return true
		}
	}
	return false
}

// IsTextContentTypeException 检查MIME类型是否为文本类型的例外
func (c *Config) IsTextContentTypeException(contentType string) bool {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	_, isException := c.textMimeMap[contentType]
	return isException
}

// GetAddr 返回监听地址
func (c *Config) GetAddr() string {
	if c.Server.Addr == "" {
		return ":8080"
	}
	return c.Server.Addr
}

// GetServerMode 返回 gin 运行模式
func (c *Config) GetServerMode() string {
	if c.Server.Mode == "" {
		return "release"
	}
	return c.Server.Mode
}

// GetAllowedOrigins 返回允许跨域的来源，为空表示允许全部
func (c *Config) GetAllowedOrigins() []string {
	return c.Server.AllowedOrigins
}

// GetMaxUploadSize 返回最大上传大小
func (c *Config) GetMaxUploadSize() int64 {
	if c.FileLimits.MaxUploadSize <= 0 {
		return 50 * 1024 * 1024
	}
	return c.FileLimits.MaxUploadSize
}

// GetMaxFileSize 返回最大文件大小
func (c *Config) GetMaxFileSize() int64 {
	if c.FileLimits.MaxFileSize <= 0 {
		return 2 * 1024 * 1024
	}
	return c.FileLimits.MaxFileSize
}

// GetClaudeAPIKey 返回默认的 Claude API 密钥
func (c *Config) GetClaudeAPIKey() string {
	return c.ApiKeys.Claude
}

// GetClaudeAPIEndpoint 返回 Claude Messages API 地址
func (c *Config) GetClaudeAPIEndpoint() string {
	if c.Claude.APIEndpoint == "" {
		return "https://api.anthropic.com/v1/messages"
	}
	return c.Claude.APIEndpoint
}

// GetClaudeModel 返回使用的模型
func (c *Config) GetClaudeModel() string {
	if c.Claude.Model == "" {
		return "claude-3-5-sonnet-20241022"
	}
	return c.Claude.Model
}

// GetClaudeVersion 返回 anthropic-version 请求头
func (c *Config) GetClaudeVersion() string {
	if c.Claude.Version == "" {
		return "2023-06-01"
	}
	return c.Claude.Version
}

// GetClaudeMaxTokens 返回最大输出 token 数
func (c *Config) GetClaudeMaxTokens() int {
	if c.Claude.MaxTokens <= 0 {
		return 8000
	}
	return c.Claude.MaxTokens
}

// GetClaudeProxyURL 返回代理地址
func (c *Config) GetClaudeProxyURL() string {
	return c.Claude.ProxyURL
}

// GetClaudeTimeout 返回整体请求超时时间
func (c *Config) GetClaudeTimeout() time.Duration {
	if c.Claude.TimeoutSeconds <= 0 {
		return 180 * time.Second
	}
	return time.Duration(c.Claude.TimeoutSeconds) * time.Second
}

// GetClaudeMaxRetries 返回最大尝试次数
func (c *Config) GetClaudeMaxRetries() int {
	if c.Claude.MaxRetries <= 0 {
		return 3
	}
	return c.Claude.MaxRetries
}

// GetGithubAPIKey 返回 GitHub 访问令牌
func (c *Config) GetGithubAPIKey() string {
	return c.ApiKeys.Github
}

// GetGithubAPIBaseURL 返回 GitHub API 地址，为空表示使用 api.github.com
func (c *Config) GetGithubAPIBaseURL() string {
	return c.Github.APIBaseURL
}

// GetGithubDefaultBranch 返回默认分支
func (c *Config) GetGithubDefaultBranch() string {
	if c.Github.DefaultBranch == "" {
		return "main"
	}
	return c.Github.DefaultBranch
}

// GetGithubPagesBranch 返回 GitHub Pages 分支
func (c *Config) GetGithubPagesBranch() string {
	if c.Github.PagesBranch == "" {
		return "gh-pages"
	}
	return c.Github.PagesBranch
}

// GetWalrusNetwork 返回部署网络
func (c *Config) GetWalrusNetwork() string {
	if c.Walrus.Network == "" {
		return "testnet"
	}
	return c.Walrus.Network
}

// GetWalrusSitesDomain 返回站点域名
func (c *Config) GetWalrusSitesDomain() string {
	if c.Walrus.SitesDomain == "" {
		return "wal.app"
	}
	return c.Walrus.SitesDomain
}

// GetWalrusDeployDelay 返回模拟部署耗时
func (c *Config) GetWalrusDeployDelay() time.Duration {
	if c.Walrus.DeployDelayMs < 0 {
		return 0
	}
	return time.Duration(c.Walrus.DeployDelayMs) * time.Millisecond
}

// GetLogLevel 返回日志级别
func (c *Config) GetLogLevel() string {
	if c.Logging.Level == "" {
		return "info" // 默认日志级别
	}
	return c.Logging.Level
}

// GetLogOutputPath 返回日志输出路径
func (c *Config) GetLogOutputPath() string {
	if c.Logging.OutputPath == "" {
		return "./logs" // 默认日志目录
	}
	return c.Logging.OutputPath
}
