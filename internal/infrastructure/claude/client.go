package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flow-vce/pkg/config"
	"flow-vce/pkg/logger"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// ErrMissingAPIKey 未提供 API 密钥
var ErrMissingAPIKey = errors.New("claude: API key is required")

// APIError 表示 Claude API 返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Claude API error: %s", e.Status)
}

// Retryable 服务端错误和限流可以重试
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Message 对话中的一条消息
type Message struct {
	Role    string `json:"role"` // user 或 assistant
	Content string `json:"content"`
}

// MessagesRequest Messages API 请求结构
type MessagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// MessagesResponse Messages API 响应结构
type MessagesResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Client 是 Claude API 客户端
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	version    string
	maxTokens  int
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// getProxy 获取代理配置
func getProxy(cfg *config.Config) func(*http.Request) (*url.URL, error) {
	proxyURL := cfg.GetClaudeProxyURL()
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			logger.Warn("无效的代理URL配置，将使用系统代理",
				zap.String("proxy_url", proxyURL),
				zap.Error(err))
			return http.ProxyFromEnvironment
		}
		logger.Info("使用配置的Claude API代理",
			zap.String("proxy_url", proxyURL))
		return http.ProxyURL(proxy)
	}

	// 否则使用系统环境变量中的代理
	return http.ProxyFromEnvironment
}

// NewClient 创建一个新的 Claude 客户端
func NewClient(cfg *config.Config) *Client {
	transport := &http.Transport{
		Proxy: getProxy(cfg),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second, // 连接超时时间
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second, // 生成整站耗时较长
	}

	return &Client{
		apiKey:     cfg.GetClaudeAPIKey(),
		apiURL:     cfg.GetClaudeAPIEndpoint(),
		model:      cfg.GetClaudeModel(),
		version:    cfg.GetClaudeVersion(),
		maxTokens:  cfg.GetClaudeMaxTokens(),
		maxRetries: cfg.GetClaudeMaxRetries(),
		retryDelay: 2 * time.Second,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.GetClaudeTimeout(),
		},
	}
}

// Model 返回使用的模型名
func (c *Client) Model() string {
	return c.model
}

// resolveKey 调用方提供的密钥优先，其次使用配置的密钥
func (c *Client) resolveKey(apiKey string) (string, error) {
	if k := strings.TrimSpace(apiKey); k != "" {
		return k, nil
	}
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	return "", ErrMissingAPIKey
}

// SendMessage 发送对话到 Claude Messages API，返回拼接后的文本回复
func (c *Client) SendMessage(ctx context.Context, apiKey, system string, messages []Message) (string, error) {
	key, err := c.resolveKey(apiKey)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", errors.New("claude: at least one message is required")
	}

	reqJSON, err := json.Marshal(MessagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	logger.Debug("准备发送消息到 Claude API",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)),
		zap.Int("request_length", len(reqJSON)))

	text, err := retry.DoWithData(
		func() (string, error) {
			return c.send(ctx, key, reqJSON)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Claude API 请求失败, 将重试",
				zap.Error(err),
				zap.Uint("attempt", n+1),
				zap.Int("max_retries", c.maxRetries))
		}),
	)
	if err != nil {
		return "", err
	}

	logger.Debug("从 Claude 收到响应", zap.Int("response_length", len(text)))
	return text, nil
}

// send 发送单次请求
func (c *Client) send(ctx context.Context, key string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("创建请求失败: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求 Claude API 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(bodyBytes),
		}
	}

	var msgResp MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	var sb strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", retry.Unrecoverable(errors.New("Claude API 返回空响应"))
	}
	return sb.String(), nil
}

// isRetryable 4xx 错误不重试
func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
