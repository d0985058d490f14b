package models

import (
	"time"

	"flow-vce/pkg/types"
)

// Turn 表示对话中的一轮
type Turn struct {
	Role    string // user 或 assistant
	Content string
}

// RefinementSession 保存一次站点精修的对话历史
type RefinementSession struct {
	ID        string
	Turns     []Turn
	UpdatedAt time.Time
}

// GenerateRequest 站点生成请求
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	APIKey string `json:"apiKey"`
}

// RefineRequest 站点精修请求
type RefineRequest struct {
	CurrentSite      *types.GeneratedSite `json:"currentSite"`
	RefinementPrompt string               `json:"refinementPrompt" binding:"required"`
	APIKey           string               `json:"apiKey"`
	SessionID        string               `json:"sessionId"`
	ProjectID        string               `json:"projectId"`
}

// GenerateResponse 站点生成响应
type GenerateResponse struct {
	Site          *types.GeneratedSite `json:"site"`
	SessionID     string               `json:"sessionId,omitempty"`
	ProjectID     string               `json:"projectId,omitempty"`
	SiteName      string               `json:"siteName"`
	EstimatedTime int                  `json:"estimatedTimeMs,omitempty"`
}

// DeployRequest 站点部署请求
type DeployRequest struct {
	Site       *types.GeneratedSite `json:"site"`
	ProjectID  string               `json:"projectId"`
	SiteName   string               `json:"siteName"`
	PrivateKey string               `json:"privateKey"`
}
