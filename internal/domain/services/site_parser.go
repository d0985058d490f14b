package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"flow-vce/pkg/types"
)

// ErrInvalidReply 模型回复不是合法的站点 JSON
var ErrInvalidReply = errors.New("invalid response format from Claude")

// ParseSiteReply 解析模型回复为站点结构，允许回复被 ```json 代码块包裹
func ParseSiteReply(text string) (*types.GeneratedSite, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, ErrInvalidReply
	}

	var site types.GeneratedSite
	if err := json.Unmarshal([]byte(body), &site); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReply, err)
	}
	if site.Assets == nil {
		site.Assets = map[string]string{}
	}
	return &site, nil
}

// extractJSON 去掉代码块标记和前后说明文字，返回最外层的 JSON 对象
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:] // 语言标记
		}
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}
