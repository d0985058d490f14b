package services

import (
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"flow-vce/pkg/filetree"
	"flow-vce/pkg/types"

	"github.com/microcosm-cc/bluemonday"
)

// 去掉站点 HTML 外层的文档结构，head 连同内容一起移除
var wrapperPattern = regexp.MustCompile(`(?is)<!doctype[^>]*>|<html(?:\s[^>]*)?>|</html\s*>|<head(?:\s[^>]*)?>.*?</head\s*>|<body(?:\s[^>]*)?>|</body\s*>`)

var (
	nonSiteNameChars = regexp.MustCompile(`[^a-z0-9-]`)
	nonFileNameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]`)
	hexKey           = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

	textPolicy = bluemonday.StrictPolicy()
)

var siteNameStopWords = map[string]bool{"the": true, "and": true, "for": true, "with": true}

// 生成耗时估算的关键词权重
var complexityFactors = map[string]time.Duration{
	"animation":   2 * time.Second,
	"3d":          3 * time.Second,
	"interactive": 2 * time.Second,
	"dashboard":   3 * time.Second,
	"ecommerce":   4 * time.Second,
}

const baseGenerationTime = 5 * time.Second

// 打包后的固定文件名
const (
	BundleIndex  = "index.html"
	BundleStyles = "styles.css"
	BundleScript = "script.js"
	BundleAssets = "assets"
)

// StripDocumentWrappers 去掉 doctype、html、head、body 标签，只保留正文
func StripDocumentWrappers(body string) string {
	return strings.TrimSpace(wrapperPattern.ReplaceAllString(body, ""))
}

// sanitizeText 去掉所有标签并转义，结果可直接放入文本或属性
func sanitizeText(s string) string {
	return html.EscapeString(html.UnescapeString(textPolicy.Sanitize(s)))
}

// ComposeDocument 生成内联 CSS 和 JS 的完整单文件页面，用于预览和下载
func ComposeDocument(site *types.GeneratedSite) string {
	return composeDocument(site,
		"<style>\n"+site.CSS+"\n</style>",
		"<script>\n"+site.JS+"\n</script>")
}

// composeLinked 生成引用外部 styles.css 和 script.js 的页面
func composeLinked(site *types.GeneratedSite) string {
	return composeDocument(site,
		`<link rel="stylesheet" href="`+BundleStyles+`">`,
		`<script src="`+BundleScript+`"></script>`)
}

func composeDocument(site *types.GeneratedSite, styleTag, scriptTag string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", sanitizeText(site.Metadata.Title))
	if site.Metadata.Description != "" {
		fmt.Fprintf(&sb, "    <meta name=\"description\" content=\"%s\">\n", sanitizeText(site.Metadata.Description))
	}
	sb.WriteString("    " + styleTag + "\n")
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(StripDocumentWrappers(site.HTML))
	sb.WriteString("\n    " + scriptTag + "\n")
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// BundleFiles 将站点拆分为可部署的文件集合
func BundleFiles(site *types.GeneratedSite) (map[string][]byte, error) {
	files := map[string][]byte{
		BundleIndex:  []byte(composeLinked(site)),
		BundleStyles: []byte(site.CSS),
		BundleScript: []byte(site.JS),
	}

	for name, content := range site.Assets {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p := strings.TrimPrefix(path.Clean("/"+name), "/")
		if !strings.HasPrefix(p, BundleAssets+"/") {
			p = path.Join(BundleAssets, p)
		}
		if err := filetree.ValidatePath(p); err != nil {
			return nil, err
		}
		files[p] = []byte(content)
	}
	return files, nil
}

// DownloadFileName 根据站点标题生成下载文件名
func DownloadFileName(title string) string {
	name := strings.Join(strings.Fields(strings.ToLower(title)), "-")
	name = nonFileNameChars.ReplaceAllString(name, "")
	if name == "" {
		name = "my-site"
	}
	return name + ".html"
}

// GenerateSiteName 从提示词生成站点名
func GenerateSiteName(prompt string) string {
	var words []string
	for _, word := range strings.Split(strings.ToLower(prompt), " ") {
		if utf8.RuneCountInString(word) > 2 && !siteNameStopWords[word] {
			words = append(words, word)
		}
		if len(words) == 3 {
			break
		}
	}

	name := nonSiteNameChars.ReplaceAllString(strings.Join(words, "-"), "")
	if name == "" {
		return "my-site"
	}
	return name
}

// EstimateGenerationTime 根据提示词复杂度估算生成耗时
func EstimateGenerationTime(prompt string) time.Duration {
	lower := strings.ToLower(prompt)
	total := baseGenerationTime
	for keyword, extra := range complexityFactors {
		if strings.Contains(lower, keyword) {
			total += extra
		}
	}
	return total
}

// ValidateClaudeAPIKey 校验 Claude API 密钥格式
func ValidateClaudeAPIKey(key string) bool {
	return strings.HasPrefix(key, "sk-ant-api") && len(key) > 20
}

// ValidatePrivateKey 校验部署私钥格式（64 位十六进制）
func ValidatePrivateKey(key string) bool {
	return hexKey.MatchString(key)
}
