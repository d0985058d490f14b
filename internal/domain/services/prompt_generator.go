package services

import (
	"fmt"
	"strings"

	"flow-vce/pkg/types"
)

// GenerateSystemPrompt 生成站点时使用的系统提示词
const GenerateSystemPrompt = `You are an expert web developer creating modern, responsive websites for Walrus Sites (decentralized hosting on Sui blockchain).

Generate a complete, production-ready website based on the user's prompt. The website should be:
- Modern and visually stunning
- Fully responsive (mobile, tablet, desktop)
- Use modern CSS (flexbox, grid, animations)
- Include interactive JavaScript features
- Be optimized for performance
- Use semantic HTML
- Have proper meta tags and SEO

Return the response in the following JSON format:
{
  "html": "complete HTML document",
  "css": "complete CSS styles",
  "js": "complete JavaScript code",
  "assets": {},
  "metadata": {
    "title": "site title",
    "description": "site description",
    "theme": "light/dark",
    "responsive": true
  }
}

Focus on creating magical, interactive experiences with smooth animations and modern design patterns.`

// RefineSystemPrompt 精修站点时使用的系统提示词
const RefineSystemPrompt = `You are refining an existing website. The user will provide the current website code and a refinement request.

Modify the website according to the user's request while maintaining the overall structure and ensuring it remains production-ready.

Return the updated website in the same JSON format as before.`

// 项目目录结构最多保留的行数
const maxTreeLines = 50

// BuildGeneratePrompt 构建站点生成的用户消息
func BuildGeneratePrompt(prompt string) string {
	return "Create a website: " + strings.TrimSpace(prompt)
}

// BuildRefinePrompt 构建精修的用户消息，tree 为项目目录结构，可为空
func BuildRefinePrompt(site *types.GeneratedSite, request, tree string) string {
	var sb strings.Builder
	sb.WriteString("Current website:\n")
	fmt.Fprintf(&sb, "HTML: %s\nCSS: %s\nJS: %s\n", site.HTML, site.CSS, site.JS)

	if tree = strings.TrimSpace(tree); tree != "" {
		lines := strings.Split(tree, "\n")
		if len(lines) > maxTreeLines {
			lines = append(lines[:maxTreeLines], "... [truncated]")
		}
		sb.WriteString("\nProject files:\n")
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nRefinement request: %s\n\nPlease update the website according to this request.", strings.TrimSpace(request))
	return sb.String()
}
