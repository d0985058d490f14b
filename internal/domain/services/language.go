package services

import (
	"path"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// DetectLanguage 根据文件名和内容识别语言，返回小写标识，无法识别时返回 text
func DetectLanguage(filePath string, content []byte) string {
	name := path.Base(filePath)
	byExt, safe := enry.GetLanguageByExtension(name)
	if safe {
		return normalizeLanguage(byExt)
	}
	if lang, ok := enry.GetLanguageByFilename(name); ok {
		return normalizeLanguage(lang)
	}
	if len(content) > 0 {
		if enry.IsBinary(content) {
			return "binary"
		}
		if lang := enry.GetLanguage(name, content); lang != "" {
			return normalizeLanguage(lang)
		}
	}
	// 扩展名有歧义且无法通过内容判断时取第一个候选
	if byExt != "" {
		return normalizeLanguage(byExt)
	}
	return "text"
}

func normalizeLanguage(lang string) string {
	return strings.ReplaceAll(strings.ToLower(lang), " ", "-")
}
