package report

import (
	"strings"
)

// 行首/行尾要剥掉的装饰：空白与连字符的任意组合
const lineDecoration = " \t\r\n\f-"

// CleanText 清理提交文本并把每行渲染为 "\t- " 列表项；重复调用结果不变
// 每行去掉首尾的空白和连字符，清理后为空的行丢弃（兼容 CRLF）
func CleanText(value string) string {
	var lines []string
	for _, l := range strings.Split(value, "\n") {
		if l = strings.Trim(l, lineDecoration); l != "" {
			lines = append(lines, "\t- "+l)
		}
	}
	if len(lines) == 0 {
		return "\t- "
	}
	return strings.Join(lines, "\n")
}
