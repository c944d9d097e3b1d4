package models

import "strings"

// Entry 按房间字段映射解码后的一条站会记录
type Entry struct {
	Date      string
	FirstName string
	LastName  string
	Yesterday string
	Today     string
	Blocker   string
}

// FullName 名与姓以空格连接，姓为空时只返回名
func (e Entry) FullName() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{e.FirstName, e.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
