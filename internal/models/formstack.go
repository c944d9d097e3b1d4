package models

import (
	"encoding/json"
	"strings"
)

// FormField Formstack 表单字段
type FormField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// UnmarshalJSON 字段 ID 可能以数字形式返回
func (f *FormField) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Label string          `json:"label"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	f.ID = rawString(raw.ID)
	f.Label = raw.Label
	return nil
}

// Form GET /form/{id}.json 响应
type Form struct {
	URL      string      `json:"url"`
	Timezone string      `json:"timezone"`
	Fields   []FormField `json:"fields"`
	Error    string      `json:"error,omitempty"`
}

// SubmissionValue 提交记录中单个字段的值
type SubmissionValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// UnmarshalJSON value 可能是字符串、数字或对象（expand_data=false 时通常为字符串）
func (v *SubmissionValue) UnmarshalJSON(b []byte) error {
	var raw struct {
		Field json.RawMessage `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v.Field = rawString(raw.Field)
	v.Value = rawString(raw.Value)
	return nil
}

// Submission 单条提交记录
type Submission struct {
	ID        string                     `json:"id"`
	Timestamp string                     `json:"timestamp"`
	Data      map[string]SubmissionValue `json:"data"`
}

// Value 按字段 ID 取值，缺失时返回空串
func (s Submission) Value(fieldID string) string {
	if fieldID == "" {
		return ""
	}
	return s.Data[fieldID].Value
}

// SubmissionList GET /form/{id}/submission.json 响应
type SubmissionList struct {
	Total       int          `json:"total"`
	Pages       int          `json:"pages"`
	Submissions []Submission `json:"submissions"`
	Error       string       `json:"error,omitempty"`
}

// rawString 把 JSON 标量转换为字符串；null 视为空
func rawString(b json.RawMessage) string {
	if len(b) == 0 || string(b) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	return strings.Trim(string(b), `"`)
}
