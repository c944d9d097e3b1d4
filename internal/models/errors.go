package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredential 未配置 Formstack token
	ErrMissingCredential = errors.New("formstack token is not configured")
	// ErrInvalidFormID 表单 ID 不是数字
	ErrInvalidFormID = errors.New("form id is not a number")
	// ErrNotConfigured 房间未绑定表单
	ErrNotConfigured = errors.New("no form configured for room")
)

// UpstreamError Formstack 传输失败或 API 返回 error 字段
type UpstreamError struct {
	Op     string
	Status int
	Msg    string
	Err    error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "formstack %s failed", e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IncompleteFormError 表单缺少必填角色的字段
type IncompleteFormError struct {
	FormID  string
	Missing []FieldRole
}

func (e *IncompleteFormError) Error() string {
	names := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		names[i] = string(r)
	}
	return fmt.Sprintf("form %s is missing required fields: %s", e.FormID, strings.Join(names, ", "))
}

// PersistenceError KV 存储操作失败
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
