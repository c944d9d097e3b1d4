package chat

import "context"

// Message 收到的一条聊天消息
type Message struct {
	RoomID string `json:"room"`
	User   string `json:"user"`
	Text   string `json:"text"`
}

// Handler 处理收到的消息
type Handler func(ctx context.Context, msg Message)

// Platform 聊天平台：接收消息并向房间发消息
type Platform interface {
	// Run 阻塞直到 ctx 取消或输入结束
	Run(ctx context.Context, handler Handler) error
	PostMessage(ctx context.Context, roomID, text string) error
}
