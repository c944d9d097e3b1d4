package events

import (
	"context"
	"time"

	rediscommon "standup-formstack/common/redis"

	"go.uber.org/zap"
)

// 事件类型
const (
	TypeSetup    = "room.setup"
	TypeRemove   = "room.remove"
	TypeReport   = "report.posted"
	TypeReminder = "reminder.posted"
)

// Event 房间活动记录
type Event struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	FormID    string    `json:"form_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Entries   int       `json:"entries"`
	Scheduled bool      `json:"scheduled"`
	At        time.Time `json:"at"`
}

// Publisher 发布活动事件；发布失败不影响命令本身
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop 不记录事件
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// StreamPublisher 写入 Redis Streams
type StreamPublisher struct {
	client *rediscommon.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

func NewStreamPublisher(client *rediscommon.Client, stream string, maxLen int64, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

func (p *StreamPublisher) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, e)
	if err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("stream", p.stream),
			zap.String("type", e.Type),
			zap.String("room_id", e.RoomID),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("Event published", zap.String("stream", p.stream), zap.String("id", id), zap.String("type", e.Type))
}
