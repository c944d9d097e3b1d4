package submission

import (
	"context"
	"fmt"
	"time"

	"standup-formstack/internal/models"

	"go.uber.org/zap"
)

// Client Fetcher 依赖的 Formstack 能力
type Client interface {
	GetSubmissions(ctx context.Context, apiBaseURL, minTime string) ([]models.Submission, error)
}

// Fetcher 按日期下限拉取提交记录（不缓存，每次都请求上游）
//
// 回溯窗口越小越好：上游分页按时间正序返回，提交量大时被截断的是最新的记录
type Fetcher struct {
	client       Client
	lookbackDays int
	defaultTZ    string
	now          func() time.Time
	logger       *zap.Logger
}

func NewFetcher(client Client, lookbackDays int, defaultTZ string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:       client,
		lookbackDays: lookbackDays,
		defaultTZ:    defaultTZ,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock 替换时钟（测试用）
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// Window 当前时刻在房间时区下的窗口
func (f *Fetcher) Window(cfg *models.RoomFormConfig, lookbackDays int) Window {
	return NewWindow(f.now(), LoadLocation(cfg.Timezone, f.defaultTZ), lookbackDays)
}

// Fetch 使用默认回溯天数
func (f *Fetcher) Fetch(ctx context.Context, cfg *models.RoomFormConfig) (Window, []models.Submission, error) {
	return f.FetchSince(ctx, cfg, f.lookbackDays)
}

// FetchSince 拉取 lookbackDays 天内的提交记录
func (f *Fetcher) FetchSince(ctx context.Context, cfg *models.RoomFormConfig, lookbackDays int) (Window, []models.Submission, error) {
	w := f.Window(cfg, lookbackDays)

	subs, err := f.client.GetSubmissions(ctx, cfg.APIBaseURL, w.MinTime)
	if err != nil {
		return w, nil, fmt.Errorf("fetch submissions for room %s: %w", cfg.RoomID, err)
	}

	f.logger.Debug("Fetched submissions",
		zap.String("room_id", cfg.RoomID),
		zap.String("today", w.Today),
		zap.String("min_time", w.MinTime),
		zap.Int("count", len(subs)),
	)
	return w, subs, nil
}
