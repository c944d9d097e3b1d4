package service

import (
	"context"
	"errors"
	"fmt"

	"standup-formstack/internal/events"
	"standup-formstack/internal/models"
	"standup-formstack/internal/report"

	"go.uber.org/zap"
)

// RunReminder 定时提醒：提示填写表单并列出已填写的人
func (s *StandupService) RunReminder(ctx context.Context, roomID string) error {
	return s.runJob(ctx, roomID, "reminder", func(cfg *models.RoomFormConfig) error {
		s.post(ctx, roomID, fmt.Sprintf(msgReminder, cfg.FormURL))

		w, subs, err := s.fetcher.Fetch(ctx, cfg)
		if err != nil {
			return err
		}
		entries := report.TodayEntries(cfg, subs, w.Today)
		s.post(ctx, roomID, s.engine.RenderRoster(entries))
		s.emit(ctx, events.Event{Type: events.TypeReminder, RoomID: roomID, FormID: cfg.FormID, Entries: len(entries), Scheduled: true})
		return nil
	})
}

// RunReport 定时报告：没有提交时发送一条填充消息
func (s *StandupService) RunReport(ctx context.Context, roomID string) error {
	return s.runJob(ctx, roomID, "report", func(cfg *models.RoomFormConfig) error {
		w, subs, err := s.fetcher.Fetch(ctx, cfg)
		if err != nil {
			return err
		}
		entries := report.TodayEntries(cfg, subs, w.Today)
		s.post(ctx, roomID, s.engine.RenderAll(cfg, entries, w.Today, true)...)
		s.emit(ctx, events.Event{Type: events.TypeReport, RoomID: roomID, FormID: cfg.FormID, Entries: len(entries), Scheduled: true})
		return nil
	})
}

// runJob 刷新配置后执行；失败时向房间发送提示（房间已解绑时除外）
func (s *StandupService) runJob(ctx context.Context, roomID, job string, fn func(*models.RoomFormConfig) error) (err error) {
	logger := s.logger.With(zap.String("room_id", roomID), zap.String("job", job))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Scheduled job panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.post(ctx, roomID, msgStoreIssue)
			err = fmt.Errorf("%s job panicked: %v", job, r)
		}
	}()

	if !s.formstack.HasToken() {
		err = models.ErrMissingCredential
	} else {
		var cfg *models.RoomFormConfig
		if cfg, err = s.rooms.EnsureFresh(ctx, roomID); err == nil {
			err = fn(cfg)
		}
	}
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotConfigured) {
		s.post(ctx, roomID, errorMessage(err))
	}
	return err
}
