package service

import (
	"context"
	"errors"

	"standup-formstack/internal/models"

	"go.uber.org/zap"
)

// Bootstrap 通过 FORMSTACK_FORM_ID / FORMSTACK_CHAT_ROOM_NAME 绑定单个房间
// 同时配置了两个 cron 时一并创建定时任务
func (s *StandupService) Bootstrap(ctx context.Context) error {
	fs := s.config.Formstack
	if fs.LegacyFormID == "" || fs.LegacyRoom == "" {
		return nil
	}
	if !s.formstack.HasToken() {
		return models.ErrMissingCredential
	}

	logger := s.logger.With(zap.String("room_id", fs.LegacyRoom), zap.String("form_id", fs.LegacyFormID))
	logger.Info("Setting up form from environment")

	cfg, err := s.rooms.Resolver().Resolve(ctx, fs.LegacyRoom, fs.LegacyFormID)
	if err != nil {
		var pe *models.PersistenceError
		if cfg == nil || !errors.As(err, &pe) {
			return err
		}
		logger.Warn("Form resolved but not persisted", zap.Error(err))
	}

	if fs.LegacyReportCron == "" && fs.LegacyReminderCron == "" {
		return nil
	}
	if fs.LegacyReportCron == "" || fs.LegacyReminderCron == "" {
		logger.Warn("Both FORMSTACK_STANDUP_REPORT_CRON and FORMSTACK_REMINDER_CRON are required to schedule jobs")
		return nil
	}

	logger.Info("Setting up cron from environment",
		zap.String("report_cron", fs.LegacyReportCron),
		zap.String("reminder_cron", fs.LegacyReminderCron),
	)
	if err := s.scheduler.Schedule(fs.LegacyRoom, fs.LegacyReportCron, fs.LegacyReminderCron, cfg.Timezone); err != nil {
		return err
	}
	return s.rooms.SetCrons(ctx, fs.LegacyRoom, fs.LegacyReportCron, fs.LegacyReminderCron)
}
