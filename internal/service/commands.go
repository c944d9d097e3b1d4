package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"standup-formstack/internal/events"
	"standup-formstack/internal/models"
	"standup-formstack/internal/report"
	"standup-formstack/internal/roomconfig"
	"standup-formstack/internal/scheduler"

	"go.uber.org/zap"
)

func (s *StandupService) dispatch(ctx context.Context, roomID string, cmd Command, logger *zap.Logger) error {
	if cmd.Kind == CmdHelp {
		s.post(ctx, roomID, s.help())
		return nil
	}
	if !s.formstack.HasToken() {
		return models.ErrMissingCredential
	}

	switch cmd.Kind {
	case CmdSetup:
		return s.setup(ctx, roomID, cmd, logger)
	case CmdRemove:
		return s.remove(ctx, roomID, logger)
	case CmdRandomize:
		return s.toggleRandomize(ctx, roomID)
	}

	cfg, err := s.rooms.EnsureFresh(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			s.post(ctx, roomID, msgNotConfigured, s.help())
			return nil
		}
		return err
	}

	w, subs, err := s.fetcher.Fetch(ctx, cfg)
	if err != nil {
		return err
	}
	entries := report.TodayEntries(cfg, subs, w.Today)

	switch cmd.Kind {
	case CmdRoster:
		s.post(ctx, roomID, s.engine.RenderRoster(entries))
	case CmdPerson:
		s.post(ctx, roomID, s.engine.RenderPerson(entries, cmd.Arg)...)
	default:
		messages := s.engine.RenderAll(cfg, entries, w.Today, false)
		if len(messages) == 0 {
			messages = []string{s.engine.RenderRoster(nil)}
		}
		s.post(ctx, roomID, messages...)
		s.emit(ctx, events.Event{Type: events.TypeReport, RoomID: roomID, FormID: cfg.FormID, Entries: len(entries)})
	}
	logger.Info("Report posted", zap.String("form_id", cfg.FormID), zap.Int("entries", len(entries)))
	return nil
}

// setup 绑定表单；带时间参数时同时创建提醒与报告任务
func (s *StandupService) setup(ctx context.Context, roomID string, cmd Command, logger *zap.Logger) error {
	_, err := s.rooms.Get(ctx, roomID)
	switch {
	case err == nil:
		s.post(ctx, roomID, msgAlreadyLinked)
		return nil
	case !errors.Is(err, models.ErrNotConfigured):
		return err
	}

	if cmd.FormID == "" {
		s.post(ctx, roomID, msgDontUnderstand, s.help())
		return nil
	}

	var reportCron, reminderCron, days string
	if cmd.Time != "" {
		minutes := scheduler.DefaultReminderMinutes
		if cmd.Reminder != "" {
			minutes, _ = strconv.Atoi(cmd.Reminder)
		}
		days = cmd.Days
		if days == "" {
			days = scheduler.DefaultDays
		}
		reportCron, reminderCron, err = scheduler.BuildCrons(cmd.Time, minutes, days)
		if err != nil {
			logger.Warn("Invalid setup schedule", zap.String("time", cmd.Time), zap.Error(err))
			s.post(ctx, roomID, msgDontUnderstand, s.help())
			return nil
		}
	}

	s.post(ctx, roomID, msgSettingUp)
	if !roomconfig.ValidFormID(cmd.FormID) {
		s.post(ctx, roomID, fmt.Sprintf(msgInvalidFormID, cmd.FormID))
		return nil
	}

	cfg, err := s.rooms.Resolver().Resolve(ctx, roomID, cmd.FormID)
	if err != nil {
		return err
	}

	if reportCron != "" {
		if err := s.rooms.SetCrons(ctx, roomID, reportCron, reminderCron); err != nil {
			return err
		}
		if err := s.scheduler.Schedule(roomID, reportCron, reminderCron, cfg.Timezone); err != nil {
			return err
		}
		s.post(ctx, roomID, fmt.Sprintf(msgScheduled, cmd.FormID, cmd.Time, days))
	}
	s.post(ctx, roomID, fmt.Sprintf(msgFormSetup, cmd.FormID))
	s.emit(ctx, events.Event{Type: events.TypeSetup, RoomID: roomID, FormID: cmd.FormID})

	logger.Info("Form linked to room",
		zap.String("form_id", cmd.FormID),
		zap.String("report_cron", reportCron),
		zap.String("reminder_cron", reminderCron),
	)
	return nil
}

// remove 先停止任务，再删除配置；删除失败时按原配置恢复任务
func (s *StandupService) remove(ctx context.Context, roomID string, logger *zap.Logger) error {
	cfg, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			s.post(ctx, roomID, msgNotConfigured, s.help())
			return nil
		}
		return err
	}

	s.post(ctx, roomID, fmt.Sprintf(msgRemoving, cfg.FormID))
	s.scheduler.Cancel(roomID)
	if err := s.rooms.Remove(ctx, roomID); err != nil {
		if cfg.HasSchedule() {
			if serr := s.scheduler.Schedule(roomID, cfg.ReportCron, cfg.ReminderCron, cfg.Timezone); serr != nil {
				logger.Error("Failed to restore jobs after failed remove", zap.Error(serr))
			}
		}
		return err
	}
	s.post(ctx, roomID, msgRemoved)
	s.emit(ctx, events.Event{Type: events.TypeRemove, RoomID: roomID, FormID: cfg.FormID})

	logger.Info("Form removed from room", zap.String("form_id", cfg.FormID))
	return nil
}

func (s *StandupService) toggleRandomize(ctx context.Context, roomID string) error {
	cfg, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			s.post(ctx, roomID, msgNotConfigured, s.help())
			return nil
		}
		return err
	}

	on := !cfg.Randomize
	if err := s.rooms.SetRandomize(ctx, roomID, on); err != nil {
		return err
	}
	if on {
		s.post(ctx, roomID, msgRandomOn)
	} else {
		s.post(ctx, roomID, msgRandomOff)
	}
	return nil
}

func (s *StandupService) help() string {
	return helpText(s.config.BotName, s.keyword, s.config.Formstack.Hear)
}
