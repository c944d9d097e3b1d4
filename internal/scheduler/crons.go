package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultDays            = "1-5"
	DefaultReminderMinutes = 30
)

var (
	clockTime    = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(am|pm)?$`)
	militaryTime = regexp.MustCompile(`^(\d{2})(\d{2})$`)
	daysField    = regexp.MustCompile(`^([0-6]-[0-6]|[0-6](,[0-6]){0,6})$`)
)

// ParseTimeOfDay 支持 8:00am、2:30pm、14:00、0800
func ParseTimeOfDay(text string) (hour, minute int, err error) {
	t := strings.ToLower(strings.TrimSpace(text))

	if m := clockTime.FindStringSubmatch(t); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		switch m[3] {
		case "am", "pm":
			if hour < 1 || hour > 12 {
				return 0, 0, fmt.Errorf("invalid hour %d in %q", hour, text)
			}
			hour %= 12
			if m[3] == "pm" {
				hour += 12
			}
		}
	} else if m := militaryTime.FindStringSubmatch(t); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
	} else {
		return 0, 0, fmt.Errorf("unrecognised time %q", text)
	}

	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range %q", text)
	}
	return hour, minute, nil
}

// BuildCrons 由报告时间生成报告与提醒的 cron 表达式
// 提醒时间在一天的时钟上回绕，星期字段保持不变
func BuildCrons(timeText string, reminderMinutes int, days string) (reportCron, reminderCron string, err error) {
	hour, minute, err := ParseTimeOfDay(timeText)
	if err != nil {
		return "", "", err
	}
	if days == "" {
		days = DefaultDays
	}
	if !daysField.MatchString(days) {
		return "", "", fmt.Errorf("invalid cron days %q", days)
	}
	if reminderMinutes < 0 {
		return "", "", fmt.Errorf("invalid reminder offset %d", reminderMinutes)
	}

	at := hour*60 + minute
	before := ((at-reminderMinutes)%(24*60) + 24*60) % (24 * 60)

	reportCron = fmt.Sprintf("%d %d * * %s", at%60, at/60, days)
	reminderCron = fmt.Sprintf("%d %d * * %s", before%60, before/60, days)
	return reportCron, reminderCron, nil
}
