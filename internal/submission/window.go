package submission

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	// DateLayout Formstack 日期字段的显示格式，如 "Jan 02, 2019"
	DateLayout = "Jan 02, 2006"

	// minTimeCutoff min_time 的固定时刻；Formstack 按美东时间解析，与房间时区无关
	minTimeCutoff = "13:45:00"

	FallbackTimezone = "America/New_York"
)

// Window 一次查询的日期窗口
type Window struct {
	Today    string // 房间时区下的今天，用于匹配日期字段
	MinTime  string // 提交记录下限，如 "2019-1-7 13:45:00"
	Location *time.Location
}

// LoadLocation 解析 IANA 时区，无效时回退到 fallback（再失败则 UTC）
func LoadLocation(tz, fallback string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if fallback == "" {
		fallback = FallbackTimezone
	}
	if loc, err := time.LoadLocation(fallback); err == nil {
		return loc
	}
	return time.UTC
}

// NewWindow 计算房间时区下的今天以及 lookbackDays 天前的下限
func NewWindow(now time.Time, loc *time.Location, lookbackDays int) Window {
	local := now.In(loc)
	back := time.Date(local.Year(), local.Month(), local.Day()-lookbackDays, 0, 0, 0, 0, loc)
	return Window{
		Today:    local.Format(DateLayout),
		MinTime:  fmt.Sprintf("%d-%d-%d %s", back.Year(), int(back.Month()), back.Day(), minTimeCutoff),
		Location: loc,
	}
}
