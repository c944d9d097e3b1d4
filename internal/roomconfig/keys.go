package roomconfig

import (
	"fmt"

	"standup-formstack/internal/models"
)

const (
	keyPrefix      = "standup:room:"
	activeRoomsKey = "standup:active_rooms"

	attrFormID       = "form_id"
	attrFormURL      = "form_url"
	attrAPIURL       = "api_url"
	attrTimezone     = "timezone"
	attrRandomize    = "randomize"
	attrReportCron   = "report_cron"
	attrReminderCron = "reminder_cron"
)

func roomKey(roomID, attr string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, roomID, attr)
}

func fieldKey(roomID string, role models.FieldRole) string {
	return roomKey(roomID, "field:"+string(role))
}

// roomKeys 房间的全部已知键
func roomKeys(roomID string) []string {
	keys := []string{
		roomKey(roomID, attrFormID),
		roomKey(roomID, attrFormURL),
		roomKey(roomID, attrAPIURL),
		roomKey(roomID, attrTimezone),
		roomKey(roomID, attrRandomize),
		roomKey(roomID, attrReportCron),
		roomKey(roomID, attrReminderCron),
	}
	for _, role := range models.AllRoles {
		keys = append(keys, fieldKey(roomID, role))
	}
	return keys
}
