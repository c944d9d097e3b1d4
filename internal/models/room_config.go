package models

// FieldRole 表单字段的语义角色
type FieldRole string

const (
	RoleDate      FieldRole = "date"
	RoleYesterday FieldRole = "yesterday"
	RoleToday     FieldRole = "today"
	RoleBlocker   FieldRole = "blocker"
	RoleFirstName FieldRole = "first_name"
	RoleLastName  FieldRole = "last_name"
)

// RequiredRoles 执行任何报告前必须解析出的角色（last_name 可选）
var RequiredRoles = []FieldRole{RoleDate, RoleYesterday, RoleToday, RoleBlocker, RoleFirstName}

// AllRoles 全部角色，按分类优先级排序
var AllRoles = []FieldRole{RoleDate, RoleYesterday, RoleToday, RoleBlocker, RoleFirstName, RoleLastName}

// FieldMap 角色 -> Formstack 字段 ID
type FieldMap map[FieldRole]string

// Missing 返回缺失（或为空）的必填角色
func (m FieldMap) Missing() []FieldRole {
	var missing []FieldRole
	for _, role := range RequiredRoles {
		if m[role] == "" {
			missing = append(missing, role)
		}
	}
	return missing
}

// RoomFormConfig 房间绑定的表单配置
type RoomFormConfig struct {
	RoomID       string   `json:"room_id"`
	FormID       string   `json:"form_id"`
	FormURL      string   `json:"form_url"`
	APIBaseURL   string   `json:"api_base_url"`
	Timezone     string   `json:"timezone"`
	Fields       FieldMap `json:"fields"`
	Randomize    bool     `json:"randomize"`
	ReportCron   string   `json:"report_cron,omitempty"`
	ReminderCron string   `json:"reminder_cron,omitempty"`
}

// Complete 表单 ID、API 地址及所有必填字段均已就绪
func (c *RoomFormConfig) Complete() bool {
	if c == nil || c.FormID == "" || c.APIBaseURL == "" {
		return false
	}
	return len(c.Fields.Missing()) == 0
}

// HasSchedule 报告与提醒的 cron 均已配置
func (c *RoomFormConfig) HasSchedule() bool {
	return c != nil && c.ReportCron != "" && c.ReminderCron != ""
}

// Clone 深拷贝，避免调用方修改缓存中的记录
func (c *RoomFormConfig) Clone() *RoomFormConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Fields = make(FieldMap, len(c.Fields))
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	return &out
}
