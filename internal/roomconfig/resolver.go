package roomconfig

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"standup-formstack/internal/models"

	"go.uber.org/zap"
)

// FormClient Resolver 依赖的 Formstack 能力
type FormClient interface {
	GetForm(ctx context.Context, formID string) (*models.Form, error)
	FormAPIURL(formID string) string
}

// rolePatterns 按优先级排列：一个字段命中多个模式时取第一个
var rolePatterns = []struct {
	role models.FieldRole
	re   *regexp.Regexp
}{
	{models.RoleDate, regexp.MustCompile(`date`)},
	{models.RoleYesterday, regexp.MustCompile(`\byesterday\b|\bprevious\b`)},
	{models.RoleToday, regexp.MustCompile(`\btoday\b`)},
	{models.RoleBlocker, regexp.MustCompile(`\bimped|\bblock`)},
	{models.RoleFirstName, regexp.MustCompile(`\bfirst name\b`)},
	{models.RoleLastName, regexp.MustCompile(`\blast name\b`)},
}

var formIDPattern = regexp.MustCompile(`^\d+$`)

// ValidFormID 表单 ID 必须为纯数字
func ValidFormID(formID string) bool {
	return formIDPattern.MatchString(formID)
}

// ClassifyLabel 按关键字把字段标签归类为角色
func ClassifyLabel(label string) (models.FieldRole, bool) {
	l := strings.ToLower(label)
	for _, p := range rolePatterns {
		if p.re.MatchString(l) {
			return p.role, true
		}
	}
	return "", false
}

// Classify 把表单字段映射到角色；同一角色有多个候选时取 ID 最小者，结果与字段顺序无关
func Classify(fields []models.FormField) models.FieldMap {
	m := make(models.FieldMap)
	for _, f := range fields {
		if f.ID == "" {
			continue
		}
		role, ok := ClassifyLabel(f.Label)
		if !ok {
			continue
		}
		if cur, exists := m[role]; !exists || lessFieldID(f.ID, cur) {
			m[role] = f.ID
		}
	}
	return m
}

func lessFieldID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}

// Resolver 调用 Formstack 解析表单字段并持久化房间配置
type Resolver struct {
	client    FormClient
	store     *Store
	defaultTZ string
	logger    *zap.Logger
}

func NewResolver(client FormClient, s *Store, defaultTZ string, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, store: s, defaultTZ: defaultTZ, logger: logger}
}

// Resolve 拉取表单元数据、分类字段，完整时写入存储并加入活跃房间
// 缺少必填角色时返回 IncompleteFormError 且不写入任何数据
func (r *Resolver) Resolve(ctx context.Context, roomID, formID string) (*models.RoomFormConfig, error) {
	if !ValidFormID(formID) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidFormID, formID)
	}

	r.logger.Info("Resolving form fields",
		zap.String("room_id", roomID),
		zap.String("form_id", formID),
	)

	form, err := r.client.GetForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("resolve form %s: %w", formID, err)
	}

	fields := Classify(form.Fields)
	if missing := fields.Missing(); len(missing) > 0 {
		incomplete := &models.IncompleteFormError{FormID: formID, Missing: missing}
		r.logger.Error("Form is missing required fields",
			zap.String("room_id", roomID),
			zap.String("form_id", formID),
			zap.Error(incomplete),
		)
		return nil, incomplete
	}

	tz := form.Timezone
	if tz == "" {
		tz = r.defaultTZ
	}

	cfg := &models.RoomFormConfig{
		RoomID:     roomID,
		FormID:     formID,
		FormURL:    form.URL,
		APIBaseURL: r.client.FormAPIURL(formID),
		Timezone:   tz,
		Fields:     fields,
	}

	saved, err := r.store.saveForm(ctx, cfg)
	if err != nil {
		var pe *models.PersistenceError
		if errors.As(err, &pe) {
			return cfg, err
		}
		return nil, err
	}

	r.logger.Info("Form resolved",
		zap.String("room_id", roomID),
		zap.String("form_id", formID),
		zap.String("timezone", tz),
	)
	return saved, nil
}
