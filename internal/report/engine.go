package report

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"standup-formstack/internal/models"
)

const (
	noBlockers  = "Nothing"
	rosterTail  = "filled out the report for today"
	NoOneRoster = "No one has " + rosterTail
)

// Engine 把提交记录渲染为聊天消息
type Engine struct {
	botName        string
	yesterdayLabel string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEngine yesterdayLabel 为空时使用 "Yesterday"
func NewEngine(botName, yesterdayLabel string, rnd *rand.Rand) *Engine {
	if yesterdayLabel == "" {
		yesterdayLabel = "Yesterday"
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{botName: botName, yesterdayLabel: yesterdayLabel, rnd: rnd}
}

// TodayEntries 按字段映射解码并只保留日期等于 today 的记录，保持提交顺序
func TodayEntries(cfg *models.RoomFormConfig, subs []models.Submission, today string) []models.Entry {
	var out []models.Entry
	for _, s := range subs {
		e := models.Entry{
			Date:      s.Value(cfg.Fields[models.RoleDate]),
			FirstName: s.Value(cfg.Fields[models.RoleFirstName]),
			LastName:  s.Value(cfg.Fields[models.RoleLastName]),
			Yesterday: s.Value(cfg.Fields[models.RoleYesterday]),
			Today:     s.Value(cfg.Fields[models.RoleToday]),
			Blocker:   s.Value(cfg.Fields[models.RoleBlocker]),
		}
		if e.Date == today {
			out = append(out, e)
		}
	}
	return out
}

// RenderEntry 单条记录：标题行 + Yesterday / Today / Blockers 三段
func (e *Engine) RenderEntry(entry models.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* - %s", entry.FullName(), entry.Date)
	fmt.Fprintf(&b, "\n\t*_%s:_*\n%s", e.yesterdayLabel, CleanText(entry.Yesterday))
	fmt.Fprintf(&b, "\n\t*_Today:_*\n%s", CleanText(entry.Today))
	if entry.Blocker != noBlockers {
		fmt.Fprintf(&b, "\n\t*_Blockers:_*\n%s", CleanText(entry.Blocker))
	}
	return b.String()
}

// RenderAll 每条记录一条消息；cfg.Randomize 时做均匀洗牌
// 没有记录时，只有无人值守（定时任务）才返回一条随机的填充消息
func (e *Engine) RenderAll(cfg *models.RoomFormConfig, entries []models.Entry, today string, unattended bool) []string {
	if len(entries) == 0 {
		if !unattended {
			return nil
		}
		fillers := fillerMessages(e.botName, today)
		return []string{fillers[e.intn(len(fillers))]}
	}

	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = e.RenderEntry(entry)
	}
	if cfg != nil && cfg.Randomize {
		e.shuffle(out)
	}
	return out
}

// RenderRoster "A, B and C have filled out the report for today"
func (e *Engine) RenderRoster(entries []models.Entry) string {
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.FullName()
	}

	switch len(names) {
	case 0:
		return NoOneRoster
	case 1:
		return names[0] + " has " + rosterTail
	default:
		list := strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
		return list + " have " + rosterTail
	}
}

// RenderPerson 按全名、名或姓（忽略大小写）查找；找不到时返回提示与名单
func (e *Engine) RenderPerson(entries []models.Entry, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))

	var out []string
	for _, entry := range entries {
		if matchesPerson(entry, q) {
			out = append(out, e.RenderEntry(entry))
		}
	}
	if len(out) > 0 {
		return out
	}
	return []string{
		fmt.Sprintf("I'm not able to find %s", strings.TrimSpace(query)),
		e.RenderRoster(entries),
	}
}

func matchesPerson(entry models.Entry, q string) bool {
	if q == "" {
		return false
	}
	candidates := []string{entry.FullName(), entry.FirstName, entry.LastName}
	for _, c := range candidates {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && c == q {
			return true
		}
	}
	return false
}

// shuffle Fisher–Yates（rand.Rand.Shuffle），rand.Rand 非并发安全故加锁
func (e *Engine) shuffle(items []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rnd.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(n)
}
