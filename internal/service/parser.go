package service

import (
	"regexp"
	"strings"
)

// CommandKind 命令类型
type CommandKind int

const (
	CmdReport CommandKind = iota
	CmdRoster
	CmdPerson
	CmdRandomize
	CmdSetup
	CmdRemove
	CmdHelp
)

func (k CommandKind) String() string {
	switch k {
	case CmdReport:
		return "report"
	case CmdRoster:
		return "roster"
	case CmdPerson:
		return "person"
	case CmdRandomize:
		return "randomize"
	case CmdSetup:
		return "setup"
	case CmdRemove:
		return "remove"
	case CmdHelp:
		return "help"
	}
	return "unknown"
}

// Command 解析后的聊天命令
type Command struct {
	Kind CommandKind
	Arg  string // 原始参数，如人名

	// setup 参数
	FormID   string
	Time     string
	Reminder string
	Days     string
}

// 命令体：setup 分支在前，其余为一个单词加可选的第二个单词
// setup 的提醒分钟数后须跟空白或结尾，以便省略提醒直接写星期
const commandBody = `(?:\s+(setup\s+(\S+)\s*(?:(\d{1,2}:\d{2}\s?(?:am|pm)?|\d{4})\s*(?:(\d{1,2})(?:\s+|$))?([0-6]-[0-6]|[0-6](?:,[0-6]){0,6})?)?|\w+(?:\s+[a-z]+)?))?\s*$`

// Parser 识别 "@bot standup ..." 与（开启被动监听时）"standup ..."
type Parser struct {
	addressed *regexp.Regexp
	passive   *regexp.Regexp
}

func NewParser(botName, keyword string, hear bool) *Parser {
	kw := regexp.QuoteMeta(keyword)
	p := &Parser{
		addressed: regexp.MustCompile(`(?i)^\s*@?` + regexp.QuoteMeta(botName) + `[:,]?\s+` + kw + commandBody),
	}
	if hear {
		p.passive = regexp.MustCompile(`(?i)^\s*` + kw + commandBody)
	}
	return p
}

// Parse 不是命令时返回 false
func (p *Parser) Parse(text string) (Command, bool) {
	m := p.addressed.FindStringSubmatch(text)
	if m == nil && p.passive != nil {
		m = p.passive.FindStringSubmatch(text)
	}
	if m == nil {
		return Command{}, false
	}

	arg := strings.TrimSpace(m[1])
	word := strings.ToLower(arg)
	cmd := Command{Arg: arg}

	switch {
	case arg == "":
		cmd.Kind = CmdReport
	case word == "today" || word == "list":
		cmd.Kind = CmdRoster
	case word == "remove":
		cmd.Kind = CmdRemove
	case word == "help":
		cmd.Kind = CmdHelp
	case word == "randomize":
		cmd.Kind = CmdRandomize
	case strings.HasPrefix(word, "setup"):
		cmd.Kind = CmdSetup
		cmd.FormID = m[2]
		cmd.Time = strings.ReplaceAll(m[3], " ", "")
		cmd.Reminder = m[4]
		cmd.Days = m[5]
	default:
		cmd.Kind = CmdPerson
	}
	return cmd, true
}
