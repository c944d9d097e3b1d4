package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultConsoleRoom 未写 "room>" 前缀时使用的房间
const DefaultConsoleRoom = "console"

// ConsolePlatform 本地调试用：输入行 "room> text"，输出 "[room] text"
type ConsolePlatform struct {
	in   io.Reader
	user string

	mu  sync.Mutex
	out io.Writer
}

func NewConsolePlatform(in io.Reader, out io.Writer, user string) *ConsolePlatform {
	return &ConsolePlatform{in: in, out: out, user: user}
}

// Run 逐行读取输入并同步处理，输入结束时返回
func (p *ConsolePlatform) Run(ctx context.Context, handler Handler) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			msg, ok := ParseConsoleLine(line)
			if !ok {
				continue
			}
			msg.User = p.user
			handler(ctx, msg)
		}
	}
}

func (p *ConsolePlatform) PostMessage(ctx context.Context, roomID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "[%s] %s\n", roomID, text)
	return err
}

// ParseConsoleLine 解析 "room> text"；空行返回 false
func ParseConsoleLine(line string) (Message, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, false
	}
	if room, text, found := strings.Cut(line, ">"); found && room != "" && !strings.ContainsAny(room, " \t") {
		return Message{RoomID: room, Text: strings.TrimSpace(text)}, true
	}
	return Message{RoomID: DefaultConsoleRoom, Text: line}, true
}
