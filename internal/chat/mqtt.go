package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"standup-formstack/common/mqtt"

	"go.uber.org/zap"
)

// Broker MQTTPlatform 依赖的 MQTT 能力（common/mqtt.Client 实现）
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
}

// outbound 发往 {prefix}/rooms/{room}/out 的消息体
type outbound struct {
	Room string `json:"room"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// MQTTPlatform 以 MQTT 主题作为聊天房间
//
//	入站: {prefix}/rooms/{room}/in   JSON {"user","text"} 或纯文本
//	出站: {prefix}/rooms/{room}/out  JSON {"room","text","ts"}
type MQTTPlatform struct {
	broker Broker
	prefix string
	qos    byte
	now    func() time.Time
	logger *zap.Logger
}

func NewMQTTPlatform(broker Broker, topicPrefix string, qos byte, logger *zap.Logger) *MQTTPlatform {
	return &MQTTPlatform{
		broker: broker,
		prefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:    qos,
		now:    time.Now,
		logger: logger,
	}
}

func (p *MQTTPlatform) inboundTopic() string {
	return p.prefix + "/rooms/+/in"
}

func (p *MQTTPlatform) outboundTopic(roomID string) string {
	return p.prefix + "/rooms/" + roomID + "/out"
}

// Run 订阅入站主题，每条消息在独立 goroutine 中处理
func (p *MQTTPlatform) Run(ctx context.Context, handler Handler) error {
	topic := p.inboundTopic()
	err := p.broker.Subscribe(topic, p.qos, func(t string, payload []byte) error {
		msg, err := p.decode(t, payload)
		if err != nil {
			return err
		}
		go handler(ctx, msg)
		return nil
	})
	if err != nil {
		return err
	}
	p.logger.Info("Listening for chat messages", zap.String("topic", topic))

	<-ctx.Done()

	if err := p.broker.Unsubscribe(topic); err != nil {
		p.logger.Warn("Failed to unsubscribe", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}

// PostMessage 发布到房间出站主题
func (p *MQTTPlatform) PostMessage(ctx context.Context, roomID, text string) error {
	payload, err := json.Marshal(outbound{Room: roomID, Text: text, TS: p.now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.broker.Publish(p.outboundTopic(roomID), p.qos, false, payload)
}

func (p *MQTTPlatform) decode(topic string, payload []byte) (Message, error) {
	roomID, ok := p.roomFromTopic(topic)
	if !ok {
		return Message{}, fmt.Errorf("unexpected topic %s", topic)
	}

	msg := Message{RoomID: roomID}
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var body struct {
			User string `json:"user"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(trimmed), &body); err == nil {
			msg.User = body.User
			msg.Text = body.Text
			return msg, nil
		}
	}
	msg.Text = trimmed
	return msg, nil
}

func (p *MQTTPlatform) roomFromTopic(topic string) (string, bool) {
	head := p.prefix + "/rooms/"
	if !strings.HasPrefix(topic, head) || !strings.HasSuffix(topic, "/in") {
		return "", false
	}
	room := strings.TrimSuffix(strings.TrimPrefix(topic, head), "/in")
	if room == "" || strings.Contains(room, "/") {
		return "", false
	}
	return room, true
}
