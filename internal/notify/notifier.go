package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Notifier hands chat events to the social-graph service so it can persist
// notification records. Both calls are fire-and-forget: failures are logged
// and never propagated to the chat mutation that triggered them.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, chatId, messageId, senderId string, recipientIds []string)
	NotifyReaction(ctx context.Context, messageId, senderId, recipientId, emoji string)
	Close() error
}

type newMessageEvent struct {
	Kind         string   `json:"kind"`
	ChatId       string   `json:"chatId"`
	MessageId    string   `json:"messageId"`
	SenderId     string   `json:"senderId"`
	RecipientIds []string `json:"recipientIds"`
}

type reactionEvent struct {
	Kind        string `json:"kind"`
	MessageId   string `json:"messageId"`
	SenderId    string `json:"senderId"`
	RecipientId string `json:"recipientId"`
	Emoji       string `json:"emoji"`
}

type KafkaNotifier struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewKafkaNotifier(brokers []string, topic string, log *zap.SugaredLogger) *KafkaNotifier {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaNotifier{writer: w, log: log}
}

func (n *KafkaNotifier) NotifyNewMessage(ctx context.Context, chatId, messageId, senderId string, recipientIds []string) {
	ev := newMessageEvent{
		Kind:         "chat.message",
		ChatId:       chatId,
		MessageId:    messageId,
		SenderId:     senderId,
		RecipientIds: recipientIds,
	}
	n.publish(ctx, chatId, ev)
}

func (n *KafkaNotifier) NotifyReaction(ctx context.Context, messageId, senderId, recipientId, emoji string) {
	ev := reactionEvent{
		Kind:        "chat.reaction",
		MessageId:   messageId,
		SenderId:    senderId,
		RecipientId: recipientId,
		Emoji:       emoji,
	}
	n.publish(ctx, messageId, ev)
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, ev any) {
	value, err := json.Marshal(ev)
	if err != nil {
		n.log.Errorw("marshal notification", "error", err)
		return
	}

	msg := kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.log.Errorw("publish notification", "key", key, "error", err)
	}
}

func (n *KafkaNotifier) Close() error { return n.writer.Close() }

// NoopNotifier is used when no broker is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyNewMessage(context.Context, string, string, string, []string) {}
func (NoopNotifier) NotifyReaction(context.Context, string, string, string, string)     {}
func (NoopNotifier) Close() error                                                       { return nil }
