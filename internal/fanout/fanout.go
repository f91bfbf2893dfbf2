package fanout

import (
	"encoding/json"

	"mingle/infrastructure/ws"
	"mingle/internal/entity"

	"go.uber.org/zap"
)

// Outbound event names, addressed to the room named by the chat id.
const (
	EventMessageReceived       = "message-received"
	EventMessageReactionUpdate = "message-reaction-update"
	EventMessageDeleted        = "message-deleted"
	EventUserTyping            = "user-typing"
)

const (
	TypingStart = "start"
	TypingStop  = "stop"
)

type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type messageReceivedPayload struct {
	ChatId  string         `json:"chatId"`
	Message entity.Message `json:"message"`
}

type reactionUpdatePayload struct {
	ChatId    string                 `json:"chatId"`
	MessageId string                 `json:"messageId"`
	UserId    string                 `json:"userId"`
	Emoji     string                 `json:"emoji"`
	Type      string                 `json:"type"`
	Reactions []entity.Reaction      `json:"reactions"`
	Groups    []entity.ReactionGroup `json:"groups"`
}

type messageDeletedPayload struct {
	ChatId    string `json:"chatId"`
	MessageId string `json:"messageId"`
}

type userTypingPayload struct {
	ChatId   string `json:"chatId"`
	UserId   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	Kind     string `json:"kind"`
}

// Service is the explicit fan-out collaborator injected into every command
// handler that broadcasts; there is no ambient global broadcaster. Emission
// failures are swallowed — the durable store is the source of truth, a
// disconnected client reconciles by refetching a message page.
type Service struct {
	hub ws.IHub
	log *zap.SugaredLogger
}

func NewService(hub ws.IHub, log *zap.SugaredLogger) *Service {
	return &Service{
		hub: hub,
		log: log,
	}
}

// MessageReceived goes to the whole room, including the sender's other
// devices.
func (s *Service) MessageReceived(message entity.Message) {
	s.emit(message.ChatId, EventMessageReceived, messageReceivedPayload{
		ChatId:  message.ChatId,
		Message: message,
	}, nil)
}

// ReactionUpdate carries the full current reaction set; clients apply it as
// an emoji-keyed group-by-count view. Broadcast to others only.
func (s *Service) ReactionUpdate(message entity.Message, userId, emoji, kind string, origin *ws.UserClient) {
	s.emit(message.ChatId, EventMessageReactionUpdate, reactionUpdatePayload{
		ChatId:    message.ChatId,
		MessageId: message.Id,
		UserId:    userId,
		Emoji:     emoji,
		Type:      kind,
		Reactions: message.Reactions,
		Groups:    entity.GroupReactions(message.Reactions),
	}, origin)
}

func (s *Service) MessageDeleted(chatId, messageId string) {
	s.emit(chatId, EventMessageDeleted, messageDeletedPayload{
		ChatId:    chatId,
		MessageId: messageId,
	}, nil)
}

// UserTyping is broadcast to others; the typist already knows.
func (s *Service) UserTyping(chatId, userId, userName, kind string, origin *ws.UserClient) {
	payload := userTypingPayload{
		ChatId: chatId,
		UserId: userId,
		Kind:   kind,
	}
	if kind == TypingStart {
		payload.UserName = userName
	}
	s.emit(chatId, EventUserTyping, payload, origin)
}

func (s *Service) emit(roomId, event string, payload any, exclude *ws.UserClient) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Errorw("marshal event payload", "event", event, "error", err)
		return
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		s.log.Errorw("marshal event envelope", "event", event, "error", err)
		return
	}
	s.hub.BroadcastToRoom(roomId, data, exclude)
}
