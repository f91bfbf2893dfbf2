package websocket

import (
	"encoding/json"

	"mingle/internal/usecase"
)

// Inbound socket event names.
const (
	EventAuthenticate    = "authenticate"
	EventJoinChat        = "join-chat"
	EventLeaveChat       = "leave-chat"
	EventTypingStart     = "typing-start"
	EventTypingStop      = "typing-stop"
	EventMessageReaction = "message-reaction"
	EventNewMessage      = "new-message"
	EventMessageDeleted  = "message-deleted"
)

type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type AuthenticateRequest struct {
	Token  string `json:"token"`
	UserId string `json:"userId"`
}

type JoinChatRequest struct {
	ChatId string `json:"chatId"`
}

type LeaveChatRequest struct {
	ChatId string `json:"chatId"`
}

type TypingRequest struct {
	ChatId   string `json:"chatId"`
	UserId   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

type MessageReactionRequest struct {
	ChatId    string `json:"chatId"`
	MessageId string `json:"messageId"`
	UserId    string `json:"userId,omitempty"`
	Emoji     string `json:"emoji"`
	Type      string `json:"type"` // "add" or "remove"
}

type NewMessageRequest struct {
	ChatId  string                 `json:"chatId"`
	Message usecase.MessagePayload `json:"message"`
}

type MessageDeletedRequest struct {
	ChatId    string `json:"chatId"`
	MessageId string `json:"messageId"`
}
