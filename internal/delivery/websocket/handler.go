package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"mingle/infrastructure/ws"
	"mingle/internal/fanout"
	"mingle/internal/repository"
	"mingle/internal/usecase"
	"mingle/pkg/jwt"

	"go.uber.org/zap"
)

type WebsocketHandler struct {
	hub        ws.IHub
	fanout     *fanout.Service
	jwtManager *jwt.JWTManager
	chatUc     usecase.ChatUsecase
	messageUc  usecase.MessageUsecase
	typingUc   usecase.TypingUsecase
	userRepo   repository.UserRepository
	log        *zap.SugaredLogger
}

func NewWebsocketHandler(hub ws.IHub, fo *fanout.Service, jwtManager *jwt.JWTManager, chatUc usecase.ChatUsecase, messageUc usecase.MessageUsecase, typingUc usecase.TypingUsecase, userRepo repository.UserRepository, log *zap.SugaredLogger) *WebsocketHandler {
	return &WebsocketHandler{
		hub:        hub,
		fanout:     fo,
		jwtManager: jwtManager,
		chatUc:     chatUc,
		messageUc:  messageUc,
		typingUc:   typingUc,
		userRepo:   userRepo,
		log:        log,
	}
}

// HandleWebSocket upgrades the connection and starts its pumps. The
// connection stays unauthenticated until a valid authenticate event arrives.
func (h *WebsocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade", "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, h.log)
	h.hub.RegisterClient(client)

	go client.WritePump()
	client.ReadPump(func(data []byte) {
		h.handleEvent(ctx, client, data)
	})
}

func (h *WebsocketHandler) handleEvent(ctx context.Context, client *ws.UserClient, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.sendError(client, "", "malformed event")
		return
	}

	if env.Event == EventAuthenticate {
		h.handleAuthenticate(client, env.Payload)
		return
	}

	// Everything below is chat-scoped and requires the one-time
	// authenticate step to have completed.
	if !client.Authenticated() {
		h.sendError(client, env.Event, "not authenticated")
		return
	}

	switch env.Event {
	case EventJoinChat:
		h.handleJoinChat(ctx, client, env.Payload)
	case EventLeaveChat:
		h.handleLeaveChat(client, env.Payload)
	case EventTypingStart:
		h.handleTyping(ctx, client, env.Payload, EventTypingStart, fanout.TypingStart)
	case EventTypingStop:
		h.handleTyping(ctx, client, env.Payload, EventTypingStop, fanout.TypingStop)
	case EventMessageReaction:
		h.handleReaction(ctx, client, env.Payload)
	case EventNewMessage:
		h.handleNewMessage(ctx, client, env.Payload)
	case EventMessageDeleted:
		h.handleMessageDeleted(ctx, client, env.Payload)
	default:
		h.sendError(client, env.Event, "unknown event")
	}
}

func (h *WebsocketHandler) handleAuthenticate(client *ws.UserClient, payload json.RawMessage) {
	var req AuthenticateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(client, EventAuthenticate, "malformed payload")
		return
	}

	claims, err := h.jwtManager.ValidateAccessToken(req.Token)
	if err != nil {
		h.sendError(client, EventAuthenticate, "invalid token")
		return
	}
	if req.UserId != "" && req.UserId != claims.UserId {
		h.sendError(client, EventAuthenticate, "token does not match user")
		return
	}

	if err := h.hub.Authenticate(client, claims.UserId); err != nil {
		h.sendError(client, EventAuthenticate, "already authenticated")
		return
	}

	h.sendTo(client, EventAuthenticated, AuthenticatedResponse{UserId: claims.UserId})
}

func (h *WebsocketHandler) handleJoinChat(ctx context.Context, client *ws.UserClient, payload json.RawMessage) {
	var req JoinChatRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatId == "" {
		h.sendError(client, EventJoinChat, "malformed payload")
		return
	}

	// Authorization happens here, at the command layer: only participants
	// get a room membership.
	if _, err := h.chatUc.Get(ctx, req.ChatId, client.UserId()); err != nil {
		h.sendError(client, EventJoinChat, "access denied")
		return
	}

	if err := h.hub.JoinRoom(client, req.ChatId); err != nil {
		h.sendError(client, EventJoinChat, "join failed")
	}
}

func (h *WebsocketHandler) handleLeaveChat(client *ws.UserClient, payload json.RawMessage) {
	var req LeaveChatRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatId == "" {
		h.sendError(client, EventLeaveChat, "malformed payload")
		return
	}
	h.hub.LeaveRoom(client, req.ChatId)
}

func (h *WebsocketHandler) handleTyping(ctx context.Context, client *ws.UserClient, payload json.RawMessage, event, kind string) {
	var req TypingRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatId == "" {
		h.sendError(client, event, "malformed payload")
		return
	}

	userId := client.UserId()
	var err error
	if kind == fanout.TypingStart {
		err = h.typingUc.Start(ctx, req.ChatId, userId)
	} else {
		err = h.typingUc.Stop(ctx, req.ChatId, userId)
	}
	if err != nil {
		h.sendError(client, event, "access denied")
		return
	}

	userName := req.UserName
	if kind == fanout.TypingStart && userName == "" {
		if user, err := h.userRepo.Get(ctx, userId); err == nil {
			userName = user.Name
		}
	}

	h.fanout.UserTyping(req.ChatId, userId, userName, kind, client)
}

func (h *WebsocketHandler) handleReaction(ctx context.Context, client *ws.UserClient, payload json.RawMessage) {
	var req MessageReactionRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatId == "" || req.MessageId == "" {
		h.sendError(client, EventMessageReaction, "malformed payload")
		return
	}

	userId := client.UserId()

	if req.Type == "remove" {
		updated, rerr := h.messageUc.Unreact(ctx, req.ChatId, req.MessageId, userId, req.Emoji)
		if rerr != nil {
			h.sendError(client, EventMessageReaction, "reaction failed")
			return
		}
		h.fanout.ReactionUpdate(updated, userId, req.Emoji, "remove", client)
		return
	}

	updated, err := h.messageUc.React(ctx, req.ChatId, req.MessageId, userId, req.Emoji)
	if err != nil {
		h.sendError(client, EventMessageReaction, "reaction failed")
		return
	}
	h.fanout.ReactionUpdate(updated, userId, req.Emoji, "add", client)
}

func (h *WebsocketHandler) handleNewMessage(ctx context.Context, client *ws.UserClient, payload json.RawMessage) {
	var req NewMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatId == "" {
		h.sendError(client, EventNewMessage, "malformed payload")
		return
	}

	created, err := h.messageUc.Send(ctx, req.ChatId, client.UserId(), req.Message)
	if err != nil {
		h.sendError(client, EventNewMessage, "send failed")
		return
	}

	h.fanout.MessageReceived(created)
}

func (h *WebsocketHandler) handleMessageDeleted(ctx context.Context, client *ws.UserClient, payload json.RawMessage) {
	var req MessageDeletedRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatId == "" || req.MessageId == "" {
		h.sendError(client, EventMessageDeleted, "malformed payload")
		return
	}

	if err := h.messageUc.Delete(ctx, req.ChatId, req.MessageId, client.UserId()); err != nil {
		h.sendError(client, EventMessageDeleted, "delete failed")
		return
	}

	h.fanout.MessageDeleted(req.ChatId, req.MessageId)
}

func (h *WebsocketHandler) sendTo(client *ws.UserClient, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Errorw("marshal response", "event", event, "error", err)
		return
	}
	client.Enqueue(data)
}

func (h *WebsocketHandler) sendError(client *ws.UserClient, event, message string) {
	data, err := marshalEnvelope(EventError, ErrorResponse{Event: event, Message: message})
	if err != nil {
		return
	}
	// Errors go to the originating connection only; an unauthenticated
	// connection has no user binding to address.
	client.Enqueue(data)
}
