package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mingle/internal/apperr"
	"mingle/internal/entity"
	"mingle/internal/fanout"
	"mingle/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type HttpHandler struct {
	chatUc    usecase.ChatUsecase
	messageUc usecase.MessageUsecase
	receiptUc usecase.ReceiptUsecase
	typingUc  usecase.TypingUsecase
	fanout    *fanout.Service
	log       *zap.SugaredLogger
}

func NewHttpHandler(chatUc usecase.ChatUsecase, messageUc usecase.MessageUsecase, receiptUc usecase.ReceiptUsecase, typingUc usecase.TypingUsecase, fo *fanout.Service, log *zap.SugaredLogger) *HttpHandler {
	return &HttpHandler{
		chatUc:    chatUc,
		messageUc: messageUc,
		receiptUc: receiptUc,
		typingUc:  typingUc,
		fanout:    fo,
		log:       log,
	}
}

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Method Post /chat/direct
func (h *HttpHandler) CreateDirectChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserId string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId == "" {
		writeError(w, apperr.InvalidArgument("userId is required"))
		return
	}

	chat, err := h.chatUc.GetOrCreateDirectChat(r.Context(), userIdFrom(r), req.UserId)
	if err != nil {
		h.fail(w, "create direct chat", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: chat})
}

// Method Post /chat/group
func (h *HttpHandler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string               `json:"name"`
		Description    string               `json:"description"`
		ParticipantIds []string             `json:"participantIds"`
		Settings       entity.GroupSettings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.InvalidArgument("invalid request body"))
		return
	}

	chat, err := h.chatUc.CreateGroupChat(r.Context(), userIdFrom(r), req.Name, req.Description, req.ParticipantIds, req.Settings)
	if err != nil {
		h.fail(w, "create group chat", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: chat})
}

// Method Get /chat
func (h *HttpHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatUc.Index(r.Context(), userIdFrom(r), pageParam(r))
	if err != nil {
		h.fail(w, "list chats", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: chats})
}

// Method Get /chat/{chatId}
func (h *HttpHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chatUc.Get(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r))
	if err != nil {
		h.fail(w, "get chat", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: chat})
}

// Method Post /chat/{chatId}/members
func (h *HttpHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserId string `json:"userId"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId == "" {
		writeError(w, apperr.InvalidArgument("userId is required"))
		return
	}

	err := h.chatUc.AddMember(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r), req.UserId, req.Role)
	if err != nil {
		h.fail(w, "add member", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Delete /chat/{chatId}/members/{userId}
func (h *HttpHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.chatUc.RemoveMember(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, "remove member", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Get /chat/{chatId}/messages
func (h *HttpHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messageUc.List(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r), pageParam(r))
	if err != nil {
		h.fail(w, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: messages})
}

// Method Post /chat/{chatId}/messages
func (h *HttpHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var payload usecase.MessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apperr.InvalidArgument("invalid request body"))
		return
	}

	message, err := h.messageUc.Send(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r), payload)
	if err != nil {
		h.fail(w, "send message", err)
		return
	}

	h.fanout.MessageReceived(message)
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: message})
}

// Method Delete /chat/{chatId}/messages/{messageId}
func (h *HttpHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	chatId := chi.URLParam(r, "chatId")
	messageId := chi.URLParam(r, "messageId")

	if err := h.messageUc.Delete(r.Context(), chatId, messageId, userIdFrom(r)); err != nil {
		h.fail(w, "delete message", err)
		return
	}

	h.fanout.MessageDeleted(chatId, messageId)
	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Post /chat/{chatId}/messages/{messageId}/reactions
func (h *HttpHandler) ReactToMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.InvalidArgument("invalid request body"))
		return
	}

	userId := userIdFrom(r)
	message, err := h.messageUc.React(r.Context(), chi.URLParam(r, "chatId"), chi.URLParam(r, "messageId"), userId, req.Emoji)
	if err != nil {
		h.fail(w, "react to message", err)
		return
	}

	h.fanout.ReactionUpdate(message, userId, req.Emoji, "add", nil)
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: message.Reactions})
}

// Method Delete /chat/{chatId}/messages/{messageId}/reactions
func (h *HttpHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	emoji := r.URL.Query().Get("emoji")
	userId := userIdFrom(r)

	message, err := h.messageUc.Unreact(r.Context(), chi.URLParam(r, "chatId"), chi.URLParam(r, "messageId"), userId, emoji)
	if err != nil {
		h.fail(w, "remove reaction", err)
		return
	}

	h.fanout.ReactionUpdate(message, userId, emoji, "remove", nil)
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: message.Reactions})
}

// Method Post /chat/{chatId}/read
func (h *HttpHandler) MarkChatAsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.receiptUc.MarkRead(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r)); err != nil {
		h.fail(w, "mark chat as read", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Get /chat/{chatId}/unread
func (h *HttpHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	count, err := h.receiptUc.Unread(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r))
	if err != nil {
		h.fail(w, "get unread", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: map[string]int{"unread": count}})
}

// Method Post /chat/{chatId}/typing/start
func (h *HttpHandler) StartTyping(w http.ResponseWriter, r *http.Request) {
	chatId := chi.URLParam(r, "chatId")
	userId := userIdFrom(r)

	if err := h.typingUc.Start(r.Context(), chatId, userId); err != nil {
		h.fail(w, "start typing", err)
		return
	}

	h.fanout.UserTyping(chatId, userId, "", fanout.TypingStart, nil)
	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Post /chat/{chatId}/typing/stop
func (h *HttpHandler) StopTyping(w http.ResponseWriter, r *http.Request) {
	chatId := chi.URLParam(r, "chatId")
	userId := userIdFrom(r)

	if err := h.typingUc.Stop(r.Context(), chatId, userId); err != nil {
		h.fail(w, "stop typing", err)
		return
	}

	h.fanout.UserTyping(chatId, userId, "", fanout.TypingStop, nil)
	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Get /chat/{chatId}/typing
func (h *HttpHandler) ListTyping(w http.ResponseWriter, r *http.Request) {
	userIds, err := h.typingUc.List(r.Context(), chi.URLParam(r, "chatId"), userIdFrom(r))
	if err != nil {
		h.fail(w, "list typing", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: userIds})
}

func (h *HttpHandler) fail(w http.ResponseWriter, op string, err error) {
	if !isClientError(err) {
		h.log.Errorw(op, "error", err)
	}
	writeError(w, err)
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func isClientError(err error) bool {
	return errors.Is(err, apperr.ErrInvalidArgument) ||
		errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrPermissionDenied) ||
		errors.Is(err, apperr.ErrConflict)
}

// writeError maps the failure taxonomy onto HTTP statuses. Access denied is
// uniform for participants-only resources: it never reveals whether the chat
// exists.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, apperr.ErrPermissionDenied):
		status = http.StatusForbidden
		message = "access denied"
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
		message = err.Error()
	}

	writeJSON(w, status, Response{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
