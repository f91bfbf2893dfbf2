package usecase

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"mingle/internal/apperr"
	"mingle/internal/entity"
	"mingle/internal/notify"
	"mingle/internal/repository"

	"go.uber.org/zap"
)

const messagePageSize = 50

// notifyTimeout bounds the fire-and-forget collaborator dispatch.
const notifyTimeout = 5 * time.Second

// MessagePayload is the transport-agnostic send request.
type MessagePayload struct {
	Content     string              `json:"content"`
	MessageType string              `json:"messageType"`
	Media       *entity.MediaInfo   `json:"media,omitempty"`
	Location    *entity.GeoPoint    `json:"location,omitempty"`
	Contact     *entity.ContactCard `json:"contact,omitempty"`
	ReplyTo     string              `json:"replyTo,omitempty"`
}

type MessageUsecase interface {
	// Send persists a message and atomically advances the chat's
	// lastMessage/lastMessageAt before returning. Recipients' unread
	// counters are incremented and the collaborator is notified
	// fire-and-forget.
	Send(ctx context.Context, chatId, senderId string, payload MessagePayload) (entity.Message, error)

	// Delete soft-deletes: sender, admin or owner only. Reactions and read
	// receipts are not cascaded.
	Delete(ctx context.Context, chatId, messageId, requesterId string) error

	// List returns one page of non-deleted messages ordered oldest-first.
	// Pages count backwards from the newest message.
	List(ctx context.Context, chatId, requesterId string, page int) ([]entity.Message, error)

	// React replaces any prior reaction from the user, then returns the
	// message with its full current reaction set.
	React(ctx context.Context, chatId, messageId, userId, emoji string) (entity.Message, error)

	// Unreact removes the matching reaction if present; no-op otherwise.
	Unreact(ctx context.Context, chatId, messageId, userId, emoji string) (entity.Message, error)
}

type messageUsecase struct {
	messageRepo repository.MessageRepository
	chatRepo    repository.ChatRepository
	receiptUc   ReceiptUsecase
	notifier    notify.Notifier
	log         *zap.SugaredLogger
}

func NewMessageUsecase(messageRepo repository.MessageRepository, chatRepo repository.ChatRepository, receiptUc ReceiptUsecase, notifier notify.Notifier, log *zap.SugaredLogger) MessageUsecase {
	return &messageUsecase{
		messageRepo: messageRepo,
		chatRepo:    chatRepo,
		receiptUc:   receiptUc,
		notifier:    notifier,
		log:         log,
	}
}

func (m *messageUsecase) Send(ctx context.Context, chatId, senderId string, payload MessagePayload) (entity.Message, error) {
	chat, err := m.participantChat(ctx, chatId, senderId)
	if err != nil {
		return entity.Message{}, err
	}

	if payload.MessageType == "" {
		payload.MessageType = entity.MessageTypeText
	}
	if err := validatePayload(payload); err != nil {
		return entity.Message{}, err
	}

	if payload.ReplyTo != "" {
		parent, err := m.messageRepo.Get(ctx, payload.ReplyTo)
		if err != nil {
			if errors.Is(err, repository.ErrMessageNotFound) {
				return entity.Message{}, apperr.InvalidArgument("replyTo message does not exist")
			}
			return entity.Message{}, err
		}
		if parent.ChatId != chatId {
			return entity.Message{}, apperr.InvalidArgument("replyTo message belongs to another chat")
		}
	}

	message := entity.Message{
		ChatId:      chatId,
		SenderId:    senderId,
		Content:     payload.Content,
		MessageType: payload.MessageType,
		Media:       payload.Media,
		Location:    payload.Location,
		Contact:     payload.Contact,
		ReplyTo:     payload.ReplyTo,
		CreatedAt:   time.Now(),
	}

	created, err := m.messageRepo.Create(ctx, message)
	if err != nil {
		return entity.Message{}, err
	}

	// Required side effect of message creation, applied before returning.
	if err := m.chatRepo.SetLastMessage(ctx, chatId, created.Id, created.CreatedAt); err != nil {
		return entity.Message{}, err
	}

	if err := m.receiptUc.IncrementUnread(ctx, chat, senderId); err != nil {
		return entity.Message{}, err
	}

	recipients := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		if p != senderId {
			recipients = append(recipients, p)
		}
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		m.notifier.NotifyNewMessage(nctx, chatId, created.Id, senderId, recipients)
	}()

	return created, nil
}

func (m *messageUsecase) Delete(ctx context.Context, chatId, messageId, requesterId string) error {
	chat, err := m.participantChat(ctx, chatId, requesterId)
	if err != nil {
		return err
	}

	message, err := m.chatMessage(ctx, chat, messageId)
	if err != nil {
		return err
	}

	if message.SenderId != requesterId && !chat.IsAdmin(requesterId) {
		return apperr.PermissionDenied("message %s", messageId)
	}

	return m.messageRepo.SoftDelete(ctx, messageId)
}

func (m *messageUsecase) List(ctx context.Context, chatId, requesterId string, page int) ([]entity.Message, error) {
	if _, err := m.participantChat(ctx, chatId, requesterId); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	filter := entity.MessageIndexFilter{
		ChatId: chatId,
		Limit:  messagePageSize,
		Offset: (page - 1) * messagePageSize,
	}
	messages, err := m.messageRepo.GetByChatId(ctx, filter)
	if err != nil {
		return nil, err
	}

	// The store pages newest-first; clients render oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (m *messageUsecase) React(ctx context.Context, chatId, messageId, userId, emoji string) (entity.Message, error) {
	if emoji == "" {
		return entity.Message{}, apperr.InvalidArgument("emoji is required")
	}

	chat, err := m.participantChat(ctx, chatId, userId)
	if err != nil {
		return entity.Message{}, err
	}

	message, err := m.chatMessage(ctx, chat, messageId)
	if err != nil {
		return entity.Message{}, err
	}

	reaction := entity.Reaction{
		UserId:    userId,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	}
	if err := m.messageRepo.SetReaction(ctx, messageId, reaction); err != nil {
		return entity.Message{}, err
	}

	if message.SenderId != userId {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			m.notifier.NotifyReaction(nctx, messageId, userId, message.SenderId, emoji)
		}()
	}

	return m.messageRepo.Get(ctx, messageId)
}

func (m *messageUsecase) Unreact(ctx context.Context, chatId, messageId, userId, emoji string) (entity.Message, error) {
	chat, err := m.participantChat(ctx, chatId, userId)
	if err != nil {
		return entity.Message{}, err
	}

	if _, err := m.chatMessage(ctx, chat, messageId); err != nil {
		return entity.Message{}, err
	}

	if err := m.messageRepo.ClearReaction(ctx, messageId, userId, emoji); err != nil {
		return entity.Message{}, err
	}

	return m.messageRepo.Get(ctx, messageId)
}

func validatePayload(payload MessagePayload) error {
	if utf8.RuneCountInString(payload.Content) > entity.MaxMessageContentLen {
		return apperr.InvalidArgument("content exceeds %d characters", entity.MaxMessageContentLen)
	}

	switch payload.MessageType {
	case entity.MessageTypeText:
		if payload.Content == "" {
			return apperr.InvalidArgument("content is required for text messages")
		}
	case entity.MessageTypeImage, entity.MessageTypeFile, entity.MessageTypeAudio, entity.MessageTypeVideo:
		if payload.Media == nil || payload.Media.URL == "" {
			return apperr.InvalidArgument("media is required for %s messages", payload.MessageType)
		}
	case entity.MessageTypeLocation:
		if payload.Location == nil {
			return apperr.InvalidArgument("location is required for location messages")
		}
	case entity.MessageTypeContact:
		if payload.Contact == nil {
			return apperr.InvalidArgument("contact is required for contact messages")
		}
	default:
		return apperr.InvalidArgument("unknown message type %q", payload.MessageType)
	}

	return nil
}

func (m *messageUsecase) participantChat(ctx context.Context, chatId, userId string) (entity.Chat, error) {
	chat, err := m.chatRepo.Get(ctx, chatId)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return entity.Chat{}, apperr.PermissionDenied("chat %s", chatId)
		}
		return entity.Chat{}, err
	}
	if !chat.IsParticipant(userId) {
		return entity.Chat{}, apperr.PermissionDenied("chat %s", chatId)
	}
	return chat, nil
}

// chatMessage loads a message and pins it to the chat it is addressed
// through, so ids cannot be crossed between chats.
func (m *messageUsecase) chatMessage(ctx context.Context, chat entity.Chat, messageId string) (entity.Message, error) {
	message, err := m.messageRepo.Get(ctx, messageId)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return entity.Message{}, apperr.NotFound("message %s", messageId)
		}
		return entity.Message{}, err
	}
	if message.ChatId != chat.Id {
		return entity.Message{}, apperr.NotFound("message %s", messageId)
	}
	return message, nil
}
