package usecase

import (
	"context"
	"errors"
	"time"

	"mingle/internal/apperr"
	"mingle/internal/entity"
	"mingle/internal/repository"

	"go.uber.org/zap"
)

// ReceiptUsecase tracks per-chat per-user unread counters and message read
// state. These are best-effort bookkeeping operations: apart from the
// participant check nothing here fails the caller.
type ReceiptUsecase interface {
	// MarkRead zeroes the user's unread counter and appends a read receipt
	// to every message in the chat they did not send and have not read.
	// Idempotent.
	MarkRead(ctx context.Context, chatId, userId string) error

	// IncrementUnread bumps the counter of every active participant except
	// exceptUserId by one. Atomic per counter, never read-modify-write.
	IncrementUnread(ctx context.Context, chat entity.Chat, exceptUserId string) error

	// Unread returns the counter, 0 for users with no entry.
	Unread(ctx context.Context, chatId, userId string) (int, error)
}

type receiptUsecase struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	log         *zap.SugaredLogger
}

func NewReceiptUsecase(chatRepo repository.ChatRepository, messageRepo repository.MessageRepository, log *zap.SugaredLogger) ReceiptUsecase {
	return &receiptUsecase{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		log:         log,
	}
}

func (r *receiptUsecase) MarkRead(ctx context.Context, chatId, userId string) error {
	if _, err := r.participantChat(ctx, chatId, userId); err != nil {
		return err
	}

	if err := r.chatRepo.ResetUnread(ctx, chatId, userId); err != nil {
		return err
	}

	return r.messageRepo.MarkReadByUser(ctx, chatId, userId, time.Now())
}

func (r *receiptUsecase) IncrementUnread(ctx context.Context, chat entity.Chat, exceptUserId string) error {
	recipients := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		if p != exceptUserId {
			recipients = append(recipients, p)
		}
	}

	return r.chatRepo.IncrementUnread(ctx, chat.Id, recipients)
}

func (r *receiptUsecase) Unread(ctx context.Context, chatId, userId string) (int, error) {
	chat, err := r.participantChat(ctx, chatId, userId)
	if err != nil {
		return 0, err
	}
	return chat.Unread(userId), nil
}

func (r *receiptUsecase) participantChat(ctx context.Context, chatId, userId string) (entity.Chat, error) {
	chat, err := r.chatRepo.Get(ctx, chatId)
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
