package usecase

import (
	"context"
	"errors"
	"time"

	"mingle/internal/apperr"
	"mingle/internal/entity"
	"mingle/internal/repository"
)

// TypingUsecase tracks the ephemeral typing-user set of a chat. Entries
// expire after entity.TypingTTL and are purged lazily on read; losing an
// update here is tolerable.
type TypingUsecase interface {
	Start(ctx context.Context, chatId, userId string) error
	Stop(ctx context.Context, chatId, userId string) error

	// List purges expired entries, then returns the remaining user ids.
	// It never returns a stale entry.
	List(ctx context.Context, chatId, userId string) ([]string, error)
}

type typingUsecase struct {
	chatRepo repository.ChatRepository
}

func NewTypingUsecase(chatRepo repository.ChatRepository) TypingUsecase {
	return &typingUsecase{
		chatRepo: chatRepo,
	}
}

func (t *typingUsecase) Start(ctx context.Context, chatId, userId string) error {
	if err := t.checkParticipant(ctx, chatId, userId); err != nil {
		return err
	}
	return t.chatRepo.SetTyping(ctx, chatId, userId, time.Now())
}

func (t *typingUsecase) Stop(ctx context.Context, chatId, userId string) error {
	if err := t.checkParticipant(ctx, chatId, userId); err != nil {
		return err
	}
	return t.chatRepo.ClearTyping(ctx, chatId, userId)
}

func (t *typingUsecase) List(ctx context.Context, chatId, userId string) ([]string, error) {
	now := time.Now()

	chat, err := t.chatRepo.Get(ctx, chatId)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, apperr.PermissionDenied("chat %s", chatId)
		}
		return nil, err
	}
	if !chat.IsParticipant(userId) {
		return nil, apperr.PermissionDenied("chat %s", chatId)
	}

	// Read repairs state: there is no background sweeper. Only authorized
	// reads write; ActiveTyping filters the snapshot the same way.
	if err := t.chatRepo.PurgeTypingBefore(ctx, chatId, now.Add(-entity.TypingTTL)); err != nil {
		return nil, err
	}

	return chat.ActiveTyping(now), nil
}

func (t *typingUsecase) checkParticipant(ctx context.Context, chatId, userId string) error {
	chat, err := t.chatRepo.Get(ctx, chatId)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return apperr.PermissionDenied("chat %s", chatId)
		}
		return err
	}
	if !chat.IsParticipant(userId) {
		return apperr.PermissionDenied("chat %s", chatId)
	}
	return nil
}
