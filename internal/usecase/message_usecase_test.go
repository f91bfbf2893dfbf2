package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"mingle/internal/apperr"
	"mingle/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type messageFixture struct {
	chatRepo    *fakeChatRepo
	messageRepo *fakeMessageRepo
	notifier    *fakeNotifier
	chatUc      ChatUsecase
	receiptUc   ReceiptUsecase
	messageUc   MessageUsecase
}

func newMessageFixture(userIds ...string) *messageFixture {
	log := zap.NewNop().Sugar()
	chatRepo := newFakeChatRepo()
	messageRepo := newFakeMessageRepo()
	userRepo := newFakeUserRepo(userIds...)
	notifier := &fakeNotifier{}
	receiptUc := NewReceiptUsecase(chatRepo, messageRepo, log)
	return &messageFixture{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		notifier:    notifier,
		chatUc:      NewChatUsecase(chatRepo, userRepo, log),
		receiptUc:   receiptUc,
		messageUc:   NewMessageUsecase(messageRepo, chatRepo, receiptUc, notifier, log),
	}
}

func textPayload(content string) MessagePayload {
	return MessagePayload{Content: content, MessageType: entity.MessageTypeText}
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)

	message, err := f.messageUc.Send(ctx, chat.Id, "1", textPayload("hi"))
	require.NoError(t, err)
	assert.Equal(t, chat.Id, message.ChatId)
	assert.Equal(t, "1", message.SenderId)

	// Side effects are applied before Send returns.
	updated, err := f.chatRepo.Get(ctx, chat.Id)
	require.NoError(t, err)
	assert.Equal(t, message.Id, updated.LastMessage)
	assert.False(t, updated.LastMessageAt.Before(message.CreatedAt))
	assert.Equal(t, 1, updated.Unread("2"))
	assert.Equal(t, 0, updated.Unread("1"))
}

func TestSendMessage_LastMessageMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)

	_, err = f.messageUc.Send(ctx, chat.Id, "1", textPayload("first"))
	require.NoError(t, err)
	second, err := f.messageUc.Send(ctx, chat.Id, "2", textPayload("second"))
	require.NoError(t, err)

	updated, err := f.chatRepo.Get(ctx, chat.Id)
	require.NoError(t, err)
	assert.Equal(t, second.Id, updated.LastMessage)
	assert.False(t, updated.LastMessageAt.Before(second.CreatedAt))
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2", "3")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)

	_, err = f.messageUc.Send(ctx, chat.Id, "3", textPayload("hi"))
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.messageUc.Send(ctx, chat.Id, "1", textPayload(""))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.messageUc.Send(ctx, chat.Id, "1", MessagePayload{MessageType: "sticker"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.messageUc.Send(ctx, chat.Id, "1", MessagePayload{MessageType: entity.MessageTypeImage})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestSendMessage_MultibyteContent(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)

	// 400 emoji are 1600 bytes but only 400 of the 1000 allowed characters.
	content := strings.Repeat("😊", 400)
	message, err := f.messageUc.Send(ctx, chat.Id, "1", textPayload(content))
	require.NoError(t, err)
	assert.Equal(t, content, message.Content)

	_, err = f.messageUc.Send(ctx, chat.Id, "1", textPayload(strings.Repeat("é", entity.MaxMessageContentLen+1)))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestSendMessage_MediaVariant(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)

	message, err := f.messageUc.Send(ctx, chat.Id, "1", MessagePayload{
		MessageType: entity.MessageTypeImage,
		Media:       &entity.MediaInfo{URL: "https://cdn.example/img.png", Width: 640, Height: 480},
	})
	require.NoError(t, err)
	require.NotNil(t, message.Media)
	assert.Empty(t, message.Content)
}

func TestSendMessage_ReplyTo(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2", "3")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)
	other, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "3")
	require.NoError(t, err)

	parent, err := f.messageUc.Send(ctx, chat.Id, "1", textPayload("parent"))
	require.NoError(t, err)

	reply, err := f.messageUc.Send(ctx, chat.Id, "2", MessagePayload{
		Content:     "child",
		MessageType: entity.MessageTypeText,
		ReplyTo:     parent.Id,
	})
	require.NoError(t, err)
	assert.Equal(t, parent.Id, reply.ReplyTo)

	// Replies may not cross chats.
	_, err = f.messageUc.Send(ctx, other.Id, "1", MessagePayload{
		Content:     "wrong chat",
		MessageType: entity.MessageTypeText,
		ReplyTo:     parent.Id,
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestReact_ReplaceSemantics(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)
	message, err := f.messageUc.Send(ctx, chat.Id, "1", textPayload("react to me"))
	require.NoError(t, err)

	updated, err := f.messageUc.React(ctx, chat.Id, message.Id, "2", "👍")
	require.NoError(t, err)
	require.Len(t, updated.Reactions, 1)
	assert.Equal(t, "👍", updated.Reactions[0].Emoji)

	// A new emoji replaces the old reaction, it does not add a second one.
	updated, err = f.messageUc.React(ctx, chat.Id, message.Id, "2", "❤️")
	require.NoError(t, err)
	require.Len(t, updated.Reactions, 1)
	assert.Equal(t, "❤️", updated.Reactions[0].Emoji)
	assert.Equal(t, "2", updated.Reactions[0].UserId)

	// Re-reacting with the same emoji is not a toggle.
	updated, err = f.messageUc.React(ctx, chat.Id, message.Id, "2", "❤️")
	require.NoError(t, err)
	require.Len(t, updated.Reactions, 1)

	counts := entity.CountReactions(updated.Reactions)
	assert.Equal(t, map[string]int{"❤️": 1}, counts)
}

func TestReact_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)
	message, err := f.messageUc.Send(ctx, chat.Id, "1", textPayload("pile on"))
	require.NoError(t, err)

	emojis := []string{"👍", "❤️", "😊", "🎉"}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.messageUc.React(ctx, chat.Id, message.Id, "2", emojis[i%len(emojis)])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// The replace is atomic: whichever reaction won, there is exactly one.
	updated, err := f.messageRepo.Get(ctx, message.Id)
	require.NoError(t, err)
	require.Len(t, updated.Reactions, 1)
	assert.Equal(t, "2", updated.Reactions[0].UserId)
}

func TestReact_EmptyEmoji(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)
	message, err := f.messageUc.Send(ctx, chat.Id, "1", textPayload("hello"))
	require.NoError(t, err)

	_, err = f.messageUc.React(ctx, chat.Id, message.Id, "2", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestUnreact(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)
	message, err := f.messageUc.Send(ctx, chat.Id, "1", textPayload("hello"))
	require.NoError(t, err)

	_, err = f.messageUc.React(ctx, chat.Id, message.Id, "2", "😊")
	require.NoError(t, err)

	updated, err := f.messageUc.Unreact(ctx, chat.Id, message.Id, "2", "😊")
	require.NoError(t, err)
	assert.Empty(t, updated.Reactions)

	// Clearing an absent reaction is a no-op, not an error.
	updated, err = f.messageUc.Unreact(ctx, chat.Id, message.Id, "2", "😊")
	require.NoError(t, err)
	assert.Empty(t, updated.Reactions)
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2", "3")

	chat, err := f.chatUc.CreateGroupChat(ctx, "1", "team", "", []string{"2", "3"}, entity.GroupSettings{})
	require.NoError(t, err)

	message, err := f.messageUc.Send(ctx, chat.Id, "2", textPayload("oops"))
	require.NoError(t, err)

	// Random members may not delete someone else's message.
	err = f.messageUc.Delete(ctx, chat.Id, message.Id, "3")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	// The sender may; so may the owner.
	require.NoError(t, f.messageUc.Delete(ctx, chat.Id, message.Id, "2"))

	messages, err := f.messageUc.List(ctx, chat.Id, "1", 1)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDeleteMessage_ByAdmin(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2", "3")

	chat, err := f.chatUc.CreateGroupChat(ctx, "1", "team", "", []string{"2", "3"}, entity.GroupSettings{})
	require.NoError(t, err)

	message, err := f.messageUc.Send(ctx, chat.Id, "2", textPayload("spam"))
	require.NoError(t, err)

	require.NoError(t, f.messageUc.Delete(ctx, chat.Id, message.Id, "1"))
}

func TestListMessages_Ordering(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2")

	chat, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)

	base := time.Now()
	for i, content := range []string{"one", "two", "three"} {
		_, err := f.messageRepo.Create(ctx, entity.Message{
			ChatId:      chat.Id,
			SenderId:    "1",
			Content:     content,
			MessageType: entity.MessageTypeText,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	messages, err := f.messageUc.List(ctx, chat.Id, "2", 1)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)
	assert.Equal(t, "three", messages[2].Content)

	_, err = f.messageUc.List(ctx, chat.Id, "outsider", 1)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestMessageIdsCannotCrossChats(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture("1", "2", "3")

	chatAB, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "2")
	require.NoError(t, err)
	chatAC, err := f.chatUc.GetOrCreateDirectChat(ctx, "1", "3")
	require.NoError(t, err)

	message, err := f.messageUc.Send(ctx, chatAB.Id, "1", textPayload("private"))
	require.NoError(t, err)

	_, err = f.messageUc.React(ctx, chatAC.Id, message.Id, "3", "👀")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
