package usecase

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"mingle/internal/entity"
	"mingle/internal/repository"
)

// In-memory repository fakes honoring the same contracts as the mongo
// implementations, including atomic unread increments.

type fakeChatRepo struct {
	mu    sync.Mutex
	chats map[string]*entity.Chat
	seq   int
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*entity.Chat)}
}

func (f *fakeChatRepo) Get(_ context.Context, chatId string) (entity.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok || !chat.IsActive {
		return entity.Chat{}, repository.ErrChatNotFound
	}
	return *chat, nil
}

func (f *fakeChatRepo) Index(_ context.Context, filter entity.ChatIndexFilter) ([]entity.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var chats []entity.Chat
	for _, chat := range f.chats {
		if chat.IsActive && chat.IsParticipant(filter.UserId) {
			chats = append(chats, *chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessageAt.After(chats[j].LastMessageAt)
	})
	return chats, nil
}

func (f *fakeChatRepo) Create(_ context.Context, chat entity.Chat) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	chat.Id = "chat-" + strconv.Itoa(f.seq)
	chat.IsActive = true
	chat.CreatedAt = time.Now()
	chat.UpdatedAt = chat.CreatedAt
	f.chats[chat.Id] = &chat
	return chat.Id, nil
}

func (f *fakeChatRepo) Deactivate(_ context.Context, chatId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chat, ok := f.chats[chatId]; ok {
		chat.IsActive = false
	}
	return nil
}

func (f *fakeChatRepo) FindDirectChat(_ context.Context, directKey string) (entity.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, chat := range f.chats {
		if chat.IsActive && chat.ChatType == entity.ChatTypeDirect && chat.DirectKey == directKey {
			return *chat, nil
		}
	}
	return entity.Chat{}, repository.ErrChatNotFound
}

func (f *fakeChatRepo) SetLastMessage(_ context.Context, chatId, messageId string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	chat.LastMessage = messageId
	if at.After(chat.LastMessageAt) {
		chat.LastMessageAt = at
	}
	return nil
}

func (f *fakeChatRepo) IncrementUnread(_ context.Context, chatId string, userIds []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	if chat.UnreadCount == nil {
		chat.UnreadCount = make(map[string]int)
	}
	for _, userId := range userIds {
		chat.UnreadCount[userId]++
	}
	return nil
}

func (f *fakeChatRepo) ResetUnread(_ context.Context, chatId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	if chat.UnreadCount == nil {
		chat.UnreadCount = make(map[string]int)
	}
	chat.UnreadCount[userId] = 0
	return nil
}

func (f *fakeChatRepo) UpsertMember(_ context.Context, chatId string, member entity.ChatMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	members := chat.Members[:0]
	for _, m := range chat.Members {
		if m.UserId != member.UserId {
			members = append(members, m)
		}
	}
	chat.Members = append(members, member)
	if !chat.IsParticipant(member.UserId) {
		chat.Participants = append(chat.Participants, member.UserId)
	}
	return nil
}

func (f *fakeChatRepo) DeactivateMember(_ context.Context, chatId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	for i, m := range chat.Members {
		if m.UserId == userId {
			chat.Members[i].IsActive = false
		}
	}
	participants := chat.Participants[:0]
	for _, p := range chat.Participants {
		if p != userId {
			participants = append(participants, p)
		}
	}
	chat.Participants = participants
	return nil
}

func (f *fakeChatRepo) SetTyping(_ context.Context, chatId, userId string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	entries := chat.TypingUsers[:0]
	for _, t := range chat.TypingUsers {
		if t.UserId != userId {
			entries = append(entries, t)
		}
	}
	chat.TypingUsers = append(entries, entity.TypingEntry{UserId: userId, StartedAt: at})
	return nil
}

func (f *fakeChatRepo) ClearTyping(_ context.Context, chatId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	entries := chat.TypingUsers[:0]
	for _, t := range chat.TypingUsers {
		if t.UserId != userId {
			entries = append(entries, t)
		}
	}
	chat.TypingUsers = entries
	return nil
}

func (f *fakeChatRepo) PurgeTypingBefore(_ context.Context, chatId string, cutoff time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatId]
	if !ok {
		return repository.ErrChatNotFound
	}
	entries := make([]entity.TypingEntry, 0, len(chat.TypingUsers))
	for _, t := range chat.TypingUsers {
		if t.StartedAt.After(cutoff) {
			entries = append(entries, t)
		}
	}
	chat.TypingUsers = entries
	return nil
}

// setTypingAt plants a typing entry with an arbitrary timestamp, bypassing
// the usecase, to exercise TTL expiry.
func (f *fakeChatRepo) setTypingAt(chatId, userId string, at time.Time) {
	_ = f.SetTyping(context.Background(), chatId, userId, at)
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*entity.Message
	seq      int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*entity.Message)}
}

func (f *fakeMessageRepo) Get(_ context.Context, messageId string) (entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[messageId]
	if !ok || message.IsDeleted {
		return entity.Message{}, repository.ErrMessageNotFound
	}
	return *message, nil
}

func (f *fakeMessageRepo) Create(_ context.Context, message entity.Message) (entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	message.Id = "msg-" + strconv.Itoa(f.seq)
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	f.messages[message.Id] = &message
	return message, nil
}

func (f *fakeMessageRepo) GetByChatId(_ context.Context, filter entity.MessageIndexFilter) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var messages []entity.Message
	for _, m := range f.messages {
		if m.ChatId == filter.ChatId && !m.IsDeleted {
			messages = append(messages, *m)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(messages) {
			return nil, nil
		}
		messages = messages[filter.Offset:]
	}
	if filter.Limit > 0 && len(messages) > filter.Limit {
		messages = messages[:filter.Limit]
	}
	return messages, nil
}

func (f *fakeMessageRepo) SoftDelete(_ context.Context, messageId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if message, ok := f.messages[messageId]; ok {
		message.IsDeleted = true
	}
	return nil
}

func (f *fakeMessageRepo) SetReaction(_ context.Context, messageId string, reaction entity.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[messageId]
	if !ok {
		return repository.ErrMessageNotFound
	}
	reactions := message.Reactions[:0]
	for _, r := range message.Reactions {
		if r.UserId != reaction.UserId {
			reactions = append(reactions, r)
		}
	}
	message.Reactions = append(reactions, reaction)
	return nil
}

func (f *fakeMessageRepo) ClearReaction(_ context.Context, messageId, userId, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[messageId]
	if !ok {
		return repository.ErrMessageNotFound
	}
	reactions := message.Reactions[:0]
	for _, r := range message.Reactions {
		if r.UserId != userId || r.Emoji != emoji {
			reactions = append(reactions, r)
		}
	}
	message.Reactions = reactions
	return nil
}

func (f *fakeMessageRepo) MarkReadByUser(_ context.Context, chatId, userId string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ChatId != chatId || m.SenderId == userId || m.ReadByUser(userId) {
			continue
		}
		m.ReadBy = append(m.ReadBy, entity.ReadReceipt{UserId: userId, ReadAt: at})
	}
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]entity.User
}

func newFakeUserRepo(userIds ...string) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]entity.User)}
	for _, id := range userIds {
		f.users[id] = entity.User{Id: id, Username: id, Name: "user " + id, IsActive: true}
	}
	return f
}

func (f *fakeUserRepo) Get(_ context.Context, userId string) (entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok || !user.IsActive {
		return entity.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) Index(_ context.Context, filter entity.UserIndexFilter) ([]entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []entity.User
	for _, id := range filter.Ids {
		if user, ok := f.users[id]; ok && user.IsActive {
			users = append(users, user)
		}
	}
	return users, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	messages  int
	reactions int
}

func (f *fakeNotifier) NotifyNewMessage(_ context.Context, _, _, _ string, _ []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages++
}

func (f *fakeNotifier) NotifyReaction(_ context.Context, _, _, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions++
}

func (f *fakeNotifier) Close() error { return nil }
