package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"
	"unicode/utf8"

	"mingle/internal/apperr"
	"mingle/internal/entity"
	"mingle/internal/repository"

	"go.uber.org/zap"
)

const chatPageSize = 50

// directChatStripes sizes the lock table serializing direct-chat creation.
const directChatStripes = 64

type ChatUsecase interface {
	// GetOrCreateDirectChat returns the unique active direct chat between two
	// users, creating it on first request. Idempotent and safe under
	// concurrent calls from either side of the pair.
	GetOrCreateDirectChat(ctx context.Context, userA, userB string) (entity.Chat, error)

	CreateGroupChat(ctx context.Context, creatorId, name, description string, participantIds []string, settings entity.GroupSettings) (entity.Chat, error)
	AddMember(ctx context.Context, chatId, actorId, userId, role string) error
	RemoveMember(ctx context.Context, chatId, actorId, userId string) error
	LeaveGroup(ctx context.Context, chatId, userId string) error

	Index(ctx context.Context, userId string, page int) ([]entity.Chat, error)
	Get(ctx context.Context, chatId, userId string) (entity.Chat, error)
}

type chatUsecase struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	log      *zap.SugaredLogger

	directLocks [directChatStripes]sync.Mutex
}

func NewChatUsecase(chatRepo repository.ChatRepository, userRepo repository.UserRepository, log *zap.SugaredLogger) ChatUsecase {
	return &chatUsecase{
		chatRepo: chatRepo,
		userRepo: userRepo,
		log:      log,
	}
}

func (c *chatUsecase) GetOrCreateDirectChat(ctx context.Context, userA, userB string) (entity.Chat, error) {
	if userA == userB {
		return entity.Chat{}, apperr.InvalidArgument("cannot open a direct chat with yourself")
	}

	if _, err := c.userRepo.Get(ctx, userB); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return entity.Chat{}, apperr.NotFound("user %s", userB)
		}
		return entity.Chat{}, err
	}

	key := entity.DirectPairKey(userA, userB)

	// Serialize per unordered pair so both sides racing on first contact
	// cannot create duplicate chats.
	lock := &c.directLocks[stripeFor(key)]
	lock.Lock()
	defer lock.Unlock()

	chat, err := c.chatRepo.FindDirectChat(ctx, key)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, repository.ErrChatNotFound) {
		return entity.Chat{}, err
	}

	now := time.Now()
	chat = entity.Chat{
		ChatType:      entity.ChatTypeDirect,
		Participants:  []string{userA, userB},
		DirectKey:     key,
		LastMessageAt: now,
	}

	chatId, err := c.chatRepo.Create(ctx, chat)
	if err != nil {
		return entity.Chat{}, err
	}

	created, err := c.chatRepo.Get(ctx, chatId)
	if err != nil {
		return entity.Chat{}, err
	}

	c.log.Infow("direct chat created", "chatId", chatId)
	return created, nil
}

func (c *chatUsecase) CreateGroupChat(ctx context.Context, creatorId, name, description string, participantIds []string, settings entity.GroupSettings) (entity.Chat, error) {
	if name == "" {
		return entity.Chat{}, apperr.InvalidArgument("group name is required")
	}
	// Limits are in characters, not bytes.
	if utf8.RuneCountInString(name) > entity.MaxGroupNameLen {
		return entity.Chat{}, apperr.InvalidArgument("group name exceeds %d characters", entity.MaxGroupNameLen)
	}
	if utf8.RuneCountInString(description) > entity.MaxGroupDescriptionLen {
		return entity.Chat{}, apperr.InvalidArgument("group description exceeds %d characters", entity.MaxGroupDescriptionLen)
	}

	// Deduplicate, dropping the creator who is implicitly included.
	seen := map[string]bool{creatorId: true}
	others := make([]string, 0, len(participantIds))
	for _, id := range participantIds {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		others = append(others, id)
	}
	if len(others) < 2 {
		return entity.Chat{}, apperr.InvalidArgument("a group needs at least 2 other members")
	}

	users, err := c.userRepo.Index(ctx, entity.UserIndexFilter{Ids: others})
	if err != nil {
		return entity.Chat{}, err
	}
	if len(users) != len(others) {
		found := make(map[string]bool, len(users))
		for _, u := range users {
			found[u.Id] = true
		}
		for _, id := range others {
			if !found[id] {
				return entity.Chat{}, apperr.NotFound("user %s", id)
			}
		}
	}

	now := time.Now()
	members := make([]entity.ChatMember, 0, len(others)+1)
	members = append(members, entity.ChatMember{
		UserId:   creatorId,
		Role:     entity.RoleOwner,
		JoinedAt: now,
		IsActive: true,
	})
	for _, id := range others {
		members = append(members, entity.ChatMember{
			UserId:   id,
			Role:     entity.RoleMember,
			JoinedAt: now,
			IsActive: true,
		})
	}

	chat := entity.Chat{
		ChatType:      entity.ChatTypeGroup,
		Name:          name,
		Description:   description,
		Settings:      settings,
		Participants:  append([]string{creatorId}, others...),
		Members:       members,
		Admins:        []string{creatorId},
		Owner:         creatorId,
		LastMessageAt: now,
	}

	chatId, err := c.chatRepo.Create(ctx, chat)
	if err != nil {
		return entity.Chat{}, err
	}

	created, err := c.chatRepo.Get(ctx, chatId)
	if err != nil {
		return entity.Chat{}, err
	}

	c.log.Infow("group chat created", "chatId", chatId, "members", len(members))
	return created, nil
}

func (c *chatUsecase) AddMember(ctx context.Context, chatId, actorId, userId, role string) error {
	chat, err := c.authorizedChat(ctx, chatId, actorId)
	if err != nil {
		return err
	}
	if chat.ChatType != entity.ChatTypeGroup {
		return apperr.InvalidArgument("members can only be added to group chats")
	}
	if !chat.IsAdmin(actorId) && !chat.Settings.AllowMemberInvites {
		return apperr.PermissionDenied("only admins may add members")
	}
	if role == "" {
		role = entity.RoleMember
	}
	if role != entity.RoleMember && role != entity.RoleAdmin {
		return apperr.InvalidArgument("invalid role %q", role)
	}
	if chat.Settings.MaxMembers > 0 && len(chat.Participants) >= chat.Settings.MaxMembers {
		return apperr.InvalidArgument("group is full")
	}

	if _, err := c.userRepo.Get(ctx, userId); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("user %s", userId)
		}
		return err
	}

	member := entity.ChatMember{
		UserId:   userId,
		Role:     role,
		JoinedAt: time.Now(),
		IsActive: true,
	}
	return c.chatRepo.UpsertMember(ctx, chatId, member)
}

func (c *chatUsecase) RemoveMember(ctx context.Context, chatId, actorId, userId string) error {
	chat, err := c.authorizedChat(ctx, chatId, actorId)
	if err != nil {
		return err
	}
	if chat.ChatType != entity.ChatTypeGroup {
		return apperr.InvalidArgument("members can only be removed from group chats")
	}
	if actorId != userId && !chat.IsAdmin(actorId) {
		return apperr.PermissionDenied("only admins may remove members")
	}
	if userId == chat.Owner {
		return apperr.InvalidArgument("the owner cannot be removed")
	}

	return c.chatRepo.DeactivateMember(ctx, chatId, userId)
}

func (c *chatUsecase) LeaveGroup(ctx context.Context, chatId, userId string) error {
	return c.RemoveMember(ctx, chatId, userId, userId)
}

func (c *chatUsecase) Index(ctx context.Context, userId string, page int) ([]entity.Chat, error) {
	if page < 1 {
		page = 1
	}
	filter := entity.ChatIndexFilter{
		UserId: userId,
		Limit:  chatPageSize,
		Offset: (page - 1) * chatPageSize,
	}

	chats, err := c.chatRepo.Index(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.resolveDirectNames(ctx, chats, userId)
	return chats, nil
}

func (c *chatUsecase) Get(ctx context.Context, chatId, userId string) (entity.Chat, error) {
	return c.authorizedChat(ctx, chatId, userId)
}

// authorizedChat loads a chat and enforces the uniform access policy:
// non-participants get permission denied whether or not the chat exists.
func (c *chatUsecase) authorizedChat(ctx context.Context, chatId, userId string) (entity.Chat, error) {
	chat, err := c.chatRepo.Get(ctx, chatId)
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

// resolveDirectNames labels each direct chat with the counterpart's display
// name. Lookup failures leave the chat unlabeled; listing still succeeds.
func (c *chatUsecase) resolveDirectNames(ctx context.Context, chats []entity.Chat, userId string) {
	otherIds := make([]string, 0)
	for _, chat := range chats {
		if chat.ChatType != entity.ChatTypeDirect {
			continue
		}
		for _, p := range chat.Participants {
			if p != userId {
				otherIds = append(otherIds, p)
			}
		}
	}
	if len(otherIds) == 0 {
		return
	}

	users, err := c.userRepo.Index(ctx, entity.UserIndexFilter{Ids: otherIds})
	if err != nil {
		c.log.Warnw("resolve direct chat names", "error", err)
		return
	}
	byId := make(map[string]entity.User, len(users))
	for _, u := range users {
		byId[u.Id] = u
	}

	for i, chat := range chats {
		if chat.ChatType != entity.ChatTypeDirect {
			continue
		}
		for _, p := range chat.Participants {
			if p == userId {
				continue
			}
			if other, ok := byId[p]; ok {
				chats[i].Name = other.Name
			}
			break
		}
	}
}

func stripeFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % directChatStripes
}
