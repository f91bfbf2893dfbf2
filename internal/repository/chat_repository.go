package repository

import (
	"context"
	"errors"
	"time"

	"mingle/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrUserNotFound = errors.New("user not found")
)

type ChatRepository interface {
	Get(ctx context.Context, chatId string) (entity.Chat, error)
	Index(ctx context.Context, filter entity.ChatIndexFilter) ([]entity.Chat, error)
	Create(ctx context.Context, chat entity.Chat) (string, error)
	Deactivate(ctx context.Context, chatId string) error

	// Direct chat lookup by the canonical pair key.
	FindDirectChat(ctx context.Context, directKey string) (entity.Chat, error)

	// Message side effects on the chat document.
	SetLastMessage(ctx context.Context, chatId, messageId string, at time.Time) error
	IncrementUnread(ctx context.Context, chatId string, userIds []string) error
	ResetUnread(ctx context.Context, chatId, userId string) error

	// Group membership.
	UpsertMember(ctx context.Context, chatId string, member entity.ChatMember) error
	DeactivateMember(ctx context.Context, chatId, userId string) error

	// Typing presence.
	SetTyping(ctx context.Context, chatId, userId string, at time.Time) error
	ClearTyping(ctx context.Context, chatId, userId string) error
	PurgeTypingBefore(ctx context.Context, chatId string, cutoff time.Time) error
}

type chatRepository struct {
	db mongo.Database
}

func NewChatRepository(db mongo.Database) ChatRepository {
	return &chatRepository{
		db: db,
	}
}

// Get returns an active chat by ID.
func (r *chatRepository) Get(ctx context.Context, chatId string) (entity.Chat, error) {
	collection := r.db.Collection("chats")
	filter := bson.M{"_id": chatId, "isActive": true}

	var chat entity.Chat
	err := collection.FindOne(ctx, filter).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Chat{}, ErrChatNotFound
		}
		return entity.Chat{}, err
	}

	return chat, nil
}

// Index returns the chats a user participates in, most recently active first.
func (r *chatRepository) Index(ctx context.Context, filter entity.ChatIndexFilter) ([]entity.Chat, error) {
	collection := r.db.Collection("chats")
	bsonFilter := bson.M{
		"participants": filter.UserId,
		"isActive":     true,
	}

	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	opts.SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})

	cursor, err := collection.Find(ctx, bsonFilter, opts)
	if err != nil {
		return nil, err
	}

	var chats []entity.Chat
	err = cursor.All(ctx, &chats)
	if err != nil {
		return nil, err
	}

	return chats, nil
}

// Create creates a new chat.
func (r *chatRepository) Create(ctx context.Context, chat entity.Chat) (string, error) {
	collection := r.db.Collection("chats")
	chat.Id = uuid.New().String()
	chat.IsActive = true
	chat.CreatedAt = time.Now()
	chat.UpdatedAt = chat.CreatedAt

	_, err := collection.InsertOne(ctx, chat)
	if err != nil {
		return "", err
	}

	return chat.Id, nil
}

// Deactivate soft-deletes a chat. Chats are never physically removed.
func (r *chatRepository) Deactivate(ctx context.Context, chatId string) error {
	collection := r.db.Collection("chats")
	filter := bson.M{"_id": chatId}
	update := bson.M{
		"$set": bson.M{
			"isActive":  false,
			"updatedAt": time.Now(),
		},
	}

	_, err := collection.UpdateOne(ctx, filter, update)
	return err
}

// FindDirectChat finds the active direct chat for a canonical pair key.
func (r *chatRepository) FindDirectChat(ctx context.Context, directKey string) (entity.Chat, error) {
	collection := r.db.Collection("chats")
	filter := bson.M{
		"chatType":  entity.ChatTypeDirect,
		"directKey": directKey,
		"isActive":  true,
	}

	var chat entity.Chat
	err := collection.FindOne(ctx, filter).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Chat{}, ErrChatNotFound
		}
		return entity.Chat{}, err
	}

	return chat, nil
}

// SetLastMessage advances the chat's last-message pointer. lastMessageAt uses
// $max so near-simultaneous senders cannot move it backwards.
func (r *chatRepository) SetLastMessage(ctx context.Context, chatId, messageId string, at time.Time) error {
	collection := r.db.Collection("chats")
	filter := bson.M{"_id": chatId}
	update := bson.M{
		"$set": bson.M{
			"lastMessage": messageId,
			"updatedAt":   time.Now(),
		},
		"$max": bson.M{
			"lastMessageAt": at,
		},
	}

	_, err := collection.UpdateOne(ctx, filter, update)
	return err
}

// IncrementUnread bumps the per-user unread counters by one. $inc is atomic
// per key, so concurrent senders never lose increments.
func (r *chatRepository) IncrementUnread(ctx context.Context, chatId string, userIds []string) error {
	if len(userIds) == 0 {
		return nil
	}

	collection := r.db.Collection("chats")
	filter := bson.M{"_id": chatId}

	inc := bson.M{}
	for _, userId := range userIds {
		inc["unreadCount."+userId] = 1
	}

	_, err := collection.UpdateOne(ctx, filter, bson.M{"$inc": inc})
	return err
}

func (r *chatRepository) ResetUnread(ctx context.Context, chatId, userId string) error {
	collection := r.db.Collection("chats")
	filter := bson.M{"_id": chatId}
	update := bson.M{
		"$set": bson.M{
			"unreadCount." + userId: 0,
		},
	}

	_, err := collection.UpdateOne(ctx, filter, update)
	return err
}

// UpsertMember replaces any membership record for the user and keeps the
// participants set in sync, all in one atomic pipeline update.
func (r *chatRepository) UpsertMember(ctx context.Context, chatId string, member entity.ChatMember) error {
	collection := r.db.Collection("chats")

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"members": bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$members", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this.userId", member.UserId}},
				}},
				bson.A{bson.M{"$literal": member}},
			}},
			"participants": bson.M{"$setUnion": bson.A{
				bson.M{"$ifNull": bson.A{"$participants", bson.A{}}},
				bson.A{member.UserId},
			}},
			"updatedAt": "$$NOW",
		}}},
	}

	_, err := collection.UpdateOne(ctx, bson.M{"_id": chatId}, update)
	return err
}

// DeactivateMember marks the membership inactive and drops the user from the
// participants set.
func (r *chatRepository) DeactivateMember(ctx context.Context, chatId, userId string) error {
	collection := r.db.Collection("chats")

	_, err := collection.UpdateOne(ctx,
		bson.M{"_id": chatId, "members.userId": userId},
		bson.M{"$set": bson.M{"members.$.isActive": false, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}

	_, err = collection.UpdateOne(ctx,
		bson.M{"_id": chatId},
		bson.M{"$pull": bson.M{"participants": userId}},
	)
	return err
}

// SetTyping upserts the typing entry for a user, resetting its timer. The
// replace runs as one pipeline update so refreshes cannot duplicate entries.
func (r *chatRepository) SetTyping(ctx context.Context, chatId, userId string, at time.Time) error {
	collection := r.db.Collection("chats")

	entry := entity.TypingEntry{UserId: userId, StartedAt: at}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"typingUsers": bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$typingUsers", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this.userId", userId}},
				}},
				bson.A{bson.M{"$literal": entry}},
			}},
		}}},
	}

	_, err := collection.UpdateOne(ctx, bson.M{"_id": chatId}, update)
	return err
}

func (r *chatRepository) ClearTyping(ctx context.Context, chatId, userId string) error {
	collection := r.db.Collection("chats")
	_, err := collection.UpdateOne(ctx,
		bson.M{"_id": chatId},
		bson.M{"$pull": bson.M{"typingUsers": bson.M{"userId": userId}}},
	)
	return err
}

// PurgeTypingBefore drops expired typing entries. Readers call this before
// reading typingUsers; there is no background sweeper.
func (r *chatRepository) PurgeTypingBefore(ctx context.Context, chatId string, cutoff time.Time) error {
	collection := r.db.Collection("chats")
	_, err := collection.UpdateOne(ctx,
		bson.M{"_id": chatId},
		bson.M{"$pull": bson.M{"typingUsers": bson.M{"startedAt": bson.M{"$lte": cutoff}}}},
	)
	return err
}
