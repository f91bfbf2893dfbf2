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

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository interface {
	Get(ctx context.Context, messageId string) (entity.Message, error)
	Create(ctx context.Context, message entity.Message) (entity.Message, error)
	GetByChatId(ctx context.Context, filter entity.MessageIndexFilter) ([]entity.Message, error)
	SoftDelete(ctx context.Context, messageId string) error

	// Reactions: replace semantics, a user holds at most one per message.
	SetReaction(ctx context.Context, messageId string, reaction entity.Reaction) error
	ClearReaction(ctx context.Context, messageId, userId, emoji string) error

	// Read receipts for every message in a chat not sent by userId and not
	// already read by them.
	MarkReadByUser(ctx context.Context, chatId, userId string, at time.Time) error
}

type messageRepository struct {
	db mongo.Database
}

func NewMessageRepository(db mongo.Database) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) Get(ctx context.Context, messageId string) (entity.Message, error) {
	collection := r.db.Collection("messages")
	filter := bson.M{"_id": messageId, "isDeleted": false}

	var message entity.Message
	err := collection.FindOne(ctx, filter).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) Create(ctx context.Context, message entity.Message) (entity.Message, error) {
	collection := r.db.Collection("messages")
	message.Id = uuid.New().String()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := collection.InsertOne(ctx, message)
	if err != nil {
		return entity.Message{}, err
	}

	return message, nil
}

// GetByChatId returns a page of non-deleted messages, newest first.
func (r *messageRepository) GetByChatId(ctx context.Context, filter entity.MessageIndexFilter) ([]entity.Message, error) {
	collection := r.db.Collection("messages")
	bsonFilter := bson.M{
		"chatId":    filter.ChatId,
		"isDeleted": false,
	}

	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := collection.Find(ctx, bsonFilter, opts)
	if err != nil {
		return nil, err
	}

	var messages []entity.Message
	err = cursor.All(ctx, &messages)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// SoftDelete hides the message from listings. Reactions and read receipts on
// it are left untouched.
func (r *messageRepository) SoftDelete(ctx context.Context, messageId string) error {
	collection := r.db.Collection("messages")
	filter := bson.M{"_id": messageId}
	update := bson.M{
		"$set": bson.M{"isDeleted": true},
	}

	_, err := collection.UpdateOne(ctx, filter, update)
	return err
}

// SetReaction removes any prior reaction from the user and adds the new one.
// A single pipeline update keeps the replace atomic: two concurrent reactions
// from the same user can never both survive.
func (r *messageRepository) SetReaction(ctx context.Context, messageId string, reaction entity.Reaction) error {
	collection := r.db.Collection("messages")

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reactions": bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this.userId", reaction.UserId}},
				}},
				bson.A{bson.M{"$literal": reaction}},
			}},
		}}},
	}

	_, err := collection.UpdateOne(ctx, bson.M{"_id": messageId}, update)
	return err
}

func (r *messageRepository) ClearReaction(ctx context.Context, messageId, userId, emoji string) error {
	collection := r.db.Collection("messages")
	_, err := collection.UpdateOne(ctx,
		bson.M{"_id": messageId},
		bson.M{"$pull": bson.M{"reactions": bson.M{"userId": userId, "emoji": emoji}}},
	)
	return err
}

// MarkReadByUser appends a read receipt to every message in the chat the user
// has not sent and not yet read. The filter keeps the operation idempotent.
func (r *messageRepository) MarkReadByUser(ctx context.Context, chatId, userId string, at time.Time) error {
	collection := r.db.Collection("messages")
	filter := bson.M{
		"chatId":        chatId,
		"senderId":      bson.M{"$ne": userId},
		"readBy.userId": bson.M{"$ne": userId},
	}
	update := bson.M{
		"$push": bson.M{
			"readBy": entity.ReadReceipt{UserId: userId, ReadAt: at},
		},
	}

	_, err := collection.UpdateMany(ctx, filter, update)
	return err
}
