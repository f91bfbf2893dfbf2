package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisHub extends the in-memory hub with a Redis pub/sub bridge so a room
// spans server instances: every broadcast is delivered locally and published
// for the other instances to replay to their own members of the room.
type RedisHub struct {
	*Hub

	redisClient *redis.Client
	pubsub      *redis.PubSub
	serverID    string
}

type roomEvent struct {
	FromServerID string `json:"fromServerId"`
	RoomID       string `json:"roomId"`
	Payload      []byte `json:"payload"`
}

func NewRedisHub(redisAddr, serverID string, log *zap.SugaredLogger) *RedisHub {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	hub := &RedisHub{
		Hub:         NewHub(log),
		redisClient: rdb,
		serverID:    serverID,
	}

	hub.pubsub = rdb.PSubscribe(context.Background(), "rooms:*")
	return hub
}

func (h *RedisHub) Run() {
	go h.subscribeRedis()
	h.Hub.Run()
}

func (h *RedisHub) BroadcastToRoom(roomId string, payload []byte, exclude *UserClient) {
	h.Hub.BroadcastToRoom(roomId, payload, exclude)

	ev := roomEvent{
		FromServerID: h.serverID,
		RoomID:       roomId,
		Payload:      payload,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Errorw("marshal room event", "error", err)
		return
	}

	if err := h.redisClient.Publish(context.Background(), "rooms:"+roomId, data).Err(); err != nil {
		h.log.Warnw("publish room event", "roomId", roomId, "error", err)
	}
}

// subscribeRedis replays room events published by other instances to the
// local members of the room. The excluded originating connection lives on
// the publishing instance, so no exclusion applies here.
func (h *RedisHub) subscribeRedis() {
	ch := h.pubsub.Channel()
	h.log.Infow("redis room subscriber started", "serverId", h.serverID)

	for msg := range ch {
		var ev roomEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			h.log.Warnw("unmarshal room event", "error", err)
			continue
		}
		if ev.FromServerID == h.serverID {
			continue
		}
		h.Hub.BroadcastToRoom(ev.RoomID, ev.Payload, nil)
	}
}

func (h *RedisHub) Close() error {
	if err := h.pubsub.Close(); err != nil {
		return err
	}
	return h.redisClient.Close()
}
