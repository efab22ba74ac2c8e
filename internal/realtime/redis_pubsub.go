package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	roomChannelPrefix  = "room:"
	worldChannelPrefix = "world:"
	publishTimeout     = 5 * time.Second
)

// Event names published by this service.
const (
	EventPollCreated     = "poll.created"
	EventPollUpdated     = "poll.updated"
	EventPollPinned      = "poll.pinned"
	EventPollDeleted     = "poll.deleted"
	EventPollVoted       = "poll.voted"
	EventScheduleChanged = "world.schedule_changed"
)

// redisPayload is the message published to Redis for the realtime layer to fan out.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPublisher publishes room and world events on Redis pub/sub channels.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a Redis publisher.
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// RoomChannel returns the channel name for a room.
func RoomChannel(roomID uuid.UUID) string { return roomChannelPrefix + roomID.String() }

// WorldChannel returns the channel name for a world.
func WorldChannel(worldID uuid.UUID) string { return worldChannelPrefix + worldID.String() }

// PublishRoomEvent publishes an event to the room's channel.
func (r *RedisPublisher) PublishRoomEvent(ctx context.Context, roomID uuid.UUID, event string, payload any) error {
	return r.publish(ctx, RoomChannel(roomID), event, payload)
}

// PublishWorldEvent publishes an event to the world's channel.
func (r *RedisPublisher) PublishWorldEvent(ctx context.Context, worldID uuid.UUID, event string, payload any) error {
	return r.publish(ctx, WorldChannel(worldID), event, payload)
}

func (r *RedisPublisher) publish(ctx context.Context, channel, event string, payload any) error {
	body, err := encodeEvent(event, payload, time.Now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	r.logger.Debug("event published", zap.String("channel", channel), zap.String("event", event))
	return nil
}

func encodeEvent(event string, payload any, at time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(redisPayload{Event: event, Data: data, At: at.Unix()})
}
