package feed

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel shared by server instances.
const DefaultChannel = "seats:availability"

// RedisPublisher broadcasts snapshots to every instance subscribed to the
// channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// RedisSource reads snapshots published by RedisPublisher.
type RedisSource struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisSource(rdb *redis.Client, channel string, log *zap.Logger) *RedisSource {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisSource{rdb: rdb, channel: channel, log: log}
}

// Subscribe implements Source.
func (s *RedisSource) Subscribe(ctx context.Context, deliver func(Snapshot)) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	// wait for the subscription confirmation
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				s.log.Warn("feed: discarding malformed snapshot", zap.Error(err))
				continue
			}
			deliver(snap)
		}
	}
}
