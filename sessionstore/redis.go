package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moaidev/logger"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type RedisConnectProps struct {
	Logger *logger.LogMiddleware
	Addr   string
	// TTL expires idle sessions; 0 keeps them until an explicit reset.
	TTL time.Duration
}

// RedisStore keeps session state under "moai:session:{id}" and the
// transcript as a Redis list under "moai:session:{id}:messages".
type RedisStore struct {
	logger *logger.LogMiddleware
	client *redis.Client
	ttl    time.Duration
}

func ConnectRedis(ctx context.Context, args RedisConnectProps) (*RedisStore, error) {
	tracer := otel.Tracer("sessionstore/ConnectRedis")
	ctx, span := tracer.Start(ctx, "ConnectRedis")
	defer span.End()

	client := redis.NewClient(&redis.Options{Addr: args.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		args.Logger.Logger(ctx).Error("[SessionStore] Could not connect to Redis",
			zap.String("addr", args.Addr), zap.Error(err))
		return nil, fmt.Errorf("could not connect to redis at %s: %w", args.Addr, err)
	}

	args.Logger.Logger(ctx).Info("[SessionStore] Redis store connected", zap.String("addr", args.Addr))
	return &RedisStore{logger: args.Logger, client: client, ttl: args.TTL}, nil
}

func (r *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("moai:session:%s", id)
}

func (r *RedisStore) messagesKey(id string) string {
	return fmt.Sprintf("moai:session:%s:messages", id)
}

func (r *RedisStore) SaveSession(ctx context.Context, id string, state []byte) error {
	return r.client.Set(ctx, r.sessionKey(id), state, r.ttl).Err()
}

func (r *RedisStore) LoadSession(ctx context.Context, id string) ([]byte, error) {
	state, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return state, err
}

func (r *RedisStore) AppendMessage(ctx context.Context, id string, msg []byte) error {
	key := r.messagesKey(id)
	if err := r.client.RPush(ctx, key, msg).Err(); err != nil {
		return err
	}
	if r.ttl > 0 {
		return r.client.Expire(ctx, key, r.ttl).Err()
	}
	return nil
}

func (r *RedisStore) Messages(ctx context.Context, id string) ([][]byte, error) {
	items, err := r.client.LRange(ctx, r.messagesKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}

func (r *RedisStore) Clear(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.sessionKey(id), r.messagesKey(id)).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
