package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"fableweaver/server/internal/config"
)

const (
	sceneImageKeyPrefix = "scene:image"
	sceneImageTTL       = 24 * time.Hour
)

// RedisStore caches generated scene images so a reconnecting client
// can be shown the last scene without regenerating it.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sceneImageKey(sessionID string, turn int) string {
	return fmt.Sprintf("%s:%s:%d", sceneImageKeyPrefix, sessionID, turn)
}

// StoreSceneImage caches one turn's generated image.
func (s *RedisStore) StoreSceneImage(ctx context.Context, sessionID string, turn int, data []byte) error {
	key := sceneImageKey(sessionID, turn)
	if err := s.client.Set(ctx, key, data, sceneImageTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache scene image %s: %w", key, err)
	}
	return nil
}

// GetSceneImage returns a cached scene image, or nil when absent.
func (s *RedisStore) GetSceneImage(ctx context.Context, sessionID string, turn int) ([]byte, error) {
	data, err := s.client.Get(ctx, sceneImageKey(sessionID, turn)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scene image cache: %w", err)
	}
	return data, nil
}

// DeleteSessionImages drops all cached images for a session.
func (s *RedisStore) DeleteSessionImages(ctx context.Context, sessionID string) error {
	pattern := fmt.Sprintf("%s:%s:*", sceneImageKeyPrefix, sessionID)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan scene image keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
