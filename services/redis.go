package services

import (
	"context"
	"fmt"

	"creaverse/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// InitRedis connects to the configured Redis. RedisClient stays nil when no
// host is configured and every Redis-backed service falls back to SQL.
func InitRedis(ctx context.Context) error {
	if config.AppConfig == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}
	if !config.AppConfig.RedisEnabled() {
		return nil
	}

	redisConfig := config.AppConfig.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	// Тест соединения
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	RedisClient = client
	return nil
}

func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}
