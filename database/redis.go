package database

import (
	"context"
	"log"

	"digimy/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

func InitRedis() {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     config.Config("REDIS_ADDR", "127.0.0.1:6379"),
		Password: config.Config("REDIS_PASS", ""),
		DB:       0,
	})

	ctx := context.Background()
	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		log.Printf("Redis connection failed: %v", err)
		log.Printf("Side-effect dedup markers will fall back to database guards only")
	} else {
		log.Printf("Redis connection successful")
	}
}
