package database

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// RedisConfig holds stats-cache configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GetRedisConfig returns redis configuration with defaults
func GetRedisConfig() *RedisConfig {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	return &RedisConfig{
		Host:     viper.GetString("redis.host"),
		Port:     viper.GetString("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}
}

// InitRedis connects the client backing the stats cache. The cache is
// optional: on connection failure this returns nil and the stats service
// reads straight from the store.
func InitRedis() *redis.Client {
	config := GetRedisConfig()

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Host + ":" + config.Port,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("Redis connection failed, stats cache disabled: %v", err)
		return nil
	}

	log.Println("Redis connection established")
	return rdb
}
