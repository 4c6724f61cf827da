package database

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisConfig - параметры подключения к Redis.
// Если заданы SentinelAddrs и MasterName, используется Sentinel, иначе прямое подключение по URL.
type RedisConfig struct {
	URL           string
	SentinelAddrs []string
	MasterName    string
	Password      string
	PoolSize      int
}

// ConnectRedis подключается к Redis (с поддержкой Sentinel)
func ConnectRedis(ctx context.Context, cfg RedisConfig, log *logrus.Entry) (*redis.Client, error) {
	if len(cfg.SentinelAddrs) > 0 && cfg.MasterName != "" {
		return connectRedisWithSentinel(ctx, cfg, log)
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Redis URL")
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.MaxRetries = 3

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	log.WithField("addr", opt.Addr).Info("✅ Redis подключен (прямое подключение)")
	return client, nil
}

func connectRedisWithSentinel(ctx context.Context, cfg RedisConfig, log *logrus.Entry) (*redis.Client, error) {
	opt := &redis.FailoverOptions{
		MasterName:    cfg.MasterName,
		SentinelAddrs: cfg.SentinelAddrs,
		Password:      cfg.Password,
		PoolSize:      cfg.PoolSize,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
	}

	client := redis.NewFailoverClient(opt)

	// Для Sentinel таймаут больше: сначала опрашиваются сентинели
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis Sentinel")
	}

	log.WithFields(logrus.Fields{
		"master":    cfg.MasterName,
		"sentinels": cfg.SentinelAddrs,
	}).Info("✅ Redis Sentinel подключен")
	return client, nil
}

// CloseRedis закрывает подключение к Redis
func CloseRedis(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// RedactURL скрывает учетные данные в строке подключения для логов
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}
