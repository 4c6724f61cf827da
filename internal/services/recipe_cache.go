package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"barback/internal/models"
	"barback/internal/utils"
)

const (
	// RecipeInvalidationChannel - канал Redis, в который публикуется ID измененного напитка
	RecipeInvalidationChannel = "barback:recipes:invalidate"
	recipeKeyPrefix           = "barback:recipe:"
)

// RedisRecipeCache хранит разрешенные рецепты в Redis в виде JSON
type RedisRecipeCache struct {
	redis *utils.RedisClient
	ttl   time.Duration
	log   *logrus.Entry
}

// NewRedisRecipeCache создает кэш рецептов
func NewRedisRecipeCache(redisUtil *utils.RedisClient, ttl time.Duration, log *logrus.Entry) *RedisRecipeCache {
	return &RedisRecipeCache{
		redis: redisUtil,
		ttl:   ttl,
		log:   log.WithField("component", "recipe_cache"),
	}
}

func (c *RedisRecipeCache) Get(ctx context.Context, drinkID string) (*models.Drink, bool) {
	var d models.Drink
	if err := c.redis.GetJSON(ctx, recipeKeyPrefix+drinkID, &d); err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("⚠️ Ошибка чтения рецепта из Redis")
		}
		return nil, false
	}
	return &d, true
}

func (c *RedisRecipeCache) Set(ctx context.Context, drink *models.Drink) {
	if err := c.redis.SetJSON(ctx, recipeKeyPrefix+drink.ID, drink, c.ttl); err != nil {
		c.log.WithError(err).Warn("⚠️ Ошибка записи рецепта в Redis")
	}
}

func (c *RedisRecipeCache) Invalidate(ctx context.Context, drinkID string) {
	if err := c.redis.Delete(ctx, recipeKeyPrefix+drinkID); err != nil {
		c.log.WithError(err).Warn("⚠️ Ошибка удаления рецепта из Redis")
	}
}

// PublishInvalidation сообщает всем экземплярам сервиса, что рецепт напитка изменился
func (c *RedisRecipeCache) PublishInvalidation(ctx context.Context, drinkID string) error {
	return c.redis.Publish(ctx, RecipeInvalidationChannel, drinkID)
}

// Invalidations подписывается на канал инвалидаций. Канал закрывается после вызова stop.
func (c *RedisRecipeCache) Invalidations(ctx context.Context) (<-chan string, func() error) {
	messages, closeFn := c.redis.Subscribe(ctx, RecipeInvalidationChannel)
	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range messages {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, closeFn
}
