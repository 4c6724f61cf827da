package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"barback/internal/models"
	"barback/internal/storage"
)

// RecipeCache - кэш разрешенных рецептов. Ошибки кэша не прерывают чтение.
type RecipeCache interface {
	Get(ctx context.Context, drinkID string) (*models.Drink, bool)
	Set(ctx context.Context, drink *models.Drink)
	Invalidate(ctx context.Context, drinkID string)
}

// RecipeCatalog отвечает на вопрос "из чего состоит порция напитка". Только чтение.
type RecipeCatalog struct {
	store storage.Store
	cache RecipeCache
	log   *logrus.Entry
}

// NewRecipeCatalog создает каталог рецептов
func NewRecipeCatalog(store storage.Store) *RecipeCatalog {
	return &RecipeCatalog{
		store: store,
		log:   logrus.WithField("component", "recipe_catalog"),
	}
}

// SetCache подключает кэш рецептов
func (c *RecipeCatalog) SetCache(cache RecipeCache) {
	c.cache = cache
}

// SetLogger задает логгер
func (c *RecipeCatalog) SetLogger(log *logrus.Entry) {
	c.log = log.WithField("component", "recipe_catalog")
}

// Resolve возвращает строки рецепта напитка в порядке Position
func (c *RecipeCatalog) Resolve(ctx context.Context, drinkID string) ([]models.RecipeLine, error) {
	d, err := c.ResolveDrink(ctx, drinkID)
	if err != nil {
		return nil, err
	}
	return d.Recipe, nil
}

// ResolveDrink возвращает напиток с рецептом, сначала заглядывая в кэш
func (c *RecipeCatalog) ResolveDrink(ctx context.Context, drinkID string) (*models.Drink, error) {
	if c.cache != nil {
		if d, ok := c.cache.Get(ctx, drinkID); ok {
			return d, nil
		}
	}

	var drink *models.Drink
	err := c.store.View(ctx, func(tx storage.Tx) error {
		var err error
		drink, err = c.resolveIn(ctx, tx, drinkID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ctx, drink)
	}
	return drink, nil
}

// resolveIn читает рецепт внутри транзакции вызывающего, без кэша
func (c *RecipeCatalog) resolveIn(ctx context.Context, tx storage.Tx, drinkID string) (*models.Drink, error) {
	drink, err := tx.GetDrink(ctx, drinkID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	// Напиток без технологической карты заказать нельзя
	if len(drink.Recipe) == 0 {
		return nil, models.NotFoundf("рецепт напитка %s не найден", drinkID)
	}
	return drink, nil
}

// resolveManyIn разрешает набор напитков в одной транзакции
func (c *RecipeCatalog) resolveManyIn(ctx context.Context, tx storage.Tx, drinkIDs []string) (map[string]*models.Drink, error) {
	drinks := make(map[string]*models.Drink, len(drinkIDs))
	for _, id := range drinkIDs {
		if _, ok := drinks[id]; ok {
			continue
		}
		d, err := c.resolveIn(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		drinks[id] = d
	}
	return drinks, nil
}

// Invalidate сбрасывает рецепт напитка из кэша
func (c *RecipeCatalog) Invalidate(ctx context.Context, drinkID string) {
	if c.cache == nil {
		return
	}
	c.cache.Invalidate(ctx, drinkID)
	c.log.WithField("drink_id", drinkID).Debug("🔄 Рецепт сброшен из кэша")
}

// ListenInvalidations сбрасывает из кэша напитки, ID которых приходят в updates.
// Блокируется до отмены ctx или закрытия канала.
func (c *RecipeCatalog) ListenInvalidations(ctx context.Context, updates <-chan string) {
	c.log.Info("👂 Слушаем инвалидации рецептов")
	for {
		select {
		case <-ctx.Done():
			return
		case drinkID, ok := <-updates:
			if !ok {
				c.log.Warn("⚠️ Канал инвалидаций закрыт")
				return
			}
			c.Invalidate(ctx, drinkID)
		}
	}
}
