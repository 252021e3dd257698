package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/repository/redis/converter"
	"github.com/DRSN-tech/marketplace/pkg/clients"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const (
	listingKeyPrefix = "products:list:"
	generationKey    = "products:generation"
	scanBatch        = 100
)

type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ProductConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ProductConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// ListingGeneration возвращает текущее поколение кэша выдач. Отсутствующий ключ — поколение 0.
func (c *CacheRepo) ListingGeneration(ctx context.Context) (int64, error) {
	gen, err := c.client.Client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return 0, nil
		}
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return gen, nil
}

// GetListing возвращает закэшированную выдачу поколения gen. Повреждённая запись удаляется и считается промахом.
func (c *CacheRepo) GetListing(ctx context.Context, gen int64, criteria *domain.FilterCriteria) ([]domain.Product, bool, error) {
	key := listingKey(gen, criteria)

	data, err := c.client.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, false, nil // cache miss
		}
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	var models []converter.ProductRedisModel
	if err := json.Unmarshal(data, &models); err != nil {
		c.logger.Warnf("Redis unmarshal failed, key: %s: %v", key, e.Wrap(whereami.WhereAmI(), err))
		if err := c.client.Client.Del(ctx, key).Err(); err != nil {
			c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, false, nil
	}

	return c.conv.ToArrEntity(models), true, nil
}

// SetListing кэширует выдачу поколения gen на cfg.ListingTTL. Пустая выдача тоже кэшируется.
// Запись устаревшего поколения никто не прочитает: она просто истечёт.
func (c *CacheRepo) SetListing(ctx context.Context, gen int64, criteria *domain.FilterCriteria, products []domain.Product) error {
	data, err := json.Marshal(c.conv.ToArrRedisModel(products))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, listingKey(gen, criteria), data, c.cfg.ListingTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// DeleteListings начинает новое поколение и удаляет все закэшированные выдачи.
// Выдача, прочитанная из бд до инвалидации, сохранится со старым поколением и не будет отдана.
func (c *CacheRepo) DeleteListings(ctx context.Context) error {
	if err := c.client.Client.Incr(ctx, generationKey).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	iter := c.client.Client.Scan(ctx, 0, listingKeyPrefix+"*", scanBatch).Iterator()

	keys := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			if err := c.client.Client.Unlink(ctx, keys...).Err(); err != nil {
				return e.Wrap(whereami.WhereAmI(), err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if len(keys) > 0 {
		if err := c.client.Client.Unlink(ctx, keys...).Err(); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// listingKey строит ключ из поколения и нормализованного фильтра: категория сравнивается без учёта регистра,
// поэтому "Tools" и "tools" делят одну запись.
func listingKey(gen int64, criteria *domain.FilterCriteria) string {
	prefix := listingKeyPrefix + strconv.FormatInt(gen, 10) + ":"
	if criteria == nil {
		return prefix + "all"
	}

	normalized := fmt.Sprintf("%s|%d|%d", strings.ToLower(criteria.Category), criteria.MinPrice, criteria.MaxPrice)
	sum := sha256.Sum256([]byte(normalized))

	return prefix + hex.EncodeToString(sum[:])
}
