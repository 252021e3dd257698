package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
)

// CatalogUseCase выполняет запросы выдачи: проверка фильтра, кэш, БД, ссылки на изображения.
type CatalogUseCase struct {
	productRepo ProductRepository
	cacheRepo   CacheRepository
	imagesInfra ImagesInfra
	logger      logger.Logger
}

func NewCatalogUC(
	productRepo ProductRepository,
	cacheRepo CacheRepository,
	imagesInfra ImagesInfra,
	logger logger.Logger,
) *CatalogUseCase {
	return &CatalogUseCase{
		productRepo: productRepo,
		cacheRepo:   cacheRepo,
		imagesInfra: imagesInfra,
		logger:      logger,
	}
}

// ListProducts возвращает продукты, подходящие под фильтр. nil criteria — без фильтра.
func (c *CatalogUseCase) ListProducts(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error) {
	const op = "CatalogUseCase.ListProducts"

	// Валидация до любого обращения к хранилищам
	if criteria != nil {
		if err := criteria.Validate(); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	// Поколение читается до бд: выдача, прочитанная до импорта, не переживёт инвалидацию
	gen, err := c.cacheRepo.ListingGeneration(ctx)
	cacheable := err == nil
	if err != nil {
		c.logger.Warnf("listing cache generation read failed: %v", e.Wrap(op, err))
	}

	var (
		products []domain.Product
		found    bool
	)
	if cacheable {
		products, found, err = c.cacheRepo.GetListing(ctx, gen, criteria)
		if err != nil {
			c.logger.Warnf("listing cache read failed: %v", e.Wrap(op, err))
		}
	}

	if !found {
		products, err = c.productRepo.Select(ctx, criteria)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		if !cacheable {
			c.imagesInfra.ResolveURLs(ctx, products)
			return products, nil
		}

		// Фоновое сохранение выдачи в кэш
		cached := append([]domain.Product(nil), products...)
		var key *domain.FilterCriteria
		if criteria != nil {
			cp := *criteria
			key = &cp
		}
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := c.cacheRepo.SetListing(bgCtx, gen, key, cached); err != nil {
				c.logger.Warnf("Failed to cache listing in background: %v", e.Wrap(op, err))
			}
		}()
	}

	// Ссылки подписываются при каждой выдаче: в кэше хранятся только ключи
	c.imagesInfra.ResolveURLs(ctx, products)

	return products, nil
}
