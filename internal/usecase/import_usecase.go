package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/events"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/DRSN-tech/marketplace/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// ImportUseCase наполняет каталог: категории, продукты, изображения и события outbox.
type ImportUseCase struct {
	productRepo  ProductRepository
	categoryRepo CategoryRepository
	outboxRepo   OutboxRepository
	dbPool       transaction.Transactional
	imagesInfra  ImagesInfra
	cacheRepo    CacheRepository
	indexer      ProductIndexer
	logger       logger.Logger
}

func NewImportUC(
	productRepo ProductRepository,
	categoryRepo CategoryRepository,
	outboxRepo OutboxRepository,
	dbPool transaction.Transactional,
	imagesInfra ImagesInfra,
	cacheRepo CacheRepository,
	indexer ProductIndexer,
	logger logger.Logger,
) *ImportUseCase {
	return &ImportUseCase{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		outboxRepo:   outboxRepo,
		dbPool:       dbPool,
		imagesInfra:  imagesInfra,
		cacheRepo:    cacheRepo,
		indexer:      indexer,
		logger:       logger,
	}
}

// ImportCatalog загружает изображения, затем в одной транзакции создаёт категории,
// обновляет продукты и пишет событие outbox для каждого изменённого продукта.
func (i *ImportUseCase) ImportCatalog(ctx context.Context, req *ImportCatalogReq) (res *ImportCatalogRes, err error) {
	const op = "ImportUseCase.ImportCatalog"

	// Валидация данных
	if err = i.validateCatalog(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Сохранение изображений в MinIO до транзакции
	imageKeys, uploaded, err := i.uploadImages(ctx, req.Products)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	txCtx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, i.dbPool)
	if err != nil {
		i.cleanupImages(uploaded, err)
		return nil, e.Wrap(op, err)
	}
	// Если произошла ошибка, происходит Rollback транзакции и очистка загруженных изображений
	defer func() {
		if err != nil {
			if tx.IsActive() {
				if rbErr := tx.Rollback(txCtx); rbErr != nil {
					i.logger.Warnf("rollback failed: %v", e.Wrap(op, rbErr))
				}
			}
			i.cleanupImages(uploaded, err)
		}
	}()
	txCtx = tr.WithTx(txCtx, tx.Transaction().(pgx.Tx))

	res = &ImportCatalogRes{}
	changed := make([]domain.Product, 0, len(req.Products))
	categories := make(map[string]*domain.Category)
	for idx, item := range req.Products {
		var category *domain.Category
		category, err = i.createCategory(txCtx, categories, item.CategoryName)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		var upserted *UpsertProductRes
		upserted, err = i.upsertProduct(txCtx, item, category, imageKeys[idx])
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		switch {
		case upserted.NoChanges:
			res.Unchanged++
			continue
		case upserted.Inserted:
			res.Created++
		default:
			res.Updated++
		}

		if err = i.createOutboxEvent(txCtx, upserted.Product); err != nil {
			return nil, e.Wrap(op, err)
		}
		changed = append(changed, *upserted.Product)
	}

	// Коммит изменений в бд
	if err = tx.Commit(txCtx); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Старые выдачи в кэше больше не актуальны
	if res.Created+res.Updated > 0 {
		if err := i.cacheRepo.DeleteListings(ctx); err != nil {
			i.logger.Warnf("Failed to invalidate listing cache: %v", e.Wrap(op, err))
		}
	}

	// Индекс поиска догоняется командой reindex, если сейчас не удалось
	if i.indexer != nil && len(changed) > 0 {
		if _, err := i.indexer.IndexProducts(ctx, changed); err != nil && !errors.Is(err, e.ErrSearchUnavailable) {
			i.logger.Warnf("Failed to index imported products: %v", e.Wrap(op, err))
		}
	}

	i.logger.Infof("catalog imported, created: %d, updated: %d, unchanged: %d", res.Created, res.Updated, res.Unchanged)

	return res, nil
}

// uploadImages загружает изображения позиций, у которых они есть.
// Возвращает ключи по индексам позиций и ключи реально созданных объектов.
func (i *ImportUseCase) uploadImages(ctx context.Context, products []ImportProductReq) ([]string, []string, error) {
	keys := make([]string, len(products))

	var (
		images  []ProductImage
		indexes []int
	)
	for idx, p := range products {
		if p.Image != nil {
			images = append(images, *p.Image)
			indexes = append(indexes, idx)
		}
	}
	if len(images) == 0 {
		return keys, nil, nil
	}

	res, err := i.imagesInfra.UploadImages(ctx, NewUploadImagesReq(images))
	if err != nil {
		return nil, nil, err
	}

	for n, idx := range indexes {
		keys[idx] = res.Keys[n]
	}

	return keys, res.Uploaded, nil
}

func (i *ImportUseCase) cleanupImages(keys []string, cause error) {
	if len(keys) == 0 {
		return
	}

	i.logger.Warnf("Cleaning up orphaned images after import failure, count: %d, error: %v", len(keys), cause)
	i.imagesInfra.CleanupImages(keys)
}

// createCategory идемпотентно создаёт категорию, повторно для одного имени не обращается к БД.
func (i *ImportUseCase) createCategory(ctx context.Context, seen map[string]*domain.Category, name string) (*domain.Category, error) {
	if c, ok := seen[name]; ok {
		return c, nil
	}

	c, err := i.categoryRepo.Create(ctx, domain.NewCategory(name))
	if err != nil {
		return nil, err
	}
	seen[name] = c

	return c, nil
}

// upsertProduct идемпотентно создаёт или обновляет продукт.
func (i *ImportUseCase) upsertProduct(ctx context.Context, item ImportProductReq, category *domain.Category, imageKey string) (*UpsertProductRes, error) {
	product := domain.NewProduct(item.Name, item.Price, category.ID, item.Description, imageKey)

	res, err := i.productRepo.Upsert(ctx, product)
	if err != nil {
		return nil, err
	}
	res.Product.Category = category.Name

	return res, nil
}

// createOutboxEvent сохраняет событие изменения продукта для отправки в Kafka.
func (i *ImportUseCase) createOutboxEvent(ctx context.Context, product *domain.Product) error {
	env := events.ProductUpserted(product)

	payload, err := events.Marshal(env)
	if err != nil {
		return err
	}

	_, err = i.outboxRepo.Create(ctx, NewOutboxEvent(env.EventID, ProductUpserted, product.ID, payload))
	return err
}

// validateCatalog проверяет корректность входных данных импорта.
func (i *ImportUseCase) validateCatalog(req *ImportCatalogReq) error {
	if req == nil || len(req.Products) == 0 {
		return e.ErrNoProducts
	}

	for _, p := range req.Products {
		if strings.TrimSpace(p.Name) == "" {
			return e.ErrProductNameRequired
		}

		if strings.TrimSpace(p.CategoryName) == "" {
			return e.ErrCategoryRequired
		}

		if p.Price <= 0 {
			return e.ErrPriceMustBePositive
		}
	}

	return nil
}
