package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/marketplace/internal/domain"
)

type ProductRepository interface {
	Select(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error)
	SelectByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)
	Upsert(ctx context.Context, product *domain.Product) (*UpsertProductRes, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) (*domain.Category, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// CacheRepository кэширует результаты запросов выдачи в рамках поколения.
// DeleteListings начинает новое поколение: записи старых поколений не читаются.
// found=false означает промах кэша.
type CacheRepository interface {
	ListingGeneration(ctx context.Context) (int64, error)
	GetListing(ctx context.Context, gen int64, criteria *domain.FilterCriteria) (products []domain.Product, found bool, err error)
	SetListing(ctx context.Context, gen int64, criteria *domain.FilterCriteria, products []domain.Product) error
	DeleteListings(ctx context.Context) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// EmbeddingRepository хранит векторы фрагментов продуктов и ищет ближайшие к запросу.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, vectors []domain.Embedding) error
	DeleteByProducts(ctx context.Context, productIDs []int64) error
	Search(ctx context.Context, vector []float32, limit uint64) ([]domain.ScoredChunk, error)
}
