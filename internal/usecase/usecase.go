package usecase

import (
	"context"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/storefront"
)

type CatalogUC interface {
	ListProducts(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error)
}

type SessionUC interface {
	Open(ctx context.Context) (*OpenSessionRes, error)
	Snapshot(id string) (storefront.State, error)
	Filter(ctx context.Context, id string, criteria domain.FilterCriteria) (storefront.State, error)
	AddToCart(ctx context.Context, id string, productID int64) (*AddToCartRes, error)
	Subscribe(id string, fn func(storefront.State)) (func(), error)
	Touch(id string) error
	Close(id string) error
}

type SearchUC interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
}

// ProductIndexer обновляет векторный индекс изменённых продуктов.
type ProductIndexer interface {
	IndexProducts(ctx context.Context, products []domain.Product) (int, error)
}

type ImportUC interface {
	ImportCatalog(ctx context.Context, req *ImportCatalogReq) (*ImportCatalogRes, error)
}
