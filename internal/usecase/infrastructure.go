package usecase

import (
	"context"

	"github.com/DRSN-tech/marketplace/internal/domain"
)

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
	ResolveURLs(ctx context.Context, products []domain.Product)
}

type MessageProducer interface {
	WriteMessage(ctx context.Context, req *WriteMessageReq) error
}

// CartEventsInfra публикует события корзины конкретной сессии.
type CartEventsInfra interface {
	PublishItemAdded(ctx context.Context, sessionID string, item domain.CartItem) error
}

// EmbeddingInfra превращает тексты в векторы. Порядок результатов совпадает с порядком текстов.
type EmbeddingInfra interface {
	Embed(ctx context.Context, req *EmbedReq) ([]EmbedRes, error)
}
