package qdrant

import (
	"context"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadProductID = "product_id"
	payloadText      = "text"
)

// pointsClient — часть *qdrant.Client, которой пользуется репозиторий.
type pointsClient interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// EmbeddingRepo репозиторий для работы с embedding-векторами фрагментов продуктов в Qdrant
type EmbeddingRepo struct {
	client pointsClient
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client pointsClient, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или обновляет embedding-векторы в коллекции Qdrant.
func (q *EmbeddingRepo) Upsert(ctx context.Context, vectors []domain.Embedding) error {
	reqVectors := make([]*qdrant.PointStruct, 0, len(vectors))
	for _, vector := range vectors {
		reqVectors = append(reqVectors, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(vector.ID),
			Vectors: qdrant.NewVectors(vector.Vector...),
			Payload: qdrant.NewValueMap(vector.Payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         reqVectors,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// DeleteByProducts удаляет все точки указанных продуктов.
func (q *EmbeddingRepo) DeleteByProducts(ctx context.Context, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(productsFilter(productIDs)),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Search возвращает до limit фрагментов, ближайших к vector, по убыванию сходства.
func (q *EmbeddingRepo) Search(ctx context.Context, vector []float32, limit uint64) ([]domain.ScoredChunk, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return toScoredChunks(points), nil
}

// productsFilter выбирает точки любого из продуктов.
func productsFilter(productIDs []int64) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(productIDs))
	for _, id := range productIDs {
		conditions = append(conditions, qdrant.NewMatchInt(payloadProductID, id))
	}

	return &qdrant.Filter{Should: conditions}
}

// toScoredChunks пропускает точки без product_id: их не к чему привязать.
func toScoredChunks(points []*qdrant.ScoredPoint) []domain.ScoredChunk {
	chunks := make([]domain.ScoredChunk, 0, len(points))
	for _, p := range points {
		id, ok := p.GetPayload()[payloadProductID]
		if !ok {
			continue
		}

		chunks = append(chunks, domain.ScoredChunk{
			ProductID: id.GetIntegerValue(),
			Text:      p.GetPayload()[payloadText].GetStringValue(),
			Score:     p.GetScore(),
		})
	}

	return chunks
}
