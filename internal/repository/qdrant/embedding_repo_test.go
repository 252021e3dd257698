package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoints struct {
	upserts []*qdrant.UpsertPoints
	deletes []*qdrant.DeletePoints
	queries []*qdrant.QueryPoints
	found   []*qdrant.ScoredPoint
	err     error
}

func (f *fakePoints) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakePoints) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.deletes = append(f.deletes, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakePoints) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.queries = append(f.queries, req)
	return f.found, f.err
}

func newRepo() (*EmbeddingRepo, *fakePoints) {
	client := &fakePoints{}
	return NewEmbeddingRepo(client, &cfg.QdrantCfg{QdrantCollectionName: "products"}), client
}

func TestEmbeddingRepo_Upsert(t *testing.T) {
	repo, client := newRepo()
	id := domain.EmbeddingID(7, 0)

	err := repo.Upsert(context.Background(), []domain.Embedding{
		*domain.NewEmbedding(id, []float32{0.1, 0.2}, domain.Payload{"product_id": int64(7), "text": "Hammer tools"}),
	})

	require.NoError(t, err)
	require.Len(t, client.upserts, 1)
	req := client.upserts[0]
	assert.Equal(t, "products", req.GetCollectionName())
	assert.True(t, req.GetWait())
	require.Len(t, req.GetPoints(), 1)

	point := req.GetPoints()[0]
	assert.Equal(t, id, point.GetId().GetUuid())
	assert.Equal(t, int64(7), point.GetPayload()["product_id"].GetIntegerValue())
	assert.Equal(t, "Hammer tools", point.GetPayload()["text"].GetStringValue())
}

func TestEmbeddingRepo_DeleteByProducts(t *testing.T) {
	repo, client := newRepo()

	require.NoError(t, repo.DeleteByProducts(context.Background(), []int64{1, 2}))

	require.Len(t, client.deletes, 1)
	filter := client.deletes[0].GetPoints().GetFilter()
	require.NotNil(t, filter)
	require.Len(t, filter.GetShould(), 2)
	match := filter.GetShould()[1].GetField()
	assert.Equal(t, "product_id", match.GetKey())
	assert.Equal(t, int64(2), match.GetMatch().GetInteger())
}

func TestEmbeddingRepo_DeleteByProductsEmpty(t *testing.T) {
	repo, client := newRepo()

	require.NoError(t, repo.DeleteByProducts(context.Background(), nil))

	assert.Empty(t, client.deletes)
}

func TestEmbeddingRepo_Search(t *testing.T) {
	repo, client := newRepo()
	client.found = []*qdrant.ScoredPoint{
		{Score: 0.9, Payload: qdrant.NewValueMap(map[string]any{"product_id": int64(2), "text": "Kite toys"})},
		{Score: 0.8, Payload: qdrant.NewValueMap(map[string]any{"text": "orphan"})},
		{Score: 0.7, Payload: qdrant.NewValueMap(map[string]any{"product_id": int64(1)})},
	}

	chunks, err := repo.Search(context.Background(), []float32{1, 0}, 12)

	require.NoError(t, err)
	assert.Equal(t, []domain.ScoredChunk{
		{ProductID: 2, Text: "Kite toys", Score: 0.9},
		{ProductID: 1, Score: 0.7},
	}, chunks)

	require.Len(t, client.queries, 1)
	assert.Equal(t, uint64(12), client.queries[0].GetLimit())
	assert.True(t, client.queries[0].GetWithPayload().GetEnable())
}

func TestEmbeddingRepo_Errors(t *testing.T) {
	repo, client := newRepo()
	client.err = errors.New("qdrant unavailable")

	require.ErrorIs(t, repo.Upsert(context.Background(), nil), client.err)
	require.ErrorIs(t, repo.DeleteByProducts(context.Background(), []int64{1}), client.err)
	_, err := repo.Search(context.Background(), []float32{1}, 3)
	require.ErrorIs(t, err, client.err)
}
