package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/repository/redis/converter"
	"github.com/DRSN-tech/marketplace/pkg/clients"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newCacheRepo(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisCfg := &cfg.RedisCfg{Addr: mr.Addr(), ListingTTL: time.Minute}
	client := clients.NewRedisClient(redisCfg)
	t.Cleanup(func() { _ = client.Client.Close() })

	return NewCacheRepo(client, converter.NewProductConverter(), redisCfg, logger.NewNop()), mr
}

func TestCacheRepo_Miss(t *testing.T) {
	repo, _ := newCacheRepo(t)

	products, found, err := repo.GetListing(context.Background(), 0, nil)

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, products)
}

func TestCacheRepo_SetAndGet(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()
	listing := []domain.Product{
		{ID: 1, Name: "Hammer", Category: "tools", CategoryID: 1, Price: 1000, ImageKey: "a.jpg", ImageURL: "https://signed", CreatedAt: createdAt},
	}
	criteria := domain.NewFilterCriteria("Too", 0, 2000)

	require.NoError(t, repo.SetListing(ctx, 0, criteria, listing))

	products, found, err := repo.GetListing(ctx, 0, domain.NewFilterCriteria("too", 0, 2000))
	require.NoError(t, err)
	require.True(t, found, "category case must not split cache entries")
	require.Len(t, products, 1)
	assert.Equal(t, "a.jpg", products[0].ImageKey)
	assert.Empty(t, products[0].ImageURL)
	assert.Equal(t, createdAt, products[0].CreatedAt)

	mr.FastForward(2 * time.Minute)
	_, found, err = repo.GetListing(ctx, 0, criteria)
	require.NoError(t, err)
	assert.False(t, found, "entry must expire after ListingTTL")
}

func TestCacheRepo_EmptyListingIsCached(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()
	criteria := domain.NewFilterCriteria("garden", 0, 1)

	require.NoError(t, repo.SetListing(ctx, 0, criteria, []domain.Product{}))

	products, found, err := repo.GetListing(ctx, 0, criteria)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, products)
}

func TestCacheRepo_DifferentCriteriaDifferentKeys(t *testing.T) {
	assert.NotEqual(t,
		listingKey(0, domain.NewFilterCriteria("tools", 0, 10)),
		listingKey(0, domain.NewFilterCriteria("tools", 0, 11)),
	)
	assert.NotEqual(t, listingKey(0, nil), listingKey(0, domain.NewFilterCriteria("", 0, 0)))
	assert.NotEqual(t, listingKey(0, nil), listingKey(1, nil))
}

func TestCacheRepo_CorruptedEntryIsMiss(t *testing.T) {
	repo, mr := newCacheRepo(t)
	require.NoError(t, mr.Set(listingKey(0, nil), "{not json"))

	_, found, err := repo.GetListing(context.Background(), 0, nil)

	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, mr.Exists(listingKey(0, nil)))
}

func TestCacheRepo_DeleteListings(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("session:unrelated", "keep"))

	for i := int64(0); i < 150; i++ {
		require.NoError(t, repo.SetListing(ctx, 0, domain.NewFilterCriteria("", 0, i), nil))
	}
	require.NoError(t, repo.SetListing(ctx, 0, nil, nil))

	require.NoError(t, repo.DeleteListings(ctx))

	keys := mr.Keys()
	assert.Equal(t, []string{generationKey, "session:unrelated"}, keys)
}

func TestCacheRepo_StaleGenerationIsNotServed(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	gen, err := repo.ListingGeneration(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	// Выдача прочитана до импорта, а сохраняется уже после инвалидации
	require.NoError(t, repo.DeleteListings(ctx))
	require.NoError(t, repo.SetListing(ctx, gen, nil, []domain.Product{{ID: 1, Name: "Old"}}))

	current, err := repo.ListingGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen+1, current)

	_, found, err := repo.GetListing(ctx, current, nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheRepo_Unavailable(t *testing.T) {
	repo, mr := newCacheRepo(t)
	mr.Close()

	_, found, err := repo.GetListing(context.Background(), 0, nil)

	require.Error(t, err)
	assert.False(t, found)
}
