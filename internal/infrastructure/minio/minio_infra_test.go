package minio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeImageRepo struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	uploadErr map[string]error
	deleted   []string
	presign   error
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{objects: make(map[string][]byte), uploadErr: make(map[string]error)}
}

func (f *fakeImageRepo) Upload(_ context.Context, image *domain.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads++
	if err := f.uploadErr[image.ContentType]; err != nil {
		return "", err
	}
	f.objects[image.ObjectKey] = image.Bytes
	return image.ObjectKey, nil
}

func (f *fakeImageRepo) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeImageRepo) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeImageRepo) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if f.presign != nil {
		return "", f.presign
	}
	return "https://minio.test/" + key + "?ttl=" + ttl.String(), nil
}

func newInfra(repo usecase.ImageRepository) *MinioInfrastructure {
	return NewMinioInfrastructure(repo, &cfg.MinIOCfg{UploadImagesLimit: 2, PresignTTL: time.Minute}, logger.NewNop(), context.Background())
}

func img(data, mime string) usecase.ProductImage {
	return *usecase.NewProductImage([]byte(data), mime, data)
}

func TestUploadImages_KeysFollowRequestOrder(t *testing.T) {
	repo := newFakeImageRepo()
	infra := newInfra(repo)

	res, err := infra.UploadImages(context.Background(), usecase.NewUploadImagesReq([]usecase.ProductImage{
		img("hammer", "image/jpeg"),
		img("kite", "image/png"),
		img("hammer", "image/jpeg"),
	}))

	require.NoError(t, err)
	require.Len(t, res.Keys, 3)
	assert.Equal(t, res.Keys[0], res.Keys[2], "identical content shares a key")
	assert.Contains(t, res.Keys[1], ".png")
	assert.Len(t, res.Uploaded, 2)
	assert.Equal(t, 2, repo.uploads)
}

func TestUploadImages_SkipsExistingObjects(t *testing.T) {
	repo := newFakeImageRepo()
	infra := newInfra(repo)
	req := usecase.NewUploadImagesReq([]usecase.ProductImage{img("hammer", "image/jpeg")})

	_, err := infra.UploadImages(context.Background(), req)
	require.NoError(t, err)

	res, err := infra.UploadImages(context.Background(), req)

	require.NoError(t, err)
	assert.Empty(t, res.Uploaded, "existing objects are not ours to clean up")
	assert.Equal(t, 1, repo.uploads)
}

func TestUploadImages_UnsupportedMime(t *testing.T) {
	repo := newFakeImageRepo()
	infra := newInfra(repo)

	_, err := infra.UploadImages(context.Background(), usecase.NewUploadImagesReq([]usecase.ProductImage{
		img("doc", "application/pdf"),
	}))

	require.ErrorIs(t, err, e.ErrUnsupportedMediaType)
	assert.Zero(t, repo.uploads)
}

func TestUploadImages_FailureCleansUpUploaded(t *testing.T) {
	repo := newFakeImageRepo()
	repo.uploadErr["image/png"] = errors.New("disk full")
	infra := NewMinioInfrastructure(repo, &cfg.MinIOCfg{UploadImagesLimit: 1}, logger.NewNop(), context.Background())

	_, err := infra.UploadImages(context.Background(), usecase.NewUploadImagesReq([]usecase.ProductImage{
		img("hammer", "image/jpeg"),
		img("kite", "image/png"),
	}))
	require.Error(t, err)

	require.NoError(t, infra.WaitForCleanup(context.Background()))
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Empty(t, repo.objects)
}

func TestResolveURLs(t *testing.T) {
	infra := newInfra(newFakeImageRepo())
	products := []domain.Product{{ID: 1, ImageKey: "products/a.jpg"}, {ID: 2}}

	infra.ResolveURLs(context.Background(), products)

	assert.Equal(t, "https://minio.test/products/a.jpg?ttl=1m0s", products[0].ImageURL)
	assert.Empty(t, products[1].ImageURL)
}

func TestResolveURLs_PresignFailureLeavesURLEmpty(t *testing.T) {
	repo := newFakeImageRepo()
	repo.presign = errors.New("bad credentials")
	infra := newInfra(repo)
	products := []domain.Product{{ID: 1, ImageKey: "products/a.jpg"}}

	infra.ResolveURLs(context.Background(), products)

	assert.Empty(t, products[0].ImageURL)
}

func TestWaitForCleanup_Timeout(t *testing.T) {
	infra := newInfra(newFakeImageRepo())
	infra.wg.Add(1)
	defer infra.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := infra.WaitForCleanup(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}
