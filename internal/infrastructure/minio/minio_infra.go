package minio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/infrastructure"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/jitter"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	objectKeyPrefix    = "products/"
	cleanupAttempts    = 3
	cleanupBaseBackoff = time.Second
	cleanupMaxBackoff  = 10 * time.Second
	cleanupTimeout     = 30 * time.Second
)

// MinioInfrastructure управляет загрузкой, очисткой и выдачей ссылок на изображения в MinIO.
type MinioInfrastructure struct {
	minioRepo         usecase.ImageRepository
	logger            logger.Logger
	shutdownCtx       context.Context
	wg                sync.WaitGroup
	uploadImagesLimit int
	presignTTL        time.Duration
}

func NewMinioInfrastructure(minioRepo usecase.ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	limit := cfg.UploadImagesLimit
	if limit <= 0 {
		limit = 1
	}

	return &MinioInfrastructure{
		minioRepo:         minioRepo,
		logger:            logger,
		shutdownCtx:       shutdownCtx,
		uploadImagesLimit: limit,
		presignTTL:        cfg.PresignTTL,
	}
}

// UploadImages загружает изображения параллельно с ограничением одновременных операций.
// Ключ объекта зависит только от содержимого, уже существующие объекты повторно не загружаются.
// При ошибке отменяет остальные загрузки и запускает очистку уже созданных объектов.
func (m *MinioInfrastructure) UploadImages(ctx context.Context, req *usecase.UploadImagesReq) (*usecase.UploadImagesRes, error) {
	const op = "MinioInfrastructure.UploadImages"

	keys := make([]string, len(req.Images))
	unique := make(map[string]*domain.Image, len(req.Images))
	for i, image := range req.Images {
		ext, err := infrastructure.GetExtensionFromMIME(image.MimeType)
		if err != nil {
			return nil, e.Wrap(op, fmt.Errorf("invalid mime type %s for %s: %w", image.MimeType, image.Name, err))
		}

		keys[i] = infrastructure.ContentKey(objectKeyPrefix, image.Data, ext)
		if _, ok := unique[keys[i]]; !ok {
			unique[keys[i]] = domain.NewImage(keys[i], image.Data, image.MimeType)
		}
	}

	var (
		mu       sync.Mutex
		uploaded []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.uploadImagesLimit)
	for key, image := range unique {
		g.Go(func() error {
			exists, err := m.minioRepo.Exists(gctx, key)
			if err != nil {
				return fmt.Errorf("stat %s failed: %w", key, err)
			}
			if exists {
				return nil
			}

			if _, err := m.minioRepo.Upload(gctx, image); err != nil {
				return fmt.Errorf("upload %s failed: %w", key, err)
			}

			mu.Lock()
			uploaded = append(uploaded, key)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.CleanupImages(uploaded)
		return nil, e.Wrap(op, err)
	}

	return usecase.NewUploadImagesRes(keys, uploaded), nil
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// ResolveURLs проставляет подписанные ссылки продуктам с изображением.
// Ошибка подписи не прерывает выдачу: ссылка остаётся пустой.
func (m *MinioInfrastructure) ResolveURLs(ctx context.Context, products []domain.Product) {
	for i := range products {
		if products[i].ImageKey == "" {
			continue
		}

		u, err := m.minioRepo.PresignGet(ctx, products[i].ImageKey, m.presignTTL)
		if err != nil {
			m.logger.Warnf("presign failed, key: %s: %v", products[i].ImageKey, err)
			continue
		}
		products[i].ImageURL = u
	}
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: cleaning up %d uploaded key(s)", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := m.minioRepo.Delete(ctx, key)
			if err == nil {
				break
			}

			if attempt == cleanupAttempts-1 {
				m.logger.Errorf(err, "%s: giving up on key %s", op, key)
				break
			}

			backoff := jitter.ExponentialBackoff(cleanupBaseBackoff, cleanupMaxBackoff, attempt, jitter.DefaultJitter)
			if err := jitter.Sleep(ctx, backoff); err != nil {
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
// Сигнатура подходит для closer.Func.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}
