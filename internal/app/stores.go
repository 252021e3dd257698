package app

import (
	"context"
	"time"

	config "github.com/DRSN-tech/marketplace/internal/cfg"
	minioInfra "github.com/DRSN-tech/marketplace/internal/infrastructure/minio"
	s3Repo "github.com/DRSN-tech/marketplace/internal/repository/minio"
	"github.com/DRSN-tech/marketplace/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/marketplace/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/marketplace/internal/repository/redis"
	redisConv "github.com/DRSN-tech/marketplace/internal/repository/redis/converter"
	"github.com/DRSN-tech/marketplace/pkg/clients"
	"github.com/DRSN-tech/marketplace/pkg/closer"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/DRSN-tech/marketplace/pkg/postgres"
	"github.com/jimlawless/whereami"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// stores хранилища, общие для serve и import.
type stores struct {
	db           *postgres.PgDatabase
	productRepo  *pgdb.ProductRepo
	categoryRepo *pgdb.CategoryRepo
	cacheRepo    *redis.CacheRepo
	imagesInfra  *minioInfra.MinioInfrastructure
}

// connectStores подключается к PostgreSQL, Redis и MinIO и регистрирует их закрытие в c.
// shutdownCtx прерывает фоновые задачи очистки изображений.
func connectStores(shutdownCtx context.Context, cfg *config.Config, logger logger.Logger, c *closer.Closer) (*stores, error) {
	db, err := initPGDB(logger, cfg.Db)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	c.Add("postgres", db.Close)

	redisClient := clients.NewRedisClient(cfg.Redis)
	c.Add("redis", redisClient.Close)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), pingTimeout)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		logger.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		logger.Errorf(err, "failed to initialize minio client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), connectTimeout)
	defer minioCancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		logger.Errorf(err, "failed to initialize MinIO bucket")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imagesInfra := minioInfra.NewMinioInfrastructure(s3Repo.NewImageRepo(minioClient, cfg.Minio), cfg.Minio, logger, shutdownCtx)
	c.Add("minio cleanup", imagesInfra.WaitForCleanup)

	return &stores{
		db:           db,
		productRepo:  pgdb.NewProductRepo(db.Pool, pgdbConv.NewProductConverter()),
		categoryRepo: pgdb.NewCategoryRepo(db.Pool, pgdbConv.NewCategoryConverter()),
		cacheRepo:    redis.NewCacheRepo(redisClient, redisConv.NewProductConverter(), cfg.Redis, logger),
		imagesInfra:  imagesInfra,
	}, nil
}

func initPGDB(logger logger.Logger, cfg *config.PGDBCfg) (*postgres.PgDatabase, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := postgres.RunMigrations(cfg, logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		_ = db.Close(ctx)
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
