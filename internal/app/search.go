package app

import (
	"context"

	config "github.com/DRSN-tech/marketplace/internal/cfg"
	ml_service "github.com/DRSN-tech/marketplace/internal/infrastructure/ml-service"
	qdrantRepo "github.com/DRSN-tech/marketplace/internal/repository/qdrant"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/clients"
	"github.com/DRSN-tech/marketplace/pkg/closer"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// newSearchUC подключает Qdrant и ML-сервис. Без cfg.Qdrant поиск собирается отключённым.
func newSearchUC(cfg *config.Config, st *stores, logger logger.Logger, c *closer.Closer) (*usecase.SearchUseCase, error) {
	var (
		embeddings usecase.EmbeddingInfra
		vectors    usecase.EmbeddingRepository
	)

	if cfg.Qdrant != nil {
		qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			logger.Errorf(err, "failed to initialize qdrant")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		c.Add("qdrant", qdrantClient.Close)

		qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), connectTimeout)
		defer qdrantCancel()
		if err := clients.EnsureCollection(qdrantCtx, qdrantClient); err != nil {
			logger.Errorf(err, "failed to initialize qdrant collection")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		conn, err := grpc.NewClient(
			cfg.Ml.Addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()), // ML-сервис во внутренней сети, без TLS
		)
		if err != nil {
			logger.Errorf(err, "failed to initialize ml-service client")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		c.Add("ml-service connection", func(context.Context) error {
			return conn.Close()
		})

		embeddings = ml_service.NewMLService(conn, cfg.Ml, logger)
		vectors = qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)
	}

	return usecase.NewSearchUC(embeddings, vectors, st.productRepo, st.imagesInfra, cfg.Search.ChunkWords, logger), nil
}

// Reindex заново векторизует весь каталог.
func Reindex(ctx context.Context, cfg *config.Config, logger logger.Logger) (int, error) {
	if cfg.Qdrant == nil {
		return 0, e.Wrap(whereami.WhereAmI(), e.ErrSearchUnavailable)
	}

	c := closer.NewCloser(forcedCloseTimeout)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			logger.Errorf(err, "failed to release resources")
		}
	}()

	st, err := connectStores(ctx, cfg, logger, c)
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	searchUC, err := newSearchUC(cfg, st, logger, c)
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return searchUC.Reindex(ctx)
}
