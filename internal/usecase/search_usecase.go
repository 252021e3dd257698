package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
)

const (
	DefaultSearchLimit = 3
	MaxSearchLimit     = 50

	// У продукта может быть несколько фрагментов, поэтому из хранилища берётся больше точек, чем нужно продуктов
	chunkOversample = 4
	embedBatchSize  = 64
)

// SearchUseCase ищет продукты по смыслу запроса и поддерживает векторный индекс каталога.
// Без ML-сервиса или векторного хранилища поиск отключён и возвращает e.ErrSearchUnavailable.
type SearchUseCase struct {
	embeddings  EmbeddingInfra
	vectors     EmbeddingRepository
	productRepo ProductRepository
	imagesInfra ImagesInfra
	chunkWords  int
	logger      logger.Logger
}

func NewSearchUC(
	embeddings EmbeddingInfra,
	vectors EmbeddingRepository,
	productRepo ProductRepository,
	imagesInfra ImagesInfra,
	chunkWords int,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		embeddings:  embeddings,
		vectors:     vectors,
		productRepo: productRepo,
		imagesInfra: imagesInfra,
		chunkWords:  chunkWords,
		logger:      logger,
	}
}

func (s *SearchUseCase) Enabled() bool {
	return s.embeddings != nil && s.vectors != nil
}

// Search возвращает до limit продуктов, наиболее похожих на запрос, по убыванию сходства.
// limit=0 означает DefaultSearchLimit.
func (s *SearchUseCase) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	const op = "SearchUseCase.Search"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, e.Wrap(op, e.ErrEmptyQuery)
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 0 || limit > MaxSearchLimit {
		return nil, e.Wrap(op, e.ErrInvalidLimit)
	}
	if !s.Enabled() {
		return nil, e.Wrap(op, e.ErrSearchUnavailable)
	}

	vectors, err := s.embeddings.Embed(ctx, NewEmbedReq([]string{query}))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(vectors) != 1 {
		return nil, e.Wrap(op, e.ErrEmbeddingMismatch)
	}

	chunks, err := s.vectors.Search(ctx, vectors[0].Vector, uint64(limit*chunkOversample))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	best := bestChunkPerProduct(chunks)
	if len(best) == 0 {
		return []domain.SearchHit{}, nil
	}

	ids := make([]int64, 0, len(best))
	for _, c := range best {
		ids = append(ids, c.ProductID)
	}

	products, err := s.productRepo.SelectByIDs(ctx, ids)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	s.imagesInfra.ResolveURLs(ctx, products)

	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	hits := make([]domain.SearchHit, 0, min(limit, len(best)))
	for _, c := range best {
		p, ok := byID[c.ProductID]
		if !ok {
			// Продукт архивирован или удалён, а его точки ещё в индексе
			continue
		}

		hits = append(hits, domain.SearchHit{Product: p, Score: c.Score, Snippet: c.Text})
		if len(hits) == limit {
			break
		}
	}

	return hits, nil
}

// IndexProducts векторизует тексты продуктов и заменяет их точки в векторном хранилище.
// Возвращает число сохранённых фрагментов.
func (s *SearchUseCase) IndexProducts(ctx context.Context, products []domain.Product) (int, error) {
	const op = "SearchUseCase.IndexProducts"

	if !s.Enabled() {
		return 0, e.Wrap(op, e.ErrSearchUnavailable)
	}
	if len(products) == 0 {
		return 0, nil
	}

	type chunkRef struct {
		productID int64
		idx       int
		text      string
	}

	ids := make([]int64, 0, len(products))
	refs := make([]chunkRef, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
		for idx, text := range domain.ChunkText(domain.ProductDocument(p), s.chunkWords) {
			refs = append(refs, chunkRef{productID: p.ID, idx: idx, text: text})
		}
	}

	embeddings := make([]domain.Embedding, 0, len(refs))
	for start := 0; start < len(refs); start += embedBatchSize {
		batch := refs[start:min(start+embedBatchSize, len(refs))]

		texts := make([]string, 0, len(batch))
		for _, ref := range batch {
			texts = append(texts, ref.text)
		}

		vectors, err := s.embeddings.Embed(ctx, NewEmbedReq(texts))
		if err != nil {
			return 0, e.Wrap(op, err)
		}
		if len(vectors) != len(batch) {
			return 0, e.Wrap(op, e.ErrEmbeddingMismatch)
		}

		for n, ref := range batch {
			embeddings = append(embeddings, *domain.NewEmbedding(
				domain.EmbeddingID(ref.productID, ref.idx),
				vectors[n].Vector,
				domain.NewPayload(ref.productID, ref.idx, ref.text, vectors[n].ModelVersion),
			))
		}
	}

	// Старые фрагменты удаляются: описание могло стать короче
	if err := s.vectors.DeleteByProducts(ctx, ids); err != nil {
		return 0, e.Wrap(op, err)
	}

	if len(embeddings) > 0 {
		if err := s.vectors.Upsert(ctx, embeddings); err != nil {
			return 0, e.Wrap(op, err)
		}
	}

	s.logger.Infof("products indexed, products: %d, chunks: %d", len(products), len(embeddings))

	return len(embeddings), nil
}

// Reindex векторизует весь неархивный каталог.
func (s *SearchUseCase) Reindex(ctx context.Context) (int, error) {
	const op = "SearchUseCase.Reindex"

	if !s.Enabled() {
		return 0, e.Wrap(op, e.ErrSearchUnavailable)
	}

	products, err := s.productRepo.Select(ctx, nil)
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	n, err := s.IndexProducts(ctx, products)
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	return n, nil
}

// bestChunkPerProduct оставляет по одному, самому похожему, фрагменту на продукт, по убыванию сходства.
func bestChunkPerProduct(chunks []domain.ScoredChunk) []domain.ScoredChunk {
	best := make(map[int64]int, len(chunks))
	res := make([]domain.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if i, ok := best[c.ProductID]; ok {
			if c.Score > res[i].Score {
				res[i] = c
			}
			continue
		}
		best[c.ProductID] = len(res)
		res = append(res, c)
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Score > res[j].Score
	})

	return res
}
