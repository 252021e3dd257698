package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/marketplace/internal/domain"
)

var (
	tools = domain.Product{ID: 1, Name: "Hammer", Category: "tools", Price: 1000, ImageKey: "hammer.jpg"}
	toys  = domain.Product{ID: 2, Name: "Kite", Category: "toys", Price: 3000}
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products []domain.Product
	err      error
	selects  int
	upserts  []*domain.Product
	upsertFn func(p *domain.Product) (*UpsertProductRes, error)
}

func (f *fakeProductRepo) Select(_ context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.selects++
	if f.err != nil {
		return nil, f.err
	}

	res := make([]domain.Product, 0)
	for _, p := range f.products {
		if criteria.Matches(p) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (f *fakeProductRepo) SelectByIDs(_ context.Context, ids []int64) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	res := make([]domain.Product, 0, len(ids))
	for _, p := range f.products {
		if slices.Contains(ids, p.ID) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (f *fakeProductRepo) Upsert(_ context.Context, p *domain.Product) (*UpsertProductRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upserts = append(f.upserts, p)
	if f.upsertFn != nil {
		return f.upsertFn(p)
	}

	cp := *p
	cp.ID = int64(len(f.upserts))
	return NewUpsertProductRes(&cp, true, false), nil
}

func (f *fakeProductRepo) selectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selects
}

type fakeCategoryRepo struct {
	created []string
}

func (f *fakeCategoryRepo) Create(_ context.Context, c *domain.Category) (*domain.Category, error) {
	f.created = append(f.created, c.Name)
	return &domain.Category{ID: int64(len(f.created)), Name: c.Name}, nil
}

type fakeOutboxRepo struct {
	events []*OutboxEvent
}

func (f *fakeOutboxRepo) Create(_ context.Context, event *OutboxEvent) (*OutboxEvent, error) {
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeOutboxRepo) GetAndMarkAsProcessing(context.Context, int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkAsProcessed(context.Context, int64) error {
	return nil
}

func (f *fakeOutboxRepo) RequeueStale(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type fakeCache struct {
	mu          sync.Mutex
	listings    map[string][]domain.Product
	gen         int64
	genErr      error
	getErr      error
	sets        int
	invalidated int
	setDone     chan struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		listings: make(map[string][]domain.Product),
		setDone:  make(chan struct{}, 10),
	}
}

func cacheKey(c *domain.FilterCriteria) string {
	if c == nil {
		return "all"
	}
	return fmt.Sprintf("%s|%d|%d", c.Category, c.MinPrice, c.MaxPrice)
}

func (f *fakeCache) ListingGeneration(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen, f.genErr
}

func (f *fakeCache) GetListing(_ context.Context, gen int64, c *domain.FilterCriteria) ([]domain.Product, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, false, f.getErr
	}
	products, ok := f.listings[fmt.Sprintf("%d:%s", gen, cacheKey(c))]
	return append([]domain.Product(nil), products...), ok, nil
}

func (f *fakeCache) SetListing(_ context.Context, gen int64, c *domain.FilterCriteria, products []domain.Product) error {
	f.mu.Lock()
	f.listings[fmt.Sprintf("%d:%s", gen, cacheKey(c))] = products
	f.sets++
	f.mu.Unlock()

	f.setDone <- struct{}{}
	return nil
}

func (f *fakeCache) DeleteListings(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invalidated++
	f.gen++
	f.listings = make(map[string][]domain.Product)
	return nil
}

type fakeImages struct {
	mu       sync.Mutex
	uploaded [][]ProductImage
	cleaned  [][]string
	err      error
}

func (f *fakeImages) UploadImages(_ context.Context, req *UploadImagesReq) (*UploadImagesRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.uploaded = append(f.uploaded, req.Images)

	keys := make([]string, len(req.Images))
	for i, img := range req.Images {
		keys[i] = "img/" + img.Name
	}
	return NewUploadImagesRes(keys, keys), nil
}

func (f *fakeImages) CleanupImages(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, keys)
}

func (f *fakeImages) ResolveURLs(_ context.Context, products []domain.Product) {
	for i := range products {
		if products[i].ImageKey != "" {
			products[i].ImageURL = "https://cdn.test/" + products[i].ImageKey
		}
	}
}

type fakeCartEvents struct {
	mu       sync.Mutex
	sessions []string
	items    []domain.CartItem
}

func (f *fakeCartEvents) PublishItemAdded(_ context.Context, sessionID string, item domain.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionID)
	f.items = append(f.items, item)
	return nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []domain.Product
	err     error
}

func (f *fakeIndexer) IndexProducts(_ context.Context, products []domain.Product) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}
	f.indexed = append(f.indexed, products...)
	return len(products), nil
}

// fakeEmbeddings кодирует текст в вектор [длина в рунах, число слов].
type fakeEmbeddings struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	short bool
}

func (f *fakeEmbeddings) Embed(_ context.Context, req *EmbedReq) ([]EmbedRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req.Texts)
	if f.err != nil {
		return nil, f.err
	}

	res := make([]EmbedRes, 0, len(req.Texts))
	for _, text := range req.Texts {
		res = append(res, *NewEmbedRes([]float32{float32(len([]rune(text))), float32(len(strings.Fields(text)))}, "test-v1"))
	}
	if f.short && len(res) > 0 {
		res = res[:len(res)-1]
	}
	return res, nil
}

type fakeVectors struct {
	mu      sync.Mutex
	points  map[string]domain.Embedding
	deleted [][]int64
	found   []domain.ScoredChunk
	limits  []uint64
	err     error
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{points: make(map[string]domain.Embedding)}
}

func (f *fakeVectors) Upsert(_ context.Context, vectors []domain.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	for _, v := range vectors {
		f.points[v.ID] = v
	}
	return nil
}

func (f *fakeVectors) DeleteByProducts(_ context.Context, productIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, productIDs)
	for id, v := range f.points {
		if slices.Contains(productIDs, v.Payload["product_id"].(int64)) {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeVectors) Search(_ context.Context, _ []float32, limit uint64) ([]domain.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.found, nil
}
