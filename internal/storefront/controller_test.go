package storefront

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	tools = domain.Product{ID: 1, Name: "Hammer", Category: "tools", Price: 1000}
	toys  = domain.Product{ID: 2, Name: "Kite", Category: "toys", Price: 3000}
)

type fakeCatalog struct {
	mu       sync.Mutex
	products []domain.Product
	err      error
	calls    []*domain.FilterCriteria
}

func (f *fakeCatalog) ListProducts(_ context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, criteria)
	if f.err != nil {
		return nil, f.err
	}

	res := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		if criteria.Matches(p) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (f *fakeCatalog) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu    sync.Mutex
	items []domain.CartItem
	err   error
}

func (f *fakePublisher) PublishItemAdded(_ context.Context, item domain.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return f.err
}

func newMounted(t *testing.T, catalog ProductLister) *Controller {
	t.Helper()
	c := NewController(catalog, nil, logger.NewNop())
	require.NoError(t, c.Mount(context.Background()))
	return c
}

func TestController_InitialState(t *testing.T) {
	c := NewController(&fakeCatalog{}, nil, logger.NewNop())

	s := c.Snapshot()
	assert.Empty(t, s.Listing)
	assert.Empty(t, s.Cart)
	assert.Equal(t, StatusIdle, s.Load.Status)
	assert.Equal(t, StatusIdle, s.Filter.Status)
}

func TestController_MountLoadsFullListing(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools, toys}}

	c := newMounted(t, catalog)

	require.Len(t, catalog.calls, 1)
	assert.Nil(t, catalog.calls[0], "mount must issue an unfiltered request")

	s := c.Snapshot()
	assert.Equal(t, []domain.Product{tools, toys}, s.Listing)
	assert.Equal(t, StatusLoaded, s.Load.Status)
	assert.Empty(t, s.Notice)
}

func TestController_MountTwice(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools}}
	c := newMounted(t, catalog)

	err := c.Mount(context.Background())

	require.ErrorIs(t, err, e.ErrAlreadyMounted)
	assert.Equal(t, 1, catalog.callCount())
}

func TestController_MountFailureIsNotFatal(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("connection refused")}
	c := NewController(catalog, nil, logger.NewNop())

	err := c.Mount(context.Background())
	require.Error(t, err)

	s := c.Snapshot()
	assert.Empty(t, s.Listing)
	assert.Equal(t, StatusFailed, s.Load.Status)
	assert.Contains(t, s.Load.Error, "connection refused")
	assert.Equal(t, noticeLoadFailed, s.Notice)

	c.AddToCart(context.Background(), tools)
	assert.Len(t, c.Snapshot().Cart, 1, "controller stays interactive")
}

func TestController_FilterReplacesListing(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools, toys}}
	c := newMounted(t, catalog)

	err := c.Filter(context.Background(), domain.FilterCriteria{Category: "too", MinPrice: 0, MaxPrice: 2000})
	require.NoError(t, err)

	require.Len(t, catalog.calls, 2)
	assert.Equal(t, &domain.FilterCriteria{Category: "too", MinPrice: 0, MaxPrice: 2000}, catalog.calls[1])

	s := c.Snapshot()
	assert.Equal(t, []domain.Product{tools}, s.Listing)
	assert.Equal(t, StatusLoaded, s.Filter.Status)
	require.NotNil(t, s.Criteria)
	assert.Equal(t, "too", s.Criteria.Category)

	item, err := c.AddToCart(context.Background(), tools)
	require.NoError(t, err)
	assert.Equal(t, domain.CartItem{Product: tools, Quantity: 1}, item)
	assert.Equal(t, []domain.CartItem{{Product: tools, Quantity: 1}}, c.Snapshot().Cart)
}

func TestController_FilterEmptyResultClearsListing(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools, toys}}
	c := newMounted(t, catalog)

	require.NoError(t, c.Filter(context.Background(), domain.FilterCriteria{Category: "garden", MaxPrice: 100000}))

	s := c.Snapshot()
	assert.Empty(t, s.Listing)
	assert.Equal(t, StatusLoaded, s.Filter.Status)
}

func TestController_FilterFailureKeepsPreviousListing(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools, toys}}
	c := newMounted(t, catalog)
	catalog.setErr(errors.New("i/o timeout"))

	err := c.Filter(context.Background(), domain.FilterCriteria{Category: "toys", MaxPrice: 5000})
	require.Error(t, err)

	s := c.Snapshot()
	assert.Equal(t, []domain.Product{tools, toys}, s.Listing)
	assert.Equal(t, StatusFailed, s.Filter.Status)
	assert.Equal(t, StatusLoaded, s.Load.Status)
	assert.Equal(t, noticeFilterFailed, s.Notice)
}

func TestController_FilterRejectsInvalidRange(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools, toys}}
	c := newMounted(t, catalog)

	err := c.Filter(context.Background(), domain.FilterCriteria{MinPrice: 5000, MaxPrice: 1000})

	require.ErrorIs(t, err, e.ErrInvalidPriceRange)
	assert.Equal(t, 1, catalog.callCount(), "no request is issued for an invalid range")

	s := c.Snapshot()
	assert.Equal(t, []domain.Product{tools, toys}, s.Listing)
	assert.Equal(t, StatusIdle, s.Filter.Status)
	assert.Equal(t, noticeInvalidFilter, s.Notice)
}

func TestController_FilterTwiceWithSameCriteria(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools, toys}}
	c := newMounted(t, catalog)
	criteria := domain.FilterCriteria{Category: "to", MinPrice: 2000, MaxPrice: 3000}

	require.NoError(t, c.Filter(context.Background(), criteria))
	once := c.Snapshot().Listing
	require.NoError(t, c.Filter(context.Background(), criteria))

	assert.Equal(t, 3, catalog.callCount())
	assert.Equal(t, once, c.Snapshot().Listing)
	assert.Equal(t, []domain.Product{toys}, once)
}

func TestController_AddToCartDoesNotMerge(t *testing.T) {
	publisher := &fakePublisher{}
	c := NewController(&fakeCatalog{}, publisher, logger.NewNop())

	c.AddToCart(context.Background(), tools)
	c.AddToCart(context.Background(), tools)

	cart := c.Snapshot().Cart
	require.Len(t, cart, 2)
	for _, item := range cart {
		assert.Equal(t, tools, item.Product)
		assert.Equal(t, 1, item.Quantity)
	}
	assert.Len(t, publisher.items, 2)
}

func TestController_AddToCartIgnoresPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker not available")}
	c := NewController(&fakeCatalog{}, publisher, logger.NewNop())

	item, err := c.AddToCart(context.Background(), toys)

	require.NoError(t, err)
	assert.Equal(t, toys.ID, item.ID)
	assert.Len(t, c.Snapshot().Cart, 1)
}

func TestController_Product(t *testing.T) {
	c := newMounted(t, &fakeCatalog{products: []domain.Product{tools, toys}})

	p, ok := c.Product(2)
	require.True(t, ok)
	assert.Equal(t, toys, p)

	_, ok = c.Product(42)
	assert.False(t, ok)
}

func TestController_SnapshotIsCopy(t *testing.T) {
	c := newMounted(t, &fakeCatalog{products: []domain.Product{tools}})
	c.AddToCart(context.Background(), tools)

	s := c.Snapshot()
	s.Listing[0].Name = "changed"
	s.Cart[0].Quantity = 99

	fresh := c.Snapshot()
	assert.Equal(t, "Hammer", fresh.Listing[0].Name)
	assert.Equal(t, 1, fresh.Cart[0].Quantity)
}

// gatedCatalog отдаёт ответы только по команде теста.
type gatedCatalog struct {
	calls chan gatedCall
}

type gatedCall struct {
	criteria *domain.FilterCriteria
	reply    chan []domain.Product
}

func (g *gatedCatalog) ListProducts(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error) {
	call := gatedCall{criteria: criteria, reply: make(chan []domain.Product)}
	g.calls <- call
	select {
	case res := <-call.reply:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestController_LastIssuedRequestWins(t *testing.T) {
	catalog := &gatedCatalog{calls: make(chan gatedCall)}
	c := NewController(catalog, nil, logger.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Mount(ctx)
	}()
	mount := <-catalog.calls

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Filter(ctx, domain.FilterCriteria{Category: "too", MaxPrice: 2000})
	}()
	first := <-catalog.calls

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_ = c.Filter(ctx, domain.FilterCriteria{Category: "toys", MaxPrice: 5000})
	}()
	second := <-catalog.calls

	second.reply <- []domain.Product{toys}
	<-secondDone
	assert.Equal(t, []domain.Product{toys}, c.Snapshot().Listing)

	// Ответы на более ранние запросы приходят позже и отбрасываются.
	first.reply <- []domain.Product{tools}
	mount.reply <- []domain.Product{tools, toys}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, []domain.Product{toys}, s.Listing)
	assert.Equal(t, StatusLoaded, s.Filter.Status)
	assert.Equal(t, StatusLoaded, s.Load.Status)
	assert.Equal(t, "toys", s.Criteria.Category)
}

func TestController_SubscribersReceiveSnapshots(t *testing.T) {
	c := NewController(&fakeCatalog{products: []domain.Product{tools}}, nil, logger.NewNop())

	var (
		mu   sync.Mutex
		seen []State
	)
	c.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	require.NoError(t, c.Mount(context.Background()))
	c.AddToCart(context.Background(), tools)
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4) // loading, loaded, cart, closed
	assert.Equal(t, StatusLoading, seen[0].Load.Status)
	assert.Equal(t, StatusLoaded, seen[1].Load.Status)
	assert.Len(t, seen[2].Cart, 1)
	assert.True(t, seen[3].Closed)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Version, seen[i-1].Version)
	}
}

func TestController_Unsubscribe(t *testing.T) {
	c := NewController(&fakeCatalog{}, nil, logger.NewNop())

	calls := 0
	unsubscribe := c.Subscribe(func(State) { calls++ })
	c.AddToCart(context.Background(), tools)
	unsubscribe()
	unsubscribe()
	c.AddToCart(context.Background(), toys)

	assert.Equal(t, 1, calls)
}

func TestController_CloseIgnoresLateResponses(t *testing.T) {
	catalog := &gatedCatalog{calls: make(chan gatedCall)}
	c := NewController(catalog, nil, logger.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Mount(context.Background())
	}()
	call := <-catalog.calls

	c.Close()
	call.reply <- []domain.Product{tools}
	<-done

	s := c.Snapshot()
	assert.True(t, s.Closed)
	assert.Empty(t, s.Listing)
	require.ErrorIs(t, c.Mount(context.Background()), e.ErrSessionClosed)
}

func TestController_ClosedIgnoresCartAndQueries(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Product{tools, toys}}
	publisher := &fakePublisher{}
	c := NewController(catalog, publisher, logger.NewNop())
	require.NoError(t, c.Mount(context.Background()))
	c.Close()
	before := c.Snapshot()

	_, err := c.AddToCart(context.Background(), tools)
	require.ErrorIs(t, err, e.ErrSessionClosed)

	err = c.Filter(context.Background(), domain.FilterCriteria{Category: "toys", MaxPrice: 5000})
	require.ErrorIs(t, err, e.ErrSessionClosed)

	err = c.Filter(context.Background(), domain.FilterCriteria{MinPrice: 20, MaxPrice: 10})
	require.ErrorIs(t, err, e.ErrSessionClosed)

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, 1, catalog.callCount(), "no listing request after close")
	assert.Empty(t, publisher.items)
}
