package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/storefront"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogFunc func(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error)

func (f catalogFunc) ListProducts(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error) {
	return f(ctx, criteria)
}

func staticCatalog(products ...domain.Product) catalogFunc {
	return func(_ context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error) {
		res := make([]domain.Product, 0)
		for _, p := range products {
			if criteria.Matches(p) {
				res = append(res, p)
			}
		}
		return res, nil
	}
}

func newSessions(catalog storefront.ProductLister, events CartEventsInfra) *SessionUseCase {
	return NewSessionUC(catalog, events, logger.NewNop(), time.Minute, time.Minute)
}

func TestSessionUseCase_OpenMountsStorefront(t *testing.T) {
	uc := newSessions(staticCatalog(tools, toys), nil)

	res, err := uc.Open(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []domain.Product{tools, toys}, res.State.Listing)
	assert.Equal(t, storefront.StatusLoaded, res.State.Load.Status)

	snap, err := uc.Snapshot(res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.State.Listing, snap.Listing)
}

func TestSessionUseCase_OpenWithFailingCatalog(t *testing.T) {
	uc := newSessions(catalogFunc(func(context.Context, *domain.FilterCriteria) ([]domain.Product, error) {
		return nil, errors.New("db is down")
	}), nil)

	res, err := uc.Open(context.Background())

	require.NoError(t, err, "initial load failure is not fatal")
	assert.Empty(t, res.State.Listing)
	assert.Equal(t, storefront.StatusFailed, res.State.Load.Status)
	assert.NotEmpty(t, res.State.Notice)
}

func TestSessionUseCase_UnknownSession(t *testing.T) {
	uc := newSessions(staticCatalog(), nil)

	_, err := uc.Snapshot("missing")
	assert.ErrorIs(t, err, e.ErrSessionNotFound)

	_, err = uc.Filter(context.Background(), "missing", domain.FilterCriteria{MaxPrice: 10})
	assert.ErrorIs(t, err, e.ErrSessionNotFound)

	_, err = uc.AddToCart(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, e.ErrSessionNotFound)

	_, err = uc.Subscribe("missing", func(storefront.State) {})
	assert.ErrorIs(t, err, e.ErrSessionNotFound)

	assert.ErrorIs(t, uc.Close("missing"), e.ErrSessionNotFound)
}

func TestSessionUseCase_FilterThenAddToCart(t *testing.T) {
	events := &fakeCartEvents{}
	uc := newSessions(staticCatalog(tools, toys), events)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	state, err := uc.Filter(context.Background(), res.ID, domain.FilterCriteria{Category: "too", MinPrice: 0, MaxPrice: 2000})
	require.NoError(t, err)
	assert.Equal(t, []domain.Product{tools}, state.Listing)

	added, err := uc.AddToCart(context.Background(), res.ID, tools.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NewCartItem(tools), added.Item)
	assert.Equal(t, []domain.CartItem{domain.NewCartItem(tools)}, added.State.Cart)

	require.Len(t, events.sessions, 1)
	assert.Equal(t, res.ID, events.sessions[0])
}

func TestSessionUseCase_FilterInvalidRange(t *testing.T) {
	uc := newSessions(staticCatalog(tools, toys), nil)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	state, err := uc.Filter(context.Background(), res.ID, domain.FilterCriteria{MinPrice: 20, MaxPrice: 10})

	require.ErrorIs(t, err, e.ErrInvalidPriceRange)
	assert.Len(t, state.Listing, 2, "listing is kept")
	assert.NotEmpty(t, state.Notice)
}

func TestSessionUseCase_FilterFailureKeepsListing(t *testing.T) {
	fail := false
	uc := newSessions(catalogFunc(func(ctx context.Context, c *domain.FilterCriteria) ([]domain.Product, error) {
		if fail {
			return nil, errors.New("timeout")
		}
		return staticCatalog(tools, toys)(ctx, c)
	}), nil)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	fail = true
	state, err := uc.Filter(context.Background(), res.ID, domain.FilterCriteria{Category: "toys", MaxPrice: 5000})

	require.NoError(t, err)
	assert.Len(t, state.Listing, 2)
	assert.Equal(t, storefront.StatusFailed, state.Filter.Status)
}

func TestSessionUseCase_AddToCartProductNotInListing(t *testing.T) {
	uc := newSessions(staticCatalog(tools), nil)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	_, err = uc.AddToCart(context.Background(), res.ID, toys.ID)

	require.ErrorIs(t, err, e.ErrProductNotInListing)
}

func TestSessionUseCase_AddToCartTwiceKeepsDuplicates(t *testing.T) {
	uc := newSessions(staticCatalog(tools), nil)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	_, err = uc.AddToCart(context.Background(), res.ID, tools.ID)
	require.NoError(t, err)
	added, err := uc.AddToCart(context.Background(), res.ID, tools.ID)
	require.NoError(t, err)

	require.Len(t, added.State.Cart, 2)
	assert.Equal(t, 1, added.State.Cart[0].Quantity)
	assert.Equal(t, 1, added.State.Cart[1].Quantity)
}

func TestSessionUseCase_CloseNotifiesSubscribers(t *testing.T) {
	uc := newSessions(staticCatalog(tools), nil)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	var last storefront.State
	unsubscribe, err := uc.Subscribe(res.ID, func(s storefront.State) { last = s })
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, uc.Close(res.ID))

	assert.True(t, last.Closed)
	_, err = uc.Snapshot(res.ID)
	assert.ErrorIs(t, err, e.ErrSessionNotFound)
}

func TestSessionUseCase_IdleSessionExpires(t *testing.T) {
	uc := NewSessionUC(staticCatalog(tools), nil, logger.NewNop(), 20*time.Millisecond, 5*time.Millisecond)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	closed := make(chan struct{})
	_, err = uc.Subscribe(res.ID, func(s storefront.State) {
		if s.Closed {
			close(closed)
		}
	})
	require.NoError(t, err)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("idle session was not closed")
	}

	_, err = uc.Snapshot(res.ID)
	assert.ErrorIs(t, err, e.ErrSessionNotFound)
}

func TestSessionUseCase_CloseAll(t *testing.T) {
	uc := newSessions(staticCatalog(tools), nil)
	first, err := uc.Open(context.Background())
	require.NoError(t, err)
	second, err := uc.Open(context.Background())
	require.NoError(t, err)

	uc.CloseAll()

	_, err = uc.Snapshot(first.ID)
	assert.ErrorIs(t, err, e.ErrSessionNotFound)
	_, err = uc.Snapshot(second.ID)
	assert.ErrorIs(t, err, e.ErrSessionNotFound)
}

func TestSessionUseCase_CloseAllClosesExpiredSessions(t *testing.T) {
	uc := NewSessionUC(staticCatalog(tools), nil, logger.NewNop(), 20*time.Millisecond, time.Hour)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	closed := make(chan struct{})
	_, err = uc.Subscribe(res.ID, func(s storefront.State) {
		if s.Closed {
			close(closed)
		}
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	uc.CloseAll()

	select {
	case <-closed:
	default:
		t.Fatal("expired session was not closed")
	}
}

func TestSessionUseCase_TouchExtendsTTL(t *testing.T) {
	uc := NewSessionUC(staticCatalog(tools), nil, logger.NewNop(), 60*time.Millisecond, time.Hour)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, uc.Touch(res.ID))
	}

	_, err = uc.Snapshot(res.ID)
	require.NoError(t, err, "touched session outlives its TTL")

	assert.ErrorIs(t, uc.Touch("missing"), e.ErrSessionNotFound)
	uc.CloseAll()
}

func TestSessionUseCase_AddToCartAfterClose(t *testing.T) {
	events := &fakeCartEvents{}
	uc := newSessions(staticCatalog(tools), events)
	res, err := uc.Open(context.Background())
	require.NoError(t, err)

	c, err := uc.controller(res.ID)
	require.NoError(t, err)
	c.Close()

	_, err = uc.AddToCart(context.Background(), res.ID, tools.ID)
	require.ErrorIs(t, err, e.ErrSessionClosed)

	_, err = uc.Filter(context.Background(), res.ID, domain.FilterCriteria{MaxPrice: 5000})
	require.ErrorIs(t, err, e.ErrSessionClosed)

	assert.Empty(t, events.sessions)
}
