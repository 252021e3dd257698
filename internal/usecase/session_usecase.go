package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/storefront"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// SessionUseCase хранит витрины в памяти. Неактивная витрина удаляется по истечении TTL.
type SessionUseCase struct {
	store      *gocache.Cache
	catalog    storefront.ProductLister
	cartEvents CartEventsInfra
	logger     logger.Logger
}

func NewSessionUC(
	catalog storefront.ProductLister,
	cartEvents CartEventsInfra,
	logger logger.Logger,
	ttl time.Duration,
	cleanupInterval time.Duration,
) *SessionUseCase {
	store := gocache.New(ttl, cleanupInterval)
	store.OnEvicted(func(id string, v any) {
		if c, ok := v.(*storefront.Controller); ok {
			c.Close()
			logger.Debugf("session %s closed", id)
		}
	})

	return &SessionUseCase{
		store:      store,
		catalog:    catalog,
		cartEvents: cartEvents,
		logger:     logger,
	}
}

// Open создаёт витрину и выполняет начальную загрузку.
// Ошибка загрузки не мешает открыть сессию: она отражена в состоянии.
func (s *SessionUseCase) Open(ctx context.Context) (*OpenSessionRes, error) {
	const op = "SessionUseCase.Open"

	id := uuid.NewString()
	c := storefront.NewController(s.catalog, &sessionEvents{id: id, infra: s.cartEvents}, s.logger)

	if err := c.Mount(ctx); err != nil {
		s.logger.Warnf("initial load failed, session: %s: %v", id, e.Wrap(op, err))
	}

	s.store.SetDefault(id, c)

	return &OpenSessionRes{ID: id, State: c.Snapshot()}, nil
}

// Snapshot возвращает текущее состояние витрины.
func (s *SessionUseCase) Snapshot(id string) (storefront.State, error) {
	const op = "SessionUseCase.Snapshot"

	c, err := s.controller(id)
	if err != nil {
		return storefront.State{}, e.Wrap(op, err)
	}

	return c.Snapshot(), nil
}

// Filter применяет фильтр к выдаче витрины.
// Возвращает ошибку только для некорректного фильтра; сбой запроса отражён в состоянии.
func (s *SessionUseCase) Filter(ctx context.Context, id string, criteria domain.FilterCriteria) (storefront.State, error) {
	const op = "SessionUseCase.Filter"

	c, err := s.controller(id)
	if err != nil {
		return storefront.State{}, e.Wrap(op, err)
	}

	if err := c.Filter(ctx, criteria); err != nil {
		if errors.Is(err, e.ErrInvalidPriceRange) || errors.Is(err, e.ErrSessionClosed) {
			return c.Snapshot(), e.Wrap(op, err)
		}
		s.logger.Warnf("filter failed, session: %s: %v", id, e.Wrap(op, err))
	}

	return c.Snapshot(), nil
}

// AddToCart добавляет в корзину продукт из текущей выдачи витрины.
func (s *SessionUseCase) AddToCart(ctx context.Context, id string, productID int64) (*AddToCartRes, error) {
	const op = "SessionUseCase.AddToCart"

	c, err := s.controller(id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	product, ok := c.Product(productID)
	if !ok {
		return nil, e.Wrap(op, e.ErrProductNotInListing)
	}

	item, err := c.AddToCart(ctx, product)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &AddToCartRes{Item: item, State: c.Snapshot()}, nil
}

// Subscribe подписывает fn на изменения витрины.
func (s *SessionUseCase) Subscribe(id string, fn func(storefront.State)) (func(), error) {
	const op = "SessionUseCase.Subscribe"

	c, err := s.controller(id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return c.Subscribe(fn), nil
}

// Close закрывает витрину и удаляет её из хранилища.
func (s *SessionUseCase) Close(id string) error {
	const op = "SessionUseCase.Close"

	if _, found := s.store.Get(id); !found {
		return e.Wrap(op, e.ErrSessionNotFound)
	}
	s.store.Delete(id) // OnEvicted закрывает контроллер

	return nil
}

// CloseAll закрывает все витрины (при остановке сервиса).
// Items не возвращает просроченные, но ещё не вычищенные записи,
// поэтому сначала они удаляются через DeleteExpired (срабатывает OnEvicted).
func (s *SessionUseCase) CloseAll() {
	s.store.DeleteExpired()
	for id := range s.store.Items() {
		s.store.Delete(id)
	}
}

// Touch продлевает TTL витрины, например пока открыт поток событий.
func (s *SessionUseCase) Touch(id string) error {
	const op = "SessionUseCase.Touch"

	if _, err := s.controller(id); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// controller находит витрину и продлевает её TTL.
func (s *SessionUseCase) controller(id string) (*storefront.Controller, error) {
	v, found := s.store.Get(id)
	if !found {
		return nil, e.ErrSessionNotFound
	}

	c := v.(*storefront.Controller)
	s.store.SetDefault(id, c)

	return c, nil
}

// sessionEvents привязывает события корзины к идентификатору сессии.
type sessionEvents struct {
	id    string
	infra CartEventsInfra
}

func (s *sessionEvents) PublishItemAdded(ctx context.Context, item domain.CartItem) error {
	if s.infra == nil {
		return nil
	}
	return s.infra.PublishItemAdded(ctx, s.id, item)
}
