// Package storefront хранит состояние витрины одной сессии: текущую выдачу
// и корзину. Изменения состояния рассылаются подписчикам снимками State.
package storefront

import (
	"context"
	"errors"
	"sync"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
)

const (
	noticeLoadFailed    = "Products could not be loaded. Please try again later."
	noticeFilterFailed  = "The filter could not be applied. Showing previous results."
	noticeInvalidFilter = "Invalid filter: the price range must be non-negative and min must not exceed max."
)

// ProductLister — источник выдачи. nil criteria означает выдачу без фильтра.
type ProductLister interface {
	ListProducts(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error)
}

// CartEventPublisher получает события корзины. Ошибки публикации не влияют на корзину.
type CartEventPublisher interface {
	PublishItemAdded(ctx context.Context, item domain.CartItem) error
}

type queryKind int

const (
	queryLoad queryKind = iota
	queryFilter
)

// Controller управляет выдачей и корзиной одной витрины.
//
// Запросы выдачи (начальная загрузка и фильтры) нумеруются общим счётчиком:
// ответ применяется к выдаче только если он относится к последнему выпущенному
// запросу. Статус запроса обновляется, только если это последний запрос своего вида.
type Controller struct {
	catalog ProductLister
	events  CartEventPublisher
	logger  logger.Logger

	mu      sync.Mutex
	state   State
	mounted bool
	closed  bool
	seq     uint64
	latest  [2]uint64
	subs    map[uint64]func(State)
	nextSub uint64
}

func NewController(catalog ProductLister, events CartEventPublisher, logger logger.Logger) *Controller {
	return &Controller{
		catalog: catalog,
		events:  events,
		logger:  logger,
		state:   newState(),
		subs:    make(map[uint64]func(State)),
	}
}

// Mount выполняет начальную загрузку полной выдачи. Повторный вызов возвращает e.ErrAlreadyMounted.
// Ошибка загрузки не фатальна: выдача остаётся пустой, пользователь получает уведомление.
func (c *Controller) Mount(ctx context.Context) error {
	const op = "Controller.Mount"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return e.Wrap(op, e.ErrSessionClosed)
	}
	if c.mounted {
		c.mu.Unlock()
		return e.Wrap(op, e.ErrAlreadyMounted)
	}
	c.mounted = true
	c.mu.Unlock()

	if err := c.fetch(ctx, queryLoad, nil); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// Filter заменяет выдачу результатом запроса с фильтром.
// Некорректный диапазон отклоняется до отправки запроса.
// При ошибке запроса предыдущая выдача сохраняется.
func (c *Controller) Filter(ctx context.Context, criteria domain.FilterCriteria) error {
	const op = "Controller.Filter"

	if err := criteria.Validate(); err != nil {
		if !c.mutate(func(s *State) {
			s.Notice = noticeInvalidFilter
		}) {
			return e.Wrap(op, e.ErrSessionClosed)
		}
		return e.Wrap(op, err)
	}

	if err := c.fetch(ctx, queryFilter, &criteria); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// AddToCart добавляет продукт в корзину с количеством 1. Дубликаты не объединяются.
// Закрытая витрина корзину не меняет и событие не публикует.
func (c *Controller) AddToCart(ctx context.Context, product domain.Product) (domain.CartItem, error) {
	const op = "Controller.AddToCart"

	item := domain.NewCartItem(product)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.CartItem{}, e.Wrap(op, e.ErrSessionClosed)
	}
	c.state.Cart = append(c.state.Cart, item)
	snap, subs := c.changedLocked()
	c.mu.Unlock()
	notify(snap, subs)

	if c.events != nil {
		if err := c.events.PublishItemAdded(ctx, item); err != nil {
			c.logger.Warnf("failed to publish cart event, product_id: %d: %v", product.ID, err)
		}
	}

	return item, nil
}

// Product ищет продукт в текущей выдаче.
func (c *Controller) Product(id int64) (domain.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.state.Listing {
		if p.ID == id {
			return p, true
		}
	}

	return domain.Product{}, false
}

// Snapshot возвращает копию текущего состояния.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.clone()
}

// Subscribe регистрирует подписчика на изменения состояния.
// fn вызывается вне блокировки и не должна надолго блокироваться.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Close закрывает витрину: подписчики получают финальный снимок с Closed=true и отписываются.
// Ответы на запросы, выпущенные до закрытия, игнорируются.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state.Closed = true
	c.state.Version++
	snap, subs := c.state.clone(), c.subscribersLocked()
	c.subs = make(map[uint64]func(State))
	c.mu.Unlock()

	notify(snap, subs)
}

func (c *Controller) fetch(ctx context.Context, kind queryKind, criteria *domain.FilterCriteria) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return e.ErrSessionClosed
	}
	c.seq++
	seq := c.seq
	c.latest[kind] = seq
	q := c.query(kind)
	q.Status, q.Error = StatusLoading, ""
	if kind == queryFilter {
		cp := *criteria
		c.state.Criteria = &cp
	}
	snap, subs := c.changedLocked()
	c.mu.Unlock()
	notify(snap, subs)

	products, err := c.catalog.ListProducts(ctx, criteria)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}

	if seq == c.latest[kind] {
		q := c.query(kind)
		if err != nil {
			q.Status, q.Error = StatusFailed, err.Error()
		} else {
			q.Status, q.Error = StatusLoaded, ""
		}
	}

	switch {
	case seq != c.seq:
		c.logger.Debugf("discarding stale listing response, seq: %d, latest: %d", seq, c.seq)
	case err != nil:
		c.state.Notice = failureNotice(kind)
	default:
		c.state.Listing = append(make([]domain.Product, 0, len(products)), products...)
		c.state.Notice = ""
	}

	snap, subs = c.changedLocked()
	c.mu.Unlock()
	notify(snap, subs)

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warnf("listing request failed, seq: %d: %v", seq, err)
	}

	return err
}

func (c *Controller) query(kind queryKind) *QueryState {
	if kind == queryLoad {
		return &c.state.Load
	}
	return &c.state.Filter
}

// mutate применяет fn к состоянию открытой витрины. Возвращает false, если витрина закрыта.
func (c *Controller) mutate(fn func(s *State)) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	snap, subs := c.changedLocked()
	c.mu.Unlock()

	notify(snap, subs)
	return true
}

// changedLocked увеличивает версию и собирает снимок для рассылки. Вызывается под c.mu.
func (c *Controller) changedLocked() (State, []func(State)) {
	c.state.Version++
	return c.state.clone(), c.subscribersLocked()
}

func (c *Controller) subscribersLocked() []func(State) {
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}

	return subs
}

func notify(snap State, subs []func(State)) {
	for _, fn := range subs {
		fn(snap)
	}
}

func failureNotice(kind queryKind) string {
	if kind == queryLoad {
		return noticeLoadFailed
	}
	return noticeFilterFailed
}
