package storefront

import "github.com/DRSN-tech/marketplace/internal/domain"

// Status — состояние одного запроса выдачи.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// QueryState хранит статус запроса и текст ошибки, если он упал.
type QueryState struct {
	Status Status
	Error  string
}

// State — снимок витрины. Version растёт с каждым изменением,
// подписчики могут отбрасывать снимки старее уже полученных.
type State struct {
	Version  uint64
	Listing  []domain.Product
	Cart     []domain.CartItem
	Load     QueryState // начальная загрузка
	Filter   QueryState // последний фильтр
	Criteria *domain.FilterCriteria
	Notice   string // сообщение для пользователя
	Closed   bool
}

func newState() State {
	return State{
		Listing: []domain.Product{},
		Cart:    []domain.CartItem{},
		Load:    QueryState{Status: StatusIdle},
		Filter:  QueryState{Status: StatusIdle},
	}
}

// clone делает глубокую копию, чтобы снимок нельзя было изменить снаружи.
func (s State) clone() State {
	out := s
	out.Listing = append(make([]domain.Product, 0, len(s.Listing)), s.Listing...)
	out.Cart = append(make([]domain.CartItem, 0, len(s.Cart)), s.Cart...)
	if s.Criteria != nil {
		criteria := *s.Criteria
		out.Criteria = &criteria
	}

	return out
}
