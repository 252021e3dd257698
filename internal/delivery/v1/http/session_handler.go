package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DRSN-tech/marketplace/internal/storefront"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const (
	maxBodySize      = 1 << 20
	defaultHeartbeat = 15 * time.Second
)

type SessionHandler struct {
	sessionUsecase usecase.SessionUC
	logger         logger.Logger
	heartbeat      time.Duration // интервал комментариев-пингов в SSE
}

func NewSessionHandler(sessionUsecase usecase.SessionUC, logger logger.Logger) *SessionHandler {
	return &SessionHandler{sessionUsecase: sessionUsecase, logger: logger, heartbeat: defaultHeartbeat}
}

// openSession
//
//	@Summary		Открыть витрину
//	@Description	Создаёт сессию и выполняет начальную загрузку выдачи.
//	@Description	Ошибка загрузки не фатальна: она попадает в notice.
//	@Tags			sessions
//	@Produce		json
//	@Success		201	{object}	SessionResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/sessions [post]
func (s *SessionHandler) openSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.sessionUsecase.Open(r.Context())
	if err != nil {
		s.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, SessionResponse{ID: res.ID, State: toStateDTO(res.State)})
}

// getSession
//
//	@Summary	Состояние витрины
//	@Tags		sessions
//	@Produce	json
//	@Param		id	path		string	true	"ID сессии"
//	@Success	200	{object}	SessionResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/sessions/{id} [get]
func (s *SessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := s.sessionUsecase.Snapshot(id)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SessionResponse{ID: id, State: toStateDTO(state)})
}

// applyFilter
//
//	@Summary		Применить фильтр
//	@Description	Перезапрашивает выдачу по подстроке категории и включительному диапазону цен.
//	@Description	Ответ на устаревший фильтр отбрасывается, ошибка запроса сохраняет прежнюю выдачу.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"ID сессии"
//	@Param			filter	body		FilterRequest	true	"Фильтр"
//	@Success		200		{object}	SessionResponse
//	@Failure		400		{object}	ErrorResponse	"Некорректный диапазон"
//	@Failure		404		{object}	ErrorResponse
//	@Router			/sessions/{id}/filter [post]
func (s *SessionHandler) applyFilter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FilterRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e400, err.Error())
		WriteError(w, err)
		return
	}

	criteria, err := req.toFilterCriteria()
	if err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e400, err.Error())
		WriteError(w, err)
		return
	}

	state, err := s.sessionUsecase.Filter(r.Context(), id, *criteria)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SessionResponse{ID: id, State: toStateDTO(state)})
}

// addToCart
//
//	@Summary		Добавить в корзину
//	@Description	Добавляет товар из текущей выдачи с количеством 1. Повторное добавление создаёт отдельную позицию.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"ID сессии"
//	@Param			item	body		AddToCartRequest	true	"Товар"
//	@Success		201		{object}	AddToCartResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse	"Сессии нет или товара нет в выдаче"
//	@Router			/sessions/{id}/cart [post]
func (s *SessionHandler) addToCart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AddToCartRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e400, err.Error())
		WriteError(w, err)
		return
	}

	if req.ProductID <= 0 {
		WriteError(w, e.ErrInvalidProductID)
		return
	}

	res, err := s.sessionUsecase.AddToCart(r.Context(), id, req.ProductID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, AddToCartResponse{Item: toCartItemDTO(res.Item), State: toStateDTO(res.State)})
}

// closeSession
//
//	@Summary	Закрыть витрину
//	@Tags		sessions
//	@Param		id	path	string	true	"ID сессии"
//	@Success	204
//	@Failure	404	{object}	ErrorResponse
//	@Router		/sessions/{id} [delete]
func (s *SessionHandler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessionUsecase.Close(chi.URLParam(r, "id")); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// streamEvents
//
//	@Summary		Поток состояний витрины
//	@Description	Server-Sent Events: текущее состояние, затем каждое изменение (event: state, id: версия).
//	@Description	Поток завершается после закрытия сессии.
//	@Tags			sessions
//	@Produce		text/event-stream
//	@Param			id	path		string	true	"ID сессии"
//	@Success		200	{object}	StateDTO
//	@Failure		404	{object}	ErrorResponse
//	@Router			/sessions/{id}/events [get]
func (s *SessionHandler) streamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Подписка до снимка: изменение между ними не потеряется, дубль отсеется по версии
	updates := make(chan storefront.State, 1)
	unsubscribe, err := s.sessionUsecase.Subscribe(id, func(state storefront.State) {
		offerLatest(updates, state)
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	defer unsubscribe()

	current, err := s.sessionUsecase.Snapshot(id)
	if err != nil {
		WriteError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// Поток живёт дольше WriteTimeout сервера
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	// Flush отправляет заголовки, без поддержки ничего не пишет
	if err := rc.Flush(); err != nil {
		if errors.Is(err, http.ErrNotSupported) {
			s.logger.Errorf(err, "response writer %T cannot flush", w)
			WriteError(w, e.ErrStreamingUnsupported)
		}
		return
	}

	last := current.Version
	if err := writeStateEvent(w, rc, current); err != nil {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			// Открытый поток считается активностью: TTL сессии продлевается
			if err := s.sessionUsecase.Touch(id); err != nil {
				s.logger.Debugf("session %s not touched: %v", id, err)
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case state := <-updates:
			if state.Version <= last {
				continue
			}
			last = state.Version

			if err := writeStateEvent(w, rc, state); err != nil {
				return
			}
			if state.Closed {
				return
			}
		}
	}
}

func writeStateEvent(w http.ResponseWriter, rc *http.ResponseController, state storefront.State) error {
	payload, err := json.Marshal(toStateDTO(state))
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", state.Version, payload); err != nil {
		return err
	}

	return rc.Flush()
}

// offerLatest кладёт снимок в канал ёмкостью 1, вытесняя более старый.
func offerLatest(ch chan storefront.State, state storefront.State) {
	for {
		select {
		case ch <- state:
			return
		default:
		}

		select {
		case old := <-ch:
			if old.Version > state.Version {
				state = old
			}
		default:
		}
	}
}
