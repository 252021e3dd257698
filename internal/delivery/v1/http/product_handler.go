package http

import (
	"net/http"
	"strconv"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
)

type ProductHandler struct {
	catalogUsecase usecase.CatalogUC
	searchUsecase  usecase.SearchUC
	logger         logger.Logger
}

func NewProductHandler(catalogUsecase usecase.CatalogUC, searchUsecase usecase.SearchUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{catalogUsecase: catalogUsecase, searchUsecase: searchUsecase, logger: logger}
}

// listProducts
//
//	@Summary		Список товаров
//	@Description	Возвращает активные товары. Без параметров выдача не фильтруется,
//	@Description	иначе применяется подстрока категории и включительный диапазон цен.
//	@Tags			products
//	@Produce		json
//	@Param			category	query		string					false	"Подстрока названия категории, без учёта регистра"
//	@Param			min_price	query		string					false	"Нижняя граница цены, например 10.50"
//	@Param			max_price	query		string					false	"Верхняя граница цены"
//	@Success		200			{object}	ListProductsResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		500			{object}	ErrorResponse
//	@Router			/products [get]
func (p *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseListQuery(r)
	if err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e400, err.Error())
		WriteError(w, err)
		return
	}

	products, err := p.catalogUsecase.ListProducts(r.Context(), criteria)
	if err != nil {
		p.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, ListProductsResponse{Products: toArrProductDTO(products)})
}

// parseListQuery возвращает nil, если ни один параметр фильтра не задан.
// Незаданная граница диапазона заменяется на 0 или максимальную цену.
func parseListQuery(r *http.Request) (*domain.FilterCriteria, error) {
	q := r.URL.Query()
	if !q.Has("category") && !q.Has("min_price") && !q.Has("max_price") {
		return nil, nil
	}

	criteria := domain.NewFilterCriteria(q.Get("category"), 0, domain.MaxPrice)

	if q.Has("min_price") {
		minPrice, err := parsePriceToCents(q.Get("min_price"))
		if err != nil {
			return nil, err
		}
		criteria.MinPrice = minPrice
	}

	if q.Has("max_price") {
		maxPrice, err := parsePriceToCents(q.Get("max_price"))
		if err != nil {
			return nil, err
		}
		criteria.MaxPrice = maxPrice
	}

	return criteria, nil
}

// searchProducts
//
//	@Summary		Семантический поиск товаров
//	@Description	Возвращает товары, наиболее близкие к запросу по смыслу, по убыванию сходства.
//	@Description	Для каждого товара отдаётся самый похожий фрагмент описания.
//	@Tags			products
//	@Produce		json
//	@Param			q		query		string	true	"Текст запроса"
//	@Param			limit	query		int		false	"Число результатов, по умолчанию 3, не больше 50"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse	"Поиск не настроен"
//	@Router			/products/search [get]
func (p *ProductHandler) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if query.Has("limit") {
		n, err := strconv.Atoi(query.Get("limit"))
		if err != nil {
			p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e400, err.Error())
			WriteError(w, e.Wrap(err.Error(), e.ErrInvalidLimit))
			return
		}
		limit = n
	}

	hits, err := p.searchUsecase.Search(r.Context(), query.Get("q"), limit)
	if err != nil {
		p.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SearchResponse{Results: toArrSearchHitDTO(hits)})
}
