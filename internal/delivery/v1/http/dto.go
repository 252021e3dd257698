package http

import (
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/storefront"
	"github.com/shopspring/decimal"
)

type ProductDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price" swaggertype:"string" example:"10.00"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}

type CartItemDTO struct {
	Product  ProductDTO `json:"product"`
	Quantity int        `json:"quantity"`
}

type QueryStateDTO struct {
	Status string `json:"status" enums:"idle,loading,loaded,failed"`
	Error  string `json:"error,omitempty"`
}

type FilterDTO struct {
	Category   string             `json:"category"`
	PriceRange [2]decimal.Decimal `json:"price_range" swaggertype:"array,string"`
}

type StateDTO struct {
	Version  uint64        `json:"version"`
	Listing  []ProductDTO  `json:"listing"`
	Cart     []CartItemDTO `json:"cart"`
	Load     QueryStateDTO `json:"load"`
	Filter   QueryStateDTO `json:"filter"`
	Criteria *FilterDTO    `json:"criteria,omitempty"`
	Notice   string        `json:"notice,omitempty"`
	Closed   bool          `json:"closed,omitempty"`
}

type ListProductsResponse struct {
	Products []ProductDTO `json:"products"`
}

type SearchHitDTO struct {
	Product ProductDTO `json:"product"`
	Score   float32    `json:"score"`
	Snippet string     `json:"snippet"`
}

type SearchResponse struct {
	Results []SearchHitDTO `json:"results"`
}

type SessionResponse struct {
	ID    string   `json:"id"`
	State StateDTO `json:"state"`
}

// FilterRequest — событие фильтра: подстрока категории и включительный диапазон цен.
type FilterRequest struct {
	Category   string              `json:"category"`
	PriceRange *[2]decimal.Decimal `json:"price_range" swaggertype:"array,string"`
}

type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
}

type AddToCartResponse struct {
	Item  CartItemDTO `json:"item"`
	State StateDTO    `json:"state"`
}

func toProductDTO(p domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Price:       domain.PriceToDecimal(p.Price),
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
}

func toArrSearchHitDTO(hits []domain.SearchHit) []SearchHitDTO {
	res := make([]SearchHitDTO, 0, len(hits))
	for _, h := range hits {
		res = append(res, SearchHitDTO{Product: toProductDTO(h.Product), Score: h.Score, Snippet: h.Snippet})
	}

	return res
}

func toArrProductDTO(products []domain.Product) []ProductDTO {
	res := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		res = append(res, toProductDTO(p))
	}

	return res
}

func toCartItemDTO(item domain.CartItem) CartItemDTO {
	return CartItemDTO{
		Product:  toProductDTO(item.Product),
		Quantity: item.Quantity,
	}
}

func toStateDTO(s storefront.State) StateDTO {
	cart := make([]CartItemDTO, 0, len(s.Cart))
	for _, item := range s.Cart {
		cart = append(cart, toCartItemDTO(item))
	}

	dto := StateDTO{
		Version: s.Version,
		Listing: toArrProductDTO(s.Listing),
		Cart:    cart,
		Load:    QueryStateDTO{Status: string(s.Load.Status), Error: s.Load.Error},
		Filter:  QueryStateDTO{Status: string(s.Filter.Status), Error: s.Filter.Error},
		Notice:  s.Notice,
		Closed:  s.Closed,
	}

	if s.Criteria != nil {
		dto.Criteria = &FilterDTO{
			Category:   s.Criteria.Category,
			PriceRange: [2]decimal.Decimal{domain.PriceToDecimal(s.Criteria.MinPrice), domain.PriceToDecimal(s.Criteria.MaxPrice)},
		}
	}

	return dto
}

// toFilterCriteria переводит границы диапазона в копейки.
func (f *FilterRequest) toFilterCriteria() (*domain.FilterCriteria, error) {
	if f.PriceRange == nil {
		return nil, errPriceRangeRequired
	}

	minPrice, err := domain.PriceFromDecimal(f.PriceRange[0])
	if err != nil {
		return nil, err
	}

	maxPrice, err := domain.PriceFromDecimal(f.PriceRange[1])
	if err != nil {
		return nil, err
	}

	return domain.NewFilterCriteria(f.Category, minPrice, maxPrice), nil
}
