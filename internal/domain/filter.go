package domain

import (
	"fmt"
	"strings"

	"github.com/DRSN-tech/marketplace/pkg/e"
)

// FilterCriteria ограничивает выдачу подстрокой категории и ценовым диапазоном.
// Границы диапазона включительные, цены в копейках.
type FilterCriteria struct {
	Category string
	MinPrice int64
	MaxPrice int64
}

func NewFilterCriteria(category string, minPrice, maxPrice int64) *FilterCriteria {
	return &FilterCriteria{
		Category: category,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}
}

// Validate отклоняет отрицательные и перевёрнутые диапазоны.
func (f *FilterCriteria) Validate() error {
	if f.MinPrice < 0 || f.MaxPrice < 0 {
		return fmt.Errorf("%w: bounds must not be negative", e.ErrInvalidPriceRange)
	}

	if f.MinPrice > f.MaxPrice {
		return fmt.Errorf("%w: min %d is greater than max %d", e.ErrInvalidPriceRange, f.MinPrice, f.MaxPrice)
	}

	return nil
}

// Matches повторяет семантику SQL-предиката: ILIKE '%category%' AND price BETWEEN min AND max.
func (f *FilterCriteria) Matches(p Product) bool {
	if f == nil {
		return true
	}

	if !strings.Contains(strings.ToLower(p.Category), strings.ToLower(f.Category)) {
		return false
	}

	return p.Price >= f.MinPrice && p.Price <= f.MaxPrice
}
