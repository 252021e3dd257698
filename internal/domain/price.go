package domain

import (
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/shopspring/decimal"
)

// MaxPrice — верхняя граница цены: 1 млрд рублей в копейках.
const MaxPrice int64 = 1_000_000_000 * 100

var hundred = decimal.NewFromInt(100)

// PriceFromDecimal переводит цену в рублях в копейки.
// Отрицательные значения, больше двух знаков после запятой и цены выше MaxPrice отклоняются.
func PriceFromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, e.ErrInvalidPrice
	}

	if d.Mul(hundred).GreaterThan(decimal.NewFromInt(MaxPrice)) {
		return 0, e.ErrInvalidPrice
	}

	// "10.50" и "10.5" равны, проверяем значимые знаки после запятой
	if !d.Equal(d.Truncate(2)) {
		return 0, e.ErrPricePrecision
	}

	return d.Mul(hundred).IntPart(), nil
}

// ParsePrice разбирает строку вида "599.99" или "600".
func ParsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, e.ErrInvalidPrice
	}

	return PriceFromDecimal(d)
}

// PriceToDecimal переводит копейки обратно в рубли.
func PriceToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
