package converter

import "github.com/DRSN-tech/marketplace/internal/domain"

// ProductConverter преобразует продукты выдачи между domain и моделью Redis.
type ProductConverter interface {
	ToArrRedisModel(entities []domain.Product) []ProductRedisModel
	ToArrEntity(models []ProductRedisModel) []domain.Product
}

type productConverter struct{}

func NewProductConverter() ProductConverter {
	return productConverter{}
}

func (productConverter) ToArrRedisModel(entities []domain.Product) []ProductRedisModel {
	res := make([]ProductRedisModel, 0, len(entities))
	for _, p := range entities {
		res = append(res, ProductRedisModel{
			ID:          p.ID,
			Name:        p.Name,
			Category:    p.Category,
			CategoryID:  p.CategoryID,
			Price:       p.Price,
			Description: p.Description,
			ImageKey:    p.ImageKey,
			CreatedAt:   p.CreatedAt,
		})
	}

	return res
}

func (productConverter) ToArrEntity(models []ProductRedisModel) []domain.Product {
	res := make([]domain.Product, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Product{
			ID:          m.ID,
			Name:        m.Name,
			Category:    m.Category,
			CategoryID:  m.CategoryID,
			Price:       m.Price,
			Description: m.Description,
			ImageKey:    m.ImageKey,
			CreatedAt:   m.CreatedAt,
		})
	}

	return res
}
