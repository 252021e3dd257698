package domain

import "time"

// Product описывает продукт
type Product struct {
	ID          int64
	Name        string
	Category    string // Название категории
	CategoryID  int64
	Price       int64 // Цена хранится в копейках
	Description string
	ImageKey    string // Ключ объекта в S3, пустой если изображения нет
	ImageURL    string // Подписанная ссылка, заполняется при выдаче
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	IsArchived  bool
}

func NewProduct(name string, price int64, categoryID int64, description string, imageKey string) *Product {
	return &Product{
		Name:        name,
		Price:       price,
		CategoryID:  categoryID,
		Description: description,
		ImageKey:    imageKey,
	}
}
